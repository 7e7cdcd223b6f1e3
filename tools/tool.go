package tools

import (
	"context"
	"encoding/json"
)

type Tool interface {
	Name() string
	Description() string
	ParameterSchema() string
	Execute(ctx context.Context, params json.RawMessage) (string, error)
}

type chatIDKey struct{}

// WithChatID binds the chat the agent is answering. Tools prefer it over any
// chat id the model copied out of the message text.
func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatIDKey{}, chatID)
}

func ChatIDFromContext(ctx context.Context) (string, bool) {
	chatID, ok := ctx.Value(chatIDKey{}).(string)
	return chatID, ok && chatID != ""
}

// resolveIdentity picks the identifiers a tool may act for. With a bound chat
// the model's phone number is dropped so it cannot point at another user.
func resolveIdentity(ctx context.Context, chatFromModel, phoneFromModel string) (chatID, phoneNumber string) {
	if chatID, ok := ChatIDFromContext(ctx); ok {
		return chatID, ""
	}
	return chatFromModel, phoneFromModel
}

func resolveChatID(ctx context.Context, fromModel string) string {
	if chatID, ok := ChatIDFromContext(ctx); ok {
		return chatID
	}
	return fromModel
}
