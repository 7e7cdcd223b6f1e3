package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

type AuthUserTool struct {
	svc FinanceService
}

func NewAuthUserTool(svc FinanceService) *AuthUserTool {
	return &AuthUserTool{svc: svc}
}

type authUserParams struct {
	PhoneNumber flexString `json:"phone_number"`
	ChatID      flexString `json:"chatId"`
	ChatIDAlt   flexString `json:"chat_id"`
}

func (t *AuthUserTool) Name() string { return "auth_new_user" }

func (t *AuthUserTool) Description() string {
	return "Authenticate a new user and create a new account. If a phone_number is passed, it will be used to authenticate the user. " +
		"Instead, if a chatId is passed, it will be used to authenticate the user. If the user already exists, return the existing user ID."
}

func (t *AuthUserTool) ParameterSchema() string {
	return `{
  "type": "object",
  "properties": {
    "phone_number": {"type": "string", "default": ""},
    "chatId": {"type": "string", "default": ""}
  }
}`
}

func (t *AuthUserTool) Execute(ctx context.Context, raw json.RawMessage) (string, error) {
	params := &authUserParams{}
	if err := decodeParams(raw, params); err != nil {
		return fmt.Sprintf("Failed to register user: %v", err), nil
	}
	chatID := string(params.ChatID)
	if chatID == "" {
		chatID = string(params.ChatIDAlt)
	}

	chatID, phoneNumber := resolveIdentity(ctx, chatID, string(params.PhoneNumber))
	user, created, err := t.svc.AuthenticateUser(ctx, phoneNumber, chatID)
	if err != nil {
		return fmt.Sprintf("Failed to register user: %v", err), nil
	}
	if !created {
		return fmt.Sprintf("User already exists: %s", user.ID), nil
	}
	return fmt.Sprintf("User registered successfully: %s", user.ID), nil
}
