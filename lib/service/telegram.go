package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/finagent/finance-agent/telegram"
	"github.com/getsentry/sentry-go"
)

const agentFailureReply = "Sorry, I could not process your message right now. Please try again later."

// AgentPrompt is the user turn handed to the agent for a chat message.
func AgentPrompt(chatID int64, text string) string {
	return fmt.Sprintf("chat_id: %d\n%s", chatID, text)
}

// HandleTelegramUpdate runs the agent on a text message and replies in the same
// chat. Updates without text and chats that are not allowed are ignored.
// Failures are logged and never returned, Telegram only needs to know the
// update was received.
func (svc *FinanceService) HandleTelegramUpdate(ctx context.Context, update *telegram.Update) {
	if !update.HasText() {
		svc.Logger.Infof("Received non-message update %d", update.UpdateID)
		return
	}
	chatID := update.Message.Chat.ID
	if !svc.Config.Telegram.AllowedChatIDs.Allows(chatID) {
		svc.Logger.Warnf("Ignoring update %d from chat %d that is not allowed", update.UpdateID, chatID)
		return
	}
	if !svc.recentUpdates().firstSeen(update.UpdateID) {
		svc.Logger.Warnf("Skipping redelivered update %d from chat %d", update.UpdateID, chatID)
		return
	}
	svc.Logger.Infof("Received message from chat %d", chatID)

	answer, err := svc.Agent.Run(ctx, chatID, AgentPrompt(chatID, update.Message.Text))
	if err != nil {
		svc.Logger.Errorf("Agent failed on update %d from chat %d: %v", update.UpdateID, chatID, err)
		sentry.CaptureException(err)
		answer = agentFailureReply
	}

	sendCtx := ctx
	if timeout := svc.Config.Telegram.SendTimeoutSecond; timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}
	if err := svc.Telegram.SendMessage(sendCtx, chatID, answer); err != nil {
		svc.Logger.Errorf("Failed to send reply to chat %d: %v", chatID, err)
	}
}

// RegisterTelegramWebhook points the bot at this server. It is a no-op when no
// public endpoint is configured and never fails startup.
func (svc *FinanceService) RegisterTelegramWebhook(ctx context.Context) error {
	url := svc.Config.Telegram.WebhookUrl()
	if url == "" {
		svc.Logger.Info("SERVER_ENDPOINT not set, skipping telegram webhook registration")
		return nil
	}
	var policy backoff.BackOff = backoff.NewExponentialBackOff()
	policy = backoff.WithMaxRetries(policy, svc.Config.Telegram.RegisterRetries)
	err := backoff.RetryNotify(func() error {
		return svc.Telegram.SetWebhook(ctx, url, svc.Config.Telegram.WebhookSecret)
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		svc.Logger.Warnf("Telegram webhook setup failed, retrying in %s: %v", wait, err)
	})
	if err != nil {
		svc.Logger.Errorf("Failed to set up telegram webhook: %v", err)
		return err
	}
	svc.Logger.Infof("Telegram webhook set to %s", url)
	return nil
}
