package service

import (
	"context"
	"errors"
	"sync"

	"github.com/finagent/finance-agent/telegram"
	"github.com/uptrace/bun"
	"github.com/ziflex/lecho/v3"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrMissingIdentity     = errors.New("a chat id or a phone number is required")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// TelegramClient is the subset of the bot API the service needs.
type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SetWebhook(ctx context.Context, url, secret string) error
}

// Agent answers one user message, calling tools as needed.
type Agent interface {
	Run(ctx context.Context, chatID int64, text string) (string, error)
}

type FinanceService struct {
	Config      *Config
	DB          *bun.DB
	Logger      *lecho.Logger
	Telegram    TelegramClient
	Agent       Agent
	EventPubSub *Pubsub

	updatesOnce sync.Once
	updates     *recentUpdates
}

var _ TelegramClient = (*telegram.Client)(nil)
