package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/finagent/finance-agent/lib/service"
)

const userNotFoundMessage = "User not found. Please register first with /auth."

type RegisterPaymentTool struct {
	svc FinanceService
}

func NewRegisterPaymentTool(svc FinanceService) *RegisterPaymentTool {
	return &RegisterPaymentTool{svc: svc}
}

type registerPaymentParams struct {
	Amount        flexInt     `json:"amount" validate:"gt=0"`
	Currency      flexString  `json:"currency"`
	PaymentMethod flexString  `json:"payment_method" validate:"required"`
	Description   flexString  `json:"description"`
	ChatID        flexString  `json:"chat_id"`
	PhoneNumber   flexString  `json:"phone_number"`
	Type          lowerString `json:"type" validate:"omitempty,oneof=expense income"`
}

func (t *RegisterPaymentTool) Name() string { return "register_new_payment" }

func (t *RegisterPaymentTool) Description() string {
	return "Register a new payment transaction for a user."
}

func (t *RegisterPaymentTool) ParameterSchema() string {
	return `{
  "type": "object",
  "properties": {
    "amount": {"type": "integer", "description": "Amount paid or received."},
    "currency": {"type": "string", "description": "ISO currency code, e.g. BRL."},
    "payment_method": {"type": "string", "description": "How it was paid, e.g. PIX, credit card, cash."},
    "description": {"type": "string", "default": ""},
    "chat_id": {"type": "string", "default": ""},
    "phone_number": {"type": "string", "default": ""},
    "type": {"type": "string", "enum": ["expense", "income"], "default": "expense"}
  },
  "required": ["amount", "currency", "payment_method"]
}`
}

func (t *RegisterPaymentTool) Execute(ctx context.Context, raw json.RawMessage) (string, error) {
	params := &registerPaymentParams{}
	if err := decodeParams(raw, params); err != nil {
		return fmt.Sprintf("Failed to register transaction: %v", err), nil
	}

	chatID, phoneNumber := resolveIdentity(ctx, string(params.ChatID), string(params.PhoneNumber))
	transaction, err := t.svc.RegisterPayment(ctx, service.PaymentParams{
		Amount:        int64(params.Amount),
		Currency:      string(params.Currency),
		PaymentMethod: string(params.PaymentMethod),
		Description:   string(params.Description),
		ChatID:        chatID,
		PhoneNumber:   phoneNumber,
		Type:          string(params.Type),
	})
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return userNotFoundMessage, nil
	case err != nil:
		return fmt.Sprintf("Failed to register transaction: %v", err), nil
	}
	return fmt.Sprintf("Transaction registered successfully: %s", transaction.ID), nil
}
