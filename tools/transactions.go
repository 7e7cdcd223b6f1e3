package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finagent/finance-agent/common"
	"github.com/finagent/finance-agent/lib/service"
	"github.com/google/uuid"
)

type ListTransactionsTool struct {
	svc FinanceService
}

func NewListTransactionsTool(svc FinanceService) *ListTransactionsTool {
	return &ListTransactionsTool{svc: svc}
}

type listTransactionsParams struct {
	ChatID flexString `json:"chat_id"`
	Limit  flexInt    `json:"limit" validate:"gte=0"`
}

func (t *ListTransactionsTool) Name() string { return "list_transactions" }

func (t *ListTransactionsTool) Description() string {
	return "List the most recent transactions of the user, newest first."
}

func (t *ListTransactionsTool) ParameterSchema() string {
	return `{
  "type": "object",
  "properties": {
    "chat_id": {"type": "string", "default": ""},
    "limit": {"type": "integer", "default": 10, "maximum": 100}
  }
}`
}

func (t *ListTransactionsTool) Execute(ctx context.Context, raw json.RawMessage) (string, error) {
	params := &listTransactionsParams{}
	if err := decodeParams(raw, params); err != nil {
		return fmt.Sprintf("Failed to list transactions: %v", err), nil
	}
	user, err := t.svc.FindUserByIdentity(ctx, resolveChatID(ctx, string(params.ChatID)), "")
	if errors.Is(err, service.ErrUserNotFound) {
		return userNotFoundMessage, nil
	}
	if err != nil {
		return fmt.Sprintf("Failed to list transactions: %v", err), nil
	}

	limit := int(params.Limit)
	if limit == 0 {
		limit = common.DefaultTransactionListLimit
	}
	transactions, err := t.svc.TransactionsFor(ctx, user.ID, limit)
	if err != nil {
		return fmt.Sprintf("Failed to list transactions: %v", err), nil
	}
	if len(transactions) == 0 {
		return "No transactions found.", nil
	}

	var b strings.Builder
	for _, tx := range transactions {
		fmt.Fprintf(&b, "- %s %s %d %s via %s", tx.CreatedAt.Format("2006-01-02"), tx.Type, tx.Value, tx.Currency, tx.PaymentMethod)
		if tx.Description != "" {
			fmt.Fprintf(&b, ": %s", tx.Description)
		}
		fmt.Fprintf(&b, " (id %s)\n", tx.ID)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type DeleteTransactionTool struct {
	svc FinanceService
}

func NewDeleteTransactionTool(svc FinanceService) *DeleteTransactionTool {
	return &DeleteTransactionTool{svc: svc}
}

type deleteTransactionParams struct {
	ChatID        flexString `json:"chat_id"`
	TransactionID flexString `json:"transaction_id" validate:"required,uuid"`
}

func (t *DeleteTransactionTool) Name() string { return "delete_transaction" }

func (t *DeleteTransactionTool) Description() string {
	return "Delete one of the user's transactions by id. Use list_transactions first to find the id."
}

func (t *DeleteTransactionTool) ParameterSchema() string {
	return `{
  "type": "object",
  "properties": {
    "chat_id": {"type": "string", "default": ""},
    "transaction_id": {"type": "string", "format": "uuid"}
  },
  "required": ["transaction_id"]
}`
}

func (t *DeleteTransactionTool) Execute(ctx context.Context, raw json.RawMessage) (string, error) {
	params := &deleteTransactionParams{}
	if err := decodeParams(raw, params); err != nil {
		return fmt.Sprintf("Failed to delete transaction: %v", err), nil
	}
	user, err := t.svc.FindUserByIdentity(ctx, resolveChatID(ctx, string(params.ChatID)), "")
	if errors.Is(err, service.ErrUserNotFound) {
		return userNotFoundMessage, nil
	}
	if err != nil {
		return fmt.Sprintf("Failed to delete transaction: %v", err), nil
	}

	transactionID := uuid.MustParse(string(params.TransactionID))
	_, err = t.svc.DeleteTransaction(ctx, user.ID, transactionID)
	if errors.Is(err, service.ErrTransactionNotFound) {
		return fmt.Sprintf("Transaction not found: %s", transactionID), nil
	}
	if err != nil {
		return fmt.Sprintf("Failed to delete transaction: %v", err), nil
	}
	return fmt.Sprintf("Transaction deleted: %s", transactionID), nil
}

type SpendingSummaryTool struct {
	svc FinanceService
	now func() time.Time
}

func NewSpendingSummaryTool(svc FinanceService) *SpendingSummaryTool {
	return &SpendingSummaryTool{svc: svc, now: time.Now}
}

type spendingSummaryParams struct {
	ChatID flexString `json:"chat_id"`
	Days   flexInt    `json:"days" validate:"gte=0,lte=3660"`
}

func (t *SpendingSummaryTool) Name() string { return "spending_summary" }

func (t *SpendingSummaryTool) Description() string {
	return "Summarize the user's expenses and income over the last N days, per currency."
}

func (t *SpendingSummaryTool) ParameterSchema() string {
	return `{
  "type": "object",
  "properties": {
    "chat_id": {"type": "string", "default": ""},
    "days": {"type": "integer", "default": 30}
  }
}`
}

func (t *SpendingSummaryTool) Execute(ctx context.Context, raw json.RawMessage) (string, error) {
	params := &spendingSummaryParams{}
	if err := decodeParams(raw, params); err != nil {
		return fmt.Sprintf("Failed to summarize transactions: %v", err), nil
	}
	user, err := t.svc.FindUserByIdentity(ctx, resolveChatID(ctx, string(params.ChatID)), "")
	if errors.Is(err, service.ErrUserNotFound) {
		return userNotFoundMessage, nil
	}
	if err != nil {
		return fmt.Sprintf("Failed to summarize transactions: %v", err), nil
	}

	days := int(params.Days)
	if days == 0 {
		days = 30
	}
	totals, err := t.svc.SummaryFor(ctx, user.ID, t.now().AddDate(0, 0, -days))
	if err != nil {
		return fmt.Sprintf("Failed to summarize transactions: %v", err), nil
	}
	if len(totals) == 0 {
		return fmt.Sprintf("No transactions in the last %d days.", days), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d days:", days)
	for _, total := range totals {
		fmt.Fprintf(&b, "\n- %s: %d %s in %d transaction(s)", total.Type, total.Total, total.Currency, total.Count)
	}
	return b.String(), nil
}
