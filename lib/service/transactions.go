package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finagent/finance-agent/common"
	"github.com/finagent/finance-agent/db/models"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type PaymentParams struct {
	Amount        int64
	Currency      string
	PaymentMethod string
	Description   string
	ChatID        string
	PhoneNumber   string
	Type          string
}

// RegisterPayment stores a transaction for the user identified by the chat id
// or phone number in params.
func (svc *FinanceService) RegisterPayment(ctx context.Context, params PaymentParams) (*models.Transaction, error) {
	if params.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	txType := strings.ToLower(strings.TrimSpace(params.Type))
	if txType == "" {
		txType = common.TransactionTypeExpense
	}
	if txType != common.TransactionTypeExpense && txType != common.TransactionTypeIncome {
		return nil, fmt.Errorf("unknown transaction type %q", params.Type)
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = svc.defaultCurrency()
	}

	user, err := svc.FindUserByIdentity(ctx, params.ChatID, params.PhoneNumber)
	if err != nil {
		return nil, err
	}

	transaction := &models.Transaction{
		ID:            uuid.New(),
		UserID:        user.ID,
		Value:         params.Amount,
		Currency:      currency,
		PaymentMethod: params.PaymentMethod,
		Description:   params.Description,
		Type:          txType,
	}
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(transaction).Returning("*").Exec(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	svc.publish(Event{Type: common.EventTransactionCreated, UserID: user.ID, Transaction: transaction})
	return transaction, nil
}

// TransactionsFor lists the live transactions of a user, newest first.
func (svc *FinanceService) TransactionsFor(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = common.DefaultTransactionListLimit
	}
	if limit > common.MaxTransactionListLimit {
		limit = common.MaxTransactionListLimit
	}
	transactions := []models.Transaction{}
	err := svc.DB.NewSelect().
		Model(&transactions).
		Where("user_id = ?", userID).
		Where("is_deleted = false").
		OrderExpr("created_at DESC, id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

// DeleteTransaction soft deletes a transaction owned by userID.
func (svc *FinanceService) DeleteTransaction(ctx context.Context, userID, transactionID uuid.UUID) (*models.Transaction, error) {
	transaction := &models.Transaction{}
	err := svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(transaction).
			Set("is_deleted = true").
			Set("deleted_at = ?", time.Now()).
			Where("id = ?", transactionID).
			Where("user_id = ?", userID).
			Where("is_deleted = false").
			Returning("*").
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrTransactionNotFound
		}
		return nil
	})
	if errors.Is(err, ErrTransactionNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("delete transaction: %w", err)
	}
	svc.publish(Event{Type: common.EventTransactionDeleted, UserID: userID, Transaction: transaction})
	return transaction, nil
}

// SummaryFor totals the live transactions of a user created since the given
// time, per type and currency.
func (svc *FinanceService) SummaryFor(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.TransactionTotal, error) {
	totals := []models.TransactionTotal{}
	err := svc.DB.NewSelect().
		TableExpr("transactions").
		ColumnExpr("type, currency").
		ColumnExpr("COALESCE(SUM(value), 0) AS total").
		ColumnExpr("COUNT(*) AS count").
		Where("user_id = ?", userID).
		Where("is_deleted = false").
		Where("created_at >= ?", since).
		GroupExpr("type, currency").
		OrderExpr("type ASC, currency ASC").
		Scan(ctx, &totals)
	if err != nil {
		return nil, fmt.Errorf("summarize transactions: %w", err)
	}
	return totals, nil
}

func (svc *FinanceService) defaultCurrency() string {
	if svc.Config == nil || svc.Config.LLM.DefaultCurrency == "" {
		return "BRL"
	}
	return strings.ToUpper(svc.Config.LLM.DefaultCurrency)
}
