package tools

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/finagent/finance-agent/common"
	"github.com/finagent/finance-agent/db/models"
	"github.com/finagent/finance-agent/lib/service"
	"github.com/google/uuid"
)

// fakeService keeps users and transactions in memory.
type fakeService struct {
	users        []*models.User
	transactions []*models.Transaction
	failWith     error
	lastPayment  service.PaymentParams
	lastSince    time.Time
}

func (f *fakeService) AuthenticateUser(ctx context.Context, phoneNumber, chatID string) (*models.User, bool, error) {
	if f.failWith != nil {
		return nil, false, f.failWith
	}
	if user, err := f.FindUserByIdentity(ctx, chatID, phoneNumber); err == nil {
		return user, false, nil
	}
	user := &models.User{
		ID: uuid.New(),
		ServicesAuthenticated: map[string]string{
			common.ServiceTelegram: chatID,
			common.ServiceWhatsapp: phoneNumber,
		},
	}
	f.users = append(f.users, user)
	return user, true, nil
}

func (f *fakeService) FindUserByIdentity(ctx context.Context, chatID, phoneNumber string) (*models.User, error) {
	for _, u := range f.users {
		if chatID != "" {
			if u.Identity(common.ServiceTelegram) == chatID {
				return u, nil
			}
			continue
		}
		if phoneNumber != "" && u.Identity(common.ServiceWhatsapp) == phoneNumber {
			return u, nil
		}
	}
	return nil, service.ErrUserNotFound
}

func (f *fakeService) RegisterPayment(ctx context.Context, params service.PaymentParams) (*models.Transaction, error) {
	f.lastPayment = params
	if f.failWith != nil {
		return nil, f.failWith
	}
	user, err := f.FindUserByIdentity(ctx, params.ChatID, params.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if params.Type == "" {
		params.Type = common.TransactionTypeExpense
	}
	tx := &models.Transaction{
		ID:            uuid.New(),
		UserID:        user.ID,
		Value:         params.Amount,
		Currency:      params.Currency,
		PaymentMethod: params.PaymentMethod,
		Description:   params.Description,
		Type:          params.Type,
		CreatedAt:     time.Now(),
	}
	f.transactions = append(f.transactions, tx)
	return tx, nil
}

func (f *fakeService) TransactionsFor(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	out := []models.Transaction{}
	for _, tx := range f.transactions {
		if tx.UserID == userID && !tx.IsDeleted {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeService) DeleteTransaction(ctx context.Context, userID, transactionID uuid.UUID) (*models.Transaction, error) {
	for _, tx := range f.transactions {
		if tx.ID == transactionID && tx.UserID == userID && !tx.IsDeleted {
			tx.IsDeleted = true
			return tx, nil
		}
	}
	return nil, service.ErrTransactionNotFound
}

func (f *fakeService) SummaryFor(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.TransactionTotal, error) {
	f.lastSince = since
	if f.failWith != nil {
		return nil, f.failWith
	}
	totals := map[[2]string]*models.TransactionTotal{}
	keys := [][2]string{}
	for _, tx := range f.transactions {
		if tx.UserID != userID || tx.IsDeleted || tx.CreatedAt.Before(since) {
			continue
		}
		key := [2]string{tx.Type, tx.Currency}
		if totals[key] == nil {
			totals[key] = &models.TransactionTotal{Type: tx.Type, Currency: tx.Currency}
			keys = append(keys, key)
		}
		totals[key].Total += tx.Value
		totals[key].Count++
	}
	out := []models.TransactionTotal{}
	for _, k := range keys {
		out = append(out, *totals[k])
	}
	return out, nil
}

var errDatabaseDown = errors.New("database is down")
