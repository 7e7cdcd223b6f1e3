package tools

import (
	"context"
	"time"

	"github.com/finagent/finance-agent/db/models"
	"github.com/finagent/finance-agent/lib/service"
	"github.com/google/uuid"
)

// FinanceService is the part of the service the finance tools call into.
type FinanceService interface {
	AuthenticateUser(ctx context.Context, phoneNumber, chatID string) (*models.User, bool, error)
	FindUserByIdentity(ctx context.Context, chatID, phoneNumber string) (*models.User, error)
	RegisterPayment(ctx context.Context, params service.PaymentParams) (*models.Transaction, error)
	TransactionsFor(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID uuid.UUID) (*models.Transaction, error)
	SummaryFor(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.TransactionTotal, error)
}

// NewFinanceRegistry registers every finance tool backed by svc.
func NewFinanceRegistry(svc FinanceService) *Registry {
	r := NewRegistry()
	r.Register(NewRegisterPaymentTool(svc))
	r.Register(NewAuthUserTool(svc))
	r.Register(NewListTransactionsTool(svc))
	r.Register(NewDeleteTransactionTool(svc))
	r.Register(NewSpendingSummaryTool(svc))
	return r
}
