package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/finagent/finance-agent/common"
	"github.com/finagent/finance-agent/db/models"
	"github.com/finagent/finance-agent/lib/responses"
	"github.com/finagent/finance-agent/lib/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type TransactionService interface {
	TransactionsFor(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID uuid.UUID) (*models.Transaction, error)
	SummaryFor(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.TransactionTotal, error)
}

// TransactionController : TransactionController struct
type TransactionController struct {
	svc TransactionService
}

func NewTransactionController(svc TransactionService) *TransactionController {
	return &TransactionController{svc: svc}
}

type ListTransactionsRequest struct {
	Limit int `query:"limit" validate:"gte=0,lte=100"`
}

type TransactionResponseBody struct {
	ID            uuid.UUID `json:"id"`
	Value         int64     `json:"value"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"payment_method"`
	Description   string    `json:"description"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListTransactions godoc
// @Summary      List transactions
// @Description  The caller's transactions, newest first
// @Produce      json
// @Tags         Transactions
// @Param        limit  query     int  false  "Maximum number of transactions"
// @Success      200    {array}   TransactionResponseBody
// @Failure      400    {object}  responses.ErrorResponse
// @Failure      500    {object}  responses.ErrorResponse
// @Router       /api/v1/transactions [get]
// @Security     BearerAuth
func (controller *TransactionController) ListTransactions(c echo.Context) error {
	userId := c.Get("UserID").(uuid.UUID)

	var req ListTransactionsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if req.Limit == 0 {
		req.Limit = common.DefaultTransactionListLimit
	}

	transactions, err := controller.svc.TransactionsFor(c.Request().Context(), userId, req.Limit)
	if err != nil {
		return err
	}
	response := make([]TransactionResponseBody, len(transactions))
	for i, tx := range transactions {
		response[i] = TransactionResponseBody{
			ID:            tx.ID,
			Value:         tx.Value,
			Currency:      tx.Currency,
			PaymentMethod: tx.PaymentMethod,
			Description:   tx.Description,
			Type:          tx.Type,
			CreatedAt:     tx.CreatedAt,
		}
	}
	return c.JSON(http.StatusOK, response)
}

// DeleteTransaction godoc
// @Summary      Delete a transaction
// @Description  Soft deletes one of the caller's transactions
// @Produce      json
// @Tags         Transactions
// @Param        id   path      string  true  "Transaction id"
// @Success      204
// @Failure      400  {object}  responses.ErrorResponse
// @Failure      404  {object}  responses.ErrorResponse
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /api/v1/transactions/{id} [delete]
// @Security     BearerAuth
func (controller *TransactionController) DeleteTransaction(c echo.Context) error {
	userId := c.Get("UserID").(uuid.UUID)
	transactionId, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	_, err = controller.svc.DeleteTransaction(c.Request().Context(), userId, transactionId)
	if errors.Is(err, service.ErrTransactionNotFound) {
		return c.JSON(http.StatusNotFound, responses.TransactionNotFoundError)
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type SummaryRequest struct {
	Days int `query:"days" validate:"gte=0,lte=3660"`
}

type SummaryResponseBody struct {
	Days   int                       `json:"days"`
	Since  time.Time                 `json:"since"`
	Totals []models.TransactionTotal `json:"totals"`
}

// Summary godoc
// @Summary      Spending summary
// @Description  Totals per type and currency over the last days
// @Produce      json
// @Tags         Transactions
// @Param        days  query     int  false  "Window in days, 30 by default"
// @Success      200   {object}  SummaryResponseBody
// @Failure      400   {object}  responses.ErrorResponse
// @Failure      500   {object}  responses.ErrorResponse
// @Router       /api/v1/summary [get]
// @Security     BearerAuth
func (controller *TransactionController) Summary(c echo.Context) error {
	userId := c.Get("UserID").(uuid.UUID)

	var req SummaryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if req.Days == 0 {
		req.Days = 30
	}

	since := time.Now().AddDate(0, 0, -req.Days)
	totals, err := controller.svc.SummaryFor(c.Request().Context(), userId, since)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &SummaryResponseBody{Days: req.Days, Since: since, Totals: totals})
}
