package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/finagent/finance-agent/common"
	"github.com/finagent/finance-agent/db/models"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthenticateUser returns the user registered under phoneNumber or chatID,
// creating it when neither identifier is known yet. created reports whether a
// new row was inserted.
func (svc *FinanceService) AuthenticateUser(ctx context.Context, phoneNumber, chatID string) (user *models.User, created bool, err error) {
	if phoneNumber == "" && chatID == "" {
		return nil, false, ErrMissingIdentity
	}
	user, err = svc.FindUserByIdentity(ctx, chatID, phoneNumber)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user = &models.User{
		ID: uuid.New(),
		ServicesAuthenticated: map[string]string{
			common.ServiceWhatsapp: phoneNumber,
			common.ServiceTelegram: chatID,
		},
	}
	err = svc.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(user).Returning("*").Exec(ctx)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}
	svc.publish(Event{Type: common.EventUserCreated, UserID: user.ID, User: user})
	return user, true, nil
}

// FindUserByIdentity looks a live user up by its telegram chat id, or by its
// whatsapp phone number when no chat id is given. Empty identifiers never match.
func (svc *FinanceService) FindUserByIdentity(ctx context.Context, chatID, phoneNumber string) (*models.User, error) {
	if chatID == "" && phoneNumber == "" {
		return nil, ErrUserNotFound
	}
	user := &models.User{}
	err := svc.DB.NewSelect().
		Model(user).
		Apply(func(q *bun.SelectQuery) *bun.SelectQuery {
			if chatID != "" {
				return q.Where("services_authenticated->>? = ?", common.ServiceTelegram, chatID)
			}
			return q.Where("services_authenticated->>? = ?", common.ServiceWhatsapp, phoneNumber)
		}).
		Where("deleted_at IS NULL").
		OrderExpr("created_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (svc *FinanceService) FindUser(ctx context.Context, userId uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := svc.DB.NewSelect().Model(user).Where("id = ?", userId).Where("deleted_at IS NULL").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
