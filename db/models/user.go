package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User : User Model
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID                    uuid.UUID         `json:"id" bun:"type:uuid,pk,default:gen_random_uuid()"`
	ServicesAuthenticated map[string]string `json:"services_authenticated" bun:"type:jsonb,notnull"`
	Transactions          []*Transaction    `json:"-" bun:"rel:has-many,join:id=user_id"`
	CreatedAt             time.Time         `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt             bun.NullTime      `json:"updated_at"`
	DeletedAt             bun.NullTime      `json:"deleted_at,omitempty"`
}

func (u *User) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		u.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

// Identity returns the identifier registered for the given service, or "".
func (u *User) Identity(service string) string {
	if u.ServicesAuthenticated == nil {
		return ""
	}
	return u.ServicesAuthenticated[service]
}

var _ bun.BeforeAppendModelHook = (*User)(nil)
