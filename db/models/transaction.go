package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Transaction : Transaction Model
type Transaction struct {
	bun.BaseModel `bun:"table:transactions"`

	ID            uuid.UUID    `json:"id" bun:"type:uuid,pk,default:gen_random_uuid()"`
	UserID        uuid.UUID    `json:"user_id" bun:"type:uuid,notnull"`
	User          *User        `json:"-" bun:"rel:belongs-to,join:user_id=id"`
	Value         int64        `json:"value" bun:",notnull" validate:"gt=0"`
	Currency      string       `json:"currency" bun:"type:varchar(16),notnull,default:'BRL'"`
	PaymentMethod string       `json:"payment_method" bun:"type:varchar(255),notnull"`
	Description   string       `json:"description" bun:"type:varchar(255),notnull"`
	Type          string       `json:"type" bun:"type:varchar(255),notnull" validate:"oneof=expense income"`
	CreatedAt     time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	DeletedAt     bun.NullTime `json:"deleted_at,omitempty"`
	IsDeleted     bool         `json:"is_deleted" bun:",notnull,default:false"`
}

// TransactionTotal is one row of an aggregated spending summary.
type TransactionTotal struct {
	Type     string `json:"type" bun:"type"`
	Currency string `json:"currency" bun:"currency"`
	Total    int64  `json:"total" bun:"total"`
	Count    int64  `json:"count" bun:"count"`
}
