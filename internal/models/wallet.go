package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is the per-user ledger balance. One wallet per user, created lazily
// on first access. All mutation goes through credit/debit plus a Transaction
// record; the balance column is a running total derivable from the log.
type Wallet struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Balance   float64   `json:"balance" db:"balance"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
