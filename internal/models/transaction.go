package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction directions.
const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

// Transaction sources.
const (
	SourceMpesa      = "mpesa"
	SourceCard       = "card"
	SourceCash       = "cash"
	SourceWithdrawal = "withdrawal"
)

// Transaction statuses.
const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

// Transaction is an immutable, append-only record of a ledger-affecting event.
// Rows are never mutated after creation except status finalization; the set of
// completed transactions is the replay log the reconciliation auditor uses.
type Transaction struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    uuid.UUID  `json:"user_id" db:"user_id"`
	InvoiceID *uuid.UUID `json:"invoice_id" db:"invoice_id"`
	Amount    float64    `json:"amount" db:"amount"`
	Direction string     `json:"direction" db:"direction"`
	Source    string     `json:"source" db:"source"`
	Reference string     `json:"reference" db:"reference"`
	Status    string     `json:"status" db:"status"`
	Details   *string    `json:"details" db:"details"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
