package models

import (
	"time"

	"github.com/google/uuid"
)

// Provider is the minimal directory record the payment core needs: the stable
// user id that owns the provider's wallet, plus the registered email kept as a
// migration-era lookup fallback.
type Provider struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
