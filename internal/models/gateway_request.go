package models

import (
	"time"

	"github.com/google/uuid"
)

// Gateway request statuses. pending -> success | failed, both terminal.
const (
	GatewayRequestPending = "pending"
	GatewayRequestSuccess = "success"
	GatewayRequestFailed  = "failed"
)

// GatewayRequest tracks one STK push issued to the mobile-money gateway,
// keyed by the gateway's own CheckoutRequestID. The callback finalizes it
// exactly once; a second callback for the same id is a no-op.
type GatewayRequest struct {
	ID                uuid.UUID `json:"id" db:"id"`
	CheckoutRequestID string    `json:"checkout_request_id" db:"checkout_request_id"`
	MerchantRequestID string    `json:"merchant_request_id" db:"merchant_request_id"`
	PhoneNumber       string    `json:"phone_number" db:"phone_number"`
	Amount            float64   `json:"amount" db:"amount"`
	AccountReference  string    `json:"account_reference" db:"account_reference"`
	Description       string    `json:"description" db:"description"`
	Status            string    `json:"status" db:"status"`
	ResultCode        *int      `json:"result_code" db:"result_code"`
	ResultDesc        *string   `json:"result_desc" db:"result_desc"`
	ReceiptNumber     *string   `json:"receipt_number" db:"receipt_number"`
	EntityType        string    `json:"entity_type" db:"entity_type"`
	EntityID          uuid.UUID `json:"entity_id" db:"entity_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
