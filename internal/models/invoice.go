package models

import (
	"time"

	"github.com/google/uuid"
)

// Invoice statuses. Status only moves forward; "paid" is terminal for money purposes.
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCancelled = "cancelled"
	InvoiceStatusOverdue   = "overdue"
)

// Invoice origins, encoded into the invoice number prefix.
const (
	OriginAppointment  = "appointment"
	OriginSubscription = "subscription"
	OriginPharmacy     = "pharmacy"
	OriginManual       = "manual"
)

type Invoice struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	InvoiceNumber string     `json:"invoice_number" db:"invoice_number"`
	CustomerName  string     `json:"customer_name" db:"customer_name"`
	CustomerEmail string     `json:"customer_email" db:"customer_email"`
	TotalAmount   float64    `json:"total_amount" db:"total_amount"`
	Commission    *float64   `json:"commission" db:"commission"`
	Status        string     `json:"status" db:"status"`
	Origin        string     `json:"origin" db:"origin"`
	ProviderID    *uuid.UUID `json:"provider_id" db:"provider_id"`
	AppointmentID *uuid.UUID `json:"appointment_id" db:"appointment_id"`
	IssuedDate    time.Time  `json:"issued_date" db:"issued_date"`
	DueDate       time.Time  `json:"due_date" db:"due_date"`
	PaidDate      *time.Time `json:"paid_date" db:"paid_date"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`

	LineItems []InvoiceLineItem `json:"line_items,omitempty" db:"-"`
}

type InvoiceLineItem struct {
	ID          uuid.UUID `json:"id" db:"id"`
	InvoiceID   uuid.UUID `json:"invoice_id" db:"invoice_id"`
	Description string    `json:"description" db:"description"`
	Quantity    int       `json:"quantity" db:"quantity"`
	UnitPrice   float64   `json:"unit_price" db:"unit_price"`
}

// LineItemTotal returns the invoice total implied by its line items.
func (i *Invoice) LineItemTotal() float64 {
	var total float64
	for _, item := range i.LineItems {
		total += float64(item.Quantity) * item.UnitPrice
	}
	return total
}

// ProviderShare returns the amount payable to the provider for a paid invoice,
// using the commission recorded at settlement time.
func (i *Invoice) ProviderShare() (float64, bool) {
	if i.Commission == nil {
		return 0, false
	}
	return i.TotalAmount - *i.Commission, true
}
