package models

import (
	"time"

	"github.com/google/uuid"
)

// Appointment carries the fee breakdown the commission calculator needs.
// Scheduling itself is handled upstream; the payment core only reads the
// consultation fee and any transport surcharge.
type Appointment struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ProviderID      uuid.UUID `json:"provider_id" db:"provider_id"`
	PatientEmail    string    `json:"patient_email" db:"patient_email"`
	ConsultationFee float64   `json:"consultation_fee" db:"consultation_fee"`
	TransportFee    float64   `json:"transport_fee" db:"transport_fee"`
	ScheduledAt     time.Time `json:"scheduled_at" db:"scheduled_at"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
