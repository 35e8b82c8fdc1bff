package repositories

import (
	"context"

	"afyapay/internal/models"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appointment *models.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
}

type appointmentRepo struct {
	db Database
}

func NewAppointmentRepo(db Database) AppointmentRepository {
	return &appointmentRepo{db: db}
}

func (r *appointmentRepo) Create(ctx context.Context, appointment *models.Appointment) error {
	query := `
		INSERT INTO appointments (id, provider_id, patient_email, consultation_fee, transport_fee, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`
	_, err := r.db.Exec(ctx, query, appointment.ID, appointment.ProviderID, appointment.PatientEmail, appointment.ConsultationFee, appointment.TransportFee, appointment.ScheduledAt)
	return err
}

func (r *appointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	appointment := &models.Appointment{}
	query := `
		SELECT id, provider_id, patient_email, consultation_fee, transport_fee, scheduled_at, created_at
		FROM appointments
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&appointment.ID, &appointment.ProviderID, &appointment.PatientEmail, &appointment.ConsultationFee, &appointment.TransportFee, &appointment.ScheduledAt, &appointment.CreatedAt)
	if err != nil {
		return nil, err
	}
	return appointment, nil
}
