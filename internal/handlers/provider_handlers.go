package handlers

import (
	"net/http"
	"strconv"
	"time"

	"afyapay/internal/common"
	"afyapay/internal/models"
	"afyapay/internal/repositories"
	"afyapay/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ProviderHandler covers the directory endpoints the payment core depends
// on: provider registration and the appointments that carry fee breakdowns.
type ProviderHandler struct {
	providers    repositories.ProviderRepository
	appointments repositories.AppointmentRepository
	logger       *zap.Logger
}

func NewProviderHandler(providers repositories.ProviderRepository, appointments repositories.AppointmentRepository) *ProviderHandler {
	return &ProviderHandler{
		providers:    providers,
		appointments: appointments,
		logger:       utils.GetLogger(),
	}
}

type createProviderRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}

func (h *ProviderHandler) CreateProvider(c echo.Context) error {
	var req createProviderRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request body")
	}

	userID, err := common.ValidateUUID(req.UserID, "user_id")
	if err != nil {
		return common.SendValidationError(c, "user_id", err.Error())
	}
	if err := common.ValidateRequiredString(req.Name, "name"); err != nil {
		return common.SendValidationError(c, "name", err.Error())
	}
	if err := common.ValidateRequiredString(req.Email, "email"); err != nil {
		return common.SendValidationError(c, "email", err.Error())
	}
	phone := req.Phone
	if phone != "" {
		normalized, err := common.NormalizePhoneNumber(phone)
		if err != nil {
			return common.SendValidationError(c, "phone", err.Error())
		}
		phone = normalized
	}

	provider := &models.Provider{
		ID:     uuid.New(),
		UserID: userID,
		Name:   req.Name,
		Email:  req.Email,
		Phone:  phone,
	}
	if err := h.providers.Create(c.Request().Context(), provider); err != nil {
		h.logger.Error("provider registration failed", zap.Error(err))
		return common.SendServerError(c, "failed to register provider")
	}
	return c.JSON(http.StatusCreated, provider)
}

func (h *ProviderHandler) GetProvider(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	provider, err := h.providers.GetByID(c.Request().Context(), id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return common.SendNotFoundError(c, "provider")
		}
		h.logger.Error("provider lookup failed", zap.Error(err))
		return common.SendServerError(c, "failed to fetch provider")
	}
	return c.JSON(http.StatusOK, provider)
}

func (h *ProviderHandler) ListProviders(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	providers, err := h.providers.List(c.Request().Context(), limit, offset)
	if err != nil {
		h.logger.Error("provider listing failed", zap.Error(err))
		return common.SendServerError(c, "failed to list providers")
	}
	return c.JSON(http.StatusOK, map[string]any{"providers": providers, "count": len(providers)})
}

type createAppointmentRequest struct {
	ProviderID      string  `json:"provider_id"`
	PatientEmail    string  `json:"patient_email"`
	ConsultationFee float64 `json:"consultation_fee"`
	TransportFee    float64 `json:"transport_fee"`
	ScheduledAt     string  `json:"scheduled_at"`
}

func (h *ProviderHandler) CreateAppointment(c echo.Context) error {
	var req createAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request body")
	}

	providerID, err := common.ValidateUUID(req.ProviderID, "provider_id")
	if err != nil {
		return common.SendValidationError(c, "provider_id", err.Error())
	}
	if err := common.ValidateRequiredString(req.PatientEmail, "patient_email"); err != nil {
		return common.SendValidationError(c, "patient_email", err.Error())
	}
	if err := common.ValidatePositiveFloat(req.ConsultationFee, "consultation_fee", 10000000); err != nil {
		return common.SendValidationError(c, "consultation_fee", err.Error())
	}
	if req.TransportFee < 0 {
		return common.SendValidationError(c, "transport_fee", "transport_fee cannot be negative")
	}

	scheduledAt := time.Now().UTC()
	if req.ScheduledAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			return common.SendValidationError(c, "scheduled_at", "scheduled_at must be RFC3339")
		}
		scheduledAt = parsed
	}

	if _, err := h.providers.GetByID(c.Request().Context(), providerID); err != nil {
		if repositories.IsNotFound(err) {
			return common.SendNotFoundError(c, "provider")
		}
		h.logger.Error("provider lookup failed", zap.Error(err))
		return common.SendServerError(c, "failed to fetch provider")
	}

	appointment := &models.Appointment{
		ID:              uuid.New(),
		ProviderID:      providerID,
		PatientEmail:    req.PatientEmail,
		ConsultationFee: req.ConsultationFee,
		TransportFee:    req.TransportFee,
		ScheduledAt:     scheduledAt,
	}
	if err := h.appointments.Create(c.Request().Context(), appointment); err != nil {
		h.logger.Error("appointment creation failed", zap.Error(err))
		return common.SendServerError(c, "failed to create appointment")
	}
	return c.JSON(http.StatusCreated, appointment)
}
