package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"afyapay/internal/common"
	"afyapay/internal/models"
	"afyapay/internal/services"
	"afyapay/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type InvoiceHandler struct {
	invoices services.InvoiceService
	payments services.PaymentService
	logger   *zap.Logger
}

func NewInvoiceHandler(invoices services.InvoiceService, payments services.PaymentService) *InvoiceHandler {
	return &InvoiceHandler{
		invoices: invoices,
		payments: payments,
		logger:   utils.GetLogger(),
	}
}

type lineItemRequest struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type createInvoiceRequest struct {
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
	Origin        string            `json:"origin"`
	ProviderID    *string           `json:"provider_id"`
	AppointmentID *string           `json:"appointment_id"`
	DueDate       *string           `json:"due_date"`
	LineItems     []lineItemRequest `json:"line_items"`
}

func (h *InvoiceHandler) CreateInvoice(c echo.Context) error {
	var req createInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request body")
	}

	input := &services.CreateInvoiceInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Origin:        req.Origin,
	}
	if req.ProviderID != nil {
		id, err := common.ValidateUUID(*req.ProviderID, "provider_id")
		if err != nil {
			return common.SendValidationError(c, "provider_id", err.Error())
		}
		input.ProviderID = &id
	}
	if req.AppointmentID != nil {
		id, err := common.ValidateUUID(*req.AppointmentID, "appointment_id")
		if err != nil {
			return common.SendValidationError(c, "appointment_id", err.Error())
		}
		input.AppointmentID = &id
	}
	if req.DueDate != nil {
		if err := common.ValidateDateFormat(*req.DueDate, "due_date"); err != nil {
			return common.SendValidationError(c, "due_date", err.Error())
		}
		due, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			return common.SendValidationError(c, "due_date", "due_date must be in YYYY-MM-DD format")
		}
		input.DueDate = &due
	}
	for _, item := range req.LineItems {
		input.LineItems = append(input.LineItems, models.InvoiceLineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	invoice, err := h.invoices.Create(c.Request().Context(), input)
	if err != nil {
		h.logger.Warn("invoice creation rejected", zap.Error(err))
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusCreated, invoice)
}

func (h *InvoiceHandler) GetInvoice(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	invoice, err := h.invoices.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotFound) {
			return common.SendNotFoundError(c, "invoice")
		}
		h.logger.Error("failed to fetch invoice", zap.Error(err))
		return common.SendServerError(c, "failed to fetch invoice")
	}
	return c.JSON(http.StatusOK, invoice)
}

// ListInvoices scopes results to the caller's role: patients get their own
// invoices, providers their book, admins everything.
func (h *InvoiceHandler) ListInvoices(c echo.Context) error {
	ctx := c.Request().Context()
	role, _ := common.GetRoleFromContext(ctx)

	identity := ""
	if role == common.RoleProvider {
		if userID, ok := common.GetUserIDFromContext(ctx); ok {
			identity = userID.String()
		}
	}
	if identity == "" {
		email, ok := common.GetEmailFromContext(ctx)
		if !ok && role != common.RoleAdmin {
			return common.SendUnauthorizedError(c)
		}
		identity = email
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	invoices, err := h.invoices.ListForUser(ctx, identity, role, limit, offset)
	if err != nil {
		h.logger.Error("failed to list invoices", zap.Error(err))
		return common.SendServerError(c, "failed to list invoices")
	}
	return c.JSON(http.StatusOK, map[string]any{"invoices": invoices, "count": len(invoices)})
}

type updateLineItemsRequest struct {
	LineItems []lineItemRequest `json:"line_items"`
}

func (h *InvoiceHandler) UpdateLineItems(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req updateLineItemsRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request body")
	}

	items := make([]models.InvoiceLineItem, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		items = append(items, models.InvoiceLineItem{
			ID:          uuid.New(),
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	invoice, err := h.invoices.ReplaceLineItems(c.Request().Context(), id, items)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvoiceNotFound):
			return common.SendNotFoundError(c, "invoice")
		case errors.Is(err, services.ErrInvalidStatusTransition):
			return common.SendConflictError(c, err.Error())
		}
		h.logger.Warn("line item update rejected", zap.Error(err))
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusOK, invoice)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *InvoiceHandler) UpdateStatus(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request body")
	}

	invoice, err := h.invoices.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvoiceNotFound):
			return common.SendNotFoundError(c, "invoice")
		case errors.Is(err, services.ErrInvalidStatusTransition):
			return common.SendConflictError(c, err.Error())
		}
		h.logger.Warn("status update rejected", zap.Error(err))
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusOK, invoice)
}

type confirmPaymentRequest struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

// ConfirmPayment settles an invoice paid offline, cash or card at the desk.
func (h *InvoiceHandler) ConfirmPayment(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req confirmPaymentRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request body")
	}

	invoice, err := h.payments.ConfirmManualPayment(c.Request().Context(), id, req.Method, req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvoiceNotFound):
			return common.SendNotFoundError(c, "invoice")
		case errors.Is(err, services.ErrAlreadyPaid):
			return common.SendConflictError(c, "invoice is already paid")
		}
		h.logger.Warn("manual confirmation rejected", zap.Error(err))
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusOK, invoice)
}

func (h *InvoiceHandler) Analytics(c echo.Context) error {
	analytics, err := h.invoices.Analytics(c.Request().Context())
	if err != nil {
		h.logger.Error("analytics computation failed", zap.Error(err))
		return common.SendServerError(c, "failed to compute analytics")
	}
	return c.JSON(http.StatusOK, analytics)
}
