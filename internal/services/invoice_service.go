package services

import (
	"context"
	"fmt"
	"time"

	"afyapay/internal/caching"
	"afyapay/internal/common"
	"afyapay/internal/models"
	"afyapay/internal/repositories"
	"afyapay/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultPaymentTermDays = 14

// InvoiceService owns the invoice lifecycle: creation with generated
// numbers, line item edits while billable, status transitions and the
// overdue sweep. Settlement itself lives in PaymentService.
type InvoiceService interface {
	Create(ctx context.Context, input *CreateInvoiceInput) (*models.Invoice, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	ListForUser(ctx context.Context, identity, role string, limit, offset int) ([]*models.Invoice, error)
	ReplaceLineItems(ctx context.Context, id uuid.UUID, items []models.InvoiceLineItem) (*models.Invoice, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Invoice, error)
	MarkOverdueInvoices(ctx context.Context) (int, error)
	Analytics(ctx context.Context) (*InvoiceAnalytics, error)
}

// CreateInvoiceInput carries everything needed to raise a new invoice.
type CreateInvoiceInput struct {
	CustomerName  string
	CustomerEmail string
	Origin        string
	ProviderID    *uuid.UUID
	AppointmentID *uuid.UUID
	DueDate       *time.Time
	LineItems     []models.InvoiceLineItem
}

// InvoiceAnalytics summarizes the book for the admin dashboard.
type InvoiceAnalytics struct {
	TotalInvoices  int     `json:"total_invoices"`
	PendingCount   int     `json:"pending_count"`
	PaidCount      int     `json:"paid_count"`
	OverdueCount   int     `json:"overdue_count"`
	CancelledCount int     `json:"cancelled_count"`
	TotalBilled    float64 `json:"total_billed"`
	TotalCollected float64 `json:"total_collected"`
	CollectionRate float64 `json:"collection_rate"`
}

// validStatusTransitions is the full lifecycle. Paid and cancelled are terminal.
var validStatusTransitions = map[string][]string{
	models.InvoiceStatusPending: {models.InvoiceStatusPaid, models.InvoiceStatusCancelled, models.InvoiceStatusOverdue},
	models.InvoiceStatusOverdue: {models.InvoiceStatusPaid, models.InvoiceStatusCancelled},
}

func isValidStatusTransition(from, to string) bool {
	for _, allowed := range validStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type invoiceService struct {
	invoices  repositories.InvoiceRepository
	providers repositories.ProviderRepository
	cache     caching.CacheService
	logger    *zap.Logger
}

func NewInvoiceService(invoices repositories.InvoiceRepository, providers repositories.ProviderRepository, cache caching.CacheService) InvoiceService {
	return &invoiceService{
		invoices:  invoices,
		providers: providers,
		cache:     cache,
		logger:    utils.GetLogger(),
	}
}

func (s *invoiceService) Create(ctx context.Context, input *CreateInvoiceInput) (*models.Invoice, error) {
	if err := common.ValidateRequiredString(input.CustomerName, "customer_name"); err != nil {
		return nil, err
	}
	if err := common.ValidateRequiredString(input.CustomerEmail, "customer_email"); err != nil {
		return nil, err
	}
	if err := common.ValidateInvoiceOrigin(input.Origin); err != nil {
		return nil, err
	}
	if len(input.LineItems) == 0 {
		return nil, fmt.Errorf("at least one line item is required")
	}
	for i := range input.LineItems {
		item := &input.LineItems[i]
		if err := common.ValidateRequiredString(item.Description, "line item description"); err != nil {
			return nil, err
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("line item quantity must be positive")
		}
		if err := common.ValidatePositiveFloat(item.UnitPrice, "unit_price", 10000000); err != nil {
			return nil, err
		}
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
	}

	if input.ProviderID != nil {
		if _, err := s.providers.GetByID(ctx, *input.ProviderID); err != nil {
			if repositories.IsNotFound(err) {
				return nil, fmt.Errorf("provider %s not found", input.ProviderID)
			}
			return nil, common.SecureErrorMessage("look up provider", err)
		}
	}

	now := time.Now().UTC()
	invoice := &models.Invoice{
		ID:            uuid.New(),
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		Status:        models.InvoiceStatusPending,
		Origin:        input.Origin,
		ProviderID:    input.ProviderID,
		AppointmentID: input.AppointmentID,
		IssuedDate:    now,
		LineItems:     input.LineItems,
	}
	invoice.TotalAmount = invoice.LineItemTotal()
	if input.DueDate != nil {
		if input.DueDate.Before(now) {
			return nil, fmt.Errorf("due date cannot be in the past")
		}
		invoice.DueDate = *input.DueDate
	} else {
		invoice.DueDate = now.AddDate(0, 0, defaultPaymentTermDays)
	}

	number, err := s.invoices.GenerateInvoiceNumber(ctx, invoice.Origin, invoice.IssuedDate)
	if err != nil {
		return nil, common.SecureErrorMessage("generate invoice number", err)
	}
	invoice.InvoiceNumber = number

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, common.SecureErrorMessage("create invoice", err)
	}

	s.logger.Info("invoice created",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("origin", invoice.Origin),
		zap.Float64("total", invoice.TotalAmount))

	return invoice, nil
}

func (s *invoiceService) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	if cached, err := s.cache.GetInvoice(ctx, id); err == nil && cached != nil {
		return cached, nil
	}

	invoice, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrInvoiceNotFound
		}
		return nil, common.SecureErrorMessage("fetch invoice", err)
	}

	if err := s.cache.SetInvoice(ctx, invoice, 5*time.Minute); err != nil {
		s.logger.Warn("failed to cache invoice", zap.Error(err))
	}
	return invoice, nil
}

// ListForUser scopes the listing by role: patients see invoices addressed to
// their email, providers see their own book, admins see everything.
func (s *invoiceService) ListForUser(ctx context.Context, identity, role string, limit, offset int) ([]*models.Invoice, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	switch role {
	case common.RoleAdmin:
		return s.invoices.List(ctx, limit, offset)
	case common.RoleProvider:
		provider, err := s.resolveProvider(ctx, identity)
		if err != nil {
			return nil, err
		}
		return s.invoices.ListByProvider(ctx, provider.ID, limit, offset)
	default:
		return s.invoices.ListByCustomerEmail(ctx, identity, limit, offset)
	}
}

func (s *invoiceService) resolveProvider(ctx context.Context, identity string) (*models.Provider, error) {
	if id, err := uuid.Parse(identity); err == nil {
		// Authenticated providers arrive as their JWT user id, which is
		// distinct from the provider record's own id. Try the user_id
		// link first, then a direct provider id.
		provider, err := s.providers.GetByUserID(ctx, id)
		if err == nil {
			return provider, nil
		}
		if !repositories.IsNotFound(err) {
			return nil, common.SecureErrorMessage("look up provider", err)
		}
		provider, err = s.providers.GetByID(ctx, id)
		if err == nil {
			return provider, nil
		}
		if !repositories.IsNotFound(err) {
			return nil, common.SecureErrorMessage("look up provider", err)
		}
	}
	provider, err := s.providers.GetByEmail(ctx, identity)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, fmt.Errorf("no provider registered for %s", identity)
		}
		return nil, common.SecureErrorMessage("look up provider", err)
	}
	return provider, nil
}

func (s *invoiceService) ReplaceLineItems(ctx context.Context, id uuid.UUID, items []models.InvoiceLineItem) (*models.Invoice, error) {
	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != models.InvoiceStatusPending && invoice.Status != models.InvoiceStatusOverdue {
		return nil, fmt.Errorf("%w: cannot edit a %s invoice", ErrInvalidStatusTransition, invoice.Status)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one line item is required")
	}

	var total float64
	for i := range items {
		item := &items[i]
		if err := common.ValidateRequiredString(item.Description, "line item description"); err != nil {
			return nil, err
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("line item quantity must be positive")
		}
		if err := common.ValidatePositiveFloat(item.UnitPrice, "unit_price", 10000000); err != nil {
			return nil, err
		}
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.InvoiceID = id
		total += float64(item.Quantity) * item.UnitPrice
	}

	if err := s.invoices.ReplaceLineItems(ctx, id, items, total); err != nil {
		return nil, common.SecureErrorMessage("update line items", err)
	}
	if err := s.cache.DeleteInvoice(ctx, id); err != nil {
		s.logger.Warn("failed to invalidate invoice cache", zap.Error(err))
	}

	invoice.LineItems = items
	invoice.TotalAmount = total
	return invoice, nil
}

func (s *invoiceService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Invoice, error) {
	if err := common.ValidateInvoiceStatus(status); err != nil {
		return nil, err
	}
	if status == models.InvoiceStatusPaid {
		// Marking paid moves money; it must go through settlement so the
		// commission and wallet credit are recorded together.
		return nil, fmt.Errorf("%w: use the payment confirmation endpoint to settle an invoice", ErrInvalidStatusTransition)
	}

	invoice, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == status {
		return invoice, nil
	}
	if !isValidStatusTransition(invoice.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, invoice.Status, status)
	}

	if err := s.invoices.UpdateStatus(ctx, id, status); err != nil {
		return nil, common.SecureErrorMessage("update invoice status", err)
	}
	if err := s.cache.DeleteInvoice(ctx, id); err != nil {
		s.logger.Warn("failed to invalidate invoice cache", zap.Error(err))
	}

	invoice.Status = status
	return invoice, nil
}

// MarkOverdueInvoices flips pending invoices past their due date to overdue.
// Overdue invoices stay payable; the flip only affects reporting and reminders.
func (s *invoiceService) MarkOverdueInvoices(ctx context.Context) (int, error) {
	stale, err := s.invoices.ListOverduePending(ctx, time.Now().UTC(), 500)
	if err != nil {
		return 0, common.SecureErrorMessage("list overdue invoices", err)
	}

	marked := 0
	for _, invoice := range stale {
		if err := s.invoices.UpdateStatus(ctx, invoice.ID, models.InvoiceStatusOverdue); err != nil {
			s.logger.Error("failed to mark invoice overdue",
				zap.String("invoice_number", invoice.InvoiceNumber), zap.Error(err))
			continue
		}
		if err := s.cache.DeleteInvoice(ctx, invoice.ID); err != nil {
			s.logger.Warn("failed to invalidate invoice cache", zap.Error(err))
		}
		marked++
	}

	if marked > 0 {
		s.logger.Info("marked invoices overdue", zap.Int("count", marked))
	}
	return marked, nil
}

func (s *invoiceService) Analytics(ctx context.Context) (*InvoiceAnalytics, error) {
	// The book is small enough to aggregate in memory; revisit if listings
	// ever need pagination beyond this window.
	invoices, err := s.invoices.List(ctx, 10000, 0)
	if err != nil {
		return nil, common.SecureErrorMessage("load invoices", err)
	}

	analytics := &InvoiceAnalytics{TotalInvoices: len(invoices)}
	for _, invoice := range invoices {
		analytics.TotalBilled += invoice.TotalAmount
		switch invoice.Status {
		case models.InvoiceStatusPending:
			analytics.PendingCount++
		case models.InvoiceStatusPaid:
			analytics.PaidCount++
			analytics.TotalCollected += invoice.TotalAmount
		case models.InvoiceStatusOverdue:
			analytics.OverdueCount++
		case models.InvoiceStatusCancelled:
			analytics.CancelledCount++
		}
	}
	if analytics.TotalBilled > 0 {
		analytics.CollectionRate = roundMoney(analytics.TotalCollected / analytics.TotalBilled * 100)
	}
	return analytics, nil
}
