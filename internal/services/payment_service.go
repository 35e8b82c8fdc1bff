package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"afyapay/internal/caching"
	"afyapay/internal/common"
	"afyapay/internal/models"
	"afyapay/internal/repositories"
	"afyapay/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const entityTypeInvoice = "invoice"

// PaymentService drives invoice settlement: push payments out through the
// gateway, reconcile the asynchronous callbacks, and record offline payments.
// Every settlement path converges on settleInvoice so the commission split
// and the wallet credit are always recorded together.
type PaymentService interface {
	InitiatePayment(ctx context.Context, invoiceID uuid.UUID, phone string) (*models.GatewayRequest, error)
	HandleCallback(ctx context.Context, payload []byte) error
	ConfirmManualPayment(ctx context.Context, invoiceID uuid.UUID, method, reference string) (*models.Invoice, error)
	PaymentStatus(ctx context.Context, checkoutRequestID string) (*models.GatewayRequest, error)
	PollPendingRequests(ctx context.Context, olderThan time.Duration) (int, error)
}

// stkCallback mirrors the gateway's asynchronous result envelope.
type stkCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []callbackItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type callbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

type paymentService struct {
	gateway      DarajaService
	invoices     repositories.InvoiceRepository
	requests     repositories.GatewayRequestRepository
	providers    repositories.ProviderRepository
	appointments repositories.AppointmentRepository
	wallets      WalletService
	archive      ArchiveService
	notify       NotificationService
	cache        caching.CacheService
	logger       *zap.Logger
}

func NewPaymentService(
	gateway DarajaService,
	invoices repositories.InvoiceRepository,
	requests repositories.GatewayRequestRepository,
	providers repositories.ProviderRepository,
	appointments repositories.AppointmentRepository,
	wallets WalletService,
	archive ArchiveService,
	notify NotificationService,
	cache caching.CacheService,
) PaymentService {
	return &paymentService{
		gateway:      gateway,
		invoices:     invoices,
		requests:     requests,
		providers:    providers,
		appointments: appointments,
		wallets:      wallets,
		archive:      archive,
		notify:       notify,
		cache:        cache,
		logger:       utils.GetLogger(),
	}
}

func (s *paymentService) InitiatePayment(ctx context.Context, invoiceID uuid.UUID, phone string) (*models.GatewayRequest, error) {
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrInvoiceNotFound
		}
		return nil, common.SecureErrorMessage("fetch invoice", err)
	}

	switch invoice.Status {
	case models.InvoiceStatusPending, models.InvoiceStatusOverdue:
	case models.InvoiceStatusPaid:
		return nil, ErrAlreadyPaid
	default:
		return nil, fmt.Errorf("%w: cannot collect a %s invoice", ErrInvalidStatusTransition, invoice.Status)
	}

	return s.gateway.InitiateSTKPush(ctx, &STKPushParams{
		Phone:            phone,
		Amount:           invoice.TotalAmount,
		AccountReference: invoice.InvoiceNumber,
		Description:      fmt.Sprintf("Payment for %s", invoice.InvoiceNumber),
		EntityType:       entityTypeInvoice,
		EntityID:         invoice.ID,
	})
}

// HandleCallback reconciles one gateway callback. It is safe to call with
// duplicate or replayed payloads: the pending-only finalize and the
// pending-only settle each apply at most once.
func (s *paymentService) HandleCallback(ctx context.Context, payload []byte) error {
	var envelope stkCallback
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.archiveUnresolvable(ctx, "", payload)
		return fmt.Errorf("%w: malformed payload", ErrCallbackUnresolvable)
	}

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		s.archiveUnresolvable(ctx, "", payload)
		return fmt.Errorf("%w: missing CheckoutRequestID", ErrCallbackUnresolvable)
	}

	request, err := s.requests.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if err != nil {
		if repositories.IsNotFound(err) {
			s.logger.Error("callback for unknown checkout request",
				zap.String("checkout_request_id", cb.CheckoutRequestID),
				zap.Int("result_code", cb.ResultCode))
			s.archiveUnresolvable(ctx, cb.CheckoutRequestID, payload)
			return fmt.Errorf("%w: no request for %s", ErrCallbackUnresolvable, cb.CheckoutRequestID)
		}
		return common.SecureErrorMessage("look up gateway request", err)
	}

	if request.Status != models.GatewayRequestPending {
		s.logger.Info("duplicate callback ignored",
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.String("status", request.Status))
		return nil
	}

	if cb.ResultCode != 0 {
		return s.finalizeFailure(ctx, request, cb.ResultCode, cb.ResultDesc)
	}

	receipt, paidAmount := extractCallbackMetadata(cb.CallbackMetadata.Item)
	if receipt == "" {
		s.logger.Error("success callback without receipt number",
			zap.String("checkout_request_id", cb.CheckoutRequestID))
		s.archiveUnresolvable(ctx, cb.CheckoutRequestID, payload)
		return fmt.Errorf("%w: success callback missing receipt", ErrCallbackUnresolvable)
	}
	if paidAmount > 0 && math.Abs(paidAmount-request.Amount) > 0.009 {
		// The gateway confirmed a different amount than we asked for. Settle
		// what was requested and leave a loud trail for the auditor.
		s.logger.Warn("callback amount differs from requested amount",
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.Float64("requested", request.Amount),
			zap.Float64("confirmed", paidAmount))
	}

	finalized, err := s.requests.Finalize(ctx, cb.CheckoutRequestID, models.GatewayRequestSuccess, cb.ResultCode, cb.ResultDesc, &receipt)
	if err != nil {
		return common.SecureErrorMessage("finalize gateway request", err)
	}
	if !finalized {
		// A concurrent delivery won the pending-to-terminal race.
		return nil
	}

	invoice, err := s.invoices.GetByNumber(ctx, request.AccountReference)
	if err != nil {
		if repositories.IsNotFound(err) {
			s.logger.Error("paid callback references missing invoice",
				zap.String("checkout_request_id", cb.CheckoutRequestID),
				zap.String("invoice_number", request.AccountReference))
			s.archiveUnresolvable(ctx, cb.CheckoutRequestID, payload)
			return fmt.Errorf("%w: invoice %s not found", ErrCallbackUnresolvable, request.AccountReference)
		}
		return common.SecureErrorMessage("fetch invoice", err)
	}

	if err := s.settleInvoice(ctx, invoice, models.SourceMpesa, receipt); err != nil {
		if err == ErrAlreadyPaid {
			return nil
		}
		return err
	}

	s.notify.PaymentSucceeded(ctx, &PaymentEvent{
		InvoiceID:     &invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		Amount:        invoice.TotalAmount,
		Reference:     receipt,
	})
	return nil
}

func (s *paymentService) finalizeFailure(ctx context.Context, request *models.GatewayRequest, resultCode int, resultDesc string) error {
	finalized, err := s.requests.Finalize(ctx, request.CheckoutRequestID, models.GatewayRequestFailed, resultCode, resultDesc, nil)
	if err != nil {
		return common.SecureErrorMessage("finalize gateway request", err)
	}
	if !finalized {
		return nil
	}

	s.logger.Info("payment failed at gateway",
		zap.String("checkout_request_id", request.CheckoutRequestID),
		zap.Int("result_code", resultCode),
		zap.String("result_desc", resultDesc))

	s.notify.PaymentFailed(ctx, &PaymentEvent{
		InvoiceNumber: request.AccountReference,
		Amount:        request.Amount,
		Reason:        resultDesc,
	})
	return nil
}

// ConfirmManualPayment settles an invoice paid outside the gateway, at the
// front desk in cash or on a card terminal. Re-confirming a settled invoice
// returns ErrAlreadyPaid without touching the ledger.
func (s *paymentService) ConfirmManualPayment(ctx context.Context, invoiceID uuid.UUID, method, reference string) (*models.Invoice, error) {
	if err := common.ValidatePaymentMethod(method); err != nil {
		return nil, err
	}
	if err := common.ValidateRequiredString(reference, "reference"); err != nil {
		return nil, err
	}

	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, ErrInvoiceNotFound
		}
		return nil, common.SecureErrorMessage("fetch invoice", err)
	}

	source := models.SourceCash
	if method == "card" {
		source = models.SourceCard
	}
	if err := s.settleInvoice(ctx, invoice, source, reference); err != nil {
		return nil, err
	}

	s.notify.PaymentSucceeded(ctx, &PaymentEvent{
		InvoiceID:     &invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		Amount:        invoice.TotalAmount,
		Reference:     reference,
	})
	return invoice, nil
}

// settleInvoice is the single path from billable to paid: compute the split,
// flip the invoice with a pending-only update, then credit the provider.
// The MarkPaid guard makes double settlement structurally impossible.
func (s *paymentService) settleInvoice(ctx context.Context, invoice *models.Invoice, source, reference string) error {
	commission, providerShare, err := s.splitForInvoice(ctx, invoice)
	if err != nil {
		return err
	}

	paidAt := time.Now().UTC()
	marked, err := s.invoices.MarkPaid(ctx, invoice.ID, commission, paidAt)
	if err != nil {
		return common.SecureErrorMessage("mark invoice paid", err)
	}
	if !marked {
		return ErrAlreadyPaid
	}

	invoice.Status = models.InvoiceStatusPaid
	invoice.Commission = &commission
	invoice.PaidDate = &paidAt

	if err := s.cache.DeleteInvoice(ctx, invoice.ID); err != nil {
		s.logger.Warn("failed to invalidate invoice cache", zap.Error(err))
	}

	if invoice.ProviderID == nil {
		// Nothing to credit; the platform keeps the whole amount.
		s.logger.Info("invoice settled without provider",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Float64("amount", invoice.TotalAmount))
		return nil
	}

	provider, err := s.providers.GetByID(ctx, *invoice.ProviderID)
	if err != nil {
		// The invoice is already paid; surface the stranded credit loudly
		// rather than unwinding the settlement.
		s.logger.Error("settled invoice references missing provider",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("provider_id", invoice.ProviderID.String()),
			zap.Error(err))
		return common.SecureErrorMessage("look up provider", err)
	}

	details := fmt.Sprintf("settlement of %s", invoice.InvoiceNumber)
	err = s.wallets.Credit(ctx, &models.Transaction{
		UserID:    provider.UserID,
		InvoiceID: &invoice.ID,
		Amount:    providerShare,
		Source:    source,
		Reference: reference,
		Status:    models.TransactionCompleted,
		Details:   &details,
	})
	if err != nil {
		s.logger.Error("failed to credit provider for settled invoice",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("user_id", provider.UserID.String()),
			zap.Error(err))
		return err
	}

	s.logger.Info("invoice settled",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("source", source),
		zap.Float64("amount", invoice.TotalAmount),
		zap.Float64("commission", commission),
		zap.Float64("provider_share", providerShare))
	return nil
}

// splitForInvoice picks the commission policy from the invoice origin. An
// appointment invoice with a resolvable appointment uses the fee/transport
// split; everything else takes the flat split of the total.
func (s *paymentService) splitForInvoice(ctx context.Context, invoice *models.Invoice) (commission, providerShare float64, err error) {
	if invoice.Origin == models.OriginAppointment && invoice.AppointmentID != nil {
		appointment, err := s.appointments.GetByID(ctx, *invoice.AppointmentID)
		if err == nil {
			commission, providerShare = Split(PolicyAppointment, appointment.ConsultationFee, appointment.TransportFee)
			return commission, providerShare, nil
		}
		if !repositories.IsNotFound(err) {
			return 0, 0, common.SecureErrorMessage("look up appointment", err)
		}
		s.logger.Warn("appointment invoice without appointment record, using flat split",
			zap.String("invoice_number", invoice.InvoiceNumber))
	}
	commission, providerShare = SplitTotal(invoice.TotalAmount)
	return commission, providerShare, nil
}

func (s *paymentService) PaymentStatus(ctx context.Context, checkoutRequestID string) (*models.GatewayRequest, error) {
	request, err := s.requests.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, fmt.Errorf("no payment request for %s", checkoutRequestID)
		}
		return nil, common.SecureErrorMessage("look up gateway request", err)
	}
	return request, nil
}

// PollPendingRequests queries the gateway for requests stuck in pending.
// Only failures are finalized here: the status query carries no receipt
// number, so a successful payment still settles through its callback or a
// manual confirmation.
func (s *paymentService) PollPendingRequests(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.requests.ListStalePending(ctx, time.Now().UTC().Add(-olderThan), 100)
	if err != nil {
		return 0, common.SecureErrorMessage("list stale requests", err)
	}

	finalized := 0
	for _, request := range stale {
		status, err := s.gateway.QueryStatus(ctx, request.CheckoutRequestID)
		if err != nil {
			s.logger.Warn("status query failed",
				zap.String("checkout_request_id", request.CheckoutRequestID), zap.Error(err))
			continue
		}
		if status.ResultCode == "" || status.ResultCode == "0" {
			continue
		}
		resultCode := 1
		if _, scanErr := fmt.Sscanf(status.ResultCode, "%d", &resultCode); scanErr != nil {
			resultCode = 1
		}
		if err := s.finalizeFailure(ctx, request, resultCode, status.ResultDesc); err != nil {
			s.logger.Error("failed to finalize stale request",
				zap.String("checkout_request_id", request.CheckoutRequestID), zap.Error(err))
			continue
		}
		finalized++
	}

	if finalized > 0 {
		s.logger.Info("finalized stale gateway requests", zap.Int("count", finalized))
	}
	return finalized, nil
}

func (s *paymentService) archiveUnresolvable(ctx context.Context, checkoutRequestID string, payload []byte) {
	if _, err := s.archive.ArchiveCallback(ctx, checkoutRequestID, payload); err != nil {
		s.logger.Error("failed to archive unresolvable callback",
			zap.String("checkout_request_id", checkoutRequestID), zap.Error(err))
	}
}

// extractCallbackMetadata pulls the receipt number and confirmed amount out
// of the callback's loosely typed metadata items.
func extractCallbackMetadata(items []callbackItem) (receipt string, amount float64) {
	for _, item := range items {
		switch item.Name {
		case "MpesaReceiptNumber":
			if v, ok := item.Value.(string); ok {
				receipt = v
			}
		case "Amount":
			switch v := item.Value.(type) {
			case float64:
				amount = v
			case string:
				fmt.Sscanf(v, "%f", &amount)
			}
		}
	}
	return receipt, amount
}
