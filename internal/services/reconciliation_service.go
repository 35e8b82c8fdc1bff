package services

import (
	"context"
	"math"
	"time"

	"afyapay/internal/caching"
	"afyapay/internal/common"
	"afyapay/internal/repositories"
	"afyapay/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// driftTolerance absorbs float accumulation noise; anything beyond it is a
// real discrepancy worth correcting.
const driftTolerance = 0.009

// ReconciliationService recomputes provider balances from first principles:
// the sum of provider shares over paid invoices minus completed withdrawals.
// Running it against a consistent ledger is a no-op.
type ReconciliationService interface {
	Recompute(ctx context.Context, providerID uuid.UUID) (*ReconciliationReport, error)
	RecomputeAll(ctx context.Context) ([]*ReconciliationReport, error)
}

// ReconciliationReport is the audit trail for one provider recomputation.
type ReconciliationReport struct {
	ProviderID      uuid.UUID `json:"provider_id"`
	UserID          uuid.UUID `json:"user_id"`
	PaidInvoices    int       `json:"paid_invoices"`
	ExpectedBalance float64   `json:"expected_balance"`
	WithdrawnTotal  float64   `json:"withdrawn_total"`
	ActualBalance   float64   `json:"actual_balance"`
	Drift           float64   `json:"drift"`
	Corrected       bool      `json:"corrected"`
	CheckedAt       time.Time `json:"checked_at"`
}

type reconciliationService struct {
	providers    repositories.ProviderRepository
	invoices     repositories.InvoiceRepository
	wallets      repositories.WalletRepository
	transactions repositories.TransactionRepository
	cache        caching.CacheService
	logger       *zap.Logger
}

func NewReconciliationService(
	providers repositories.ProviderRepository,
	invoices repositories.InvoiceRepository,
	wallets repositories.WalletRepository,
	transactions repositories.TransactionRepository,
	cache caching.CacheService,
) ReconciliationService {
	return &reconciliationService{
		providers:    providers,
		invoices:     invoices,
		wallets:      wallets,
		transactions: transactions,
		cache:        cache,
		logger:       utils.GetLogger(),
	}
}

func (s *reconciliationService) Recompute(ctx context.Context, providerID uuid.UUID) (*ReconciliationReport, error) {
	provider, err := s.providers.GetByID(ctx, providerID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, common.SecureErrorMessage("reconcile", err)
		}
		return nil, common.SecureErrorMessage("look up provider", err)
	}

	paid, err := s.invoices.ListPaidByProvider(ctx, providerID)
	if err != nil {
		return nil, common.SecureErrorMessage("list paid invoices", err)
	}

	var earned float64
	for _, invoice := range paid {
		if share, ok := invoice.ProviderShare(); ok {
			earned += share
			continue
		}
		// Settled before commissions were stored; reconstruct with the
		// flat split so the invoice still counts toward the balance.
		_, share := SplitTotal(invoice.TotalAmount)
		earned += share
	}

	withdrawn, err := s.transactions.SumCompletedWithdrawals(ctx, provider.UserID)
	if err != nil {
		return nil, common.SecureErrorMessage("sum withdrawals", err)
	}

	actual, err := s.wallets.Balance(ctx, provider.UserID)
	if err != nil {
		return nil, common.SecureErrorMessage("fetch wallet balance", err)
	}

	expected := roundMoney(earned - withdrawn)
	drift := expected - actual
	report := &ReconciliationReport{
		ProviderID:      providerID,
		UserID:          provider.UserID,
		PaidInvoices:    len(paid),
		ExpectedBalance: expected,
		WithdrawnTotal:  roundMoney(withdrawn),
		ActualBalance:   actual,
		Drift:           roundMoney(drift),
		CheckedAt:       time.Now().UTC(),
	}

	if math.Abs(drift) <= driftTolerance {
		return report, nil
	}

	s.logger.Warn("wallet balance drift detected",
		zap.String("provider_id", providerID.String()),
		zap.Float64("expected", expected),
		zap.Float64("actual", actual),
		zap.Float64("drift", report.Drift))

	if err := s.wallets.SetBalance(ctx, provider.UserID, expected); err != nil {
		return report, common.SecureErrorMessage("correct wallet balance", err)
	}
	if err := s.cache.DeleteBalance(ctx, provider.UserID); err != nil {
		s.logger.Warn("failed to invalidate balance cache", zap.Error(err))
	}
	report.Corrected = true
	report.ActualBalance = expected
	return report, nil
}

// RecomputeAll audits every registered provider. Individual failures are
// logged and skipped so one bad record cannot stall the nightly sweep.
func (s *reconciliationService) RecomputeAll(ctx context.Context) ([]*ReconciliationReport, error) {
	providers, err := s.providers.List(ctx, 1000, 0)
	if err != nil {
		return nil, common.SecureErrorMessage("list providers", err)
	}

	reports := make([]*ReconciliationReport, 0, len(providers))
	for _, provider := range providers {
		report, err := s.Recompute(ctx, provider.ID)
		if err != nil {
			s.logger.Error("reconciliation failed for provider",
				zap.String("provider_id", provider.ID.String()), zap.Error(err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}
