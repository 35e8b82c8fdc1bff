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

const (
	minWithdrawalAmount = 10
	maxWithdrawalAmount = 300000

	balanceCacheTTL = 30 * time.Second
)

// WalletService exposes provider earnings: balance lookups, the transaction
// history behind the balance, and withdrawals back out.
type WalletService interface {
	Balance(ctx context.Context, userID uuid.UUID) (float64, error)
	BalanceByIdentity(ctx context.Context, identity string) (float64, error)
	Credit(ctx context.Context, txn *models.Transaction) error
	Withdraw(ctx context.Context, input *WithdrawInput) (*models.Transaction, error)
	Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error)
}

// WithdrawInput describes one payout request.
type WithdrawInput struct {
	UserID      uuid.UUID
	Amount      float64
	Method      string
	Destination string
}

type walletService struct {
	wallets      repositories.WalletRepository
	transactions repositories.TransactionRepository
	providers    repositories.ProviderRepository
	cache        caching.CacheService
	logger       *zap.Logger
}

func NewWalletService(wallets repositories.WalletRepository, transactions repositories.TransactionRepository, providers repositories.ProviderRepository, cache caching.CacheService) WalletService {
	return &walletService{
		wallets:      wallets,
		transactions: transactions,
		providers:    providers,
		cache:        cache,
		logger:       utils.GetLogger(),
	}
}

func (s *walletService) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	if balance, ok, err := s.cache.GetBalance(ctx, userID); err == nil && ok {
		return balance, nil
	}

	balance, err := s.wallets.Balance(ctx, userID)
	if err != nil {
		return 0, common.SecureErrorMessage("fetch wallet balance", err)
	}
	if err := s.cache.SetBalance(ctx, userID, balance, balanceCacheTTL); err != nil {
		s.logger.Warn("failed to cache balance", zap.Error(err))
	}
	return balance, nil
}

// BalanceByIdentity accepts either a wallet owner's user id or a provider
// email. Email lookups exist for records migrated before provider accounts
// carried stable ids.
func (s *walletService) BalanceByIdentity(ctx context.Context, identity string) (float64, error) {
	if userID, err := uuid.Parse(identity); err == nil {
		return s.Balance(ctx, userID)
	}

	provider, err := s.providers.GetByEmail(ctx, identity)
	if err != nil {
		if repositories.IsNotFound(err) {
			return 0, fmt.Errorf("no wallet registered for %s", identity)
		}
		return 0, common.SecureErrorMessage("look up provider", err)
	}
	return s.Balance(ctx, provider.UserID)
}

func (s *walletService) Credit(ctx context.Context, txn *models.Transaction) error {
	if err := common.ValidatePositiveFloat(txn.Amount, "amount", 10000000); err != nil {
		return err
	}
	txn.Direction = models.DirectionCredit
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.Status == "" {
		txn.Status = models.TransactionCompleted
	}

	if err := s.wallets.ApplyTransaction(ctx, txn); err != nil {
		return common.SecureErrorMessage("credit wallet", err)
	}
	s.invalidateBalance(ctx, txn.UserID)
	return nil
}

func (s *walletService) Withdraw(ctx context.Context, input *WithdrawInput) (*models.Transaction, error) {
	if input.Amount < minWithdrawalAmount {
		return nil, fmt.Errorf("withdrawal amount must be at least %d", minWithdrawalAmount)
	}
	if input.Amount > maxWithdrawalAmount {
		return nil, fmt.Errorf("withdrawal amount cannot exceed %d", maxWithdrawalAmount)
	}
	if input.Method != "mpesa" && input.Method != "bank" {
		return nil, fmt.Errorf("withdrawal method must be one of: mpesa, bank")
	}
	destination := input.Destination
	if input.Method == "mpesa" {
		normalized, err := common.NormalizePhoneNumber(destination)
		if err != nil {
			return nil, err
		}
		destination = normalized
	} else if err := common.ValidateRequiredString(destination, "destination"); err != nil {
		return nil, err
	}

	details := fmt.Sprintf("%s payout to %s", input.Method, destination)
	txn := &models.Transaction{
		ID:        uuid.New(),
		UserID:    input.UserID,
		Amount:    roundMoney(input.Amount),
		Direction: models.DirectionDebit,
		Source:    models.SourceWithdrawal,
		Reference: fmt.Sprintf("WD-%s", uuid.New().String()[:8]),
		Status:    models.TransactionCompleted,
		Details:   &details,
	}

	// ApplyTransaction enforces the balance check atomically; a plain
	// read-then-debit here would race with concurrent withdrawals.
	if err := s.wallets.ApplyTransaction(ctx, txn); err != nil {
		if repositories.IsInsufficientFunds(err) {
			return nil, ErrInsufficientFunds
		}
		return nil, common.SecureErrorMessage("process withdrawal", err)
	}
	s.invalidateBalance(ctx, input.UserID)

	s.logger.Info("withdrawal processed",
		zap.String("user_id", input.UserID.String()),
		zap.Float64("amount", txn.Amount),
		zap.String("method", input.Method),
		zap.String("reference", txn.Reference))

	return txn, nil
}

func (s *walletService) Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	txns, err := s.transactions.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, common.SecureErrorMessage("list transactions", err)
	}
	return txns, nil
}

func (s *walletService) invalidateBalance(ctx context.Context, userID uuid.UUID) {
	if err := s.cache.DeleteBalance(ctx, userID); err != nil {
		s.logger.Warn("failed to invalidate balance cache", zap.Error(err))
	}
}
