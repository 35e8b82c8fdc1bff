package services

import (
	"context"
	"testing"

	"afyapay/internal/models"
	"afyapay/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type WalletServiceTestSuite struct {
	suite.Suite
	wallets      *MockWalletRepository
	transactions *MockTransactionRepository
	providers    *MockProviderRepository
	cache        *MockCacheService
	service      WalletService
}

func (s *WalletServiceTestSuite) SetupTest() {
	s.wallets = new(MockWalletRepository)
	s.transactions = new(MockTransactionRepository)
	s.providers = new(MockProviderRepository)
	s.cache = new(MockCacheService)
	s.service = NewWalletService(s.wallets, s.transactions, s.providers, s.cache)
}

func (s *WalletServiceTestSuite) TestBalanceUsesCache() {
	ctx := context.Background()
	userID := uuid.New()

	s.cache.On("GetBalance", ctx, userID).Return(420.50, true, nil)

	balance, err := s.service.Balance(ctx, userID)

	s.NoError(err)
	s.Equal(420.50, balance)
	s.wallets.AssertNotCalled(s.T(), "Balance", mock.Anything, mock.Anything)
}

func (s *WalletServiceTestSuite) TestBalanceFallsThroughToStore() {
	ctx := context.Background()
	userID := uuid.New()

	s.cache.On("GetBalance", ctx, userID).Return(0.0, false, nil)
	s.wallets.On("Balance", ctx, userID).Return(975.25, nil)
	s.cache.On("SetBalance", ctx, userID, 975.25, balanceCacheTTL).Return(nil)

	balance, err := s.service.Balance(ctx, userID)

	s.NoError(err)
	s.Equal(975.25, balance)
}

func (s *WalletServiceTestSuite) TestBalanceByEmailResolvesProvider() {
	ctx := context.Background()
	userID := uuid.New()

	s.providers.On("GetByEmail", ctx, "dr.otieno@example.com").
		Return(&models.Provider{ID: uuid.New(), UserID: userID}, nil)
	s.cache.On("GetBalance", ctx, userID).Return(150.0, true, nil)

	balance, err := s.service.BalanceByIdentity(ctx, "dr.otieno@example.com")

	s.NoError(err)
	s.Equal(150.0, balance)
}

func (s *WalletServiceTestSuite) TestWithdrawValidation() {
	ctx := context.Background()
	userID := uuid.New()

	tests := []struct {
		name  string
		input *WithdrawInput
	}{
		{"below minimum", &WithdrawInput{UserID: userID, Amount: 5, Method: "mpesa", Destination: "0712345678"}},
		{"above maximum", &WithdrawInput{UserID: userID, Amount: 500000, Method: "mpesa", Destination: "0712345678"}},
		{"unknown method", &WithdrawInput{UserID: userID, Amount: 100, Method: "cheque", Destination: "acct-1"}},
		{"bad msisdn", &WithdrawInput{UserID: userID, Amount: 100, Method: "mpesa", Destination: "12345"}},
		{"bank without destination", &WithdrawInput{UserID: userID, Amount: 100, Method: "bank", Destination: "  "}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.Withdraw(ctx, tt.input)
			s.Error(err)
		})
	}
	s.wallets.AssertNotCalled(s.T(), "ApplyTransaction", mock.Anything, mock.Anything)
}

func (s *WalletServiceTestSuite) TestWithdrawDebitsWallet() {
	ctx := context.Background()
	userID := uuid.New()

	s.wallets.On("ApplyTransaction", ctx, mock.MatchedBy(func(txn *models.Transaction) bool {
		return txn.UserID == userID &&
			txn.Amount == 250.0 &&
			txn.Direction == models.DirectionDebit &&
			txn.Source == models.SourceWithdrawal &&
			txn.Status == models.TransactionCompleted
	})).Return(nil)
	s.cache.On("DeleteBalance", ctx, userID).Return(nil)

	txn, err := s.service.Withdraw(ctx, &WithdrawInput{
		UserID:      userID,
		Amount:      250,
		Method:      "mpesa",
		Destination: "0712345678",
	})

	s.NoError(err)
	s.NotEmpty(txn.Reference)
	s.wallets.AssertExpectations(s.T())
}

func (s *WalletServiceTestSuite) TestWithdrawInsufficientFunds() {
	ctx := context.Background()
	userID := uuid.New()

	s.wallets.On("ApplyTransaction", ctx, mock.AnythingOfType("*models.Transaction")).
		Return(repositories.ErrInsufficientFunds)

	_, err := s.service.Withdraw(ctx, &WithdrawInput{
		UserID:      userID,
		Amount:      600,
		Method:      "mpesa",
		Destination: "0712345678",
	})

	s.ErrorIs(err, ErrInsufficientFunds)
	s.cache.AssertNotCalled(s.T(), "DeleteBalance", mock.Anything, mock.Anything)
}

func (s *WalletServiceTestSuite) TestCreditForcesDirection() {
	ctx := context.Background()
	userID := uuid.New()

	s.wallets.On("ApplyTransaction", ctx, mock.MatchedBy(func(txn *models.Transaction) bool {
		return txn.Direction == models.DirectionCredit && txn.ID != uuid.Nil
	})).Return(nil)
	s.cache.On("DeleteBalance", ctx, userID).Return(nil)

	err := s.service.Credit(ctx, &models.Transaction{
		UserID:    userID,
		Amount:    100,
		Direction: models.DirectionDebit,
		Source:    models.SourceMpesa,
		Reference: "RCPT1",
	})

	s.NoError(err)
	s.wallets.AssertExpectations(s.T())
}

func TestWalletServiceTestSuite(t *testing.T) {
	suite.Run(t, new(WalletServiceTestSuite))
}

func TestWithdrawAmountIsRounded(t *testing.T) {
	assert.Equal(t, 99.99, roundMoney(99.985001))
	assert.Equal(t, 100.0, roundMoney(99.9999))
}
