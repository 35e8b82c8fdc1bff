package repositories

import (
	"context"
	"testing"

	"afyapay/internal/models"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type WalletRepoTestSuite struct {
	suite.Suite
	mock pgxmock.PgxPoolIface
	repo WalletRepository
}

func (s *WalletRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(s.T(), err)
	s.mock = mock
	s.repo = NewWalletRepo(mock)
}

func (s *WalletRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func (s *WalletRepoTestSuite) TestCreditUpdatesBalance() {
	userID := uuid.New()
	txn := &models.Transaction{
		UserID:    userID,
		Amount:    900,
		Direction: models.DirectionCredit,
		Source:    models.SourceMpesa,
		Reference: "ABC123",
		Status:    models.TransactionCompleted,
	}

	s.mock.ExpectBegin()
	s.mock.ExpectExec("INSERT INTO wallets").
		WithArgs(pgxmock.AnyArg(), userID).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	s.mock.ExpectExec("INSERT INTO transactions").
		WithArgs(pgxmock.AnyArg(), userID, txn.InvoiceID, 900.0, models.DirectionCredit,
			models.SourceMpesa, "ABC123", models.TransactionCompleted, txn.Details).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectExec("UPDATE wallets").
		WithArgs(900.0, userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	s.mock.ExpectCommit()
	s.mock.ExpectRollback()

	s.NoError(s.repo.ApplyTransaction(context.Background(), txn))
	s.NotEqual(uuid.Nil, txn.ID)
}

func (s *WalletRepoTestSuite) TestOverdrawnDebitRollsBack() {
	userID := uuid.New()
	txn := &models.Transaction{
		UserID:    userID,
		Amount:    600,
		Direction: models.DirectionDebit,
		Source:    models.SourceWithdrawal,
		Reference: "WD-1",
		Status:    models.TransactionCompleted,
	}

	s.mock.ExpectBegin()
	s.mock.ExpectExec("INSERT INTO wallets").
		WithArgs(pgxmock.AnyArg(), userID).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	s.mock.ExpectExec("INSERT INTO transactions").
		WithArgs(pgxmock.AnyArg(), userID, txn.InvoiceID, 600.0, models.DirectionDebit,
			models.SourceWithdrawal, "WD-1", models.TransactionCompleted, txn.Details).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Guarded UPDATE touches no rows when the balance is short.
	s.mock.ExpectExec("UPDATE wallets").
		WithArgs(600.0, userID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	s.mock.ExpectRollback()

	err := s.repo.ApplyTransaction(context.Background(), txn)
	s.ErrorIs(err, ErrInsufficientFunds)
}

func (s *WalletRepoTestSuite) TestPendingTransactionDoesNotMoveMoney() {
	userID := uuid.New()
	txn := &models.Transaction{
		UserID:    userID,
		Amount:    100,
		Direction: models.DirectionCredit,
		Source:    models.SourceMpesa,
		Reference: "HOLD-1",
		Status:    models.TransactionPending,
	}

	s.mock.ExpectBegin()
	s.mock.ExpectExec("INSERT INTO wallets").
		WithArgs(pgxmock.AnyArg(), userID).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	s.mock.ExpectExec("INSERT INTO transactions").
		WithArgs(pgxmock.AnyArg(), userID, txn.InvoiceID, 100.0, models.DirectionCredit,
			models.SourceMpesa, "HOLD-1", models.TransactionPending, txn.Details).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectCommit()
	s.mock.ExpectRollback()

	s.NoError(s.repo.ApplyTransaction(context.Background(), txn))
}

func (s *WalletRepoTestSuite) TestGetOrCreateProvisionsWallet() {
	userID := uuid.New()
	walletID := uuid.New()

	s.mock.ExpectExec("INSERT INTO wallets").
		WithArgs(pgxmock.AnyArg(), userID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectQuery("SELECT id, user_id, balance, created_at, updated_at").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "balance", "created_at", "updated_at"}).
			AddRow(walletID, userID, 0.0, nowForTest(), nowForTest()))

	wallet, err := s.repo.GetOrCreate(context.Background(), userID)

	s.NoError(err)
	s.Equal(walletID, wallet.ID)
	s.Equal(0.0, wallet.Balance)
}

func TestWalletRepoTestSuite(t *testing.T) {
	suite.Run(t, new(WalletRepoTestSuite))
}
