package repositories

import (
	"context"
	"fmt"

	"afyapay/internal/models"

	"github.com/google/uuid"
)

type WalletRepository interface {
	// GetOrCreate provisions a zero-balance wallet on first access so every
	// user can be credited without a separate account-opening step.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Balance(ctx context.Context, userID uuid.UUID) (float64, error)
	// ApplyTransaction appends the transaction record and applies its balance
	// delta in one database transaction. Debits that would overdraw fail with
	// ErrInsufficientFunds and leave both the log and the balance untouched.
	ApplyTransaction(ctx context.Context, txn *models.Transaction) error
	// SetBalance overwrites a wallet balance directly. Reserved for the
	// reconciliation auditor; normal mutation goes through ApplyTransaction.
	SetBalance(ctx context.Context, userID uuid.UUID, balance float64) error
}

type walletRepo struct {
	db Database
}

func NewWalletRepo(db Database) WalletRepository {
	return &walletRepo{db: db}
}

func (r *walletRepo) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
		VALUES ($1, $2, 0, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), userID)
	if err != nil {
		return nil, err
	}

	wallet := &models.Wallet{}
	err = r.db.QueryRow(ctx, `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID).Scan(&wallet.ID, &wallet.UserID, &wallet.Balance, &wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (r *walletRepo) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	wallet, err := r.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

func (r *walletRepo) ApplyTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO wallets (id, user_id, balance, created_at, updated_at)
		VALUES ($1, $2, 0, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New(), txn.UserID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (id, user_id, invoice_id, amount, direction, source, reference, status, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`, txn.ID, txn.UserID, txn.InvoiceID, txn.Amount, txn.Direction, txn.Source, txn.Reference, txn.Status, txn.Details)
	if err != nil {
		return err
	}

	// Completed transactions move money; pending/failed ones only sit in the log.
	if txn.Status == models.TransactionCompleted {
		switch txn.Direction {
		case models.DirectionCredit:
			_, err = tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE user_id = $2
	`, txn.Amount, txn.UserID)
			if err != nil {
				return err
			}
		case models.DirectionDebit:
			// The balance guard inside the UPDATE makes overdraw checks atomic
			// under the row lock; two racing debits cannot both pass.
			tag, err := tx.Exec(ctx, `
		UPDATE wallets
		SET balance = balance - $1, updated_at = NOW()
		WHERE user_id = $2 AND balance >= $1
	`, txn.Amount, txn.UserID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return ErrInsufficientFunds
			}
		default:
			return fmt.Errorf("unknown transaction direction %q", txn.Direction)
		}
	}

	return tx.Commit(ctx)
}

func (r *walletRepo) SetBalance(ctx context.Context, userID uuid.UUID, balance float64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE wallets
		SET balance = $1, updated_at = NOW()
		WHERE user_id = $2
	`, balance, userID)
	return err
}
