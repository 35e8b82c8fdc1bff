package repositories

import (
	"context"

	"afyapay/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type TransactionRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*models.Transaction, error)
	GetByReference(ctx context.Context, source, reference string) (*models.Transaction, error)
	// SumCompletedWithdrawals totals a user's settled withdrawals, matched by
	// user identity rather than wallet id.
	SumCompletedWithdrawals(ctx context.Context, userID uuid.UUID) (float64, error)
}

type transactionRepo struct {
	db Database
}

func NewTransactionRepo(db Database) TransactionRepository {
	return &transactionRepo{db: db}
}

const transactionColumns = `id, user_id, invoice_id, amount, direction, source, reference, status, details, created_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	txn := &models.Transaction{}
	err := row.Scan(&txn.ID, &txn.UserID, &txn.InvoiceID, &txn.Amount, &txn.Direction, &txn.Source, &txn.Reference, &txn.Status, &txn.Details, &txn.CreatedAt)
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *transactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.queryTransactions(ctx, query, userID, limit, offset)
}

func (r *transactionRepo) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE invoice_id = $1
		ORDER BY created_at ASC
	`
	return r.queryTransactions(ctx, query, invoiceID)
}

func (r *transactionRepo) GetByReference(ctx context.Context, source, reference string) (*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE source = $1 AND reference = $2
	`
	return scanTransaction(r.db.QueryRow(ctx, query, source, reference))
}

func (r *transactionRepo) SumCompletedWithdrawals(ctx context.Context, userID uuid.UUID) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND source = 'withdrawal' AND direction = 'debit' AND status = 'completed'
	`, userID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *transactionRepo) queryTransactions(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}
