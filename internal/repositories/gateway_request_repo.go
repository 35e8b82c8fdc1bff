package repositories

import (
	"context"
	"time"

	"afyapay/internal/models"

	"github.com/jackc/pgx/v5"
)

type GatewayRequestRepository interface {
	Create(ctx context.Context, req *models.GatewayRequest) error
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.GatewayRequest, error)
	// Finalize moves a pending request to a terminal status. The status guard
	// in the UPDATE makes the check-then-act atomic: exactly one caller per
	// checkout request id observes finalized=true, duplicate callbacks get
	// false.
	Finalize(ctx context.Context, checkoutRequestID, status string, resultCode int, resultDesc string, receiptNumber *string) (bool, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*models.GatewayRequest, error)
}

type gatewayRequestRepo struct {
	db Database
}

func NewGatewayRequestRepo(db Database) GatewayRequestRepository {
	return &gatewayRequestRepo{db: db}
}

const gatewayRequestColumns = `id, checkout_request_id, merchant_request_id, phone_number, amount, account_reference, description, status, result_code, result_desc, receipt_number, entity_type, entity_id, created_at, updated_at`

func scanGatewayRequest(row pgx.Row) (*models.GatewayRequest, error) {
	req := &models.GatewayRequest{}
	err := row.Scan(&req.ID, &req.CheckoutRequestID, &req.MerchantRequestID, &req.PhoneNumber, &req.Amount, &req.AccountReference, &req.Description, &req.Status, &req.ResultCode, &req.ResultDesc, &req.ReceiptNumber, &req.EntityType, &req.EntityID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *gatewayRequestRepo) Create(ctx context.Context, req *models.GatewayRequest) error {
	query := `
		INSERT INTO gateway_requests (id, checkout_request_id, merchant_request_id, phone_number, amount, account_reference, description, status, result_code, result_desc, receipt_number, entity_type, entity_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, req.ID, req.CheckoutRequestID, req.MerchantRequestID, req.PhoneNumber, req.Amount, req.AccountReference, req.Description, req.Status, req.ResultCode, req.ResultDesc, req.ReceiptNumber, req.EntityType, req.EntityID)
	return err
}

func (r *gatewayRequestRepo) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.GatewayRequest, error) {
	query := `
		SELECT ` + gatewayRequestColumns + `
		FROM gateway_requests
		WHERE checkout_request_id = $1
	`
	return scanGatewayRequest(r.db.QueryRow(ctx, query, checkoutRequestID))
}

func (r *gatewayRequestRepo) Finalize(ctx context.Context, checkoutRequestID, status string, resultCode int, resultDesc string, receiptNumber *string) (bool, error) {
	query := `
		UPDATE gateway_requests
		SET status = $1, result_code = $2, result_desc = $3, receipt_number = $4, updated_at = NOW()
		WHERE checkout_request_id = $5 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, status, resultCode, resultDesc, receiptNumber, checkoutRequestID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *gatewayRequestRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*models.GatewayRequest, error) {
	query := `
		SELECT ` + gatewayRequestColumns + `
		FROM gateway_requests
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*models.GatewayRequest
	for rows.Next() {
		req, err := scanGatewayRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}
