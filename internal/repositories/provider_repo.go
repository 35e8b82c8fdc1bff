package repositories

import (
	"context"

	"afyapay/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ProviderRepository interface {
	Create(ctx context.Context, provider *models.Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error)
	// GetByUserID resolves the provider record owned by an authenticated
	// user. The user id is the stable link between a JWT subject and the
	// provider's wallet.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Provider, error)
	// GetByEmail is the migration-era fallback for resolving a provider's
	// wallet owner; new code should go through the user_id foreign key.
	GetByEmail(ctx context.Context, email string) (*models.Provider, error)
	List(ctx context.Context, limit, offset int) ([]*models.Provider, error)
}

type providerRepo struct {
	db Database
}

func NewProviderRepo(db Database) ProviderRepository {
	return &providerRepo{db: db}
}

const providerColumns = `id, user_id, name, email, phone, created_at, updated_at`

func scanProvider(row pgx.Row) (*models.Provider, error) {
	provider := &models.Provider{}
	err := row.Scan(&provider.ID, &provider.UserID, &provider.Name, &provider.Email, &provider.Phone, &provider.CreatedAt, &provider.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func (r *providerRepo) Create(ctx context.Context, provider *models.Provider) error {
	query := `
		INSERT INTO providers (id, user_id, name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, provider.ID, provider.UserID, provider.Name, provider.Email, provider.Phone)
	return err
}

func (r *providerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE id = $1`
	return scanProvider(r.db.QueryRow(ctx, query, id))
}

func (r *providerRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE user_id = $1`
	return scanProvider(r.db.QueryRow(ctx, query, userID))
}

func (r *providerRepo) GetByEmail(ctx context.Context, email string) (*models.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers WHERE LOWER(email) = LOWER($1)`
	return scanProvider(r.db.QueryRow(ctx, query, email))
}

func (r *providerRepo) List(ctx context.Context, limit, offset int) ([]*models.Provider, error) {
	query := `
		SELECT ` + providerColumns + `
		FROM providers
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []*models.Provider
	for rows.Next() {
		provider, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}
	return providers, rows.Err()
}
