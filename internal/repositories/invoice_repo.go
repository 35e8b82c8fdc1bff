package repositories

import (
	"context"
	"fmt"
	"time"

	"afyapay/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	GetByNumber(ctx context.Context, invoiceNumber string) (*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
	UpdateStatus(ctx context.Context, invoiceID uuid.UUID, status string) error
	MarkPaid(ctx context.Context, invoiceID uuid.UUID, commission float64, paidAt time.Time) (bool, error)
	ReplaceLineItems(ctx context.Context, invoiceID uuid.UUID, items []models.InvoiceLineItem, newTotal float64) error
	List(ctx context.Context, limit, offset int) ([]*models.Invoice, error)
	ListByCustomerEmail(ctx context.Context, email string, limit, offset int) ([]*models.Invoice, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]*models.Invoice, error)
	ListPaidByProvider(ctx context.Context, providerID uuid.UUID) ([]*models.Invoice, error)
	ListOverduePending(ctx context.Context, before time.Time, limit int) ([]*models.Invoice, error)
	GenerateInvoiceNumber(ctx context.Context, origin string, issuedDate time.Time) (string, error)
}

type invoiceRepo struct {
	db Database
}

func NewInvoiceRepo(db Database) InvoiceRepository {
	return &invoiceRepo{db: db}
}

const invoiceColumns = `id, invoice_number, customer_name, customer_email, total_amount, commission, status, origin, provider_id, appointment_id, issued_date, due_date, paid_date, created_at, updated_at`

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	invoice := &models.Invoice{}
	err := row.Scan(&invoice.ID, &invoice.InvoiceNumber, &invoice.CustomerName, &invoice.CustomerEmail, &invoice.TotalAmount, &invoice.Commission, &invoice.Status, &invoice.Origin, &invoice.ProviderID, &invoice.AppointmentID, &invoice.IssuedDate, &invoice.DueDate, &invoice.PaidDate, &invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *invoiceRepo) Create(ctx context.Context, invoice *models.Invoice) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO invoices (id, invoice_number, customer_name, customer_email, total_amount, commission, status, origin, provider_id, appointment_id, issued_date, due_date, paid_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`
	_, err = tx.Exec(ctx, query, invoice.ID, invoice.InvoiceNumber, invoice.CustomerName, invoice.CustomerEmail, invoice.TotalAmount, invoice.Commission, invoice.Status, invoice.Origin, invoice.ProviderID, invoice.AppointmentID, invoice.IssuedDate, invoice.DueDate, invoice.PaidDate)
	if err != nil {
		return err
	}

	for i := range invoice.LineItems {
		item := &invoice.LineItems[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.InvoiceID = invoice.ID
		_, err = tx.Exec(ctx, `
		INSERT INTO invoice_line_items (id, invoice_id, description, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.InvoiceID, item.Description, item.Quantity, item.UnitPrice)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *invoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1`, invoiceColumns)
	invoice, err := scanInvoice(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadLineItems(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *invoiceRepo) GetByNumber(ctx context.Context, invoiceNumber string) (*models.Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE invoice_number = $1`, invoiceColumns)
	invoice, err := scanInvoice(r.db.QueryRow(ctx, query, invoiceNumber))
	if err != nil {
		return nil, err
	}
	if err := r.loadLineItems(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *invoiceRepo) loadLineItems(ctx context.Context, invoice *models.Invoice) error {
	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price
		FROM invoice_line_items
		WHERE invoice_id = $1
		ORDER BY id
	`, invoice.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		item := models.InvoiceLineItem{}
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &item.Quantity, &item.UnitPrice); err != nil {
			return err
		}
		invoice.LineItems = append(invoice.LineItems, item)
	}
	return rows.Err()
}

func (r *invoiceRepo) Update(ctx context.Context, invoice *models.Invoice) error {
	query := `
		UPDATE invoices
		SET customer_name = $1, customer_email = $2, total_amount = $3, commission = $4, status = $5, due_date = $6, paid_date = $7, updated_at = NOW()
		WHERE id = $8
	`
	_, err := r.db.Exec(ctx, query, invoice.CustomerName, invoice.CustomerEmail, invoice.TotalAmount, invoice.Commission, invoice.Status, invoice.DueDate, invoice.PaidDate, invoice.ID)
	return err
}

func (r *invoiceRepo) UpdateStatus(ctx context.Context, invoiceID uuid.UUID, status string) error {
	query := `
		UPDATE invoices
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`
	_, err := r.db.Exec(ctx, query, status, invoiceID)
	return err
}

// MarkPaid transitions an invoice to paid and records the commission split.
// The guard on the current status makes the transition a compare-and-swap:
// only the first caller observes transitioned=true, repeats are a no-op.
func (r *invoiceRepo) MarkPaid(ctx context.Context, invoiceID uuid.UUID, commission float64, paidAt time.Time) (bool, error) {
	query := `
		UPDATE invoices
		SET status = 'paid', commission = $1, paid_date = $2, updated_at = NOW()
		WHERE id = $3 AND status IN ('pending', 'overdue')
	`
	tag, err := r.db.Exec(ctx, query, commission, paidAt, invoiceID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *invoiceRepo) ReplaceLineItems(ctx context.Context, invoiceID uuid.UUID, items []models.InvoiceLineItem, newTotal float64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM invoice_line_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return err
	}

	for i := range items {
		item := &items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.InvoiceID = invoiceID
		_, err = tx.Exec(ctx, `
		INSERT INTO invoice_line_items (id, invoice_id, description, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.InvoiceID, item.Description, item.Quantity, item.UnitPrice)
		if err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE invoices SET total_amount = $1, updated_at = NOW() WHERE id = $2`, newTotal, invoiceID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *invoiceRepo) List(ctx context.Context, limit, offset int) ([]*models.Invoice, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM invoices
		ORDER BY issued_date DESC
		LIMIT $1 OFFSET $2
	`, invoiceColumns)
	return r.queryInvoices(ctx, query, limit, offset)
}

func (r *invoiceRepo) ListByCustomerEmail(ctx context.Context, email string, limit, offset int) ([]*models.Invoice, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM invoices
		WHERE LOWER(customer_email) = LOWER($1)
		ORDER BY issued_date DESC
		LIMIT $2 OFFSET $3
	`, invoiceColumns)
	return r.queryInvoices(ctx, query, email, limit, offset)
}

func (r *invoiceRepo) ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]*models.Invoice, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM invoices
		WHERE provider_id = $1
		ORDER BY issued_date DESC
		LIMIT $2 OFFSET $3
	`, invoiceColumns)
	return r.queryInvoices(ctx, query, providerID, limit, offset)
}

func (r *invoiceRepo) ListPaidByProvider(ctx context.Context, providerID uuid.UUID) ([]*models.Invoice, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM invoices
		WHERE provider_id = $1 AND status = 'paid'
		ORDER BY issued_date ASC
	`, invoiceColumns)
	return r.queryInvoices(ctx, query, providerID)
}

func (r *invoiceRepo) ListOverduePending(ctx context.Context, before time.Time, limit int) ([]*models.Invoice, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM invoices
		WHERE status = 'pending' AND due_date < $1
		ORDER BY due_date ASC
		LIMIT $2
	`, invoiceColumns)
	return r.queryInvoices(ctx, query, before, limit)
}

func (r *invoiceRepo) queryInvoices(ctx context.Context, query string, args ...any) ([]*models.Invoice, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

var originPrefixes = map[string]string{
	models.OriginAppointment:  "APT",
	models.OriginSubscription: "SUB",
	models.OriginPharmacy:     "PHA",
	models.OriginManual:       "MAN",
}

// GenerateInvoiceNumber generates a unique, origin-encoded invoice number
func (r *invoiceRepo) GenerateInvoiceNumber(ctx context.Context, origin string, issuedDate time.Time) (string, error) {
	prefix, ok := originPrefixes[origin]
	if !ok {
		prefix = "MAN"
	}
	yearMonth := issuedDate.Format("2006-01")

	// Next sequence number for this origin and month
	query := `
		WITH upsert AS (
			INSERT INTO invoice_sequences (origin, year_month, last_number)
			VALUES ($1, $2, 1)
			ON CONFLICT (origin, year_month)
			DO UPDATE SET
				last_number = invoice_sequences.last_number + 1,
				updated_at = NOW()
			RETURNING last_number
		)
		SELECT last_number FROM upsert;
	`

	var sequenceNum int
	err := r.db.QueryRow(ctx, query, origin, yearMonth).Scan(&sequenceNum)
	if err != nil {
		return "", fmt.Errorf("failed to generate invoice sequence: %w", err)
	}

	// Format: INV-APT-2026-08-000042
	return fmt.Sprintf("INV-%s-%s-%06d", prefix, yearMonth, sequenceNum), nil
}
