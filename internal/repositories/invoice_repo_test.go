package repositories

import (
	"context"
	"testing"
	"time"

	"afyapay/internal/models"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type InvoiceRepoTestSuite struct {
	suite.Suite
	mock pgxmock.PgxPoolIface
	repo InvoiceRepository
}

func (s *InvoiceRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(s.T(), err)
	s.mock = mock
	s.repo = NewInvoiceRepo(mock)
}

func (s *InvoiceRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func (s *InvoiceRepoTestSuite) TestMarkPaidTransitionsPendingInvoice() {
	invoiceID := uuid.New()
	paidAt := nowForTest()

	s.mock.ExpectExec("UPDATE invoices").
		WithArgs(600.0, paidAt, invoiceID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	marked, err := s.repo.MarkPaid(context.Background(), invoiceID, 600.0, paidAt)

	s.NoError(err)
	s.True(marked)
}

func (s *InvoiceRepoTestSuite) TestMarkPaidIsIdempotent() {
	invoiceID := uuid.New()
	paidAt := nowForTest()

	// The status guard finds no billable row on a repeat call.
	s.mock.ExpectExec("UPDATE invoices").
		WithArgs(600.0, paidAt, invoiceID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	marked, err := s.repo.MarkPaid(context.Background(), invoiceID, 600.0, paidAt)

	s.NoError(err)
	s.False(marked)
}

func (s *InvoiceRepoTestSuite) TestGenerateInvoiceNumberEncodesOriginAndMonth() {
	issued := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

	s.mock.ExpectQuery("WITH upsert AS").
		WithArgs(models.OriginAppointment, "2026-08").
		WillReturnRows(pgxmock.NewRows([]string{"last_number"}).AddRow(42))

	number, err := s.repo.GenerateInvoiceNumber(context.Background(), models.OriginAppointment, issued)

	s.NoError(err)
	s.Equal("INV-APT-2026-08-000042", number)
}

func (s *InvoiceRepoTestSuite) TestGenerateInvoiceNumberUnknownOriginFallsBack() {
	issued := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	s.mock.ExpectQuery("WITH upsert AS").
		WithArgs("mystery", "2026-01").
		WillReturnRows(pgxmock.NewRows([]string{"last_number"}).AddRow(1))

	number, err := s.repo.GenerateInvoiceNumber(context.Background(), "mystery", issued)

	s.NoError(err)
	s.Equal("INV-MAN-2026-01-000001", number)
}

func (s *InvoiceRepoTestSuite) TestCreateWritesInvoiceAndLineItems() {
	invoice := &models.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: "INV-PHA-2026-08-000007",
		CustomerName:  "Wanjiru Kamau",
		CustomerEmail: "wanjiru@example.com",
		TotalAmount:   1250,
		Status:        models.InvoiceStatusPending,
		Origin:        models.OriginPharmacy,
		IssuedDate:    nowForTest(),
		DueDate:       nowForTest().AddDate(0, 0, 14),
		LineItems: []models.InvoiceLineItem{
			{Description: "Amoxicillin 500mg", Quantity: 2, UnitPrice: 400},
			{Description: "Dispensing fee", Quantity: 1, UnitPrice: 450},
		},
	}

	s.mock.ExpectBegin()
	s.mock.ExpectExec("INSERT INTO invoices").
		WithArgs(invoice.ID, invoice.InvoiceNumber, invoice.CustomerName, invoice.CustomerEmail,
			invoice.TotalAmount, invoice.Commission, invoice.Status, invoice.Origin,
			invoice.ProviderID, invoice.AppointmentID, invoice.IssuedDate, invoice.DueDate, invoice.PaidDate).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectExec("INSERT INTO invoice_line_items").
		WithArgs(pgxmock.AnyArg(), invoice.ID, "Amoxicillin 500mg", 2, 400.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectExec("INSERT INTO invoice_line_items").
		WithArgs(pgxmock.AnyArg(), invoice.ID, "Dispensing fee", 1, 450.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectCommit()
	s.mock.ExpectRollback()

	s.NoError(s.repo.Create(context.Background(), invoice))
	s.Equal(invoice.ID, invoice.LineItems[0].InvoiceID)
}

func TestInvoiceRepoTestSuite(t *testing.T) {
	suite.Run(t, new(InvoiceRepoTestSuite))
}
