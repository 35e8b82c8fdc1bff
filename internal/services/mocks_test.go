package services

import (
	"context"
	"time"

	"afyapay/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock repositories and collaborators shared by the service tests.

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) GetByNumber(ctx context.Context, invoiceNumber string) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) UpdateStatus(ctx context.Context, invoiceID uuid.UUID, status string) error {
	args := m.Called(ctx, invoiceID, status)
	return args.Error(0)
}

func (m *MockInvoiceRepository) MarkPaid(ctx context.Context, invoiceID uuid.UUID, commission float64, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, invoiceID, commission, paidAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepository) ReplaceLineItems(ctx context.Context, invoiceID uuid.UUID, items []models.InvoiceLineItem, newTotal float64) error {
	args := m.Called(ctx, invoiceID, items, newTotal)
	return args.Error(0)
}

func (m *MockInvoiceRepository) List(ctx context.Context, limit, offset int) ([]*models.Invoice, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ListByCustomerEmail(ctx context.Context, email string, limit, offset int) ([]*models.Invoice, error) {
	args := m.Called(ctx, email, limit, offset)
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]*models.Invoice, error) {
	args := m.Called(ctx, providerID, limit, offset)
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ListPaidByProvider(ctx context.Context, providerID uuid.UUID) ([]*models.Invoice, error) {
	args := m.Called(ctx, providerID)
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ListOverduePending(ctx context.Context, before time.Time, limit int) ([]*models.Invoice, error) {
	args := m.Called(ctx, before, limit)
	return args.Get(0).([]*models.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) GenerateInvoiceNumber(ctx context.Context, origin string, issuedDate time.Time) (string, error) {
	args := m.Called(ctx, origin, issuedDate)
	return args.String(0), args.Error(1)
}

type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Wallet), args.Error(1)
}

func (m *MockWalletRepository) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockWalletRepository) ApplyTransaction(ctx context.Context, txn *models.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockWalletRepository) SetBalance(ctx context.Context, userID uuid.UUID, balance float64) error {
	args := m.Called(ctx, userID, balance)
	return args.Error(0)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*models.Transaction, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByReference(ctx context.Context, source, reference string) (*models.Transaction, error) {
	args := m.Called(ctx, source, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SumCompletedWithdrawals(ctx context.Context, userID uuid.UUID) (float64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(float64), args.Error(1)
}

type MockGatewayRequestRepository struct {
	mock.Mock
}

func (m *MockGatewayRequestRepository) Create(ctx context.Context, req *models.GatewayRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockGatewayRequestRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.GatewayRequest, error) {
	args := m.Called(ctx, checkoutRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GatewayRequest), args.Error(1)
}

func (m *MockGatewayRequestRepository) Finalize(ctx context.Context, checkoutRequestID, status string, resultCode int, resultDesc string, receiptNumber *string) (bool, error) {
	args := m.Called(ctx, checkoutRequestID, status, resultCode, resultDesc, receiptNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockGatewayRequestRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*models.GatewayRequest, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Get(0).([]*models.GatewayRequest), args.Error(1)
}

type MockProviderRepository struct {
	mock.Mock
}

func (m *MockProviderRepository) Create(ctx context.Context, provider *models.Provider) error {
	args := m.Called(ctx, provider)
	return args.Error(0)
}

func (m *MockProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Provider, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Provider), args.Error(1)
}

func (m *MockProviderRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Provider, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Provider), args.Error(1)
}

func (m *MockProviderRepository) GetByEmail(ctx context.Context, email string) (*models.Provider, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Provider), args.Error(1)
}

func (m *MockProviderRepository) List(ctx context.Context, limit, offset int) ([]*models.Provider, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Provider), args.Error(1)
}

type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	args := m.Called(ctx, appointment)
	return args.Error(0)
}

func (m *MockAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}

func (m *MockCacheService) SetInvoice(ctx context.Context, invoice *models.Invoice, ttl time.Duration) error {
	args := m.Called(ctx, invoice, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	args := m.Called(ctx, invoiceID)
	return args.Error(0)
}

func (m *MockCacheService) GetBalance(ctx context.Context, userID uuid.UUID) (float64, bool, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(float64), args.Bool(1), args.Error(2)
}

func (m *MockCacheService) SetBalance(ctx context.Context, userID uuid.UUID, balance float64, ttl time.Duration) error {
	args := m.Called(ctx, userID, balance, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteBalance(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCacheService) GetString(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheService) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockDarajaService struct {
	mock.Mock
}

func (m *MockDarajaService) InitiateSTKPush(ctx context.Context, params *STKPushParams) (*models.GatewayRequest, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GatewayRequest), args.Error(1)
}

func (m *MockDarajaService) QueryStatus(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	args := m.Called(ctx, checkoutRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*STKQueryResponse), args.Error(1)
}

type MockArchiveService struct {
	mock.Mock
}

func (m *MockArchiveService) ArchiveCallback(ctx context.Context, checkoutRequestID string, payload []byte) (string, error) {
	args := m.Called(ctx, checkoutRequestID, payload)
	return args.String(0), args.Error(1)
}

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) PaymentSucceeded(ctx context.Context, event *PaymentEvent) {
	m.Called(ctx, event)
}

func (m *MockNotificationService) PaymentFailed(ctx context.Context, event *PaymentEvent) {
	m.Called(ctx, event)
}

func (m *MockNotificationService) RetryFailed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockWalletService) BalanceByIdentity(ctx context.Context, identity string) (float64, error) {
	args := m.Called(ctx, identity)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockWalletService) Credit(ctx context.Context, txn *models.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockWalletService) Withdraw(ctx context.Context, input *WithdrawInput) (*models.Transaction, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockWalletService) Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]*models.Transaction), args.Error(1)
}
