package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"afyapay/internal/models"
	"afyapay/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWalletService struct {
	mock.Mock
}

func (m *mockWalletService) Balance(ctx context.Context, userID uuid.UUID) (float64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockWalletService) BalanceByIdentity(ctx context.Context, identity string) (float64, error) {
	args := m.Called(ctx, identity)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockWalletService) Credit(ctx context.Context, txn *models.Transaction) error {
	return m.Called(ctx, txn).Error(0)
}

func (m *mockWalletService) Withdraw(ctx context.Context, input *services.WithdrawInput) (*models.Transaction, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *mockWalletService) Transactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

type mockReconciliationService struct {
	mock.Mock
}

func (m *mockReconciliationService) Recompute(ctx context.Context, providerID uuid.UUID) (*services.ReconciliationReport, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ReconciliationReport), args.Error(1)
}

func (m *mockReconciliationService) RecomputeAll(ctx context.Context) ([]*services.ReconciliationReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*services.ReconciliationReport), args.Error(1)
}

func newProviderBalanceContext(t *testing.T, identity string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/providers/:id/balance")
	c.SetParamNames("id")
	c.SetParamValues(identity)
	return c, rec
}

func TestProviderBalanceByUserID(t *testing.T) {
	wallets := new(mockWalletService)
	handler := NewWalletHandler(wallets, new(mockReconciliationService))

	userID := uuid.New()
	wallets.On("BalanceByIdentity", mock.Anything, userID.String()).Return(1090.0, nil)

	c, rec := newProviderBalanceContext(t, userID.String())
	require.NoError(t, handler.ProviderBalance(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"identity":"`+userID.String()+`","balance":1090}`,
		rec.Body.String())
	wallets.AssertExpectations(t)
}

func TestProviderBalanceByEmail(t *testing.T) {
	wallets := new(mockWalletService)
	handler := NewWalletHandler(wallets, new(mockReconciliationService))

	wallets.On("BalanceByIdentity", mock.Anything, "dr.otieno@example.com").Return(420.0, nil)

	c, rec := newProviderBalanceContext(t, "dr.otieno@example.com")
	require.NoError(t, handler.ProviderBalance(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	wallets.AssertExpectations(t)
}
