package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"afyapay/internal/common"
	"afyapay/internal/services"
	"afyapay/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type WalletHandler struct {
	wallets        services.WalletService
	reconciliation services.ReconciliationService
	logger         *zap.Logger
}

func NewWalletHandler(wallets services.WalletService, reconciliation services.ReconciliationService) *WalletHandler {
	return &WalletHandler{
		wallets:        wallets,
		reconciliation: reconciliation,
		logger:         utils.GetLogger(),
	}
}

func (h *WalletHandler) Balance(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	balance, err := h.wallets.Balance(ctx, userID)
	if err != nil {
		h.logger.Error("balance lookup failed", zap.Error(err))
		return common.SendServerError(c, "failed to fetch balance")
	}
	return c.JSON(http.StatusOK, map[string]any{"user_id": userID, "balance": balance})
}

func (h *WalletHandler) Transactions(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	txns, err := h.wallets.Transactions(ctx, userID, limit, offset)
	if err != nil {
		h.logger.Error("transaction listing failed", zap.Error(err))
		return common.SendServerError(c, "failed to list transactions")
	}
	return c.JSON(http.StatusOK, map[string]any{"transactions": txns, "count": len(txns)})
}

type withdrawRequest struct {
	Amount      float64 `json:"amount"`
	Method      string  `json:"method"`
	Destination string  `json:"destination"`
}

func (h *WalletHandler) Withdraw(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req withdrawRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request body")
	}

	txn, err := h.wallets.Withdraw(ctx, &services.WithdrawInput{
		UserID:      userID,
		Amount:      req.Amount,
		Method:      req.Method,
		Destination: req.Destination,
	})
	if err != nil {
		if errors.Is(err, services.ErrInsufficientFunds) {
			return c.JSON(http.StatusUnprocessableEntity,
				common.CreateErrorResponse("INSUFFICIENT_FUNDS", "wallet balance is too low for this withdrawal", nil))
		}
		h.logger.Warn("withdrawal rejected", zap.Error(err))
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusCreated, txn)
}

// ProviderBalance resolves a wallet by wallet owner user id or by the
// provider's registered email. Admin support tooling relies on the email
// path for records that predate stable provider ids.
func (h *WalletHandler) ProviderBalance(c echo.Context) error {
	identity := c.Param("id")
	if identity == "" {
		return common.SendValidationError(c, "id", "a user id or provider email is required")
	}

	balance, err := h.wallets.BalanceByIdentity(c.Request().Context(), identity)
	if err != nil {
		h.logger.Warn("balance lookup failed", zap.String("identity", identity), zap.Error(err))
		return common.SendClientError(c, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"identity": identity, "balance": balance})
}

// Reconcile recomputes one provider's balance from the transaction log.
// Admin only; drift beyond tolerance is corrected in place and reported.
func (h *WalletHandler) Reconcile(c echo.Context) error {
	providerID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	report, err := h.reconciliation.Recompute(c.Request().Context(), providerID)
	if err != nil {
		h.logger.Error("reconciliation failed",
			zap.String("provider_id", providerID.String()), zap.Error(err))
		return common.SendServerError(c, "reconciliation failed")
	}
	return c.JSON(http.StatusOK, report)
}
