package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"afyapay/internal/caching"
	"afyapay/internal/common"
	"afyapay/internal/services"
	"afyapay/utils"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// callbackAck is the only body the gateway ever sees. Returning anything
// else triggers its retry storm.
var callbackAck = map[string]any{"ResultCode": 0, "ResultDesc": "Accepted"}

type PaymentHandler struct {
	payments services.PaymentService
	cache    caching.CacheService
	logger   *zap.Logger
}

func NewPaymentHandler(payments services.PaymentService, cache caching.CacheService) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		cache:    cache,
		logger:   utils.GetLogger(),
	}
}

type initiatePaymentRequest struct {
	InvoiceID string `json:"invoice_id"`
	Phone     string `json:"phone"`
}

// InitiatePayment starts an STK push for an unpaid invoice.
func (h *PaymentHandler) InitiatePayment(c echo.Context) error {
	var req initiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "invalid request body")
	}

	invoiceID, err := common.ValidateUUID(req.InvoiceID, "invoice_id")
	if err != nil {
		return common.SendValidationError(c, "invoice_id", err.Error())
	}

	request, err := h.payments.InitiatePayment(c.Request().Context(), invoiceID, req.Phone)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvoiceNotFound):
			return common.SendNotFoundError(c, "invoice")
		case errors.Is(err, services.ErrAlreadyPaid):
			return common.SendConflictError(c, "invoice is already paid")
		case errors.Is(err, services.ErrInvalidStatusTransition):
			return common.SendConflictError(c, err.Error())
		case errors.Is(err, services.ErrGatewayUnavailable):
			return c.JSON(http.StatusServiceUnavailable,
				common.CreateErrorResponse("GATEWAY_UNAVAILABLE", "payment gateway is unavailable, try again shortly", nil))
		case errors.Is(err, services.ErrGatewayRejected):
			return common.SendClientError(c, err.Error())
		}
		h.logger.Error("payment initiation failed", zap.Error(err))
		return common.SendServerError(c, "failed to initiate payment")
	}

	return c.JSON(http.StatusAccepted, map[string]any{
		"checkout_request_id": request.CheckoutRequestID,
		"merchant_request_id": request.MerchantRequestID,
		"status":              request.Status,
	})
}

// Callback receives the gateway's asynchronous result. It ALWAYS
// acknowledges with ResultCode 0: reconciliation problems are ours to chase,
// not the gateway's to retry.
func (h *PaymentHandler) Callback(c echo.Context) error {
	limited, err := h.cache.IsRateLimited(c.Request().Context(), "callback:"+c.RealIP(), 60, time.Minute)
	if err != nil {
		h.logger.Warn("rate limit check failed", zap.Error(err))
	} else if limited {
		return c.JSON(http.StatusTooManyRequests,
			common.CreateErrorResponse("RATE_LIMITED", "too many requests", nil))
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return common.SendClientError(c, "unreadable request body")
	}

	if err := h.payments.HandleCallback(c.Request().Context(), payload); err != nil {
		// Already logged and archived downstream; the gateway still gets
		// its acknowledgement.
		h.logger.Error("callback reconciliation failed", zap.Error(err))
	}

	return c.JSON(http.StatusOK, callbackAck)
}

// PaymentStatus is the poll fallback for clients that missed the push result.
func (h *PaymentHandler) PaymentStatus(c echo.Context) error {
	checkoutRequestID := c.Param("id")
	if checkoutRequestID == "" {
		return common.SendValidationError(c, "id", "checkout request id is required")
	}

	request, err := h.payments.PaymentStatus(c.Request().Context(), checkoutRequestID)
	if err != nil {
		h.logger.Warn("payment status lookup failed",
			zap.String("checkout_request_id", checkoutRequestID), zap.Error(err))
		return common.SendNotFoundError(c, "payment request")
	}

	resp := map[string]any{
		"checkout_request_id": request.CheckoutRequestID,
		"status":              request.Status,
		"amount":              request.Amount,
		"account_reference":   request.AccountReference,
	}
	if request.ResultDesc != nil {
		resp["result_desc"] = *request.ResultDesc
	}
	if request.ReceiptNumber != nil {
		resp["receipt_number"] = *request.ReceiptNumber
	}
	return c.JSON(http.StatusOK, resp)
}
