package services

import (
	"errors"

	"afyapay/internal/repositories"
)

// Error taxonomy for the payment core. Handlers map these onto HTTP
// responses; everything else wraps with additional context.
var (
	// ErrInvoiceNotFound is returned when an invoice id or number does not
	// resolve to a stored invoice.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrAlreadyPaid marks an idempotent no-op: the invoice was settled
	// before this call. Not a hard failure.
	ErrAlreadyPaid = errors.New("invoice already paid")

	// ErrInsufficientFunds mirrors the repository sentinel so callers only
	// ever import the services taxonomy.
	ErrInsufficientFunds = repositories.ErrInsufficientFunds

	// ErrGatewayUnavailable covers network and auth failures talking to the
	// gateway. Retryable as-is.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrGatewayRejected covers a non-success envelope from the gateway.
	// Not retryable without new input.
	ErrGatewayRejected = errors.New("payment gateway rejected request")

	// ErrCallbackUnresolvable marks a callback that cannot be matched to a
	// pending request or its invoice. Logged loudly and archived; the money
	// trail is never dropped silently.
	ErrCallbackUnresolvable = errors.New("callback could not be resolved")

	// ErrInvalidStatusTransition guards the forward-only invoice lifecycle.
	ErrInvalidStatusTransition = errors.New("invalid invoice status transition")
)
