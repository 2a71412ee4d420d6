package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Authorization
	ErrNotEnoughPermissions = errors.New("not enough permissions")

	// Payment state conflicts
	ErrUnpaidBillExists         = errors.New("account service already has an unpaid bill")
	ErrPaymentCannotBeCancelled = errors.New("payment cannot be cancelled in its current state")
	ErrInvalidPaymentState      = errors.New("invalid payment state")
	ErrNoRequiredParameters     = errors.New("no required parameters given")

	// Promocodes
	ErrPromocodeExpired       = errors.New("promocode expired or exhausted")
	ErrPromocodeWrongCurrency = errors.New("promocode is not available for this currency")
	ErrInvalidPromocodeType   = errors.New("invalid promocode type")

	// Upstream gateway
	ErrGatewayUnavailable = errors.New("billing gateway unavailable")
)
