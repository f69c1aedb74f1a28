package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Connection errors: fatal to the current operation, never to the process.
	ErrConnectionFailed   = errors.New("failed to connect to the broker terminal")
	ErrReconnectExhausted = errors.New("broker reconnect attempts exhausted")

	// Data errors: surfaced to the caller, no retry inside the assembler.
	ErrData          = errors.New("market data error")
	ErrUnknownSymbol = errors.New("symbol unknown to the broker")
	ErrInvalidRange  = errors.New("invalid data range (start must precede end)")

	// Validation errors: rejected before any terminal call, never retried.
	ErrValidation = errors.New("invalid order parameters")
	ErrNoPosition = errors.New("no matching open position")

	// Database errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
