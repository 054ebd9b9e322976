package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound              = errors.New("entity not found")
	ErrAlreadyExists         = errors.New("entity already exists")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrOperationFailed       = errors.New("operation failed")
	ErrReadDatabaseRow       = errors.New("failed to read database row")
	ErrInvalidExecContext    = errors.New("invalid query execution context")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrUnknownProvider       = errors.New("unknown payment provider")
	ErrStoreNotConfigured    = errors.New("backing store not configured")
	ErrVerifierNotConfigured = errors.New("provider verifier not configured")
)
