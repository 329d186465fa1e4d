package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error code in the simulator.
type ErrorCode string

const (
	// ValidationError represents malformed order parameters or bad numeric strings.
	ValidationError ErrorCode = "validation_error"
	// InsufficientFundsError represents a reservation failure during order placement.
	InsufficientFundsError ErrorCode = "insufficient_funds_error"
	// NotFoundError represents an unknown account or order id.
	NotFoundError ErrorCode = "not_found_error"
	// UnsupportedCheckpointVersionError represents a checkpoint with an unrecognized version tag.
	UnsupportedCheckpointVersionError ErrorCode = "unsupported_checkpoint_version_error"
	// InternalConsistencyError represents a broken ledger invariant. Fatal for the run.
	InternalConsistencyError ErrorCode = "internal_consistency_error"

	// CheckpointStoreError represents a failure reading or writing a checkpoint store.
	CheckpointStoreError ErrorCode = "checkpoint_store_error"
	// ReportSinkError represents a failure publishing an execution report.
	ReportSinkError ErrorCode = "report_sink_error"
	// StreamSourceError represents a failure reading a market-data source.
	StreamSourceError ErrorCode = "stream_source_error"
	// ConfigError represents an invalid process or scenario configuration.
	ConfigError ErrorCode = "config_error"
)

// DomainError is an error carrying a stable code alongside a human message.
type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// New creates a DomainError with the given code and formatted message.
func New(code ErrorCode, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a DomainError wrapping an underlying cause.
func Wrap(err error, code ErrorCode, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// NewValidation creates a ValidationError.
func NewValidation(format string, args ...any) *DomainError {
	return New(ValidationError, format, args...)
}

// NewInsufficientFunds creates an InsufficientFundsError.
func NewInsufficientFunds(format string, args ...any) *DomainError {
	return New(InsufficientFundsError, format, args...)
}

// NewNotFound creates a NotFoundError.
func NewNotFound(format string, args ...any) *DomainError {
	return New(NotFoundError, format, args...)
}

// NewInternalConsistency creates an InternalConsistencyError.
func NewInternalConsistency(format string, args ...any) *DomainError {
	return New(InternalConsistencyError, format, args...)
}

// NewUnsupportedCheckpointVersion creates an UnsupportedCheckpointVersionError.
func NewUnsupportedCheckpointVersion(version int) *DomainError {
	return New(UnsupportedCheckpointVersionError, "unsupported checkpoint version %d", version)
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if stderrors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
