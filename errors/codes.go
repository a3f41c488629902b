package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Setup and usage errors (never retryable)
const (
	// ErrCodeConfigInvalid indicates invalid limiter, cache, queue or service configuration.
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ErrCodeUsage indicates an API was called in the wrong state (double start, closed session).
	ErrCodeUsage ErrorCode = "USAGE_ERROR"
	// ErrCodeCapacityExceeded indicates a request that can never fit the resource.
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"
	// ErrCodeCancelled indicates the caller's context ended while blocked.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// Provider/availability errors (retryable)
const (
	// ErrCodeRateLimited indicates a non-waiting acquire was refused.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeProvider indicates an external provider call failed.
	ErrCodeProvider ErrorCode = "PROVIDER_ERROR"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Request errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// ErrCodeInternal indicates an internal error.
const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

var retryableCodes = map[ErrorCode]bool{
	ErrCodeRateLimited:        true,
	ErrCodeProvider:           true,
	ErrCodeTimeout:            true,
	ErrCodeServiceUnavailable: true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
