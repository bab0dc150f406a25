package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidID       = 1004
	ErrCodeInvalidFormat   = 1015

	// Domain state (2xxx)
	ErrCodePhotoNotFound = 2001
	ErrCodeConflict      = 2102

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal     = 4001
	ErrCodeStoreFailure = 4002
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 404:
		return ErrCodePhotoNotFound
	case 409:
		return ErrCodeConflict
	case 413:
		return ErrCodeRequestTooLarge
	case 429:
		return ErrCodeResourceExhausted
	default:
		return ErrCodeInternal
	}
}

func defaultErrorCodeName(status int) string {
	switch status {
	case 400:
		return "invalid_argument"
	case 401:
		return "unauthorized"
	case 404:
		return "not_found"
	case 409:
		return "conflict"
	case 413:
		return "request_too_large"
	case 429:
		return "resource_exhausted"
	default:
		return "internal"
	}
}
