package model

import "errors"

var (
	// ErrValidation is returned for malformed input, e.g. a quantity below one.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an event, tier or booking is absent or not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientInventory is returned when the requested quantity exceeds a live counter.
	ErrInsufficientInventory = errors.New("insufficient inventory")

	// ErrForbidden is returned when the caller's role does not allow the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyCancelled is returned when cancelling a booking that is already cancelled.
	ErrAlreadyCancelled = errors.New("booking already cancelled")
)

// ErrorKind names the taxonomy bucket of err, used for metrics labels and audit details.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientInventory):
		return "insufficient_inventory"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAlreadyCancelled):
		return "already_cancelled"
	default:
		return "storage_failure"
	}
}
