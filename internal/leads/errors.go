package leads

import "errors"

var (
	// ErrInvalidEmail is returned when the email is missing or malformed
	ErrInvalidEmail = errors.New("leads: invalid email")

	// ErrInvalidPhone is returned when a non-empty phone fails the active policy
	ErrInvalidPhone = errors.New("leads: invalid phone")

	// ErrFieldTooLong is returned when a field exceeds its length cap
	ErrFieldTooLong = errors.New("leads: field too long")

	// ErrSuppressed marks a honeypot submission. Callers report success and skip persistence.
	ErrSuppressed = errors.New("leads: submission suppressed")

	// ErrStoreUnavailable is returned when the email lookup fails
	ErrStoreUnavailable = errors.New("leads: store unavailable")

	// ErrWriteFailed is returned when an insert or update fails
	ErrWriteFailed = errors.New("leads: write failed")

	// ErrUniqueViolation is returned by stores when an insert collides on email
	ErrUniqueViolation = errors.New("leads: email already exists")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")
)

// IsValidationError reports whether err should be surfaced to the submitter as a 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidEmail) || errors.Is(err, ErrInvalidPhone) || errors.Is(err, ErrFieldTooLong)
}
