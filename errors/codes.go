package errors

// ErrorCategory classifies errors by their retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled by callers.
const (
	// CategoryPermanent indicates failures where retrying the same
	// operation cannot help. All core ledger rejections are permanent.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryTransient indicates temporary collaborator failures where
	// retry may succeed. Examples: log unavailable, RPC timeout.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal indicates unexpected errors, bugs, or corrupted
	// stored records.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies a specific failure class.
type ErrorCode string

// Error codes.
const (
	// Core ledger rejections, raised before any state write.
	ErrCodeValidation   ErrorCode = "VALIDATION"    // Malformed, missing, or oversized input
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"     // Referenced task does not exist
	ErrCodeInvalidState ErrorCode = "INVALID_STATE" // Task not in the status the transition needs
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"  // Signer lacks the required relationship or role

	// Boundary failures.
	ErrCodeUnknownMethod ErrorCode = "UNKNOWN_METHOD" // No handler registered for the method

	// Collaborator failures.
	ErrCodeTimeout     ErrorCode = "TIMEOUT"     // Operation timed out
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE" // Collaborator temporarily unavailable

	// Internal failures.
	ErrCodeCorruption ErrorCode = "CORRUPTION" // Stored record failed to decode
	ErrCodeInternal   ErrorCode = "INTERNAL"   // Unexpected internal error
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeValidation, ErrCodeNotFound, ErrCodeInvalidState,
		ErrCodeUnauthorized, ErrCodeUnknownMethod:
		return CategoryPermanent
	case ErrCodeTimeout, ErrCodeUnavailable:
		return CategoryTransient
	case ErrCodeCorruption, ErrCodeInternal:
		return CategoryInternal
	default:
		return CategoryInternal
	}
}

// codeDescriptions provides human-readable descriptions for error codes.
var codeDescriptions = map[ErrorCode]string{
	ErrCodeValidation:    "invalid input",
	ErrCodeNotFound:      "task not found",
	ErrCodeInvalidState:  "task not in required status",
	ErrCodeUnauthorized:  "not authorized",
	ErrCodeUnknownMethod: "unknown method",
	ErrCodeTimeout:       "operation timed out",
	ErrCodeUnavailable:   "temporarily unavailable",
	ErrCodeCorruption:    "stored record corrupted",
	ErrCodeInternal:      "internal error",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
