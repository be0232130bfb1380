package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionRequired    ErrCode = "SESSION_REQUIRED"
	ErrInvalidResetToken  ErrCode = "INVALID_RESET_TOKEN"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrAdminTierOnly    ErrCode = "ADMIN_TIER_ONLY"
	ErrSuperAdminOnly   ErrCode = "SUPER_ADMIN_ONLY"
	ErrCannotModifySelf ErrCode = "CANNOT_MODIFY_SELF"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidDate    ErrCode = "INVALID_DATE"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrEmailTaken       ErrCode = "EMAIL_TAKEN"
	ErrDuplicateLRN     ErrCode = "DUPLICATE_LRN"
	ErrSuperAdminExists ErrCode = "SUPER_ADMIN_EXISTS"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Incorrect email or password."
	case ErrSessionRequired:
		return "You need to sign in first."
	case ErrInvalidResetToken:
		return "The reset link is invalid or has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrAdminTierOnly:
		return "This resource is restricted to administrators."
	case ErrSuperAdminOnly:
		return "This action is restricted to the super administrator."
	case ErrCannotModifySelf:
		return "You cannot change the role of or delete your own account."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidDate:
		return "Dates must use the YYYY-MM-DD format."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrEmailTaken:
		return "An account with this email already exists."
	case ErrDuplicateLRN:
		return "A student with this LRN already exists."
	case ErrSuperAdminExists:
		return "There can only be one super administrator."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
