package model

import "time"

// Account is an identity record. The credential hash never leaves the backend.
type Account struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         RoleTier  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session is a server-issued proof of an authenticated identity.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	AccountID int       `json:"account_id"`
	Role      RoleTier  `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
	Valid     bool      `json:"valid"`
}

// AccountMetadata is attached to an account at sign-up.
type AccountMetadata struct {
	Role RoleTier `json:"role"`
}

// SignUpResult is returned by sign-up. Session is nil when the backend
// does not issue one on registration.
type SignUpResult struct {
	Account *Account `json:"account"`
	Session *Session `json:"session"`
}

// SignUpRequest is the payload for account registration.
type SignUpRequest struct {
	Email    string          `json:"email" binding:"required,email,max=255"`
	Password string          `json:"password" binding:"required,min=8,max=128"`
	Metadata AccountMetadata `json:"metadata"`
}

// SignInRequest is the payload for account authentication.
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,max=128"`
}

// SignInResponse is returned after a successful sign-in.
type SignInResponse struct {
	Session *Session `json:"session"`
	Account *Account `json:"account"`
}

// UpdateRoleRequest is the payload for changing an account's role.
type UpdateRoleRequest struct {
	Role RoleTier `json:"role" binding:"required,oneof=super_admin admin user"`
}

// UpdateEmailRequest is the payload for changing an account's email.
type UpdateEmailRequest struct {
	Email string `json:"email" binding:"required,email,max=255"`
}

// PasswordResetRequest asks the backend to send a reset link.
type PasswordResetRequest struct {
	Email        string `json:"email" binding:"required,email,max=255"`
	CallbackPath string `json:"callback_path" binding:"omitempty,startswith=/,max=255"`
}

// PasswordResetConfirmRequest completes a reset with the emailed token.
type PasswordResetConfirmRequest struct {
	Token    string `json:"token" binding:"required,uuid"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// PasswordResetNotification is queued for delivery by the notification worker.
type PasswordResetNotification struct {
	AccountID int       `json:"account_id"`
	Email     string    `json:"email"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}
