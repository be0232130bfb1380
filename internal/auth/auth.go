// Package auth derives authentication and authorization facts from the
// identity backend and drives registration with role assignment by
// registration order.
package auth

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/model"
)

// MinCredentialLength is the shortest credential accepted at registration.
const MinCredentialLength = 8

// ResetCallbackPath is where credential reset links land.
const ResetCallbackPath = "/reset-password"

// Backend is the identity backend as seen by one client. Implementations
// hold the client's current session token between calls.
type Backend interface {
	HasAdminTier(ctx context.Context) (bool, error)
	CountAccounts(ctx context.Context) (int, error)
	CountAdminTier(ctx context.Context) (int, error)

	SignUp(ctx context.Context, email, password string, meta model.AccountMetadata) (*model.SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context) error
	Session(ctx context.Context) (*model.Session, error)
	Account(ctx context.Context) (*model.Account, error)

	ListAdminTier(ctx context.Context) ([]model.Account, error)
	UpdateRole(ctx context.Context, id int, role model.RoleTier) (*model.Account, error)
	UpdateEmail(ctx context.Context, id int, email string) (*model.Account, error)
	DeleteAccount(ctx context.Context, id int) error
	RequestPasswordReset(ctx context.Context, email, callbackPath string) error
}

// AccountHandle is the outcome of a registration: the new account and the
// session that leaves the caller signed in.
type AccountHandle struct {
	Account *model.Account
	Session *model.Session
}

// Module is the authentication and authorization layer over a Backend.
type Module struct {
	backend Backend
	policy  model.RolePolicy
	log     zerolog.Logger
}

// New creates a Module.
func New(backend Backend, policy model.RolePolicy, log zerolog.Logger) *Module {
	return &Module{
		backend: backend,
		policy:  policy,
		log:     log.With().Str("component", "auth").Logger(),
	}
}

// HasAdminTierAccountRegistered reports whether an admin-tier account
// exists. If the backend cannot answer, any account at all counts; if that
// also fails the answer is false so an empty system stays open for
// bootstrap registration.
func (m *Module) HasAdminTierAccountRegistered(ctx context.Context) bool {
	exists, err := m.backend.HasAdminTier(ctx)
	if err == nil {
		return exists
	}
	m.log.Debug().Err(err).Msg("Admin-tier check failed, falling back to account count")

	n, err := m.backend.CountAccounts(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("Account count failed")
		return false
	}
	return n > 0
}

// CountAdminTierAccounts returns the number of admin-tier accounts, or 0
// when the backend cannot answer.
func (m *Module) CountAdminTierAccounts(ctx context.Context) int {
	n, err := m.backend.CountAdminTier(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("Admin-tier count failed")
		return 0
	}
	return n
}

// RegisterAccount creates an account whose role follows the registration
// order, and leaves the caller signed in.
func (m *Module) RegisterAccount(ctx context.Context, email, credential string) (*AccountHandle, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "is required"}
	}
	if len(credential) < MinCredentialLength {
		return nil, &ValidationError{Field: "password", Message: "must be at least 8 characters"}
	}

	role := m.policy.Assign(m.CountAdminTierAccounts(ctx))
	result, err := m.backend.SignUp(ctx, email, credential, model.AccountMetadata{Role: role})
	if err != nil {
		return nil, &BackendError{Op: "sign up", Err: err}
	}

	handle := &AccountHandle{Account: result.Account, Session: result.Session}
	if handle.Session == nil {
		session, err := m.backend.SignIn(ctx, email, credential)
		if err != nil {
			return nil, &BackendError{Op: "sign in", Err: err}
		}
		handle.Session = session
	}
	return handle, nil
}

// SignIn authenticates with the backend.
func (m *Module) SignIn(ctx context.Context, email, credential string) (*model.Session, error) {
	session, err := m.backend.SignIn(ctx, strings.TrimSpace(email), credential)
	if err != nil {
		return nil, &BackendError{Op: "sign in", Err: err}
	}
	return session, nil
}

// SignOut ends the current session. Failures are logged, never returned.
func (m *Module) SignOut(ctx context.Context) {
	if err := m.backend.SignOut(ctx); err != nil {
		m.log.Warn().Err(err).Msg("Sign out failed")
	}
}

// ActiveSession returns the current session, or nil.
func (m *Module) ActiveSession(ctx context.Context) (*model.Session, error) {
	return m.backend.Session(ctx)
}

// CurrentAccount returns the signed-in account, or nil.
func (m *Module) CurrentAccount(ctx context.Context) (*model.Account, error) {
	return m.backend.Account(ctx)
}

// IsAuthenticated reports whether there is an active session.
func (m *Module) IsAuthenticated(ctx context.Context) (bool, error) {
	session, err := m.ActiveSession(ctx)
	if err != nil {
		return false, err
	}
	return session != nil, nil
}

// CurrentAccountRole returns the signed-in account's role, or nil.
func (m *Module) CurrentAccountRole(ctx context.Context) (*model.RoleTier, error) {
	account, err := m.CurrentAccount(ctx)
	if err != nil || account == nil {
		return nil, err
	}
	role := account.Role
	return &role, nil
}

// IsCurrentAccountAdminTier reports whether the signed-in account is admin tier.
func (m *Module) IsCurrentAccountAdminTier(ctx context.Context) (bool, error) {
	role, err := m.CurrentAccountRole(ctx)
	if err != nil || role == nil {
		return false, err
	}
	return role.IsAdminTier(), nil
}

// IsCurrentAccountSuperAdminTier reports whether the signed-in account is super-admin tier.
func (m *Module) IsCurrentAccountSuperAdminTier(ctx context.Context) (bool, error) {
	role, err := m.CurrentAccountRole(ctx)
	if err != nil || role == nil {
		return false, err
	}
	return role.IsSuperAdminTier(), nil
}

// ListAdminTierAccounts lists every admin-tier account.
func (m *Module) ListAdminTierAccounts(ctx context.Context) ([]model.Account, error) {
	return m.backend.ListAdminTier(ctx)
}

// UpdateAccountRole changes an account's role.
func (m *Module) UpdateAccountRole(ctx context.Context, id int, role model.RoleTier) (*model.Account, error) {
	return m.backend.UpdateRole(ctx, id, role)
}

// UpdateAccountEmail changes an account's email.
func (m *Module) UpdateAccountEmail(ctx context.Context, id int, email string) (*model.Account, error) {
	return m.backend.UpdateEmail(ctx, id, email)
}

// DeleteAccount removes an account.
func (m *Module) DeleteAccount(ctx context.Context, id int) error {
	return m.backend.DeleteAccount(ctx, id)
}

// RequestCredentialReset sends a reset link to the email.
func (m *Module) RequestCredentialReset(ctx context.Context, email string) error {
	return m.backend.RequestPasswordReset(ctx, email, ResetCallbackPath)
}
