package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Common identity errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidResetToken  = errors.New("reset token is invalid or expired")
	ErrCannotModifySelf   = errors.New("cannot change or delete your own account")
	ErrNotSuperAdmin      = errors.New("super admin role required")
	ErrInvalidRole        = errors.New("unknown role")
)

// DefaultResetCallbackPath is where reset links land in the web app.
const DefaultResetCallbackPath = "/reset-password"

// AccountStore is the account persistence used by IdentityService.
type AccountStore interface {
	GetByID(ctx context.Context, id int) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	CountAll(ctx context.Context) (int, error)
	CountAdminTier(ctx context.Context) (int, error)
	HasAdminTier(ctx context.Context) (bool, error)
	CreateWithPolicy(ctx context.Context, a *model.Account, policy model.RolePolicy) error
	ListAdminTier(ctx context.Context) ([]model.Account, error)
	UpdateRole(ctx context.Context, id int, role model.RoleTier) (*model.Account, error)
	UpdateEmail(ctx context.Context, id int, email string) (*model.Account, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	Delete(ctx context.Context, id int) error
}

// IdentityOptions configures IdentityService.
type IdentityOptions struct {
	Policy              model.RolePolicy
	BcryptCost          int
	AutoSessionOnSignUp bool
	PublicBaseURL       string
}

// IdentityService is the backend side of authentication: accounts, roles,
// sessions, and credential resets.
type IdentityService struct {
	accounts AccountStore
	sessions *SessionStore
	resets   *ResetStore
	opts     IdentityOptions
	log      zerolog.Logger
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(accounts AccountStore, sessions *SessionStore, resets *ResetStore, opts IdentityOptions, log zerolog.Logger) *IdentityService {
	if opts.BcryptCost < bcrypt.MinCost {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &IdentityService{
		accounts: accounts,
		sessions: sessions,
		resets:   resets,
		opts:     opts,
		log:      log.With().Str("component", "identity_service").Logger(),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *IdentityService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *IdentityService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// SignUp creates an account. The requested role is only an upper bound: the
// stored role is decided atomically by the account store under the policy.
func (s *IdentityService) SignUp(ctx context.Context, email, password string, meta model.AccountMetadata) (*model.SignUpResult, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &model.Account{
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Role:         meta.Role,
	}
	if err := s.accounts.CreateWithPolicy(ctx, account, s.opts.Policy); err != nil {
		return nil, err
	}

	s.log.Info().
		Int("account_id", account.ID).
		Str("role", string(account.Role)).
		Str("requested_role", string(meta.Role)).
		Msg("Account registered")

	result := &model.SignUpResult{Account: account}
	if !s.opts.AutoSessionOnSignUp {
		return result, nil
	}

	session, err := s.sessions.Issue(ctx, account)
	if err != nil {
		return nil, err
	}
	result.Session = session
	return result, nil
}

// SignIn verifies credentials and issues a session.
func (s *IdentityService) SignIn(ctx context.Context, email, password string) (*model.Session, *model.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if err := s.CheckPassword(account.PasswordHash, password); err != nil {
		return nil, nil, err
	}

	session, err := s.sessions.Issue(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	return session, account, nil
}

// SignOut revokes the session behind the token.
func (s *IdentityService) SignOut(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// Session returns the live session behind the token, or nil.
func (s *IdentityService) Session(ctx context.Context, token string) (*model.Session, error) {
	return s.sessions.Lookup(ctx, token)
}

// Account returns the account behind the token, re-read from storage, or nil.
func (s *IdentityService) Account(ctx context.Context, token string) (*model.Account, error) {
	session, err := s.sessions.Lookup(ctx, token)
	if err != nil || session == nil {
		return nil, err
	}
	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, nil
	}
	return account, err
}

// HasAdminTier reports whether any admin-tier account exists.
func (s *IdentityService) HasAdminTier(ctx context.Context) (bool, error) {
	return s.accounts.HasAdminTier(ctx)
}

// CountAccounts returns the total number of accounts.
func (s *IdentityService) CountAccounts(ctx context.Context) (int, error) {
	return s.accounts.CountAll(ctx)
}

// CountAdminTier returns the number of admin-tier accounts.
func (s *IdentityService) CountAdminTier(ctx context.Context) (int, error) {
	return s.accounts.CountAdminTier(ctx)
}

// ListAdminTier lists every admin-tier account.
func (s *IdentityService) ListAdminTier(ctx context.Context) ([]model.Account, error) {
	return s.accounts.ListAdminTier(ctx)
}

// UpdateRole changes another account's role.
func (s *IdentityService) UpdateRole(ctx context.Context, actorID, id int, role model.RoleTier) (*model.Account, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if actorID == id {
		return nil, ErrCannotModifySelf
	}
	account, err := s.accounts.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("actor_id", actorID).Int("account_id", id).Str("role", string(role)).Msg("Account role changed")
	return account, nil
}

// UpdateEmail changes an account's email.
func (s *IdentityService) UpdateEmail(ctx context.Context, id int, email string) (*model.Account, error) {
	return s.accounts.UpdateEmail(ctx, id, normalizeEmail(email))
}

// DeleteAccount removes another account and revokes its sessions.
func (s *IdentityService) DeleteAccount(ctx context.Context, actorID, id int) error {
	if actorID == id {
		return ErrCannotModifySelf
	}
	if err := s.accounts.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.sessions.RevokeAll(ctx, id); err != nil {
		s.log.Warn().Err(err).Int("account_id", id).Msg("Failed to revoke sessions of deleted account")
	}
	s.log.Info().Int("actor_id", actorID).Int("account_id", id).Msg("Account deleted")
	return nil
}

// RequestPasswordReset queues a reset link for the account with that email.
// Unknown emails succeed silently so the endpoint cannot probe for accounts.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email, callbackPath string) error {
	if callbackPath == "" {
		callbackPath = DefaultResetCallbackPath
	}

	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil
		}
		return err
	}

	token, err := s.resets.Issue(ctx, account.ID)
	if err != nil {
		return err
	}

	link := s.opts.PublicBaseURL + callbackPath + "?" + url.Values{"token": {token}}.Encode()
	return s.resets.Enqueue(ctx, model.PasswordResetNotification{
		AccountID: account.ID,
		Email:     account.Email,
		Link:      link,
		ExpiresAt: time.Now().Add(s.resets.TTL()),
	})
}

// ConfirmPasswordReset redeems a reset token, sets the new password, and
// signs the account out everywhere.
func (s *IdentityService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	accountID, err := s.resets.Consume(ctx, token)
	if err != nil {
		return err
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.UpdatePassword(ctx, accountID, hash); err != nil {
		return err
	}
	return s.sessions.RevokeAll(ctx, accountID)
}

// Scoped returns a view of the service bound to one caller's token.
func (s *IdentityService) Scoped(token string) *ScopedIdentity {
	return &ScopedIdentity{svc: s, token: token}
}
