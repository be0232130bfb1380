package service

import (
	"context"

	"github.com/stemsi/libris-backend/internal/auth"
	"github.com/stemsi/libris-backend/internal/model"
)

var _ auth.Backend = (*ScopedIdentity)(nil)

// ScopedIdentity is the identity service as seen by a single caller. It
// remembers the caller's session token across calls, and gates the
// account-administration procedures behind the super-admin tier.
type ScopedIdentity struct {
	svc   *IdentityService
	token string
}

// Token returns the session token the scope currently carries.
func (s *ScopedIdentity) Token() string {
	return s.token
}

func (s *ScopedIdentity) HasAdminTier(ctx context.Context) (bool, error) {
	return s.svc.HasAdminTier(ctx)
}

func (s *ScopedIdentity) CountAccounts(ctx context.Context) (int, error) {
	return s.svc.CountAccounts(ctx)
}

func (s *ScopedIdentity) CountAdminTier(ctx context.Context) (int, error) {
	return s.svc.CountAdminTier(ctx)
}

func (s *ScopedIdentity) SignUp(ctx context.Context, email, password string, meta model.AccountMetadata) (*model.SignUpResult, error) {
	result, err := s.svc.SignUp(ctx, email, password, meta)
	if err != nil {
		return nil, err
	}
	if result.Session != nil {
		s.token = result.Session.Token
	}
	return result, nil
}

func (s *ScopedIdentity) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	session, _, err := s.svc.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.token = session.Token
	return session, nil
}

func (s *ScopedIdentity) SignOut(ctx context.Context) error {
	if s.token == "" {
		return nil
	}
	err := s.svc.SignOut(ctx, s.token)
	s.token = ""
	return err
}

func (s *ScopedIdentity) Session(ctx context.Context) (*model.Session, error) {
	return s.svc.Session(ctx, s.token)
}

func (s *ScopedIdentity) Account(ctx context.Context) (*model.Account, error) {
	return s.svc.Account(ctx, s.token)
}

// superAdmin returns the caller's account if it holds the super-admin tier.
func (s *ScopedIdentity) superAdmin(ctx context.Context) (*model.Account, error) {
	account, err := s.svc.Account(ctx, s.token)
	if err != nil {
		return nil, err
	}
	if account == nil || !account.Role.IsSuperAdminTier() {
		return nil, ErrNotSuperAdmin
	}
	return account, nil
}

func (s *ScopedIdentity) ListAdminTier(ctx context.Context) ([]model.Account, error) {
	if _, err := s.superAdmin(ctx); err != nil {
		return nil, err
	}
	return s.svc.ListAdminTier(ctx)
}

func (s *ScopedIdentity) UpdateRole(ctx context.Context, id int, role model.RoleTier) (*model.Account, error) {
	actor, err := s.superAdmin(ctx)
	if err != nil {
		return nil, err
	}
	return s.svc.UpdateRole(ctx, actor.ID, id, role)
}

func (s *ScopedIdentity) UpdateEmail(ctx context.Context, id int, email string) (*model.Account, error) {
	if _, err := s.superAdmin(ctx); err != nil {
		return nil, err
	}
	return s.svc.UpdateEmail(ctx, id, email)
}

func (s *ScopedIdentity) DeleteAccount(ctx context.Context, id int) error {
	actor, err := s.superAdmin(ctx)
	if err != nil {
		return err
	}
	return s.svc.DeleteAccount(ctx, actor.ID, id)
}

func (s *ScopedIdentity) RequestPasswordReset(ctx context.Context, email, callbackPath string) error {
	if _, err := s.superAdmin(ctx); err != nil {
		return err
	}
	return s.svc.RequestPasswordReset(ctx, email, callbackPath)
}
