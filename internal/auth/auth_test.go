package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("backend unavailable")

// fakeBackend is an in-memory identity backend that records every call.
type fakeBackend struct {
	accounts []model.Account
	current  *model.Account

	noSessionOnSignUp bool
	hasAdminErr       error
	countErr          error
	countAdminErr     error
	signUpErr         error
	signInErr         error
	signOutErr        error

	calls       []string
	resetPath   string
	resetEmail  string
	signedEmail string
}

func (f *fakeBackend) record(name string) { f.calls = append(f.calls, name) }

func (f *fakeBackend) adminCount() int {
	n := 0
	for _, a := range f.accounts {
		if a.Role.IsAdminTier() {
			n++
		}
	}
	return n
}

func (f *fakeBackend) HasAdminTier(ctx context.Context) (bool, error) {
	f.record("HasAdminTier")
	if f.hasAdminErr != nil {
		return false, f.hasAdminErr
	}
	return f.adminCount() > 0, nil
}

func (f *fakeBackend) CountAccounts(ctx context.Context) (int, error) {
	f.record("CountAccounts")
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.accounts), nil
}

func (f *fakeBackend) CountAdminTier(ctx context.Context) (int, error) {
	f.record("CountAdminTier")
	if f.countAdminErr != nil {
		return 0, f.countAdminErr
	}
	return f.adminCount(), nil
}

func (f *fakeBackend) SignUp(ctx context.Context, email, password string, meta model.AccountMetadata) (*model.SignUpResult, error) {
	f.record("SignUp")
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	a := model.Account{ID: len(f.accounts) + 1, Email: email, Role: meta.Role}
	f.accounts = append(f.accounts, a)
	result := &model.SignUpResult{Account: &a}
	if !f.noSessionOnSignUp {
		f.current = &a
		result.Session = &model.Session{Token: fmt.Sprintf("t%d", a.ID), AccountID: a.ID, Role: a.Role, Valid: true}
	}
	return result, nil
}

func (f *fakeBackend) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	f.record("SignIn")
	f.signedEmail = email
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	for i := range f.accounts {
		if f.accounts[i].Email == email {
			f.current = &f.accounts[i]
			return &model.Session{Token: "signed-in", AccountID: f.current.ID, Role: f.current.Role, Valid: true}, nil
		}
	}
	return nil, errors.New("invalid credentials")
}

func (f *fakeBackend) SignOut(ctx context.Context) error {
	f.record("SignOut")
	f.current = nil
	return f.signOutErr
}

func (f *fakeBackend) Session(ctx context.Context) (*model.Session, error) {
	f.record("Session")
	if f.current == nil {
		return nil, nil
	}
	return &model.Session{AccountID: f.current.ID, Role: f.current.Role, Valid: true}, nil
}

func (f *fakeBackend) Account(ctx context.Context) (*model.Account, error) {
	f.record("Account")
	return f.current, nil
}

func (f *fakeBackend) ListAdminTier(ctx context.Context) ([]model.Account, error) {
	f.record("ListAdminTier")
	return nil, errUnavailable
}

func (f *fakeBackend) UpdateRole(ctx context.Context, id int, role model.RoleTier) (*model.Account, error) {
	f.record("UpdateRole")
	return nil, errUnavailable
}

func (f *fakeBackend) UpdateEmail(ctx context.Context, id int, email string) (*model.Account, error) {
	f.record("UpdateEmail")
	return &model.Account{ID: id, Email: email}, nil
}

func (f *fakeBackend) DeleteAccount(ctx context.Context, id int) error {
	f.record("DeleteAccount")
	return nil
}

func (f *fakeBackend) RequestPasswordReset(ctx context.Context, email, callbackPath string) error {
	f.record("RequestPasswordReset")
	f.resetEmail, f.resetPath = email, callbackPath
	return nil
}

func newModule(b Backend, policy model.RolePolicy) *Module {
	return New(b, policy, zerolog.Nop())
}

func TestRegisterAccountAssignsRolesByOrder(t *testing.T) {
	tests := []struct {
		name   string
		policy model.RolePolicy
		want   []model.RoleTier
	}{
		{
			name:   "tiered",
			policy: model.TieredRolePolicy(2),
			want:   []model.RoleTier{model.RoleSuperAdmin, model.RoleAdmin, model.RoleAdmin, model.RoleUser, model.RoleUser},
		},
		{
			name:   "simple",
			policy: model.SimpleRolePolicy(),
			want:   []model.RoleTier{model.RoleAdmin, model.RoleUser, model.RoleUser, model.RoleUser, model.RoleUser},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			m := newModule(b, tt.policy)

			for i, want := range tt.want {
				h, err := m.RegisterAccount(context.Background(), fmt.Sprintf(" user%d@example.com ", i), "password123")
				require.NoError(t, err)
				assert.Equal(t, want, h.Account.Role, "registrant %d", i+1)
				assert.Equal(t, fmt.Sprintf("user%d@example.com", i), h.Account.Email)
				assert.NotNil(t, h.Session)
			}
		})
	}
}

func TestRegisterAccountRejectsShortCredentialWithoutBackendCalls(t *testing.T) {
	b := &fakeBackend{}
	m := newModule(b, model.TieredRolePolicy(2))

	_, err := m.RegisterAccount(context.Background(), "a@example.com", "short12")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)
	assert.Empty(t, b.calls)
}

func TestRegisterAccountRejectsBlankEmail(t *testing.T) {
	b := &fakeBackend{}
	m := newModule(b, model.TieredRolePolicy(2))

	_, err := m.RegisterAccount(context.Background(), "   ", "password123")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)
	assert.Empty(t, b.calls)
}

func TestRegisterAccountSignsInWhenNoSessionIssued(t *testing.T) {
	b := &fakeBackend{noSessionOnSignUp: true}
	m := newModule(b, model.TieredRolePolicy(2))

	h, err := m.RegisterAccount(context.Background(), "first@example.com", "password123")
	require.NoError(t, err)
	require.NotNil(t, h.Session)
	assert.Equal(t, "signed-in", h.Session.Token)
	assert.Equal(t, []string{"CountAdminTier", "SignUp", "SignIn"}, b.calls)
	assert.Equal(t, "first@example.com", b.signedEmail)
}

func TestRegisterAccountWrapsBackendFailures(t *testing.T) {
	b := &fakeBackend{signUpErr: errUnavailable}
	m := newModule(b, model.TieredRolePolicy(2))

	_, err := m.RegisterAccount(context.Background(), "a@example.com", "password123")

	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "sign up", berr.Op)
	assert.ErrorIs(t, err, errUnavailable)

	b = &fakeBackend{noSessionOnSignUp: true, signInErr: errUnavailable}
	m = newModule(b, model.TieredRolePolicy(2))
	_, err = m.RegisterAccount(context.Background(), "a@example.com", "password123")
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "sign in", berr.Op)
}

func TestRegisterAccountTreatsCountFailureAsNoAdmins(t *testing.T) {
	b := &fakeBackend{countAdminErr: errUnavailable}
	m := newModule(b, model.TieredRolePolicy(2))

	h, err := m.RegisterAccount(context.Background(), "a@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, h.Account.Role)
}

func TestHasAdminTierAccountRegistered(t *testing.T) {
	ctx := context.Background()

	t.Run("direct answer", func(t *testing.T) {
		b := &fakeBackend{accounts: []model.Account{{Role: model.RoleAdmin}}}
		assert.True(t, newModule(b, model.SimpleRolePolicy()).HasAdminTierAccountRegistered(ctx))
		assert.Equal(t, []string{"HasAdminTier"}, b.calls)
	})

	t.Run("falls back to account count", func(t *testing.T) {
		b := &fakeBackend{hasAdminErr: errUnavailable, accounts: []model.Account{{Role: model.RoleUser}}}
		assert.True(t, newModule(b, model.SimpleRolePolicy()).HasAdminTierAccountRegistered(ctx))
		assert.Equal(t, []string{"HasAdminTier", "CountAccounts"}, b.calls)
	})

	t.Run("empty system via fallback", func(t *testing.T) {
		b := &fakeBackend{hasAdminErr: errUnavailable}
		assert.False(t, newModule(b, model.SimpleRolePolicy()).HasAdminTierAccountRegistered(ctx))
	})

	t.Run("both checks fail", func(t *testing.T) {
		b := &fakeBackend{
			hasAdminErr: errUnavailable,
			countErr:    errUnavailable,
			accounts:    []model.Account{{Role: model.RoleSuperAdmin}},
		}
		assert.False(t, newModule(b, model.SimpleRolePolicy()).HasAdminTierAccountRegistered(ctx))
	})
}

func TestCountAdminTierAccountsFailsClosed(t *testing.T) {
	b := &fakeBackend{countAdminErr: errUnavailable, accounts: []model.Account{{Role: model.RoleAdmin}}}
	assert.Equal(t, 0, newModule(b, model.SimpleRolePolicy()).CountAdminTierAccounts(context.Background()))

	b = &fakeBackend{accounts: []model.Account{{Role: model.RoleAdmin}, {Role: model.RoleSuperAdmin}, {Role: model.RoleUser}}}
	assert.Equal(t, 2, newModule(b, model.SimpleRolePolicy()).CountAdminTierAccounts(context.Background()))
}

func TestSignInWrapsError(t *testing.T) {
	b := &fakeBackend{signInErr: errUnavailable}
	_, err := newModule(b, model.SimpleRolePolicy()).SignIn(context.Background(), "a@example.com", "password123")

	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.ErrorIs(t, err, errUnavailable)
}

func TestSignOutSwallowsErrors(t *testing.T) {
	b := &fakeBackend{signOutErr: errUnavailable}
	m := newModule(b, model.SimpleRolePolicy())
	assert.NotPanics(t, func() { m.SignOut(context.Background()) })
	assert.Equal(t, []string{"SignOut"}, b.calls)
}

func TestCurrentAccountDerivations(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name       string
		current    *model.Account
		authed     bool
		admin      bool
		superAdmin bool
	}{
		{name: "anonymous"},
		{name: "user", current: &model.Account{Role: model.RoleUser}, authed: true},
		{name: "admin", current: &model.Account{Role: model.RoleAdmin}, authed: true, admin: true},
		{name: "super admin", current: &model.Account{Role: model.RoleSuperAdmin}, authed: true, admin: true, superAdmin: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModule(&fakeBackend{current: tt.current}, model.TieredRolePolicy(2))

			authed, err := m.IsAuthenticated(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.authed, authed)

			admin, err := m.IsCurrentAccountAdminTier(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.admin, admin)

			superAdmin, err := m.IsCurrentAccountSuperAdminTier(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.superAdmin, superAdmin)

			role, err := m.CurrentAccountRole(ctx)
			require.NoError(t, err)
			if tt.current == nil {
				assert.Nil(t, role)
			} else {
				require.NotNil(t, role)
				assert.Equal(t, tt.current.Role, *role)
			}
		})
	}
}

func TestAdministrativeOperationsPropagateErrors(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	m := newModule(b, model.TieredRolePolicy(2))

	_, err := m.ListAdminTierAccounts(ctx)
	assert.Same(t, errUnavailable, err)

	_, err = m.UpdateAccountRole(ctx, 2, model.RoleAdmin)
	assert.Same(t, errUnavailable, err)

	a, err := m.UpdateAccountEmail(ctx, 3, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", a.Email)

	assert.NoError(t, m.DeleteAccount(ctx, 3))
}

func TestRequestCredentialResetUsesFixedCallback(t *testing.T) {
	b := &fakeBackend{}
	require.NoError(t, newModule(b, model.TieredRolePolicy(2)).RequestCredentialReset(context.Background(), "a@example.com"))
	assert.Equal(t, "a@example.com", b.resetEmail)
	assert.Equal(t, "/reset-password", b.resetPath)
}
