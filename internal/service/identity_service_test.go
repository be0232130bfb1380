package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/config"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memAccounts is an in-memory AccountStore.
type memAccounts struct {
	mu       sync.Mutex
	accounts []*model.Account
	nextID   int
}

func (m *memAccounts) find(fn func(*model.Account) bool) *model.Account {
	for _, a := range m.accounts {
		if fn(a) {
			return a
		}
	}
	return nil
}

func (m *memAccounts) GetByID(ctx context.Context, id int) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.find(func(a *model.Account) bool { return a.ID == id }); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, repository.ErrAccountNotFound
}

func (m *memAccounts) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.find(func(a *model.Account) bool { return strings.EqualFold(a.Email, email) }); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, repository.ErrAccountNotFound
}

func (m *memAccounts) CountAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts), nil
}

func (m *memAccounts) countAdminTier() int {
	n := 0
	for _, a := range m.accounts {
		if a.Role.IsAdminTier() {
			n++
		}
	}
	return n
}

func (m *memAccounts) CountAdminTier(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countAdminTier(), nil
}

func (m *memAccounts) HasAdminTier(ctx context.Context) (bool, error) {
	n, err := m.CountAdminTier(ctx)
	return n > 0, err
}

func (m *memAccounts) CreateWithPolicy(ctx context.Context, a *model.Account, policy model.RolePolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.find(func(x *model.Account) bool { return strings.EqualFold(x.Email, a.Email) }) != nil {
		return repository.ErrDuplicateEmail
	}
	m.nextID++
	a.ID = m.nextID
	a.Role = policy.Grant(a.Role, m.countAdminTier())
	a.CreatedAt = time.Now()
	cp := *a
	m.accounts = append(m.accounts, &cp)
	return nil
}

func (m *memAccounts) ListAdminTier(ctx context.Context) ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Account
	for _, a := range m.accounts {
		if a.Role.IsAdminTier() {
			out = append(out, *a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Role.IsSuperAdminTier() && !out[j].Role.IsSuperAdminTier() })
	return out, nil
}

func (m *memAccounts) update(id int, fn func(*model.Account)) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.find(func(a *model.Account) bool { return a.ID == id })
	if a == nil {
		return nil, repository.ErrAccountNotFound
	}
	fn(a)
	cp := *a
	return &cp, nil
}

func (m *memAccounts) UpdateRole(ctx context.Context, id int, role model.RoleTier) (*model.Account, error) {
	return m.update(id, func(a *model.Account) { a.Role = role })
}

func (m *memAccounts) UpdateEmail(ctx context.Context, id int, email string) (*model.Account, error) {
	return m.update(id, func(a *model.Account) { a.Email = email })
}

func (m *memAccounts) UpdatePassword(ctx context.Context, id int, hash string) error {
	_, err := m.update(id, func(a *model.Account) { a.PasswordHash = hash })
	return err
}

func (m *memAccounts) Delete(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.accounts {
		if a.ID == id {
			m.accounts = append(m.accounts[:i], m.accounts[i+1:]...)
			return nil
		}
	}
	return repository.ErrAccountNotFound
}

type identityFixture struct {
	svc      *IdentityService
	accounts *memAccounts
	resets   *ResetStore
}

func newIdentityFixture(t *testing.T, autoSession bool) *identityFixture {
	t.Helper()
	_, rdb := newTestRedis(t)
	accounts := &memAccounts{}
	resets := NewResetStore(rdb, 30*time.Minute)
	svc := NewIdentityService(accounts, NewSessionStore(rdb, "secret", time.Hour), resets, IdentityOptions{
		Policy:              model.TieredRolePolicy(2),
		BcryptCost:          bcrypt.MinCost,
		AutoSessionOnSignUp: autoSession,
		PublicBaseURL:       "https://libris.example",
	}, zerolog.Nop())
	return &identityFixture{svc: svc, accounts: accounts, resets: resets}
}

func (f *identityFixture) signUp(t *testing.T, email string, role model.RoleTier) *model.SignUpResult {
	t.Helper()
	result, err := f.svc.SignUp(context.Background(), email, "password123", model.AccountMetadata{Role: role})
	require.NoError(t, err)
	return result
}

func TestSignUpCapsRequestedRoleAndIssuesSession(t *testing.T) {
	f := newIdentityFixture(t, true)

	first := f.signUp(t, "  First@Example.com ", model.RoleUser)
	assert.Equal(t, "first@example.com", first.Account.Email)
	assert.Equal(t, model.RoleUser, first.Account.Role, "lower request honored")
	require.NotNil(t, first.Session)

	second := f.signUp(t, "second@example.com", model.RoleSuperAdmin)
	assert.Equal(t, model.RoleSuperAdmin, second.Account.Role, "no admin yet")

	third := f.signUp(t, "third@example.com", model.RoleSuperAdmin)
	assert.Equal(t, model.RoleAdmin, third.Account.Role, "capped by policy")

	_, err := f.svc.SignUp(context.Background(), "third@example.com", "password123", model.AccountMetadata{})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
}

func TestSignUpWithoutAutoSession(t *testing.T) {
	f := newIdentityFixture(t, false)
	result := f.signUp(t, "a@example.com", "")
	assert.Nil(t, result.Session)
	assert.NotEmpty(t, result.Account.PasswordHash)
}

func TestSignInAndAccount(t *testing.T) {
	f := newIdentityFixture(t, false)
	ctx := context.Background()
	f.signUp(t, "a@example.com", "")

	_, _, err := f.svc.SignIn(ctx, "a@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.svc.SignIn(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	session, account, err := f.svc.SignIn(ctx, "A@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, account.Role)

	current, err := f.svc.Account(ctx, session.Token)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, account.ID, current.ID)

	require.NoError(t, f.svc.SignOut(ctx, session.Token))
	current, err = f.svc.Account(ctx, session.Token)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestAccountReflectsRoleChangesImmediately(t *testing.T) {
	f := newIdentityFixture(t, true)
	ctx := context.Background()
	super := f.signUp(t, "super@example.com", "")
	admin := f.signUp(t, "admin@example.com", "")

	_, err := f.svc.UpdateRole(ctx, super.Account.ID, admin.Account.ID, model.RoleUser)
	require.NoError(t, err)

	current, err := f.svc.Account(ctx, admin.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, current.Role)
}

func TestSuperAdminCannotModifySelf(t *testing.T) {
	f := newIdentityFixture(t, true)
	ctx := context.Background()
	super := f.signUp(t, "super@example.com", "")

	_, err := f.svc.UpdateRole(ctx, super.Account.ID, super.Account.ID, model.RoleUser)
	assert.ErrorIs(t, err, ErrCannotModifySelf)
	assert.ErrorIs(t, f.svc.DeleteAccount(ctx, super.Account.ID, super.Account.ID), ErrCannotModifySelf)

	_, err = f.svc.UpdateRole(ctx, super.Account.ID, 99, "root")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestDeleteAccountRevokesSessions(t *testing.T) {
	f := newIdentityFixture(t, true)
	ctx := context.Background()
	super := f.signUp(t, "super@example.com", "")
	victim := f.signUp(t, "victim@example.com", "")

	require.NoError(t, f.svc.DeleteAccount(ctx, super.Account.ID, victim.Account.ID))
	session, err := f.svc.Session(ctx, victim.Session.Token)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newIdentityFixture(t, true)
	ctx := context.Background()
	account := f.signUp(t, "a@example.com", "")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "nobody@example.com", ""))
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "A@example.com", ""))

	items, err := f.resets.rdb.LRange(ctx, config.WorkerKey.PasswordResetQueue, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, items, 1, "unknown emails enqueue nothing")

	var n model.PasswordResetNotification
	require.NoError(t, json.Unmarshal([]byte(items[0]), &n))
	assert.Equal(t, account.Account.ID, n.AccountID)
	require.True(t, strings.HasPrefix(n.Link, "https://libris.example/reset-password?token="), n.Link)
	token := strings.TrimPrefix(n.Link, "https://libris.example/reset-password?token=")

	assert.ErrorIs(t, f.svc.ConfirmPasswordReset(ctx, "00000000-0000-0000-0000-000000000000", "newpassword1"), ErrInvalidResetToken)
	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, token, "newpassword1"))
	assert.ErrorIs(t, f.svc.ConfirmPasswordReset(ctx, token, "newpassword2"), ErrInvalidResetToken)

	session, err := f.svc.Session(ctx, account.Session.Token)
	require.NoError(t, err)
	assert.Nil(t, session, "reset signs the account out everywhere")

	_, _, err = f.svc.SignIn(ctx, "a@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.svc.SignIn(ctx, "a@example.com", "newpassword1")
	assert.NoError(t, err)
}

func TestScopedIdentityGatesAdministration(t *testing.T) {
	f := newIdentityFixture(t, true)
	ctx := context.Background()
	super := f.signUp(t, "super@example.com", "")
	admin := f.signUp(t, "admin@example.com", "")

	anon := f.svc.Scoped("")
	_, err := anon.ListAdminTier(ctx)
	assert.ErrorIs(t, err, ErrNotSuperAdmin)

	asAdmin := f.svc.Scoped(admin.Session.Token)
	_, err = asAdmin.UpdateRole(ctx, super.Account.ID, model.RoleUser)
	assert.ErrorIs(t, err, ErrNotSuperAdmin)
	assert.ErrorIs(t, asAdmin.DeleteAccount(ctx, super.Account.ID), ErrNotSuperAdmin)

	asSuper := f.svc.Scoped(super.Session.Token)
	list, err := asSuper.ListAdminTier(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.RoleSuperAdmin, list[0].Role)

	updated, err := asSuper.UpdateEmail(ctx, admin.Account.ID, " New@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
}

func TestScopedIdentityTracksToken(t *testing.T) {
	f := newIdentityFixture(t, false)
	ctx := context.Background()
	f.signUp(t, "a@example.com", "")

	scope := f.svc.Scoped("")
	session, err := scope.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)

	_, err = scope.SignIn(ctx, "a@example.com", "password123")
	require.NoError(t, err)
	account, err := scope.Account(ctx)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "a@example.com", account.Email)

	require.NoError(t, scope.SignOut(ctx))
	assert.Empty(t, scope.Token())
}
