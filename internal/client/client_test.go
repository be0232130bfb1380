package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/auth"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers the identity routes with canned envelopes.
type fakeServer struct {
	adminCount int

	mu         sync.Mutex
	gotAuth    []string
	signUpRole model.RoleTier
}

func (f *fakeServer) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.gotAuth...)
}

func (f *fakeServer) role() model.RoleTier {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signUpRole
}

func writeEnvelope(w http.ResponseWriter, status int, data interface{}, errBody *response.ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response.Response{Data: data, Error: errBody})
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotAuth = append(f.gotAuth, r.Method+" "+r.URL.Path+" "+r.Header.Get("Authorization"))

	switch r.Method + " " + r.URL.Path {
	case "GET /api/v1/rpc/count-admin-tier":
		writeEnvelope(w, http.StatusOK, map[string]int{"result": f.adminCount}, nil)
	case "GET /api/v1/rpc/has-admin-tier":
		writeEnvelope(w, http.StatusInternalServerError, nil, &response.ErrorBody{Code: response.ErrInternal})
	case "GET /api/v1/rpc/count-accounts":
		writeEnvelope(w, http.StatusOK, map[string]int{"result": 3}, nil)
	case "POST /api/v1/auth/signup":
		var req model.SignUpRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.signUpRole = req.Metadata.Role
		writeEnvelope(w, http.StatusCreated, model.SignUpResult{
			Account: &model.Account{ID: 1, Email: req.Email, Role: req.Metadata.Role},
		}, nil)
	case "POST /api/v1/auth/signin":
		var req model.SignInRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "password123" {
			writeEnvelope(w, http.StatusUnauthorized, nil, &response.ErrorBody{
				Code:    response.ErrInvalidCredentials,
				Message: response.GetMessage(response.ErrInvalidCredentials),
			})
			return
		}
		writeEnvelope(w, http.StatusOK, model.SignInResponse{
			Session: &model.Session{Token: "tok-1", AccountID: 1, Valid: true},
			Account: &model.Account{ID: 1, Email: req.Email},
		}, nil)
	case "GET /api/v1/auth/session":
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeEnvelope(w, http.StatusOK, nil, nil)
			return
		}
		writeEnvelope(w, http.StatusOK, model.Session{Token: "tok-1", AccountID: 1, Valid: true}, nil)
	case "POST /api/v1/auth/signout":
		writeEnvelope(w, http.StatusOK, nil, nil)
	case "PATCH /api/v1/admin/accounts/2/role":
		writeEnvelope(w, http.StatusForbidden, nil, &response.ErrorBody{Code: response.ErrSuperAdminOnly})
	default:
		writeEnvelope(w, http.StatusNotFound, nil, &response.ErrorBody{Code: response.ErrNotFound})
	}
}

func newTestClient(t *testing.T, f *fakeServer, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", opts...)
	require.NoError(t, err)
	return c
}

func TestSignInStoresTokenAndSendsIt(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f)
	ctx := context.Background()

	session, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Empty(t, f.requests(), "no request without a token")

	_, err = c.SignIn(ctx, "a@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", c.Token())

	session, err = c.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, 1, session.AccountID)
	assert.Contains(t, f.requests(), "GET /api/v1/auth/session Bearer tok-1")

	require.NoError(t, c.SignOut(ctx))
	assert.Empty(t, c.Token())
}

func TestAPIErrorsAreDecoded(t *testing.T) {
	c := newTestClient(t, &fakeServer{})

	_, err := c.SignIn(context.Background(), "a@example.com", "wrong-password")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, response.ErrInvalidCredentials, apiErr.Code)
	assert.Equal(t, "Incorrect email or password.", apiErr.Message)

	_, err = c.UpdateRole(context.Background(), 2, model.RoleAdmin)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, response.ErrSuperAdminOnly, apiErr.Code)
}

func TestModuleOverClientRegistersAndSignsIn(t *testing.T) {
	f := &fakeServer{adminCount: 1}
	c := newTestClient(t, f)
	m := auth.New(c, model.TieredRolePolicy(2), zerolog.Nop())

	h, err := m.RegisterAccount(context.Background(), "b@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, f.role())
	require.NotNil(t, h.Session)
	assert.Equal(t, "tok-1", c.Token())

	// has-admin-tier fails on this server, so the module falls back to the account count.
	assert.True(t, m.HasAdminTierAccountRegistered(context.Background()))
}

func TestTokenStorePersistsAcrossClients(t *testing.T) {
	store := FileTokenStore{Path: filepath.Join(t.TempDir(), "libris", "token")}
	f := &fakeServer{}

	c := newTestClient(t, f, WithTokenStore(store))
	_, err := c.SignIn(context.Background(), "a@example.com", "password123")
	require.NoError(t, err)

	again := newTestClient(t, f, WithTokenStore(store))
	assert.Equal(t, "tok-1", again.Token())

	require.NoError(t, again.SignOut(context.Background()))
	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}
