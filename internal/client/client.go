// Package client is the REST implementation of auth.Backend, used by
// command-line and other out-of-process clients.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stemsi/libris-backend/internal/auth"
	"github.com/stemsi/libris-backend/internal/model"
	"github.com/stemsi/libris-backend/internal/response"
)

var _ auth.Backend = (*Client)(nil)

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s: %s %v", e.Status, e.Code, e.Message, e.Fields)
}

// envelope mirrors response.Response with a deferred data payload.
type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

// Client talks to the Libris API and remembers the session token of the
// last sign-in.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore

	mu    sync.Mutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenStore persists the session token across processes.
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) { c.tokens = store }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens != nil {
		token, err := c.tokens.Load()
		if err != nil {
			return nil, fmt.Errorf("load token: %w", err)
		}
		c.token = token
	}
	return c, nil
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) error {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	if c.tokens == nil {
		return nil
	}
	if token == "" {
		return c.tokens.Clear()
	}
	return c.tokens.Save(token)
}

// do sends a JSON request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode response (status %d): %w", method, path, resp.StatusCode, err)
	}

	if resp.StatusCode >= 300 || env.Error != nil {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

type rpcResult[T any] struct {
	Result T `json:"result"`
}

func (c *Client) HasAdminTier(ctx context.Context) (bool, error) {
	var out rpcResult[bool]
	err := c.do(ctx, http.MethodGet, "/api/v1/rpc/has-admin-tier", nil, &out)
	return out.Result, err
}

func (c *Client) CountAccounts(ctx context.Context) (int, error) {
	var out rpcResult[int]
	err := c.do(ctx, http.MethodGet, "/api/v1/rpc/count-accounts", nil, &out)
	return out.Result, err
}

func (c *Client) CountAdminTier(ctx context.Context) (int, error) {
	var out rpcResult[int]
	err := c.do(ctx, http.MethodGet, "/api/v1/rpc/count-admin-tier", nil, &out)
	return out.Result, err
}

func (c *Client) SignUp(ctx context.Context, email, password string, meta model.AccountMetadata) (*model.SignUpResult, error) {
	var out model.SignUpResult
	req := model.SignUpRequest{Email: email, Password: password, Metadata: meta}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/signup", req, &out); err != nil {
		return nil, err
	}
	if out.Session != nil {
		if err := c.setToken(out.Session.Token); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	var out model.SignInResponse
	req := model.SignInRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/signin", req, &out); err != nil {
		return nil, err
	}
	if out.Session == nil {
		return nil, fmt.Errorf("sign in: server returned no session")
	}
	if err := c.setToken(out.Session.Token); err != nil {
		return nil, err
	}
	return out.Session, nil
}

// SignOut revokes the session on the server and forgets it locally, even
// when the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	if c.Token() == "" {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/signout", nil, nil)
	if clearErr := c.setToken(""); err == nil {
		err = clearErr
	}
	return err
}

func (c *Client) Session(ctx context.Context) (*model.Session, error) {
	if c.Token() == "" {
		return nil, nil
	}
	var out *model.Session
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/session", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Account(ctx context.Context) (*model.Account, error) {
	if c.Token() == "" {
		return nil, nil
	}
	var out *model.Account
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/account", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAdminTier(ctx context.Context) ([]model.Account, error) {
	var out []model.Account
	err := c.do(ctx, http.MethodGet, "/api/v1/admin/accounts", nil, &out)
	return out, err
}

func (c *Client) UpdateRole(ctx context.Context, id int, role model.RoleTier) (*model.Account, error) {
	var out model.Account
	path := "/api/v1/admin/accounts/" + strconv.Itoa(id) + "/role"
	if err := c.do(ctx, http.MethodPatch, path, model.UpdateRoleRequest{Role: role}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateEmail(ctx context.Context, id int, email string) (*model.Account, error) {
	var out model.Account
	path := "/api/v1/admin/accounts/" + strconv.Itoa(id) + "/email"
	if err := c.do(ctx, http.MethodPatch, path, model.UpdateEmailRequest{Email: email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAccount(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/admin/accounts/"+strconv.Itoa(id), nil, nil)
}

func (c *Client) RequestPasswordReset(ctx context.Context, email, callbackPath string) error {
	req := model.PasswordResetRequest{Email: email, CallbackPath: callbackPath}
	return c.do(ctx, http.MethodPost, "/api/v1/admin/accounts/password-reset", req, nil)
}

// ForgotPassword asks for a reset link for the caller's own account.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/password-reset", model.PasswordResetRequest{Email: email}, nil)
}

// ConfirmPasswordReset sets a new password with an emailed reset token.
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	req := model.PasswordResetConfirmRequest{Token: token, Password: password}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/password-reset/confirm", req, nil)
}
