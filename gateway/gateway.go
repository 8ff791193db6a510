package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/carefleet/carefleet-client/internal/config"
	errs "github.com/carefleet/carefleet-client/internal/errors"
)

// Auth endpoint paths, relative to the API base URL
const (
	routeLogin    = "/auth/login"
	routeRegister = "/auth/register"
	routeVerify   = "/auth/verify"
	routeRefresh  = "/auth/refresh"
)

// Gateway performs the network operations that mutate session state:
// login, registration, email verification, and refresh. It is stateless
// beyond its HTTP client; credential persistence belongs to the session
// manager.
type Gateway struct {
	baseURL  string
	client   *http.Client
	validate *validator.Validate
}

// Option modifies the Gateway instance
type Option func(*Gateway)

// WithHTTPClient replaces the HTTP client (primarily for testing)
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// New creates a Gateway against the configured API base URL. Every request
// carries the configured fixed timeout; exceeding it surfaces ErrNetwork.
func New(cfg config.GatewayConfig, options ...Option) *Gateway {
	g := &Gateway{
		baseURL:  cfg.GetAPIBaseURL(),
		client:   &http.Client{Timeout: cfg.GetRequestTimeout()},
		validate: validator.New(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Login exchanges credentials for a token pair. A 401 from the service
// surfaces ErrInvalidCredentials; transport failures surface ErrNetwork.
func (g *Gateway) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	req := LoginRequest{Email: email, Password: password}
	if err := g.validate.Struct(req); err != nil {
		return nil, errors.Wrap(err, "[Gateway.Login] invalid request")
	}

	var resp TokenResponse
	status, err := g.postJSON(ctx, routeLogin, req, &resp)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrNetwork, "[Gateway.Login] %v", err)
	}
	if status == http.StatusUnauthorized {
		return nil, errs.ErrInvalidCredentials
	}
	if status < 200 || status > 299 {
		return nil, errors.Errorf("[Gateway.Login] unexpected status %d", status)
	}
	return &resp, nil
}

// Register creates an account. No session state changes on success; the
// user still has to verify their email and log in.
func (g *Gateway) Register(ctx context.Context, req RegisterRequest) error {
	if err := g.validate.Struct(req); err != nil {
		return errors.Wrap(err, "[Gateway.Register] invalid request")
	}

	var body errorBody
	status, err := g.postJSON(ctx, routeRegister, req, &body)
	if err != nil {
		return errs.Wrapf(errs.ErrNetwork, "[Gateway.Register] %v", err)
	}
	if status < 200 || status > 299 {
		return errors.Errorf("[Gateway.Register] registration failed (%d): %s", status, body.Message)
	}
	return nil
}

// VerifyEmail confirms a verification token and OTP, returning a fresh
// token pair for the now-verified account. Any 4xx surfaces ErrInvalidOtp.
func (g *Gateway) VerifyEmail(ctx context.Context, token, otp string) (*TokenResponse, error) {
	req := VerifyEmailRequest{Token: token, OTP: otp}
	if err := g.validate.Struct(req); err != nil {
		return nil, errors.Wrap(err, "[Gateway.VerifyEmail] invalid request")
	}

	var resp TokenResponse
	status, err := g.postJSON(ctx, routeVerify, req, &resp)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrNetwork, "[Gateway.VerifyEmail] %v", err)
	}
	if status >= 400 && status <= 499 {
		return nil, errs.ErrInvalidOtp
	}
	if status < 200 || status > 299 {
		return nil, errors.Errorf("[Gateway.VerifyEmail] unexpected status %d", status)
	}
	return &resp, nil
}

// RefreshToken rotates the credential pair. A rejected refresh credential
// surfaces ErrSessionExpired.
func (g *Gateway) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	req := refreshRequest{RefreshToken: refreshToken}
	if err := g.validate.Struct(req); err != nil {
		return nil, errs.ErrSessionExpired
	}

	var resp TokenResponse
	status, err := g.postJSON(ctx, routeRefresh, req, &resp)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrNetwork, "[Gateway.RefreshToken] %v", err)
	}
	if status >= 400 && status <= 499 {
		return nil, errs.ErrSessionExpired
	}
	if status < 200 || status > 299 {
		return nil, errors.Errorf("[Gateway.RefreshToken] unexpected status %d", status)
	}
	return &resp, nil
}

// postJSON sends body as JSON and decodes the response into out when the
// response carries a JSON body. It returns the HTTP status; transport
// failures (including timeout) return an error instead.
func (g *Gateway) postJSON(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		// Failure bodies may be empty or non-JSON; the status code decides
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}
