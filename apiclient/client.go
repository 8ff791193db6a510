// Package apiclient is the authenticated request/response surface for the
// dashboard's data service. Every call carries the current bearer
// credential; a 401 triggers exactly one refresh through the session
// manager's single-flight coordinator and exactly one retry.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/carefleet/carefleet-client/internal/config"
	errs "github.com/carefleet/carefleet-client/internal/errors"
	"github.com/carefleet/carefleet-client/users"
)

// TokenSource supplies the current access credential and the refresh
// performed after a 401. The session manager satisfies it.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) (*users.User, error)
}

type Client struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
}

// Option modifies the Client instance
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (primarily for testing)
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func New(cfg config.GatewayConfig, tokens TokenSource, options ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("[apiclient.New] token source is required")
	}
	c := &Client{
		baseURL: cfg.GetAPIBaseURL(),
		client:  &http.Client{Timeout: cfg.GetRequestTimeout()},
		tokens:  tokens,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Do sends req with the current bearer credential. On a 401 it refreshes
// once and retries once with the rotated token; a failed refresh has
// already transitioned the session to unauthenticated, so the error is
// returned as-is for the UI layer to redirect on.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.tokens.AccessToken())
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrNetwork, "[Client.Do] %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	_ = resp.Body.Close()

	log.Debug().Str("url", req.URL.String()).Msg("Received 401, refreshing session")
	if _, err := c.tokens.Refresh(req.Context()); err != nil {
		return nil, err
	}

	retry, err := cloneRequest(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Do] clone request for retry")
	}
	retry.Header.Set("Authorization", "Bearer "+c.tokens.AccessToken())
	resp, err = c.client.Do(retry)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrNetwork, "[Client.Do] retry: %v", err)
	}
	return resp, nil
}

// GetJSON fetches baseURL+path and decodes the JSON response into out
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "[Client.GetJSON] build request")
	}
	return c.doJSON(req, out)
}

// PostJSON posts body as JSON to baseURL+path and decodes the response
// into out when out is non-nil
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "[Client.PostJSON] marshal body")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "[Client.PostJSON] build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("[Client] unexpected status %d for %s", resp.StatusCode, req.URL.Path)
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "[Client] decode response")
}

// cloneRequest rebuilds a request for the single post-refresh retry,
// replaying the body via GetBody when one exists
func cloneRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return retry, nil
}
