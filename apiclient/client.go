// Package apiclient talks to the billing backend's REST API. Authenticated
// calls carry the stored session token; a 401 from any of them clears the
// session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/ratelimit"
	"github.com/mohsenfayyazi/billder/session"
)

const DefaultSessionTTL = 24 * time.Hour

type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *session.Manager
	limiter    *ratelimit.Limiter
	sessionTTL time.Duration
	log        zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter gates every call on l.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(c *Client) { c.sessionTTL = ttl }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a client for baseURL. sess may be nil for public calls only.
func New(baseURL string, sess *session.Manager, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		session:    sess,
		sessionTTL: DefaultSessionTTL,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type call struct {
	method string
	path   string
	query  url.Values
	body   any
	auth   bool
}

func (c *Client) do(ctx context.Context, req call, out any) error {
	if c.limiter != nil && !c.limiter.Allow() {
		return apierror.RateLimited(c.limiter.TimeUntilReset())
	}

	var token string
	if req.auth {
		var err error
		if token, err = c.token(ctx); err != nil {
			return err
		}
	}

	var payload io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, payload)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Token "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Warn().Err(err).Str("method", req.method).Str("path", req.path).Msg("backend unreachable")
		return apierror.Normalize(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierror.Normalize(fmt.Errorf("read response: %w", err))
	}
	c.log.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("backend call")

	if resp.StatusCode == http.StatusUnauthorized && req.auth {
		if err := c.session.Clear(ctx, session.ReasonUnauthorized); err != nil {
			c.log.Error().Err(err).Msg("failed to clear session after 401")
		}
		return apierror.FromResponse(resp.StatusCode, body)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return apierror.FromResponse(resp.StatusCode, body)
	}

	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Success != nil && !*env.Success {
		return apierror.FromResponse(resp.StatusCode, body)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &apierror.Error{Kind: apierror.KindServer, Message: apierror.MsgServer, Status: resp.StatusCode, Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.session == nil {
		return "", apierror.Auth(apierror.MsgAuthRequired)
	}
	token, err := c.session.Token(ctx)
	switch {
	case errors.Is(err, session.ErrNoSession):
		return "", apierror.Auth(apierror.MsgAuthRequired)
	case errors.Is(err, session.ErrExpired), errors.Is(err, session.ErrCorrupt):
		return "", apierror.Auth(apierror.MsgAuthExpired)
	case err != nil:
		return "", err
	}
	return token, nil
}
