package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppcrm/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
	// HTTPClient defaults to a client without its own timeout; per-request
	// deadlines come from Timeout.
	HTTPClient *http.Client
	// OnAuthFailed is called after credentials were cleared because the
	// session could not be refreshed.
	OnAuthFailed func()
}

// Client talks to the CRM REST API. Every call carries the stored bearer
// token; a 401 triggers exactly one refresh and one retry.
type Client struct {
	baseURL      string
	timeout      time.Duration
	hc           *http.Client
	limiter      *rate.Limiter
	tokens       TokenStore
	log          *zap.Logger
	refreshGroup singleflight.Group
	onAuthFailed func()
}

// NewClient creates a REST client backed by the given token store.
func NewClient(opts Options, tokens TokenStore, log *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		timeout:      opts.Timeout,
		hc:           opts.HTTPClient,
		limiter:      rate.NewLimiter(limit, burst),
		tokens:       tokens,
		log:          log,
		onAuthFailed: opts.OnAuthFailed,
	}
}

// call describes one REST request.
type call struct {
	name   string // metrics/log label, e.g. "messages.list"
	method string
	path   string // relative to the base URL, including the query
	body   any
	auth   bool
}

type response struct {
	status int
	body   []byte
}

// HasCredentials reports whether an access token is stored.
func (c *Client) HasCredentials() bool {
	access, _, err := c.tokens.Tokens()
	return err == nil && access != ""
}

// AccessToken returns the stored access token, or "".
func (c *Client) AccessToken() string {
	access, _, _ := c.tokens.Tokens()
	return access
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	var payload []byte
	if cl.body != nil {
		var err error
		if payload, err = json.Marshal(cl.body); err != nil {
			return fmt.Errorf("encode %s body: %w", cl.name, err)
		}
	}

	resp, used, err := c.send(ctx, cl, payload)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized && cl.auth {
		if err := c.refreshAfter(ctx, used); err != nil {
			return c.authFailed(cl, err)
		}
		resp, _, err = c.send(ctx, cl, payload)
		if err != nil {
			return err
		}
		if resp.status == http.StatusUnauthorized {
			return c.authFailed(cl, &HTTPError{Method: cl.method, Path: cl.path, Status: resp.status, Body: string(resp.body)})
		}
	}

	if resp.status < 200 || resp.status > 299 {
		return &HTTPError{Method: cl.method, Path: cl.path, Status: resp.status, Body: string(resp.body)}
	}
	if out == nil || len(resp.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", cl.name, err)
	}
	return nil
}

// send performs one round trip and returns the access token it used.
func (c *Client) send(ctx context.Context, cl call, payload []byte) (*response, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", &NetworkError{Method: cl.method, Path: cl.path, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return nil, "", fmt.Errorf("build %s request: %w", cl.name, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	var token string
	if cl.auth {
		token = c.AccessToken()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveAPIRequest(cl.name, 0, time.Since(start))
		c.log.Warn("request failed",
			zap.String("endpoint", cl.name),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return nil, token, &NetworkError{Method: cl.method, Path: cl.path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, token, &NetworkError{Method: cl.method, Path: cl.path, Err: fmt.Errorf("read body: %w", err)}
	}

	elapsed := time.Since(start)
	observability.ObserveAPIRequest(cl.name, resp.StatusCode, elapsed)
	c.log.Debug("request",
		zap.String("endpoint", cl.name),
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
		zap.String("request_id", reqID),
	)
	return &response{status: resp.StatusCode, body: data}, token, nil
}

// refreshAfter obtains a fresh token pair unless another caller already
// replaced the token that was rejected. Concurrent callers share one refresh,
// which is detached from the cancellation of whichever caller started it.
func (c *Client) refreshAfter(ctx context.Context, rejected string) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		if current := c.AccessToken(); current != "" && current != rejected {
			return nil, nil
		}
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return nil, c.Refresh(refreshCtx)
	})
	return err
}

// Refresh exchanges the stored refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context) error {
	_, refresh, err := c.tokens.Tokens()
	if err != nil {
		return fmt.Errorf("read tokens: %w", err)
	}
	if refresh == "" {
		observability.IncTokenRefresh("missing")
		return ErrNoRefreshToken
	}

	var out LoginResponse
	err = c.do(ctx, call{
		name:   "token.refresh",
		method: http.MethodPost,
		path:   "/token/refresh/",
		body:   map[string]string{"refresh": refresh},
	}, &out)
	if err != nil {
		observability.IncTokenRefresh("error")
		return fmt.Errorf("refresh token: %w", err)
	}
	if out.AccessToken == "" {
		observability.IncTokenRefresh("error")
		return errors.New("refresh token: response carried no access token")
	}
	if out.RefreshToken == "" {
		out.RefreshToken = refresh
	}
	if err := c.tokens.SaveTokens(out.AccessToken, out.RefreshToken); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	observability.IncTokenRefresh("ok")
	c.log.Info("access token refreshed")
	return nil
}

func (c *Client) authFailed(cl call, cause error) error {
	c.log.Warn("session expired, clearing credentials",
		zap.String("endpoint", cl.name),
		zap.Error(cause),
	)
	if err := c.tokens.Clear(); err != nil {
		c.log.Error("clear credentials", zap.Error(err))
	}
	if c.onAuthFailed != nil {
		c.onAuthFailed()
	}
	return fmt.Errorf("%s: %w: %w", cl.name, ErrAuthFailed, cause)
}
