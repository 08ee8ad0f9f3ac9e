package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBackend serves the subset of the CRM API the client uses. Requests
// carrying validToken succeed; anything else gets 401.
type fakeBackend struct {
	mu           sync.Mutex
	validToken   string
	nextToken    string
	refreshes    atomic.Int32
	refreshFails bool
	refreshDelay time.Duration
	hits         map[string]int
}

func newFakeBackend(t *testing.T, valid string) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{validToken: valid, nextToken: "fresh", hits: map[string]int{}}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)
	return fb, srv
}

func (fb *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	fb.hits[r.URL.Path]++
	valid := fb.validToken
	fb.mu.Unlock()

	if r.URL.Path == "/token/refresh/" {
		fb.refreshes.Add(1)
		time.Sleep(fb.refreshDelay)
		var body struct {
			Refresh string `json:"refresh"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if fb.refreshFails || body.Refresh == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fb.mu.Lock()
		fb.validToken = fb.nextToken
		fb.mu.Unlock()
		writeJSON(w, LoginResponse{AccessToken: fb.nextToken, RefreshToken: "refresh-2"})
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+valid {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch r.URL.Path {
	case "/contacts/7/":
		writeJSON(w, map[string]any{"id": 7, "name": "Ana", "phone_number": "5511999990000"})
	case "/boom/":
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (fb *fakeBackend) hitCount(path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.hits[path]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(srv *httptest.Server, tokens TokenStore) *Client {
	return NewClient(Options{BaseURL: srv.URL, Timeout: 2 * time.Second}, tokens, zap.NewNop())
}

func TestBearerTokenAttached(t *testing.T) {
	fb, srv := newFakeBackend(t, "good")
	c := newTestClient(srv, NewMemoryTokenStore("good", "r"))

	contact, err := c.GetContact(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Ana", contact.Name)
	assert.Equal(t, int32(0), fb.refreshes.Load())
}

func TestRefreshAndRetryOn401(t *testing.T) {
	fb, srv := newFakeBackend(t, "fresh")
	tokens := NewMemoryTokenStore("stale", "refresh-1")
	c := newTestClient(srv, tokens)

	contact, err := c.GetContact(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), contact.ID)

	assert.Equal(t, int32(1), fb.refreshes.Load(), "exactly one refresh")
	assert.Equal(t, 2, fb.hitCount("/contacts/7/"), "original request plus exactly one retry")

	access, refresh, _ := tokens.Tokens()
	assert.Equal(t, "fresh", access)
	assert.Equal(t, "refresh-2", refresh)
}

func TestRefreshFailureClearsCredentials(t *testing.T) {
	fb, srv := newFakeBackend(t, "fresh")
	fb.refreshFails = true
	tokens := NewMemoryTokenStore("stale", "refresh-1")

	var notified atomic.Bool
	c := NewClient(Options{BaseURL: srv.URL, OnAuthFailed: func() { notified.Store(true) }}, tokens, zap.NewNop())

	_, err := c.GetContact(context.Background(), 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, int32(1), fb.refreshes.Load())
	assert.Equal(t, 1, fb.hitCount("/contacts/7/"), "no retry after failed refresh")
	assert.True(t, notified.Load())

	access, refresh, _ := tokens.Tokens()
	assert.Empty(t, access)
	assert.Empty(t, refresh)
	assert.False(t, c.HasCredentials())
}

func TestMissingRefreshTokenIsAuthFailure(t *testing.T) {
	fb, srv := newFakeBackend(t, "fresh")
	c := newTestClient(srv, NewMemoryTokenStore("stale", ""))

	_, err := c.GetContact(context.Background(), 7)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Equal(t, int32(0), fb.refreshes.Load())
}

func TestRetryStill401IsAuthFailure(t *testing.T) {
	var refreshes, hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/refresh/" {
			refreshes.Add(1)
			writeJSON(w, LoginResponse{AccessToken: "fresh", RefreshToken: "refresh-2"})
			return
		}
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	c := newTestClient(srv, NewMemoryTokenStore("stale", "refresh-1"))

	_, err := c.GetContact(context.Background(), 7)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, int32(2), hits.Load())
	assert.False(t, c.HasCredentials())
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	fb, srv := newFakeBackend(t, "fresh")
	fb.refreshDelay = 50 * time.Millisecond
	c := newTestClient(srv, NewMemoryTokenStore("stale", "refresh-1"))

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetContact(context.Background(), 7)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, int32(1), fb.refreshes.Load())
}

func TestHTTPErrorCarriesStatus(t *testing.T) {
	_, srv := newFakeBackend(t, "good")
	c := newTestClient(srv, NewMemoryTokenStore("good", "r"))

	err := c.do(context.Background(), call{name: "boom", method: http.MethodGet, path: "/boom/", auth: true}, nil)
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.Status)
	assert.Contains(t, httpErr.Error(), "upstream down")
	assert.True(t, IsRetryable(err))
	assert.NotErrorIs(t, err, ErrAuthFailed)

	var netErr *NetworkError
	assert.False(t, errors.As(err, &netErr))
}

func TestNotFoundIsNotRetryable(t *testing.T) {
	_, srv := newFakeBackend(t, "good")
	c := newTestClient(srv, NewMemoryTokenStore("good", "r"))

	_, err := c.GetContact(context.Background(), 99)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.False(t, IsRetryable(err))
}

func TestNetworkErrorIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Options{BaseURL: url, Timeout: time.Second}, NewMemoryTokenStore("t", "r"), zap.NewNop())
	_, err := c.GetContact(context.Background(), 1)
	require.Error(t, err)

	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.Zero(t, StatusCode(err))
	assert.True(t, IsRetryable(err))
}

func TestRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, NewMemoryTokenStore("t", "r"), zap.NewNop())
	start := time.Now()
	_, err := c.GetContact(context.Background(), 1)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr), "got %v", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCancelledCallerDoesNotLogOut(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/refresh/" {
			close(entered)
			<-release
			writeJSON(w, LoginResponse{AccessToken: "fresh", RefreshToken: "refresh-2"})
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var notified atomic.Bool
	tokens := NewMemoryTokenStore("stale", "refresh-1")
	c := NewClient(Options{BaseURL: srv.URL, Timeout: 2 * time.Second, OnAuthFailed: func() { notified.Store(true) }}, tokens, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetContact(ctx, 7)
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh never started")
	}
	cancel()
	close(release)

	var err error
	select {
	case err = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("request did not return")
	}
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAuthFailed)
	assert.False(t, notified.Load())

	access, refresh, _ := tokens.Tokens()
	assert.Equal(t, "fresh", access)
	assert.Equal(t, "refresh-2", refresh)
}

func TestHTTPErrorDetailKeepsRunesWhole(t *testing.T) {
	err := &HTTPError{Method: http.MethodGet, Path: "/x/", Status: http.StatusBadRequest, Body: "a" + strings.Repeat("é", 150)}
	msg := err.Error()
	assert.True(t, utf8.ValidString(msg), "message is not valid UTF-8: %q", msg)
	assert.True(t, strings.HasSuffix(msg, "é..."), "got %q", msg)

	short := &HTTPError{Method: http.MethodGet, Path: "/x/", Status: http.StatusBadRequest, Body: "bad phone"}
	assert.Equal(t, "GET /x/: HTTP 400: bad phone", short.Error())
}
