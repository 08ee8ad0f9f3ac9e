package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

// TokenStore persists the session credentials.
type TokenStore interface {
	Tokens() (access, refresh string, err error)
	SaveTokens(access, refresh string) error
	SaveUser(user []byte) error
	Clear() error
}

// MemoryTokenStore keeps credentials in memory.
type MemoryTokenStore struct {
	mu      sync.Mutex
	access  string
	refresh string
	user    []byte
}

func NewMemoryTokenStore(access, refresh string) *MemoryTokenStore {
	return &MemoryTokenStore{access: access, refresh: refresh}
}

func (s *MemoryTokenStore) Tokens() (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access, s.refresh, nil
}

func (s *MemoryTokenStore) SaveTokens(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh = access, refresh
	return nil
}

func (s *MemoryTokenStore) SaveUser(user []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = append([]byte(nil), user...)
	return nil
}

func (s *MemoryTokenStore) User() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh, s.user = "", "", nil
	return nil
}

var errMalformedToken = errors.New("malformed token")

// TokenExpiry reads the exp claim of a JWT without verifying it.
func TokenExpiry(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, errMalformedToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return time.Time{}, errMalformedToken
	}
	var claims struct {
		Exp *float64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == nil {
		return time.Time{}, errMalformedToken
	}
	return time.Unix(int64(*claims.Exp), 0), nil
}

// TokenExpired reports whether token is past its exp claim at now. Tokens
// that cannot be parsed count as expired.
func TokenExpired(token string, now time.Time) bool {
	exp, err := TokenExpiry(token)
	if err != nil {
		return true
	}
	return !now.Before(exp)
}
