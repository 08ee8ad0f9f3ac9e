package store

import (
	"database/sql"
	"errors"
	"time"
)

// Tokens returns the stored access and refresh tokens. Both are empty when
// the session has never logged in or was logged out.
func (db *DB) Tokens() (access, refresh string, err error) {
	err = db.QueryRow(`SELECT access_token, refresh_token FROM credentials WHERE id = 1`).Scan(&access, &refresh)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	return access, refresh, err
}

// SaveTokens replaces the token pair, keeping the stored user.
func (db *DB) SaveTokens(access, refresh string) error {
	_, err := db.Exec(`
		INSERT INTO credentials (id, access_token, refresh_token, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at`,
		access, refresh, time.Now().UnixMilli())
	return err
}

// SaveUser stores the raw user object returned by login.
func (db *DB) SaveUser(user []byte) error {
	_, err := db.Exec(`
		INSERT INTO credentials (id, user_json, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_json = excluded.user_json,
			updated_at = excluded.updated_at`,
		string(user), time.Now().UnixMilli())
	return err
}

// User returns the raw user object, or nil when none is stored.
func (db *DB) User() ([]byte, error) {
	var raw string
	err := db.QueryRow(`SELECT user_json FROM credentials WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || raw == "" {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

// Clear removes tokens and user.
func (db *DB) Clear() error {
	_, err := db.Exec(`DELETE FROM credentials`)
	return err
}
