package store

import (
	"database/sql"
	"errors"
	"strconv"
	"time"
)

const keyLastContact = "last_contact_id"

// SetState upserts a UI state value.
func (db *DB) SetState(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO ui_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

// GetState returns a UI state value, or "" if unset.
func (db *DB) GetState(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM ui_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetLastContact records the conversation that was open last.
func (db *DB) SetLastContact(id int64) error {
	return db.SetState(keyLastContact, strconv.FormatInt(id, 10))
}

// LastContact returns the last opened conversation, or 0.
func (db *DB) LastContact() (int64, error) {
	v, err := db.GetState(keyLastContact)
	if err != nil || v == "" {
		return 0, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, nil
	}
	return id, nil
}
