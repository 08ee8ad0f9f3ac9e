package store

import "time"

// RecordSend journals an outbound send before it is issued.
func (db *DB) RecordSend(clientMsgID string, contactID int64, kind, body string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO send_journal (client_msg_id, contact_id, kind, body, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'sending', ?, ?)`,
		clientMsgID, contactID, kind, body, now, now)
	return err
}

// MarkSendConfirmed records the server-issued message id for a send.
func (db *DB) MarkSendConfirmed(clientMsgID, messageID string) error {
	_, err := db.Exec(`UPDATE send_journal SET status = 'sent', message_id = ?, updated_at = ? WHERE client_msg_id = ?`,
		messageID, time.Now().UnixMilli(), clientMsgID)
	return err
}

// MarkSendFailed records why a send failed.
func (db *DB) MarkSendFailed(clientMsgID, errMsg string) error {
	_, err := db.Exec(`UPDATE send_journal SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`,
		errMsg, time.Now().UnixMilli(), clientMsgID)
	return err
}

// RecentSends returns up to limit journal entries, newest first. A zero
// contactID returns entries for every contact.
func (db *DB) RecentSends(contactID int64, limit int) ([]SendEntry, error) {
	rows, err := db.Query(`
		SELECT id, client_msg_id, contact_id, kind, body, status, message_id, error_message, created_at
		FROM send_journal
		WHERE ? = 0 OR contact_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, contactID, contactID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []SendEntry
	for rows.Next() {
		var e SendEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.ContactID, &e.Kind, &e.Body, &e.Status, &e.MessageID, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
