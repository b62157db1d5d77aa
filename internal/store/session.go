package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/shabonaa/exambuilder/internal/model"
)

const sessionTTL = 24 * time.Hour

// SaveSession persists a session document under a fresh opaque token and
// returns the token. The document is what survives a browser reload.
func (s *Store) SaveSession(sess model.Session) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	now := time.Now()
	sess.CreatedAt = now
	sess.ExpiresAt = now.Add(sessionTTL)

	doc, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (token, doc, expires_at) VALUES ($1, $2, $3)`,
		token, string(doc), sess.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return "", err
	}
	return token, nil
}

// LoadSession returns the session for a token, or nil when there is none.
// Expired rows and rows whose document no longer parses as a valid session
// are cleared and reported as absent, never as an error.
func (s *Store) LoadSession(token string) (*model.Session, error) {
	var doc string
	var expiresAt int64
	err := s.db.QueryRow(
		`SELECT doc, expires_at FROM sessions WHERE token = $1`, token,
	).Scan(&doc, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().UnixMilli() >= expiresAt {
		_ = s.ClearSession(token)
		return nil, nil
	}

	var sess model.Session
	if err := json.Unmarshal([]byte(doc), &sess); err != nil || !sess.Valid() {
		slog.Warn("clearing corrupt session document", "token_prefix", token[:min(8, len(token))])
		_ = s.ClearSession(token)
		return nil, nil
	}
	sess.Token = token
	return &sess, nil
}

// ClearSession removes a session token.
func (s *Store) ClearSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token = $1`, token)
	return err
}

// CleanupExpiredSessions removes all expired session rows.
func (s *Store) CleanupExpiredSessions() error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at < $1`, time.Now().UnixMilli())
	return err
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
