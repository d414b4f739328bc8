package credstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/giantswarm/mcp-oauth/security"
	_ "modernc.org/sqlite"

	"mcpgate/internal/oauth"
	"mcpgate/pkg/logging"
)

// ErrNotFound is returned when no row exists for the requested key.
var ErrNotFound error = notFoundError{}

// ErrEmptyCredential is returned when saving a credential without a bearer token.
var ErrEmptyCredential = errors.New("credstore: bearer token is empty")

type notFoundError struct{}

func (notFoundError) Error() string { return "credstore: not found" }

// NotFound lets callers outside this package recognise the error without importing it.
func (notFoundError) NotFound() bool { return true }

const schema = `
CREATE TABLE IF NOT EXISTS user_tokens (
	user_id    TEXT PRIMARY KEY,
	jwt_token  TEXT NOT NULL,
	cookies    TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS access_tokens (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_access_tokens_user_id ON access_tokens(user_id);
`

// Credential is the upstream credential material held for one user.
type Credential struct {
	UserID      string
	BearerToken oauth.RedactedToken
	Cookies     map[string]string
	UpdatedAt   time.Time
}

// CredentialSummary describes a stored credential without exposing secrets.
type CredentialSummary struct {
	UserID      string
	UpdatedAt   time.Time
	AccessCount int
}

// Store is the SQLite-backed credential store. It is safe for concurrent use.
type Store struct {
	db        *sql.DB
	encryptor *security.Encryptor
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithEncryptor enables encryption at rest for credential columns.
func WithEncryptor(enc *security.Encryptor) Option {
	return func(s *Store) {
		s.encryptor = enc
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (creating if necessary) the database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	logging.Info("Store", "Opened credential store at %s (encrypted=%t)", cleanPath, s.encrypted())
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) encrypted() bool {
	return s.encryptor != nil && s.encryptor.IsEnabled()
}

func (s *Store) seal(plain string) (string, error) {
	if !s.encrypted() {
		return plain, nil
	}
	return s.encryptor.Encrypt(plain)
}

func (s *Store) open(stored string) (string, error) {
	if !s.encrypted() {
		return stored, nil
	}
	return s.encryptor.Decrypt(stored)
}

// SaveCredential stores the credential for userID, replacing any previous one.
func (s *Store) SaveCredential(ctx context.Context, userID string, bearer oauth.RedactedToken, cookies map[string]string) error {
	if bearer.IsEmpty() {
		return ErrEmptyCredential
	}
	if cookies == nil {
		cookies = map[string]string{}
	}
	cookieJSON, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	token, err := s.seal(bearer.Value())
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}
	jar, err := s.seal(string(cookieJSON))
	if err != nil {
		return fmt.Errorf("encrypt cookies: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO user_tokens (user_id, jwt_token, cookies, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	jwt_token = excluded.jwt_token,
	cookies = excluded.cookies,
	updated_at = excluded.updated_at`,
		userID, token, jar, s.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	logging.Debug("Store", "Saved credential for user %s (%d cookies)", logging.TruncateID(userID), len(cookies))
	return nil
}

// GetCredential returns the credential for userID or ErrNotFound.
func (s *Store) GetCredential(ctx context.Context, userID string) (*Credential, error) {
	var (
		token, jar string
		updated    int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT jwt_token, cookies, updated_at FROM user_tokens WHERE user_id = ?`, userID,
	).Scan(&token, &jar, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	token, err = s.open(token)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential: %w", err)
	}
	jar, err = s.open(jar)
	if err != nil {
		return nil, fmt.Errorf("decrypt cookies: %w", err)
	}

	cookies := map[string]string{}
	if jar != "" {
		if err := json.Unmarshal([]byte(jar), &cookies); err != nil {
			return nil, fmt.Errorf("decode cookies: %w", err)
		}
	}

	return &Credential{
		UserID:      userID,
		BearerToken: oauth.NewRedactedToken(token),
		Cookies:     cookies,
		UpdatedAt:   time.UnixMilli(updated).UTC(),
	}, nil
}

// DeleteCredential removes the credential for userID together with every
// access token bound to it. Deleting an unknown user is not an error.
func (s *Store) DeleteCredential(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM access_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete access tokens: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	logging.Audit(logging.AuditEvent{Action: "credential_revoked", Outcome: "success", UserID: userID})
	return nil
}

// SaveAccessToken binds a gateway access token to userID.
func (s *Store) SaveAccessToken(ctx context.Context, token, userID string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO access_tokens (token, user_id, created_at)
VALUES (?, ?, ?)
ON CONFLICT(token) DO UPDATE SET user_id = excluded.user_id, created_at = excluded.created_at`,
		hashToken(token), userID, s.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("save access token: %w", err)
	}
	return nil
}

// GetUserByAccessToken returns the user bound to token or ErrNotFound.
func (s *Store) GetUserByAccessToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM access_tokens WHERE token = ?`, hashToken(token),
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup access token: %w", err)
	}
	return userID, nil
}

// ListCredentials returns every stored credential owner, ordered by user id.
func (s *Store) ListCredentials(ctx context.Context) ([]CredentialSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT u.user_id, u.updated_at, COUNT(a.token)
FROM user_tokens u
LEFT JOIN access_tokens a ON a.user_id = u.user_id
GROUP BY u.user_id, u.updated_at
ORDER BY u.user_id`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []CredentialSummary
	for rows.Next() {
		var (
			summary CredentialSummary
			updated int64
		)
		if err := rows.Scan(&summary.UserID, &updated, &summary.AccessCount); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		summary.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return out, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
