// Package sqlitestore persists OAuth state (registered clients, grants,
// issued tokens) in a SQLite database. It is the durable counterpart of
// the in-memory store; raw tokens never touch disk, only their digests.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sentry-mcp/gateway/internal/adapter/inbound/oauthgw"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
)

const schema = `
CREATE TABLE IF NOT EXISTS oauth_clients (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	redirect_uris TEXT NOT NULL,
	secret_hash   TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS oauth_grants (
	code                  TEXT PRIMARY KEY,
	client_id             TEXT NOT NULL,
	user_id               TEXT NOT NULL,
	user_name             TEXT NOT NULL DEFAULT '',
	redirect_uri          TEXT NOT NULL,
	scope                 TEXT NOT NULL DEFAULT '',
	code_challenge        TEXT NOT NULL DEFAULT '',
	code_challenge_method TEXT NOT NULL DEFAULT '',
	permissions           TEXT NOT NULL DEFAULT '[]',
	upstream_token        TEXT NOT NULL,
	expires_at            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS oauth_tokens (
	digest         TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	user_name      TEXT NOT NULL DEFAULT '',
	client_id      TEXT NOT NULL,
	upstream_token TEXT NOT NULL,
	scopes         TEXT NOT NULL DEFAULT '',
	skills         TEXT NOT NULL DEFAULT '',
	expires_at     INTEGER NOT NULL
);
`

// Store implements oauthgw.Store on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies the
// schema. The modernc driver is pure Go; WAL keeps concurrent reads from
// blocking the writer.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY churn under concurrent requests.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveClient stores or replaces a registered client.
func (s *Store) SaveClient(ctx context.Context, client *oauthgw.Client) error {
	uris, err := json.Marshal(client.RedirectURIs)
	if err != nil {
		return fmt.Errorf("encoding redirect uris: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO oauth_clients (id, name, redirect_uris, secret_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			redirect_uris = excluded.redirect_uris,
			secret_hash = excluded.secret_hash`,
		client.ID, client.Name, string(uris), client.SecretHash, client.CreatedAt.Unix())
	return err
}

// GetClient returns a registered client by ID.
func (s *Store) GetClient(ctx context.Context, id string) (*oauthgw.Client, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, redirect_uris, secret_hash, created_at
		FROM oauth_clients WHERE id = ?`, id)

	var client oauthgw.Client
	var uris string
	var createdAt int64
	if err := row.Scan(&client.ID, &client.Name, &uris, &client.SecretHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, oauthgw.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(uris), &client.RedirectURIs); err != nil {
		return nil, fmt.Errorf("decoding redirect uris for client %s: %w", id, err)
	}
	client.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &client, nil
}

// SaveGrant stores a one-time authorization code.
func (s *Store) SaveGrant(ctx context.Context, grant *oauthgw.Grant) error {
	permissions, err := json.Marshal(grant.Permissions)
	if err != nil {
		return fmt.Errorf("encoding permissions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO oauth_grants
			(code, client_id, user_id, user_name, redirect_uri, scope,
			 code_challenge, code_challenge_method, permissions, upstream_token, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		grant.Code, grant.ClientID, grant.UserID, grant.UserName, grant.RedirectURI,
		grant.Scope, grant.CodeChallenge, grant.CodeChallengeMethod,
		string(permissions), grant.UpstreamToken, grant.ExpiresAt.Unix())
	return err
}

// ConsumeGrant returns and atomically deletes the grant. A second consume
// of the same code, or of an expired one, returns ErrNotFound.
func (s *Store) ConsumeGrant(ctx context.Context, code string) (*oauthgw.Grant, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT code, client_id, user_id, user_name, redirect_uri, scope,
		       code_challenge, code_challenge_method, permissions, upstream_token, expires_at
		FROM oauth_grants WHERE code = ?`, code)

	var grant oauthgw.Grant
	var permissions string
	var expiresAt int64
	if err := row.Scan(&grant.Code, &grant.ClientID, &grant.UserID, &grant.UserName,
		&grant.RedirectURI, &grant.Scope, &grant.CodeChallenge, &grant.CodeChallengeMethod,
		&permissions, &grant.UpstreamToken, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, oauthgw.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(permissions), &grant.Permissions); err != nil {
		return nil, fmt.Errorf("decoding permissions for grant: %w", err)
	}
	grant.ExpiresAt = time.Unix(expiresAt, 0).UTC()

	if _, err := tx.ExecContext(ctx, `DELETE FROM oauth_grants WHERE code = ?`, code); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if time.Now().After(grant.ExpiresAt) {
		return nil, oauthgw.ErrNotFound
	}
	return &grant, nil
}

// SaveToken stores an issued MCP token by digest.
func (s *Store) SaveToken(ctx context.Context, token *oauthgw.Token) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens
			(digest, user_id, user_name, client_id, upstream_token, scopes, skills, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(digest) DO UPDATE SET
			upstream_token = excluded.upstream_token,
			scopes = excluded.scopes,
			skills = excluded.skills,
			expires_at = excluded.expires_at`,
		token.Digest, token.UserID, token.UserName, token.ClientID, token.UpstreamToken,
		encodeScopes(token.GrantedScopes), encodeSkills(token.GrantedSkills),
		token.ExpiresAt.Unix())
	return err
}

// GetToken returns an issued token by digest. Expired tokens are deleted
// on read and reported as ErrNotFound.
func (s *Store) GetToken(ctx context.Context, digest string) (*oauthgw.Token, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT digest, user_id, user_name, client_id, upstream_token, scopes, skills, expires_at
		FROM oauth_tokens WHERE digest = ?`, digest)

	var token oauthgw.Token
	var scopes, skills string
	var expiresAt int64
	if err := row.Scan(&token.Digest, &token.UserID, &token.UserName, &token.ClientID,
		&token.UpstreamToken, &scopes, &skills, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, oauthgw.ErrNotFound
		}
		return nil, err
	}
	token.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	if time.Now().After(token.ExpiresAt) {
		_ = s.DeleteToken(ctx, digest)
		return nil, oauthgw.ErrNotFound
	}
	token.GrantedScopes = decodeScopes(scopes)
	token.GrantedSkills = decodeSkills(skills)
	return &token, nil
}

// DeleteToken removes an issued token. Deleting an unknown digest is not
// an error.
func (s *Store) DeleteToken(ctx context.Context, digest string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE digest = ?`, digest)
	return err
}

// Scope and skill sets are persisted as space-joined strings, matching the
// OAuth wire format.

func encodeScopes(set auth.ScopeSet) string {
	parts := make([]string, 0, len(set))
	for scope := range set {
		parts = append(parts, string(scope))
	}
	return strings.Join(parts, " ")
}

func decodeScopes(encoded string) auth.ScopeSet {
	set := auth.NewScopeSet()
	for _, part := range strings.Fields(encoded) {
		set.Add(auth.Scope(part))
	}
	return set
}

func encodeSkills(set auth.SkillSet) string {
	parts := make([]string, 0, len(set))
	for skill := range set {
		parts = append(parts, string(skill))
	}
	return strings.Join(parts, " ")
}

func decodeSkills(encoded string) auth.SkillSet {
	set := auth.NewSkillSet()
	for _, part := range strings.Fields(encoded) {
		set[auth.Skill(part)] = struct{}{}
	}
	return set
}

// Compile-time interface verification.
var _ oauthgw.Store = (*Store)(nil)
