// Package oauthgw implements the thin OAuth 2.1 federation layer: the
// gateway is the authorization server the MCP client talks to, while the
// actual user authentication is delegated to the upstream's OAuth server.
package oauthgw

import (
	"context"
	"errors"
	"time"

	"github.com/sentry-mcp/gateway/internal/domain/auth"
)

// ErrNotFound is returned by stores for unknown clients, grants, tokens.
var ErrNotFound = errors.New("oauth: not found")

// Client is a registered MCP OAuth client.
type Client struct {
	ID           string
	Name         string
	RedirectURIs []string
	// SecretHash is the argon2id hash of the client secret. Empty for
	// public clients, which must use PKCE.
	SecretHash string
	CreatedAt  time.Time
}

// RedirectURIAllowed reports whether uri is one of the registered
// redirect URIs. Exact string match, per OAuth 2.1.
func (c *Client) RedirectURIAllowed(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// Grant is a one-time authorization code issued after the upstream
// callback completes.
type Grant struct {
	Code                string
	ClientID            string
	UserID              string
	RedirectURI         string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	Permissions         []string
	// UpstreamToken is the upstream access token obtained in the callback.
	UpstreamToken string
	UserName      string
	ExpiresAt     time.Time
}

// Token binds an MCP access token to the upstream credentials and grants.
// The raw token never touches storage; Digest is its SHA-256.
type Token struct {
	Digest        string
	UserID        string
	UserName      string
	ClientID      string
	UpstreamToken string
	GrantedScopes auth.ScopeSet
	GrantedSkills auth.SkillSet
	ExpiresAt     time.Time
}

// Store persists OAuth state. Implementations: sqlitestore (durable) and
// memory (tests, single-node dev).
type Store interface {
	SaveClient(ctx context.Context, client *Client) error
	GetClient(ctx context.Context, id string) (*Client, error)

	SaveGrant(ctx context.Context, grant *Grant) error
	// ConsumeGrant returns and atomically deletes the grant. A second
	// consume of the same code returns ErrNotFound.
	ConsumeGrant(ctx context.Context, code string) (*Grant, error)

	SaveToken(ctx context.Context, token *Token) error
	GetToken(ctx context.Context, digest string) (*Token, error)
	DeleteToken(ctx context.Context, digest string) error
}
