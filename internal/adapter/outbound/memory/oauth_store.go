// Package memory provides in-memory implementations of the outbound
// ports: OAuth storage, the constraints cache and the rate limiter.
// Single-node development and tests only; nothing survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sentry-mcp/gateway/internal/adapter/inbound/oauthgw"
)

// OAuthStore implements oauthgw.Store with mutex-guarded maps.
type OAuthStore struct {
	mu      sync.Mutex
	clients map[string]*oauthgw.Client
	grants  map[string]*oauthgw.Grant
	tokens  map[string]*oauthgw.Token
	now     func() time.Time
}

// NewOAuthStore creates an empty in-memory OAuth store.
func NewOAuthStore() *OAuthStore {
	return &OAuthStore{
		clients: make(map[string]*oauthgw.Client),
		grants:  make(map[string]*oauthgw.Grant),
		tokens:  make(map[string]*oauthgw.Token),
		now:     time.Now,
	}
}

// SaveClient stores or replaces a registered client.
func (s *OAuthStore) SaveClient(ctx context.Context, client *oauthgw.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *client
	clone.RedirectURIs = append([]string(nil), client.RedirectURIs...)
	s.clients[client.ID] = &clone
	return nil
}

// GetClient returns a registered client by ID.
func (s *OAuthStore) GetClient(ctx context.Context, id string) (*oauthgw.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[id]
	if !ok {
		return nil, oauthgw.ErrNotFound
	}
	clone := *client
	clone.RedirectURIs = append([]string(nil), client.RedirectURIs...)
	return &clone, nil
}

// SaveGrant stores a one-time authorization code.
func (s *OAuthStore) SaveGrant(ctx context.Context, grant *oauthgw.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *grant
	clone.Permissions = append([]string(nil), grant.Permissions...)
	s.grants[grant.Code] = &clone
	return nil
}

// ConsumeGrant returns and atomically deletes the grant. Expired or
// already-consumed codes report ErrNotFound.
func (s *OAuthStore) ConsumeGrant(ctx context.Context, code string) (*oauthgw.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[code]
	if !ok {
		return nil, oauthgw.ErrNotFound
	}
	delete(s.grants, code)
	if !grant.ExpiresAt.IsZero() && s.now().After(grant.ExpiresAt) {
		return nil, oauthgw.ErrNotFound
	}
	return grant, nil
}

// SaveToken stores an issued MCP token by digest.
func (s *OAuthStore) SaveToken(ctx context.Context, token *oauthgw.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *token
	clone.GrantedScopes = token.GrantedScopes.Clone()
	clone.GrantedSkills = token.GrantedSkills.Clone()
	s.tokens[token.Digest] = &clone
	return nil
}

// GetToken returns an issued token by digest. Expired tokens report
// ErrNotFound.
func (s *OAuthStore) GetToken(ctx context.Context, digest string) (*oauthgw.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[digest]
	if !ok {
		return nil, oauthgw.ErrNotFound
	}
	if !token.ExpiresAt.IsZero() && s.now().After(token.ExpiresAt) {
		delete(s.tokens, digest)
		return nil, oauthgw.ErrNotFound
	}
	clone := *token
	clone.GrantedScopes = token.GrantedScopes.Clone()
	clone.GrantedSkills = token.GrantedSkills.Clone()
	return &clone, nil
}

// DeleteToken removes an issued token. Deleting an unknown digest is not
// an error.
func (s *OAuthStore) DeleteToken(ctx context.Context, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, digest)
	return nil
}

// Compile-time interface verification.
var _ oauthgw.Store = (*OAuthStore)(nil)
