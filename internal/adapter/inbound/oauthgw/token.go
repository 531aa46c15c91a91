package oauthgw

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/sentry-mcp/gateway/internal/domain/auth"
)

// TokenDigest returns the SHA-256 hex digest of a raw MCP access token.
// Only digests are stored and looked up; the raw token exists in the
// client and in flight.
func TokenDigest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// tokenResponse is the /oauth/token success payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// Token issues MCP access tokens for consumed grants on POST /oauth/token.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		oauthError(w, http.StatusMethodNotAllowed, "invalid_request", "Use POST.")
		return
	}
	if err := r.ParseForm(); err != nil {
		oauthError(w, http.StatusBadRequest, "invalid_request", "Malformed form body.")
		return
	}
	if grantType := r.PostFormValue("grant_type"); grantType != "authorization_code" {
		oauthError(w, http.StatusBadRequest, "unsupported_grant_type", "Only authorization_code is supported.")
		return
	}

	clientID, clientSecret := clientCredentials(r)
	if clientID == "" {
		oauthError(w, http.StatusBadRequest, "invalid_request", "Missing client_id.")
		return
	}
	client, err := h.store.GetClient(r.Context(), clientID)
	if err != nil {
		oauthError(w, http.StatusUnauthorized, "invalid_client", "Unknown client.")
		return
	}

	grant, err := h.store.ConsumeGrant(r.Context(), r.PostFormValue("code"))
	if err != nil {
		oauthError(w, http.StatusBadRequest, "invalid_grant", "Authorization code is invalid or expired.")
		return
	}
	if grant.ClientID != clientID {
		oauthError(w, http.StatusBadRequest, "invalid_grant", "Authorization code was issued to another client.")
		return
	}
	if redirectURI := r.PostFormValue("redirect_uri"); redirectURI != "" && redirectURI != grant.RedirectURI {
		oauthError(w, http.StatusBadRequest, "invalid_grant", "redirect_uri does not match the authorization request.")
		return
	}

	if err := h.authenticateTokenRequest(client, grant, clientSecret, r.PostFormValue("code_verifier")); err != nil {
		oauthError(w, http.StatusUnauthorized, "invalid_client", err.Error())
		return
	}

	raw := newRandomToken("mcpat")
	token := &Token{
		Digest:        TokenDigest(raw),
		UserID:        grant.UserID,
		UserName:      grant.UserName,
		ClientID:      grant.ClientID,
		UpstreamToken: grant.UpstreamToken,
		GrantedScopes: auth.ScopesFromPermissions(grant.Permissions),
		GrantedSkills: auth.SkillsFromPermissions(grant.Permissions),
		ExpiresAt:     h.now().Add(tokenTTL),
	}
	if err := h.store.SaveToken(r.Context(), token); err != nil {
		h.logger.Error("saving token failed", "error", err)
		oauthError(w, http.StatusInternalServerError, "server_error", "Could not persist the token.")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: raw,
		TokenType:   "bearer",
		ExpiresIn:   int64(tokenTTL.Seconds()),
		Scope:       grant.Scope,
	})
}

// authenticateTokenRequest verifies the client either by PKCE (when the
// grant carries a challenge) or by its secret. Public clients must use
// PKCE.
func (h *Handler) authenticateTokenRequest(client *Client, grant *Grant, clientSecret, codeVerifier string) error {
	if grant.CodeChallenge != "" {
		if !verifyPKCE(grant.CodeChallenge, grant.CodeChallengeMethod, codeVerifier) {
			return errPKCE
		}
		return nil
	}
	if client.SecretHash == "" {
		return errPublicWithoutPKCE
	}
	match, err := argon2id.ComparePasswordAndHash(clientSecret, client.SecretHash)
	if err != nil || !match {
		return errBadSecret
	}
	return nil
}

var (
	errPKCE              = oauthAuthError("PKCE verification failed.")
	errPublicWithoutPKCE = oauthAuthError("Public clients must use PKCE.")
	errBadSecret         = oauthAuthError("Client authentication failed.")
)

type oauthAuthError string

func (e oauthAuthError) Error() string { return string(e) }

// verifyPKCE checks a code verifier against the challenge recorded at
// authorization time. S256 per RFC 7636; "plain" is accepted for parity
// with the upstream.
func verifyPKCE(challenge, method, verifier string) bool {
	if verifier == "" {
		return false
	}
	switch method {
	case "", "S256":
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
	case "plain":
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	default:
		return false
	}
}

// clientCredentials reads the client id and secret from the form body or
// HTTP basic auth.
func clientCredentials(r *http.Request) (id, secret string) {
	if user, pass, ok := r.BasicAuth(); ok {
		return user, pass
	}
	return r.PostFormValue("client_id"), r.PostFormValue("client_secret")
}

// registrationRequest is the RFC 7591 dynamic registration payload.
type registrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

// registrationResponse is the RFC 7591 registration result.
type registrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

// Register handles dynamic client registration on POST /oauth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		oauthError(w, http.StatusMethodNotAllowed, "invalid_request", "Use POST.")
		return
	}

	var req registrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		oauthError(w, http.StatusBadRequest, "invalid_client_metadata", "Body is not valid JSON.")
		return
	}
	if len(req.RedirectURIs) == 0 {
		oauthError(w, http.StatusBadRequest, "invalid_redirect_uri", "At least one redirect_uri is required.")
		return
	}
	for _, uri := range req.RedirectURIs {
		if !validRedirectURI(uri) {
			oauthError(w, http.StatusBadRequest, "invalid_redirect_uri", "redirect_uri must be HTTPS, or HTTP on localhost: "+uri)
			return
		}
	}

	authMethod := req.TokenEndpointAuthMethod
	if authMethod == "" {
		authMethod = "client_secret_post"
	}

	client := &Client{
		ID:           uuid.NewString(),
		Name:         req.ClientName,
		RedirectURIs: req.RedirectURIs,
		CreatedAt:    h.now().UTC(),
	}

	var secret string
	if authMethod != "none" {
		secret = newRandomToken("mcpcs")
		hash, err := argon2id.CreateHash(secret, argon2id.DefaultParams)
		if err != nil {
			h.logger.Error("hashing client secret failed", "error", err)
			oauthError(w, http.StatusInternalServerError, "server_error", "Could not register the client.")
			return
		}
		client.SecretHash = hash
	}

	if err := h.store.SaveClient(r.Context(), client); err != nil {
		h.logger.Error("saving client failed", "error", err)
		oauthError(w, http.StatusInternalServerError, "server_error", "Could not register the client.")
		return
	}

	writeJSON(w, http.StatusCreated, registrationResponse{
		ClientID:                client.ID,
		ClientSecret:            secret,
		ClientName:              client.Name,
		RedirectURIs:            client.RedirectURIs,
		TokenEndpointAuthMethod: authMethod,
	})
}

// validRedirectURI accepts absolute HTTPS URIs, HTTP on loopback hosts,
// and custom schemes for native clients.
func validRedirectURI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return false
	}
	switch u.Scheme {
	case "https":
		return u.Host != ""
	case "http":
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1" || host == "::1"
	default:
		// Native-app custom scheme (e.g. cursor://callback).
		return !strings.Contains(u.Scheme, "/")
	}
}

// oauthError writes an RFC 6749 error response.
func oauthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
