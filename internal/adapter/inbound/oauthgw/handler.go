package oauthgw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sentry-mcp/gateway/internal/adapter/outbound/sentryapi"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
)

// Lifetimes of the artifacts this handler issues.
const (
	grantTTL = 10 * time.Minute
	tokenTTL = 8 * time.Hour
)

// Config carries the handler's deployment settings.
type Config struct {
	// UpstreamHost is the upstream's hostname (never a URL).
	UpstreamHost string
	// UpstreamClientID and UpstreamClientSecret identify this gateway to
	// the upstream's OAuth server.
	UpstreamClientID     string
	UpstreamClientSecret string
	// CookieSecret signs the approval cookie and the dialog form state.
	CookieSecret []byte
	// PublicURL is the fixed external origin of the gateway. When empty
	// the origin is derived from each request.
	PublicURL string
}

// Handler implements the federated OAuth endpoints: authorize (with the
// approval dialog), the upstream callback, token issuance and dynamic
// client registration.
type Handler struct {
	cfg   Config
	store Store

	// upstreamBase is "https://{UpstreamHost}" in production; tests point
	// it at a local server.
	upstreamBase string
	httpClient   *http.Client
	newClient    func(accessToken, host string) *sentryapi.Client
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithUpstreamBaseURL overrides the upstream base URL. Tests only.
func WithUpstreamBaseURL(base string) Option {
	return func(h *Handler) { h.upstreamBase = strings.TrimRight(base, "/") }
}

// WithHTTPClient overrides the client used for the token exchange.
func WithHTTPClient(hc *http.Client) Option {
	return func(h *Handler) { h.httpClient = hc }
}

// WithClientFactory overrides how the upstream API client is built.
func WithClientFactory(factory func(accessToken, host string) *sentryapi.Client) Option {
	return func(h *Handler) { h.newClient = factory }
}

// WithLogger sets the handler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler creates the OAuth gateway handler.
func NewHandler(cfg Config, store Store, opts ...Option) *Handler {
	h := &Handler{
		cfg:          cfg,
		store:        store,
		upstreamBase: "https://" + cfg.UpstreamHost,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		newClient: func(accessToken, host string) *sentryapi.Client {
			return sentryapi.NewClient(accessToken, host)
		},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// origin returns the gateway's external origin for the given request.
func (h *Handler) origin(r *http.Request) string {
	if h.cfg.PublicURL != "" {
		return strings.TrimRight(h.cfg.PublicURL, "/")
	}
	scheme := "https"
	if r.TLS == nil {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else if strings.HasPrefix(r.Host, "localhost") || strings.HasPrefix(r.Host, "127.0.0.1") {
			scheme = "http"
		}
	}
	return scheme + "://" + r.Host
}

// Authorize serves GET (approval dialog or upstream redirect) and POST
// (dialog submission) on /oauth/authorize.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.authorizeGet(w, r)
	case http.MethodPost:
		h.authorizePost(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		htmlError(w, http.StatusMethodNotAllowed, "Method not allowed", "Use GET or POST.")
	}
}

func (h *Handler) authorizeGet(w http.ResponseWriter, r *http.Request) {
	req := parseAuthRequest(r.URL.Query())
	client, err := h.store.GetClient(r.Context(), req.ClientID)
	if err != nil {
		htmlError(w, http.StatusBadRequest, "Invalid request", "Unknown OAuth client.")
		return
	}
	if req.RedirectURI == "" || !client.RedirectURIAllowed(req.RedirectURI) {
		htmlError(w, http.StatusBadRequest, "Invalid redirect URI", "The redirect_uri is not registered for this client.")
		return
	}
	if req.ResponseType != "code" {
		htmlError(w, http.StatusBadRequest, "Invalid request", "Only the authorization code flow is supported.")
		return
	}

	if clientApproved(r, h.cfg.CookieSecret, client.ID) {
		// Dialog already answered in this browser; re-derive the
		// permissions from the requested scope.
		h.redirectUpstream(w, r, req, permissionsFromScope(req.Scope))
		return
	}
	h.renderApprovalPage(w, client, req)
}

func (h *Handler) authorizePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		htmlError(w, http.StatusBadRequest, "Invalid request", "Malformed form submission.")
		return
	}
	req, err := parseFormState(h.cfg.CookieSecret, r.PostFormValue("state"))
	if err != nil {
		htmlError(w, http.StatusBadRequest, "Invalid request", "The authorization state is missing or invalid.")
		return
	}

	permissions := filterPermissions(r.PostForm["permission"])
	setApprovedClientCookie(w, r, h.cfg.CookieSecret, req.ClientID)
	h.redirectUpstream(w, r, *req, permissions)
}

// redirectUpstream sends the browser to the upstream's authorize endpoint
// with the original request folded into the opaque state parameter. The
// upstream is always asked for the full scope set; what the MCP client
// receives is narrowed by the approved permissions at token time.
func (h *Handler) redirectUpstream(w http.ResponseWriter, r *http.Request, req AuthRequest, permissions []string) {
	q := url.Values{}
	q.Set("client_id", h.cfg.UpstreamClientID)
	q.Set("redirect_uri", h.origin(r)+"/oauth/callback")
	q.Set("response_type", "code")
	q.Set("scope", upstreamScope())
	q.Set("state", encodeTransitState(transitState{Request: req, Permissions: permissions}))
	http.Redirect(w, r, h.upstreamBase+"/oauth/authorize/?"+q.Encode(), http.StatusFound)
}

// Callback completes the federation: it exchanges the upstream code,
// resolves the authenticated user, issues the one-time grant and sends
// the browser back to the MCP client.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st, err := decodeTransitState(q.Get("state"))
	if err != nil {
		htmlError(w, http.StatusBadRequest, "Invalid state", "The state parameter did not survive the round trip.")
		return
	}

	if st.Request.RedirectURI == "" {
		htmlError(w, http.StatusBadRequest, "No redirect URL", "The original request carried no redirect_uri.")
		return
	}
	client, err := h.store.GetClient(r.Context(), st.Request.ClientID)
	if err != nil || !client.RedirectURIAllowed(st.Request.RedirectURI) {
		htmlError(w, http.StatusBadRequest, "Invalid redirect URL", "The redirect_uri is not registered for this client.")
		return
	}

	// The cookie must name the client in the state: an approval for
	// client A is never trusted for client B.
	if !clientApproved(r, h.cfg.CookieSecret, st.Request.ClientID) {
		htmlError(w, http.StatusForbidden, "Authorization failed", "Client not approved")
		return
	}

	if upstreamErr := q.Get("error"); upstreamErr != "" {
		htmlError(w, http.StatusBadRequest, "Authorization failed", "The upstream denied the request: "+upstreamErr)
		return
	}
	code := q.Get("code")
	if code == "" {
		htmlError(w, http.StatusBadRequest, "Invalid request", "Missing authorization code.")
		return
	}

	accessToken, err := h.exchangeCode(r.Context(), code, h.origin(r)+"/oauth/callback")
	if err != nil {
		h.logger.Error("upstream token exchange failed", "error", err)
		htmlError(w, http.StatusBadGateway, "Authorization failed", "Could not exchange the authorization code with the upstream.")
		return
	}

	user, err := h.newClient(accessToken, h.cfg.UpstreamHost).GetAuthenticatedUser(r.Context())
	if err != nil {
		h.logger.Error("fetching authenticated user failed", "error", err)
		htmlError(w, http.StatusBadGateway, "Authorization failed", "Could not resolve the authenticated user.")
		return
	}

	grant := &Grant{
		Code:                newRandomToken("mcpac"),
		ClientID:            st.Request.ClientID,
		UserID:              user.ID,
		UserName:            user.Name,
		RedirectURI:         st.Request.RedirectURI,
		Scope:               st.Request.Scope,
		CodeChallenge:       st.Request.CodeChallenge,
		CodeChallengeMethod: st.Request.CodeChallengeMethod,
		Permissions:         st.Permissions,
		UpstreamToken:       accessToken,
		ExpiresAt:           h.now().Add(grantTTL),
	}
	if err := h.store.SaveGrant(r.Context(), grant); err != nil {
		h.logger.Error("saving grant failed", "error", err)
		htmlError(w, http.StatusInternalServerError, "Authorization failed", "Could not persist the authorization.")
		return
	}

	http.Redirect(w, r, redirectWithCode(st.Request.RedirectURI, grant.Code, st.Request.State), http.StatusFound)
}

// redirectWithCode appends code and state to the client's redirect URI,
// preserving any query it already carries.
func redirectWithCode(redirectURI, code, state string) string {
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	q := url.Values{}
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	return redirectURI + sep + q.Encode()
}

// exchangeCode swaps the upstream authorization code for an access token.
func (h *Handler) exchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", h.cfg.UpstreamClientID)
	form.Set("client_secret", h.cfg.UpstreamClientSecret)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.upstreamBase+"/oauth/token/", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading token exchange response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("token exchange returned %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("parsing token exchange response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token exchange response carried no access_token")
	}
	return payload.AccessToken, nil
}

// permissionsFromScope re-derives the approval permissions from a scope
// string. Used when a previously approved client skips the dialog.
func permissionsFromScope(scope string) []string {
	var permissions []string
	fields := strings.Fields(scope)
	for _, f := range fields {
		switch f {
		case string(auth.ScopeEventWrite):
			permissions = append(permissions, auth.PermissionIssueTriage)
		case string(auth.ScopeProjectWrite), string(auth.ScopeTeamWrite):
			permissions = append(permissions, auth.PermissionProjectManagement)
		}
	}
	return filterPermissions(permissions)
}

// filterPermissions keeps only known permission names, deduplicated.
func filterPermissions(raw []string) []string {
	seen := make(map[string]struct{}, 2)
	var permissions []string
	for _, p := range raw {
		if p != auth.PermissionIssueTriage && p != auth.PermissionProjectManagement {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		permissions = append(permissions, p)
	}
	return permissions
}

// upstreamScope returns every declared upstream scope, space separated.
func upstreamScope() string {
	scopes := auth.AllScopes()
	parts := make([]string, len(scopes))
	for i, s := range scopes {
		parts[i] = string(s)
	}
	return strings.Join(parts, " ")
}

// newRandomToken returns a prefixed 256-bit random token.
func newRandomToken(prefix string) string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return prefix + "_" + hex.EncodeToString(buf)
}

// htmlError renders a minimal browser-facing error page.
func htmlError(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = errorPageTemplate.Execute(w, map[string]string{"Title": title, "Message": message})
}

var errorPageTemplate = template.Must(template.New("error").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))
