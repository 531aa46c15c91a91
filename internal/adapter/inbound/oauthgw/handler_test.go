package oauthgw

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/sentry-mcp/gateway/internal/adapter/outbound/sentryapi"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	clients map[string]*Client
	grants  map[string]*Grant
	tokens  map[string]*Token
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clients: make(map[string]*Client),
		grants:  make(map[string]*Grant),
		tokens:  make(map[string]*Token),
	}
}

func (s *fakeStore) SaveClient(_ context.Context, client *Client) error {
	s.clients[client.ID] = client
	return nil
}

func (s *fakeStore) GetClient(_ context.Context, id string) (*Client, error) {
	client, ok := s.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return client, nil
}

func (s *fakeStore) SaveGrant(_ context.Context, grant *Grant) error {
	s.grants[grant.Code] = grant
	return nil
}

func (s *fakeStore) ConsumeGrant(_ context.Context, code string) (*Grant, error) {
	grant, ok := s.grants[code]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.grants, code)
	if time.Now().After(grant.ExpiresAt) {
		return nil, ErrNotFound
	}
	return grant, nil
}

func (s *fakeStore) SaveToken(_ context.Context, token *Token) error {
	s.tokens[token.Digest] = token
	return nil
}

func (s *fakeStore) GetToken(_ context.Context, digest string) (*Token, error) {
	token, ok := s.tokens[digest]
	if !ok {
		return nil, ErrNotFound
	}
	return token, nil
}

func (s *fakeStore) DeleteToken(_ context.Context, digest string) error {
	delete(s.tokens, digest)
	return nil
}

var _ Store = (*fakeStore)(nil)

func testHandler(store *fakeStore, opts ...Option) *Handler {
	cfg := Config{
		UpstreamHost:         "sentry.example.com",
		UpstreamClientID:     "gw-client",
		UpstreamClientSecret: "gw-secret",
		CookieSecret:         testSecret,
		PublicURL:            "https://mcp.example.com",
	}
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(discard{}, nil)))}, opts...)
	return NewHandler(cfg, store, opts...)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func registerClient(t *testing.T, store *fakeStore, id string) *Client {
	t.Helper()
	client := &Client{
		ID:           id,
		Name:         "Test IDE",
		RedirectURIs: []string{"https://ide.example.com/callback"},
	}
	if err := store.SaveClient(context.Background(), client); err != nil {
		t.Fatal(err)
	}
	return client
}

func approvalCookie(clientIDs ...string) *http.Cookie {
	return &http.Cookie{
		Name:  approvedClientsCookie,
		Value: signApprovedClients(testSecret, clientIDs),
	}
}

func TestAuthorize_UnknownClient(t *testing.T) {
	h := testHandler(newFakeStore())
	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?client_id=nope&redirect_uri=https://x/cb&response_type=code", nil)
	rec := httptest.NewRecorder()
	h.Authorize(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid request") {
		t.Errorf("body missing error title: %s", rec.Body.String())
	}
}

func TestAuthorize_UnregisteredRedirectURI(t *testing.T) {
	store := newFakeStore()
	registerClient(t, store, "ide-1")
	h := testHandler(store)

	q := url.Values{}
	q.Set("client_id", "ide-1")
	q.Set("redirect_uri", "https://evil.example.com/steal")
	q.Set("response_type", "code")
	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	h.Authorize(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid redirect URI") {
		t.Errorf("body missing error title: %s", rec.Body.String())
	}
}

func TestAuthorize_RendersApprovalDialog(t *testing.T) {
	store := newFakeStore()
	registerClient(t, store, "ide-1")
	h := testHandler(store)

	q := url.Values{}
	q.Set("client_id", "ide-1")
	q.Set("redirect_uri", "https://ide.example.com/callback")
	q.Set("response_type", "code")
	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	h.Authorize(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Test IDE", `value="issue_triage"`, `value="project_management"`, `name="state"`} {
		if !strings.Contains(body, want) {
			t.Errorf("dialog missing %q", want)
		}
	}
}

func TestAuthorize_PostRedirectsUpstream(t *testing.T) {
	store := newFakeStore()
	registerClient(t, store, "ide-1")
	h := testHandler(store)

	original := AuthRequest{
		ResponseType:  "code",
		ClientID:      "ide-1",
		RedirectURI:   "https://ide.example.com/callback",
		Scope:         "org:read event:write",
		State:         "client-state",
		CodeChallenge: "challenge",
	}
	form := url.Values{}
	form.Set("state", signFormState(testSecret, original))
	form.Add("permission", "issue_triage")
	form.Add("permission", "bogus")

	req := httptest.NewRequest(http.MethodPost, "/oauth/authorize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Authorize(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302: %s", rec.Code, rec.Body.String())
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if got := loc.Host; got != "sentry.example.com" {
		t.Errorf("redirect host = %q", got)
	}
	if got := loc.Query().Get("client_id"); got != "gw-client" {
		t.Errorf("upstream client_id = %q", got)
	}
	if got := loc.Query().Get("redirect_uri"); got != "https://mcp.example.com/oauth/callback" {
		t.Errorf("upstream redirect_uri = %q", got)
	}
	if scope := loc.Query().Get("scope"); !strings.Contains(scope, "event:write") || !strings.Contains(scope, "org:read") {
		t.Errorf("upstream scope = %q, want full scope set", scope)
	}

	st, err := decodeTransitState(loc.Query().Get("state"))
	if err != nil {
		t.Fatal(err)
	}
	if st.Request != original {
		t.Errorf("transit request = %+v, want %+v", st.Request, original)
	}
	if len(st.Permissions) != 1 || st.Permissions[0] != "issue_triage" {
		t.Errorf("transit permissions = %v, want [issue_triage]", st.Permissions)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == approvedClientsCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("approval cookie not set")
	}
	if ids := parseApprovedClients(testSecret, cookie.Value); len(ids) != 1 || ids[0] != "ide-1" {
		t.Errorf("approved clients = %v", ids)
	}
}

func TestAuthorize_ApprovedClientSkipsDialog(t *testing.T) {
	store := newFakeStore()
	registerClient(t, store, "ide-1")
	h := testHandler(store)

	q := url.Values{}
	q.Set("client_id", "ide-1")
	q.Set("redirect_uri", "https://ide.example.com/callback")
	q.Set("response_type", "code")
	q.Set("scope", "org:read project:write")
	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil)
	req.AddCookie(approvalCookie("ide-1"))
	rec := httptest.NewRecorder()
	h.Authorize(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302: %s", rec.Code, rec.Body.String())
	}
	loc, _ := url.Parse(rec.Header().Get("Location"))
	st, err := decodeTransitState(loc.Query().Get("state"))
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Permissions) != 1 || st.Permissions[0] != "project_management" {
		t.Errorf("permissions = %v, want [project_management] from project:write", st.Permissions)
	}
}

func TestCallback_CookieBoundToStateClient(t *testing.T) {
	store := newFakeStore()
	registerClient(t, store, "ide-a")
	clientB := &Client{ID: "ide-b", RedirectURIs: []string{"https://other.example.com/cb"}}
	_ = store.SaveClient(context.Background(), clientB)
	h := testHandler(store)

	state := encodeTransitState(transitState{
		Request: AuthRequest{ClientID: "ide-b", RedirectURI: "https://other.example.com/cb"},
	})
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc&state="+url.QueryEscape(state), nil)
	req.AddCookie(approvalCookie("ide-a"))
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Client not approved") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCallback_InvalidState(t *testing.T) {
	h := testHandler(newFakeStore())
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=abc&state=%25%25not-base64", nil)
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid state") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

// roundTripperFunc adapts a function to http.RoundTripper.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestCallback_HappyPath(t *testing.T) {
	store := newFakeStore()
	registerClient(t, store, "ide-1")

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token/" {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		if got := r.PostFormValue("code"); got != "upstream-code" {
			t.Errorf("exchange code = %q", got)
		}
		if got := r.PostFormValue("client_id"); got != "gw-client" {
			t.Errorf("exchange client_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "sntrys_upstream"}`))
	}))
	defer upstream.Close()

	userTransport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		rec := httptest.NewRecorder()
		rec.Header().Set("Content-Type", "application/json")
		rec.WriteString(`{"id": "12345", "name": "Jane Doe", "email": "jane@example.com"}`)
		return rec.Result(), nil
	})

	h := testHandler(store,
		WithUpstreamBaseURL(upstream.URL),
		WithClientFactory(func(accessToken, host string) *sentryapi.Client {
			if accessToken != "sntrys_upstream" {
				t.Errorf("user lookup token = %q", accessToken)
			}
			return sentryapi.NewClient(accessToken, host, sentryapi.WithHTTPClient(&http.Client{Transport: userTransport}))
		}),
	)

	state := encodeTransitState(transitState{
		Request: AuthRequest{
			ClientID:      "ide-1",
			RedirectURI:   "https://ide.example.com/callback",
			Scope:         "org:read",
			State:         "client-state",
			CodeChallenge: "chal",
		},
		Permissions: []string{"issue_triage"},
	})
	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=upstream-code&state="+url.QueryEscape(state), nil)
	req.AddCookie(approvalCookie("ide-1"))
	rec := httptest.NewRecorder()
	h.Callback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302: %s", rec.Code, rec.Body.String())
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if got := loc.Scheme + "://" + loc.Host + loc.Path; got != "https://ide.example.com/callback" {
		t.Errorf("redirect target = %q", got)
	}
	if got := loc.Query().Get("state"); got != "client-state" {
		t.Errorf("client state = %q", got)
	}
	code := loc.Query().Get("code")
	if !strings.HasPrefix(code, "mcpac_") {
		t.Fatalf("code = %q, want mcpac_ prefix", code)
	}

	grant, err := store.ConsumeGrant(context.Background(), code)
	if err != nil {
		t.Fatal(err)
	}
	if grant.UserID != "12345" || grant.UserName != "Jane Doe" {
		t.Errorf("grant user = %q/%q", grant.UserID, grant.UserName)
	}
	if grant.UpstreamToken != "sntrys_upstream" {
		t.Errorf("grant upstream token = %q", grant.UpstreamToken)
	}
	if grant.CodeChallenge != "chal" {
		t.Errorf("grant challenge = %q", grant.CodeChallenge)
	}
	if len(grant.Permissions) != 1 || grant.Permissions[0] != "issue_triage" {
		t.Errorf("grant permissions = %v", grant.Permissions)
	}
}

func seedGrant(store *fakeStore, grant *Grant) {
	if grant.ExpiresAt.IsZero() {
		grant.ExpiresAt = time.Now().Add(time.Minute)
	}
	store.grants[grant.Code] = grant
}

func postToken(h *Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Token(rec, req)
	return rec
}

func TestToken_PKCEFlow(t *testing.T) {
	store := newFakeStore()
	registerClient(t, store, "ide-1")
	h := testHandler(store)

	verifier := "some-long-code-verifier-string-0123456789"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	seedGrant(store, &Grant{
		Code:                "mcpac_test",
		ClientID:            "ide-1",
		UserID:              "12345",
		UserName:            "Jane Doe",
		RedirectURI:         "https://ide.example.com/callback",
		Scope:               "org:read",
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
		Permissions:         []string{"issue_triage"},
		UpstreamToken:       "sntrys_upstream",
	})

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", "mcpac_test")
	form.Set("client_id", "ide-1")
	form.Set("redirect_uri", "https://ide.example.com/callback")
	form.Set("code_verifier", verifier)

	rec := postToken(h, form)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.AccessToken, "mcpat_") {
		t.Errorf("access_token = %q, want mcpat_ prefix", resp.AccessToken)
	}
	if resp.TokenType != "bearer" {
		t.Errorf("token_type = %q", resp.TokenType)
	}

	token, err := store.GetToken(context.Background(), TokenDigest(resp.AccessToken))
	if err != nil {
		t.Fatal(err)
	}
	if token.UserID != "12345" || token.UpstreamToken != "sntrys_upstream" {
		t.Errorf("token = %+v", token)
	}
	if !token.GrantedScopes.Has(auth.ScopeEventWrite) {
		t.Error("issue_triage permission must grant event:write")
	}
	if token.GrantedScopes.Has(auth.ScopeProjectWrite) {
		t.Error("project:write must not be granted without project_management")
	}
	if !token.GrantedSkills.Has(auth.SkillTriage) || !token.GrantedSkills.Has(auth.SkillInspect) {
		t.Errorf("skills = %v", token.GrantedSkills)
	}

	// The code is one-shot.
	rec = postToken(h, form)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid_grant") {
		t.Errorf("replay: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestToken_WrongVerifier(t *testing.T) {
	store := newFakeStore()
	registerClient(t, store, "ide-1")
	h := testHandler(store)

	seedGrant(store, &Grant{
		Code:                "mcpac_test",
		ClientID:            "ide-1",
		RedirectURI:         "https://ide.example.com/callback",
		CodeChallenge:       "expected-challenge",
		CodeChallengeMethod: "S256",
	})

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", "mcpac_test")
	form.Set("client_id", "ide-1")
	form.Set("code_verifier", "wrong")

	rec := postToken(h, form)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "invalid_client") {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestToken_ClientSecret(t *testing.T) {
	store := newFakeStore()
	hash, err := argon2id.CreateHash("s3cret", argon2id.DefaultParams)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.SaveClient(context.Background(), &Client{
		ID:           "ide-1",
		RedirectURIs: []string{"https://ide.example.com/callback"},
		SecretHash:   hash,
	})
	h := testHandler(store)

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", "mcpac_test")
	form.Set("client_id", "ide-1")
	form.Set("client_secret", "wrong")

	seedGrant(store, &Grant{Code: "mcpac_test", ClientID: "ide-1"})
	rec := postToken(h, form)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: status = %d: %s", rec.Code, rec.Body.String())
	}

	seedGrant(store, &Grant{Code: "mcpac_test", ClientID: "ide-1"})
	form.Set("client_secret", "s3cret")
	rec = postToken(h, form)
	if rec.Code != http.StatusOK {
		t.Fatalf("right secret: status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestToken_ClientMismatch(t *testing.T) {
	store := newFakeStore()
	registerClient(t, store, "ide-1")
	registerClient(t, store, "ide-2")
	h := testHandler(store)

	seedGrant(store, &Grant{Code: "mcpac_test", ClientID: "ide-1", CodeChallenge: "c"})

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", "mcpac_test")
	form.Set("client_id", "ide-2")
	form.Set("code_verifier", "v")

	rec := postToken(h, form)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid_grant") {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRegister(t *testing.T) {
	store := newFakeStore()
	h := testHandler(store)

	body := `{"redirect_uris": ["https://ide.example.com/callback"], "client_name": "Test IDE"}`
	req := httptest.NewRequest(http.MethodPost, "/oauth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp registrationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ClientID == "" {
		t.Error("client_id missing")
	}
	if !strings.HasPrefix(resp.ClientSecret, "mcpcs_") {
		t.Errorf("client_secret = %q, want mcpcs_ prefix", resp.ClientSecret)
	}

	client, err := store.GetClient(context.Background(), resp.ClientID)
	if err != nil {
		t.Fatal(err)
	}
	match, err := argon2id.ComparePasswordAndHash(resp.ClientSecret, client.SecretHash)
	if err != nil || !match {
		t.Error("stored hash does not verify the issued secret")
	}
}

func TestRegister_PublicClient(t *testing.T) {
	store := newFakeStore()
	h := testHandler(store)

	body := `{"redirect_uris": ["http://localhost:8123/callback"], "token_endpoint_auth_method": "none"}`
	req := httptest.NewRequest(http.MethodPost, "/oauth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp registrationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ClientSecret != "" {
		t.Error("public client must not receive a secret")
	}
	client, _ := store.GetClient(context.Background(), resp.ClientID)
	if client.SecretHash != "" {
		t.Error("public client must not store a secret hash")
	}
}

func TestRegister_RejectsPlainHTTPRedirect(t *testing.T) {
	h := testHandler(newFakeStore())

	body := `{"redirect_uris": ["http://ide.example.com/callback"]}`
	req := httptest.NewRequest(http.MethodPost, "/oauth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid_redirect_uri") {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
