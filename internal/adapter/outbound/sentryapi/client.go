// Package sentryapi is the outbound adapter for the upstream error-tracking
// REST API. It is a typed façade resilient to DNS/TCP failures and to
// servers that return HTML where JSON is expected.
package sentryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
)

// maxResponseBodySize caps how much of a response body is read (20 MB,
// attachments included).
const maxResponseBodySize = 20 << 20

// DefaultHost is the SaaS API host used when no host is configured.
const DefaultHost = "sentry.io"

// userAgent identifies the gateway to the upstream.
const userAgent = "sentry-mcp-gateway/1.0"

// Client is a typed client for the upstream REST API. One Client is
// constructed per request; it is cheap and must not be shared across
// requests because WithHost retargets the mutable host.
type Client struct {
	host        string
	accessToken string
	httpClient  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Used by tests to
// intercept transport-level behavior.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the given host. The access token may be
// empty for unauthenticated calls. Host is a hostname, never a URL.
func NewClient(accessToken, host string, opts ...Option) *Client {
	if host == "" {
		host = DefaultHost
	}
	c := &Client{
		host:        host,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHost returns a copy of the client retargeted at another host.
// Used to direct calls at a region-specific host discovered at runtime.
func (c *Client) WithHost(host string) *Client {
	clone := *c
	clone.host = host
	return &clone
}

// WithRegionURL returns a copy of the client retargeted at the host of the
// given region URL. Invalid or empty URLs leave the client unchanged.
func (c *Client) WithRegionURL(regionURL string) *Client {
	if regionURL == "" {
		return c
	}
	u, err := url.Parse(regionURL)
	if err != nil || u.Host == "" {
		return c
	}
	return c.WithHost(u.Host)
}

// Host returns the host this client targets.
func (c *Client) Host() string { return c.host }

// IsSaaSHost reports whether host is the hosted service or one of its
// regional hosts.
func IsSaaSHost(host string) bool {
	return host == "sentry.io" || strings.HasSuffix(host, ".sentry.io")
}

// apiURL builds the absolute API URL for a path. Protocol is always HTTPS.
func (c *Client) apiURL(path string, query url.Values) string {
	u := "https://" + c.host + "/api/0" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// get performs a GET request and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// post performs a POST request with a JSON body and decodes the response.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// put performs a PUT request with a JSON body and decodes the response.
func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

// do performs an HTTP request against the API and decodes the JSON
// response into out (when out is non-nil). Every JSON operation validates
// the response content type before parsing and maps transport failures to
// the configuration-error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	requestURL := c.apiURL(path, query)

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body for %s: %w", requestURL, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", requestURL, err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportError(err, requestURL, c.host)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return mapTransportError(err, requestURL, c.host)
	}

	if msg := checkJSONContentType(resp, raw); msg != "" {
		return errors.New(msg)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		// Schema mismatch on a 2xx response is an internal error, distinct
		// from an upstream API error.
		return fmt.Errorf("parsing response from %s: %w", requestURL, err)
	}
	return nil
}

// doRaw performs a GET request and returns the raw body bytes without any
// content-type validation. Used for binary downloads such as attachments.
func (c *Client) doRaw(ctx context.Context, path string, query url.Values) ([]byte, string, error) {
	requestURL := c.apiURL(path, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request for %s: %w", requestURL, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", mapTransportError(err, requestURL, c.host)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", apiError(resp)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, "", mapTransportError(err, requestURL, c.host)
	}
	return raw, resp.Header.Get("Content-Type"), nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// checkJSONContentType verifies the response declares a JSON media type.
// Returns an error message when it does not; empty string when JSON.
func checkJSONContentType(resp *http.Response, body []byte) string {
	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil && (mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")) {
		return ""
	}

	status := fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if looksLikeHTML(body) {
		return fmt.Sprintf(
			"Expected JSON response but received HTML (%s). This may indicate you're not authenticated, the URL is incorrect, or there's a server issue.",
			status)
	}
	label := contentType
	if label == "" {
		label = "unknown content type"
	}
	return fmt.Sprintf("Expected JSON response but received %s (%s)", label, status)
}

// looksLikeHTML reports whether the body starts with an HTML doctype or tag.
func looksLikeHTML(body []byte) bool {
	trimmed := strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 512)])))
	return strings.HasPrefix(trimmed, "<!doctype") || strings.HasPrefix(trimmed, "<html")
}

// multiProjectMessage replaces upstream messages about the multi project
// stream feature with actionable guidance.
const multiProjectMessage = "You do not have access to query across multiple projects. Please select a project for your query."

// apiError converts a non-2xx response into an error. Bodies matching
// {"detail": "..."} become APIError; HTML bodies and everything else
// become generic errors.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	status := fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))

	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		detail := payload.Detail
		if strings.Contains(detail, "multi project stream feature") ||
			strings.Contains(detail, "view events from multiple projects") {
			detail = multiProjectMessage
		}
		return mcperr.NewAPIError(resp.StatusCode, detail)
	}

	if looksLikeHTML(body) {
		return errors.New("Server error: Received HTML instead of JSON")
	}
	return fmt.Errorf("API request failed: %s\n%s", status, string(body))
}

// mapTransportError converts network-layer failures into the
// configuration-error taxonomy with a user-facing sentence. The original
// error stays reachable through the cause chain.
func mapTransportError(err error, requestURL, host string) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return mcperr.NewConfigurationError(err,
				"Hostname not found: %s. Please verify the host is configured correctly.", host)
		}
		return mcperr.NewConfigurationError(err,
			"DNS temporarily unavailable for %s. Please check your connection and try again.", host)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return mcperr.NewConfigurationError(err,
			"Connection refused by %s. The service may be down or unreachable.", host)
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return mcperr.NewConfigurationError(err,
			"Connection reset while contacting %s. Please try again.", host)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return mcperr.NewConfigurationError(err,
			"Connection timed out contacting %s. The service may be slow or unreachable.", host)
	}
	return mcperr.NewConfigurationError(err, "Unable to connect to %s - %v", requestURL, err)
}
