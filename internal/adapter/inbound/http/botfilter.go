package http

import (
	"net/http"
	"strings"
)

// allowedBots are known-legitimate crawlers and tooling user agents that
// may fetch the browser-facing pages.
var allowedBots = []string{
	"googlebot",
	"bingbot",
	"slurp",
	"duckduckbot",
	"baiduspider",
	"yandexbot",
	"facebookexternalhit",
	"twitterbot",
	"linkedinbot",
	"whatsapp",
	"telegrambot",
	"postman",
	"insomnia",
	"uptimerobot",
	"pingdom",
	"newrelic",
	"datadog",
	"github-camo",
	"slack-imgproxy",
}

// deniedBots are generic HTTP clients and scraper markers.
var deniedBots = []string{
	"bot",
	"spider",
	"crawler",
	"scraper",
	"monitor",
	"fetch",
	"curl",
	"wget",
	"python-requests",
	"okhttp",
	"go-http-client",
}

// classifyUserAgent buckets a user agent: "allowed" (known-good bot or a
// real browser) or "denied". A UA shorter than 10 characters or without a
// browser signature is treated as a generic bot.
func classifyUserAgent(ua string) string {
	lower := strings.ToLower(ua)
	for _, bot := range allowedBots {
		if strings.Contains(lower, bot) {
			return "allowed"
		}
	}
	for _, bot := range deniedBots {
		if strings.Contains(lower, bot) {
			return "denied"
		}
	}
	if len(ua) < 10 || !isBrowser(ua) {
		return "denied"
	}
	return "allowed"
}

// isBrowser recognizes real browsers by the Mozilla/ prefix plus one of
// the engine markers.
func isBrowser(ua string) bool {
	if !strings.Contains(ua, "Mozilla/") {
		return false
	}
	for _, engine := range []string{"Gecko/", "WebKit/", "Chrome/", "Safari/"} {
		if strings.Contains(ua, engine) {
			return true
		}
	}
	return false
}

// BotFilterMiddleware blocks generic bots from the browser-facing pages.
// Machine-facing routes (MCP, token, register, discovery) are exempt:
// MCP clients send arbitrary user agents.
func BotFilterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if crossOriginExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if classifyUserAgent(r.UserAgent()) == "denied" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
