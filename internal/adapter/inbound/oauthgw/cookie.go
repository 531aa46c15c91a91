package oauthgw

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// approvedClientsCookie remembers which clients this browser has already
// approved, so the consent dialog is shown at most once per client.
const approvedClientsCookie = "mcp-approved-clients"

const approvedClientsMaxAge = 365 * 24 * time.Hour

// signApprovedClients serializes and HMAC-signs the client ID list.
func signApprovedClients(secret []byte, clientIDs []string) string {
	payload, _ := json.Marshal(clientIDs)
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + signPayload(secret, encoded)
}

// parseApprovedClients verifies the cookie signature and returns the
// approved client IDs. A missing or tampered cookie yields nil.
func parseApprovedClients(secret []byte, value string) []string {
	encoded, signature, ok := strings.Cut(value, ".")
	if !ok {
		return nil
	}
	if !hmac.Equal([]byte(signPayload(secret, encoded)), []byte(signature)) {
		return nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	var clientIDs []string
	if err := json.Unmarshal(payload, &clientIDs); err != nil {
		return nil
	}
	return clientIDs
}

// hmacEqual compares two signatures in constant time.
func hmacEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

func signPayload(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// setApprovedClientCookie appends clientID to the approved set and
// re-issues the signed cookie.
func setApprovedClientCookie(w http.ResponseWriter, r *http.Request, secret []byte, clientID string) {
	approved := approvedClientsFromRequest(r, secret)
	for _, id := range approved {
		if id == clientID {
			return
		}
	}
	approved = append(approved, clientID)
	http.SetCookie(w, &http.Cookie{
		Name:     approvedClientsCookie,
		Value:    signApprovedClients(secret, approved),
		Path:     "/",
		MaxAge:   int(approvedClientsMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func approvedClientsFromRequest(r *http.Request, secret []byte) []string {
	cookie, err := r.Cookie(approvedClientsCookie)
	if err != nil {
		return nil
	}
	return parseApprovedClients(secret, cookie.Value)
}

func clientApproved(r *http.Request, secret []byte, clientID string) bool {
	for _, id := range approvedClientsFromRequest(r, secret) {
		if id == clientID {
			return true
		}
	}
	return false
}
