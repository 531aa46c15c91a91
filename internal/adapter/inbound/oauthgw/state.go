package oauthgw

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// AuthRequest is the MCP client's original authorization request. It
// survives the upstream round trip inside the opaque state parameter.
type AuthRequest struct {
	ResponseType        string `json:"response_type"`
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	Scope               string `json:"scope,omitempty"`
	State               string `json:"state,omitempty"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
}

// parseAuthRequest reads an AuthRequest from the authorize query string.
func parseAuthRequest(q url.Values) AuthRequest {
	return AuthRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}
}

// transitState is the payload passed as the state parameter to the
// upstream. It must survive the round trip intact: on callback it is
// re-decoded to reconstruct the original MCP-client request.
type transitState struct {
	Request     AuthRequest `json:"request"`
	Permissions []string    `json:"permissions"`
}

// encodeTransitState serializes the state as base64 JSON. No server-side
// storage backs it; the upstream echoes it verbatim.
func encodeTransitState(st transitState) string {
	payload, _ := json.Marshal(st)
	return base64.RawURLEncoding.EncodeToString(payload)
}

// decodeTransitState reverses encodeTransitState.
func decodeTransitState(encoded string) (*transitState, error) {
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("state is not valid base64")
	}
	var st transitState
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, errors.New("state is not valid JSON")
	}
	if st.Request.ClientID == "" {
		return nil, errors.New("state carries no client")
	}
	return &st, nil
}

// signFormState protects the AuthRequest across the approval dialog: the
// form POST echoes it back, and the signature proves it was issued by
// this gateway rather than forged by the browser.
func signFormState(secret []byte, req AuthRequest) string {
	payload, _ := json.Marshal(req)
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + signPayload(secret, encoded)
}

// parseFormState verifies and decodes a signed form state.
func parseFormState(secret []byte, value string) (*AuthRequest, error) {
	encoded, signature, ok := strings.Cut(value, ".")
	if !ok {
		return nil, errors.New("malformed state")
	}
	if !hmacEqual(signPayload(secret, encoded), signature) {
		return nil, errors.New("state signature mismatch")
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("state is not valid base64")
	}
	var req AuthRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, errors.New("state is not valid JSON")
	}
	return &req, nil
}
