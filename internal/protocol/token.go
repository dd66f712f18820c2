package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultTokenTTL is the preflight token lifetime (spec §4.J: "TTL default
// 300 s"), matching the context-check TTL.
const DefaultTokenTTL = 300 * time.Second

// tokenPayload is the signed body of a preflight token. Timestamps are
// ISO-8601 strings per spec §6's external-interface contract.
type tokenPayload struct {
	Action      string `json:"action"`
	SessionID   string `json:"session_id"`
	ProjectPath string `json:"project_path"`
	IssuedAt    string `json:"issued_at"`
	ExpiresAt   string `json:"expires_at"`
}

// tokenEnvelope is the wire format spec §6 mandates: a base64-encoded JSON
// payload alongside its hex-encoded HMAC-SHA256 signature.
type tokenEnvelope struct {
	Payload string `json:"payload"`
	Sig     string `json:"sig"`
}

// IssueToken mints a preflight token for action, scoped to sessionID and
// projectPath, signed with secret. Tokens are advisory: nothing currently
// requires one to act, but a future transport can pass them between a
// preflight check and the action it gates, and external audits can verify
// that a check happened.
func IssueToken(secret []byte, action, sessionID, projectPath string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now().UTC()
	payload := tokenPayload{
		Action:      action,
		SessionID:   sessionID,
		ProjectPath: projectPath,
		IssuedAt:    now.Format(time.RFC3339),
		ExpiresAt:   now.Add(ttl).Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("protocol: marshal token payload: %w", err)
	}
	sig := sign(secret, body)
	envelope := tokenEnvelope{
		Payload: base64.StdEncoding.EncodeToString(body),
		Sig:     hex.EncodeToString(sig),
	}
	out, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("protocol: marshal token envelope: %w", err)
	}
	return string(out), nil
}

// ErrTokenInvalid covers both a bad signature and an unparseable token.
var ErrTokenInvalid = errors.New("protocol: invalid token")

// ErrTokenExpired means the signature checked out but expires_at has passed.
var ErrTokenExpired = errors.New("protocol: token expired")

// VerifyToken recomputes the HMAC over the embedded payload and checks
// expires_at against now. Returns the decoded payload fields on success.
func VerifyToken(secret []byte, token string) (action, sessionID, projectPath string, err error) {
	var envelope tokenEnvelope
	if err := json.Unmarshal([]byte(token), &envelope); err != nil {
		return "", "", "", ErrTokenInvalid
	}

	body, err := base64.StdEncoding.DecodeString(envelope.Payload)
	if err != nil {
		return "", "", "", ErrTokenInvalid
	}
	wantSig, err := hex.DecodeString(envelope.Sig)
	if err != nil {
		return "", "", "", ErrTokenInvalid
	}
	if !hmac.Equal(sign(secret, body), wantSig) {
		return "", "", "", ErrTokenInvalid
	}

	var payload tokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", "", ErrTokenInvalid
	}
	expiresAt, err := time.Parse(time.RFC3339, payload.ExpiresAt)
	if err != nil {
		return "", "", "", ErrTokenInvalid
	}
	if time.Now().UTC().After(expiresAt) {
		return payload.Action, payload.SessionID, payload.ProjectPath, ErrTokenExpired
	}
	return payload.Action, payload.SessionID, payload.ProjectPath, nil
}

func sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}
