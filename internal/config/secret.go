package config

import (
	"crypto/rand"
	"encoding/hex"
)

// generateSecret returns a random 32-byte hex string for TOKEN_SECRET when
// none is configured. Process-lifetime only: preflight tokens issued before
// a restart won't verify after one, which matches the spec's "advisory,
// today" framing for that token.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
