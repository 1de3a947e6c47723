package session

import (
	"crypto/rand"
	"encoding/base64"
)

const tokenBytes = 32

// NewToken returns 32 bytes from crypto/rand, base64url encoded. Tokens are
// capability secrets: holding one grants access to the anonymous cart.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func validToken(s string) bool {
	if len(s) != base64.RawURLEncoding.EncodedLen(tokenBytes) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}
