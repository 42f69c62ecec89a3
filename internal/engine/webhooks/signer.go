package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const SignaturePrefix = "sha256="

// Sign returns "sha256=" followed by the lowercase hex HMAC-SHA256 of
// payload keyed by secret. payload must be the exact bytes sent.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return SignaturePrefix + hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the signature the way a receiver would and compares it
// in constant time.
func Verify(secret string, payload []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, payload)), []byte(signature))
}
