package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// GenerateKey scopes a client token to one method and route. The token is hashed so the
// store never sees caller input verbatim.
func GenerateKey(method, route, token string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{method, route, token}, "\x00")))
	return hex.EncodeToString(sum[:])
}
