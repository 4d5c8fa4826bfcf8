package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the keyed digest under which a raw bearer token is
// stored and looked up.
func HashToken(raw, pepper string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	_, _ = mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func TokenHashEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
