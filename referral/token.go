package referral

import (
	"crypto/rand"
	"encoding/base32"
)

const codeLength = 8

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// newToken returns a short random opaque code token. Collision is practically
// impossible at this entropy, but callers still perform a defensive existence
// check before insertion.
func newToken() (string, error) {
	raw := make([]byte, codeLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return codeEncoding.EncodeToString(raw)[:codeLength], nil
}
