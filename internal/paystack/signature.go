package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// ValidateWebhook reports whether signature is the hex HMAC-SHA512 of the raw
// payload bytes under secret. The payload must be the undecoded request body:
// hashing anything that round-tripped through a JSON parser breaks
// verification because field order and whitespace change the byte string.
// Returns false for an empty payload or signature; never errors.
func ValidateWebhook(payload []byte, signature, secret string) bool {
	if len(payload) == 0 || signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(computed), []byte(signature))
}
