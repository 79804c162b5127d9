package util

import (
	"crypto/rand"
	"crypto/subtle"
)

const webhookTokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateWebhookToken returns a 32-character random alphanumeric string,
// the credential embedded in a stack's deploy-webhook URL. crypto/rand is
// used, not math/rand, because this value is a security credential.
func GenerateWebhookToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	token := make([]byte, 32)
	for i, b := range raw {
		token[i] = webhookTokenAlphabet[int(b)%len(webhookTokenAlphabet)]
	}
	return string(token), nil
}

// SecureCompare reports whether a and b are equal using a constant-time
// comparison, so a webhook caller cannot infer the correct token from
// response-time differences on a byte-by-byte string compare.
func SecureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
