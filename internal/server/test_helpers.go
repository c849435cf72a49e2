package server

import "pushgate/internal/webhook"

// MakeTestSignature generates a signed X-Hub-Signature-256 value.
// This is a test helper shared across multiple test packages.
func MakeTestSignature(payload []byte, secret string) string {
	return webhook.Sign(secret, payload)
}
