// Package webhook authenticates and classifies inbound webhook deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// SignaturePrefix is the algorithm tag the source-control host
	// prepends to the hex HMAC digest in the signature header.
	SignaturePrefix = "sha256="
)

// Outcome is the result of verifying a webhook signature. Each failure
// mode has a distinct caller-visible consequence, so this is an enum
// rather than a boolean.
type Outcome int

const (
	// OutcomeUnconfigured means no shared secret is configured. The
	// webhook feature is inactive; a configuration problem, not an
	// attacker signal.
	OutcomeUnconfigured Outcome = iota

	// OutcomeMalformed means the declared signature is missing or lacks
	// the expected algorithm prefix.
	OutcomeMalformed

	// OutcomeMismatch means the declared signature parses but does not
	// match the HMAC of the payload.
	OutcomeMismatch

	// OutcomeVerified means the payload was signed by a holder of the
	// shared secret.
	OutcomeVerified
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnconfigured:
		return "unconfigured"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// Verify checks that body was signed with secret to produce signature.
//
// An empty secret means the gateway is unconfigured; nothing verifies
// against it. The signature must have the form "sha256=<hex digest>".
// A digest that is not valid hex counts as a mismatch, not an error.
//
// Verify is pure: no I/O, no logging, deterministic for its inputs.
func Verify(secret, signature string, body []byte) Outcome {
	if secret == "" {
		return OutcomeUnconfigured
	}

	if !strings.HasPrefix(signature, SignaturePrefix) {
		return OutcomeMalformed
	}

	declared, err := hex.DecodeString(strings.TrimPrefix(signature, SignaturePrefix))
	if err != nil {
		return OutcomeMismatch
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	// Constant-time comparison to prevent timing attacks on the secret.
	// hmac.Equal also rejects length mismatches.
	if !hmac.Equal(expected, declared) {
		return OutcomeMismatch
	}

	return OutcomeVerified
}

// Sign computes the signature header value for body under secret. This
// is the sender side of Verify, shared by tests that need to produce
// authentic deliveries.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
