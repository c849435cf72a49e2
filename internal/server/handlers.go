package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"pushgate/internal/metrics"
	"pushgate/internal/webhook"
)

const (
	// MaxPayloadBytes caps the webhook body size.
	MaxPayloadBytes = 1_000_000 // 1 MB
)

// HandleDeployHook is the webhook endpoint. It walks an ordered chain
// of checks; every path responds exactly once, and at most one deploy
// is launched per request. The response for an accepted delivery is
// written before the deploy command is started, so the caller never
// waits on, or learns, the deploy outcome.
func (s *Server) HandleDeployHook(w http.ResponseWriter, r *http.Request) {
	// Size guard. ContentLength catches well-behaved clients cheaply;
	// the read below re-checks for chunked bodies.
	if r.ContentLength > MaxPayloadBytes {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload_too_large"})
		return
	}

	// The exact raw bytes feed the signature check. Read one byte past
	// the cap so an oversized body is rejected rather than silently
	// truncated into a signature mismatch.
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes+1))
	if err != nil {
		s.Logger.Error("Failed to read request body", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	if len(body) > MaxPayloadBytes {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload_too_large"})
		return
	}

	// Authenticate before anything else looks at the payload. The log
	// lines carry the outcome and remote address, never the secret or
	// any signature material.
	signature := r.Header.Get("X-Hub-Signature-256")
	outcome := webhook.Verify(s.Config.Webhook.Secret, signature, body)
	metrics.RecordVerification(outcome.String())

	switch outcome {
	case webhook.OutcomeUnconfigured:
		s.Logger.Warn("Webhook delivery rejected: no secret configured", "remote", r.RemoteAddr)
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "webhook_unconfigured"})
		return
	case webhook.OutcomeMalformed, webhook.OutcomeMismatch:
		s.Logger.Warn("Webhook delivery rejected: invalid signature",
			"outcome", outcome.String(),
			"remote", r.RemoteAddr)
		s.respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_signature"})
		return
	}

	event := r.Header.Get("X-GitHub-Event")
	if webhook.Classify(event) != webhook.Deploy {
		s.respondJSON(w, http.StatusAccepted, map[string]string{
			"status": "ignored",
			"detail": fmt.Sprintf("event %s", event),
		})
		return
	}

	deliveryID := r.Header.Get("X-GitHub-Delivery")

	// Claim the single deploy slot before the replay check, so a
	// busy-rejected delivery is never marked seen and a redelivery can
	// still trigger the deploy.
	if !s.Invoker.TryAcquire() {
		s.Logger.Warn("Deploy already in progress, rejecting delivery",
			"event", event,
			"delivery", deliveryID)
		s.respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "deploy_in_progress"})
		return
	}

	// Replay check runs only for verified deliveries: unauthenticated
	// traffic must not write to the ledger. Deliveries without an ID
	// cannot be deduplicated and skip the check.
	if deliveryID != "" && s.Ledger != nil {
		seen, err := s.Ledger.MarkSeen(r.Context(), deliveryID, event)
		if err != nil {
			// Fail open: a broken local ledger must not stop deploys.
			s.Logger.Error("Delivery ledger error, proceeding without replay check",
				"error", err,
				"delivery", deliveryID)
		} else if seen {
			s.Invoker.Release()
			s.Logger.Info("Duplicate delivery ignored", "delivery", deliveryID)
			s.respondJSON(w, http.StatusAccepted, map[string]string{
				"status": "ignored",
				"detail": "duplicate delivery",
			})
			return
		}
	}

	// Acknowledge receipt now; GitHub gives webhooks ten seconds and
	// the deploy can take minutes. The outcome is reported via logs.
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})

	s.Invoker.Launch(event, deliveryID)
}

// HandleHealth handles health check requests.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "ok",
		"webhook_configured": s.Config.WebhookConfigured(),
		"deploying":          s.Invoker.InFlight(),
	})
}

// HandleHello is a minimal liveness greeting.
func (s *Server) HandleHello(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "hello",
		"service": "pushgate",
	})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}
