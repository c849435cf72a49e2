// Package server implements the HTTP face of the pushgate deployment
// gateway.
//
// This package provides:
//   - The webhook endpoint that authenticates GitHub deliveries and
//     triggers the configured deploy command
//   - Health, greeting and Prometheus metrics endpoints
//   - Optional static serving of the deployed site
//   - Per-IP rate limiting and structured logging of all HTTP requests
//
// The server integrates with other packages:
//   - internal/webhook: signature verification and event classification
//   - internal/deploy: fire-and-forget deploy invocation
//   - internal/delivery: replay-protection delivery ledger
//   - internal/config: read-only startup configuration
//
// Security features:
//   - HMAC-SHA256 webhook signature verification (constant-time)
//   - Payload size limits (1MB max)
//   - Single-flight deploy slot (no concurrent deploys)
//   - Delivery-ID replay protection
//   - Rate limiting (global and per-webhook)
package server
