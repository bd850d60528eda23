// Package webhook implements the trigger gateway: it authenticates incoming
// webhook calls and hands accepted ones to the execution engine without
// blocking the HTTP response.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nodeloom/loom/pkg/persistence"
	"github.com/nodeloom/loom/pkg/protocol"
)

// Rejection reasons, mapped to HTTP statuses at the web layer.
var (
	ErrNotFound         = errors.New("webhook not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrOriginNotAllowed = errors.New("origin not allowed")
	ErrInvalidSignature = errors.New("invalid signature")
)

// signatureHeaders are the conventional header names checked for an
// HMAC-SHA256 signature, in order.
var signatureHeaders = []string{
	"X-Signature",
	"X-Hub-Signature-256",
	"X-Webhook-Signature",
}

// Accepted is the successful outcome of a webhook call: the run was created
// and detached, and the caller gets its identifier immediately.
type Accepted struct {
	ExecutionID string `json:"execution_id"`
	GraphID     string `json:"graph_id"`
}

// Request carries everything the gateway inspects about an incoming call.
type Request struct {
	Key        string
	Method     string
	Headers    map[string]string
	Query      map[string]string
	Body       []byte
	SourceAddr string
}

// Gateway validates webhook calls against their registrations.
type Gateway struct {
	persistence persistence.Persistence
	dispatcher  protocol.Dispatcher
	logger      *slog.Logger
}

func NewGateway(p persistence.Persistence, dispatcher protocol.Dispatcher, logger *slog.Logger) *Gateway {
	return &Gateway{
		persistence: p,
		dispatcher:  dispatcher,
		logger:      logger.With("module", "webhook_gateway"),
	}
}

// Handle runs the validation pipeline, short-circuiting on the first
// failure: registration lookup, method check, origin check, body parsing,
// signature check. On success it creates the run, bumps the registration's
// usage counters, and returns without waiting for execution.
func (g *Gateway) Handle(ctx context.Context, req Request) (*Accepted, error) {
	logger := g.logger.With("webhook_key", req.Key, "method", req.Method)

	registration, err := g.persistence.WebhookRepository().WebhookByKey(ctx, req.Key)
	if err != nil || !registration.Active {
		logger.Warn("Webhook lookup failed")

		return nil, ErrNotFound
	}

	target, err := g.persistence.GraphRepository().GraphByID(ctx, registration.GraphID)
	if err != nil || !target.Active {
		logger.Warn("Webhook target graph missing or inactive", "graph_id", registration.GraphID)

		return nil, ErrNotFound
	}

	if !registration.AllowsMethod(req.Method) {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotAllowed, req.Method)
	}

	if !registration.AllowsOrigin(req.SourceAddr) {
		logger.Warn("Webhook origin rejected", "source_addr", req.SourceAddr)

		return nil, ErrOriginNotAllowed
	}

	if registration.Secret != "" {
		if !verifySignature(registration.Secret, req.Body, req.Headers) {
			logger.Warn("Webhook signature rejected")

			return nil, ErrInvalidSignature
		}
	}

	input := parseBody(req.Headers["Content-Type"], req.Body)
	mergeQuery(input, req.Query)

	executionID, err := g.dispatcher.Dispatch(ctx, registration.GraphID, input)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch run: %w", err)
	}

	if err := g.persistence.WebhookRepository().RecordCall(ctx, req.Key); err != nil {
		// Counter updates are eventually consistent; a miss is not fatal.
		logger.Warn("Failed to record webhook call", "error", err)
	}

	logger.Info("Webhook accepted", "execution_id", executionID)

	return &Accepted{ExecutionID: executionID, GraphID: registration.GraphID}, nil
}

// parseBody normalizes JSON, form-encoded and raw-text bodies into one input
// mapping. Non-object JSON and unparseable text are wrapped under "body".
// An empty body is valid and yields an empty mapping.
func parseBody(contentType string, body []byte) map[string]any {
	input := make(map[string]any)

	if len(body) == 0 {
		return input
	}

	if strings.Contains(contentType, "application/x-www-form-urlencoded") {
		if values, err := url.ParseQuery(string(body)); err == nil {
			for k, v := range values {
				if len(v) == 1 {
					input[k] = v[0]
				} else {
					input[k] = v
				}
			}

			return input
		}
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		if obj, ok := decoded.(map[string]any); ok {
			return obj
		}

		input["body"] = decoded

		return input
	}

	input["body"] = string(body)

	return input
}

// mergeQuery folds query parameters into the input mapping without
// overwriting existing keys.
func mergeQuery(input map[string]any, query map[string]string) {
	for k, v := range query {
		if _, exists := input[k]; !exists {
			input[k] = v
		}
	}
}

// verifySignature compares the body's HMAC-SHA256 digest, keyed by the
// shared secret, against the signature supplied in any of the conventional
// headers. Both "sha256=<hex>" and bare "<hex>" forms are accepted; the
// comparison is constant time either way.
func verifySignature(secret string, body []byte, headers map[string]string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, name := range signatureHeaders {
		supplied, ok := lookupHeader(headers, name)
		if !ok || supplied == "" {
			continue
		}

		trimmed := strings.TrimPrefix(supplied, "sha256=")
		if hmac.Equal([]byte(trimmed), []byte(expected)) {
			return true
		}
	}

	return false
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}

	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}

	return "", false
}
