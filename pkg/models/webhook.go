package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidWebhook is returned when a webhook registration fails validation.
var ErrInvalidWebhook = errors.New("invalid webhook registration")

// MethodAny configures a webhook to accept GET, POST and PUT.
const MethodAny = "ANY"

// Webhook is a trigger registration: an opaque key addressable from the
// outside, bound to one graph. The key doubles as the external URL path
// segment, so it is generated, never user-chosen.
type Webhook struct {
	// Key is the opaque external address of this webhook.
	Key string `json:"key" validate:"required"`

	// GraphID is the graph a call to this webhook executes.
	GraphID string `json:"graph_id" validate:"required"`

	// Method is the allowed HTTP method, or MethodAny for a wildcard.
	Method string `json:"method" validate:"required,oneof=GET POST PUT ANY"`

	// Secret, when set, requires callers to sign the request body with
	// HMAC-SHA256.
	Secret string `json:"secret,omitempty"`

	// AllowedOrigins restricts callers by network origin. Empty means no
	// restriction; "*" matches everything.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	Active       bool       `json:"active"`
	CallCount    int64      `json:"call_count"`
	LastCalledAt *time.Time `json:"last_called_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewWebhook creates an active registration for the given graph with a fresh
// opaque key.
func NewWebhook(graphID, method, secret string, allowedOrigins []string) (*Webhook, error) {
	if graphID == "" {
		return nil, ErrInvalidWebhook
	}

	if method == "" {
		method = "POST"
	}

	now := time.Now().UTC()

	return &Webhook{
		Key:            uuid.New().String(),
		GraphID:        graphID,
		Method:         method,
		Secret:         secret,
		AllowedOrigins: allowedOrigins,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// AllowsMethod reports whether the registration accepts the given HTTP
// method. MethodAny covers GET, POST and PUT only; other methods are
// rejected even on a wildcard registration.
func (w *Webhook) AllowsMethod(method string) bool {
	if w.Method == MethodAny {
		return method == "GET" || method == "POST" || method == "PUT"
	}

	return w.Method == method
}

// AllowsOrigin reports whether the source address passes the origin
// allow-list. An empty list allows everything.
func (w *Webhook) AllowsOrigin(addr string) bool {
	if len(w.AllowedOrigins) == 0 {
		return true
	}

	for _, origin := range w.AllowedOrigins {
		if origin == "*" || origin == addr {
			return true
		}
	}

	return false
}
