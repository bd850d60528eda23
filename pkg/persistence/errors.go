package persistence

import "errors"

// Standard persistence error types that all implementations return.
var (
	// ErrGraphNotFound indicates a graph was not found by the given id.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrWebhookNotFound indicates no registration exists for the given key.
	ErrWebhookNotFound = errors.New("webhook not found")

	// ErrGraphAlreadyExists indicates a graph with the same id already exists.
	ErrGraphAlreadyExists = errors.New("graph already exists")
)

// IsGraphNotFound reports whether err is a graph lookup miss.
func IsGraphNotFound(err error) bool {
	return errors.Is(err, ErrGraphNotFound)
}

// IsWebhookNotFound reports whether err is a webhook lookup miss.
func IsWebhookNotFound(err error) bool {
	return errors.Is(err, ErrWebhookNotFound)
}
