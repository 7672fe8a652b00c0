// Package notify delivers job output to people and pings to monitoring URLs.
package notify

import (
	"context"
	"errors"
)

var ErrNoRecipient = errors.New("notify: no recipient")

// Message is a delivery of one job's output.
type Message struct {
	Subject string
	Body    string
	// Recipients are backend specific addresses. Empty means the backend default.
	Recipients []string
}

// Notifier delivers output messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Pinger issues a best-effort request to a monitoring URL.
type Pinger interface {
	Ping(ctx context.Context, url string) error
}

// Discard drops every message. It is the default when no backend is configured.
type Discard struct{}

func (Discard) Notify(context.Context, Message) error { return nil }
func (Discard) Ping(context.Context, string) error    { return nil }
