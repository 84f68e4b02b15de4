package port

import "context"

// Message is a single out-of-band delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages to users. Callers treat failures as non-fatal.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
