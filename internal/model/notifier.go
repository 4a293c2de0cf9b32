package model

// Notifier defines a generic interface for delivering alert notifications.
// Implementations must be safe for concurrent use; failures are logged by
// the caller and never retried synchronously.
type Notifier interface {
	Send(subject, body string) error
}
