package adapter

import "context"

// EventPublisher emits reconciliation outcome events for downstream
// consumers. Publishing is best-effort; callers log and continue on error.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close()
}
