// Package eventstream defines the memory lifecycle event contract and its
// publisher abstraction. Publishing is best-effort: the engine logs publish
// failures but never fails a mutation because of one.
package eventstream

import "context"

// Publisher publishes memory lifecycle events to an event stream backend.
type Publisher interface {
	PublishMemoryEvent(ctx context.Context, event *MemoryEvent) error
	Close() error
}
