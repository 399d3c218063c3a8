package core

import (
	"context"

	"relay-service/internal/input"
	"relay-service/internal/types"
)

// Discoverer finds and opens the next allowed input device. A nil match
// without error means nothing is present yet.
type Discoverer interface {
	Discover(ctx context.Context) (*input.Match, error)
}

// RelayPort defines the relay operations needed by the Supervisor
type RelayPort interface {
	Set(channel int, on bool) error
	SetAll(on bool) error
	Channels() int
}

// ChangeNotifier signals that the set of input device nodes changed, so a
// pending discovery backoff can end early.
type ChangeNotifier interface {
	Changes() <-chan struct{}
}

// StatusSink receives every new status snapshot. Publish must not block.
type StatusSink interface {
	Publish(status types.Status)
}
