package messaging

import (
	"context"
	"sync"
	"time"

	"relay-service/internal/logger"
	"relay-service/internal/types"
)

const publishTimeout = 4 * time.Second

// Publisher pushes a status snapshot to an external system.
type Publisher interface {
	Name() string
	PublishStatus(ctx context.Context, status types.Status) error
}

// Broadcaster hands status snapshots to publishers on its own goroutine.
// Publish never blocks; when publishers fall behind, only the newest
// snapshot is kept.
type Broadcaster struct {
	publishers []Publisher
	updates    chan types.Status
	logger     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBroadcaster(l *logger.Logger, publishers ...Publisher) *Broadcaster {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broadcaster{
		publishers: publishers,
		updates:    make(chan types.Status, 1),
		logger:     l,
		ctx:        ctx,
		cancel:     cancel,
	}
	b.wg.Add(1)
	go b.run()
	return b
}

// Publish queues st, replacing any snapshot still waiting.
func (b *Broadcaster) Publish(st types.Status) {
	for {
		select {
		case b.updates <- st:
			return
		default:
		}
		select {
		case <-b.updates:
		default:
		}
	}
}

func (b *Broadcaster) run() {
	defer b.wg.Done()
	for {
		select {
		case st := <-b.updates:
			b.deliver(st)
		case <-b.ctx.Done():
			// flush the final snapshot, usually "stopped"
			select {
			case st := <-b.updates:
				b.deliver(st)
			default:
			}
			return
		}
	}
}

func (b *Broadcaster) deliver(st types.Status) {
	for _, p := range b.publishers {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.PublishStatus(ctx, st); err != nil {
			b.logger.Warnf("Failed to publish status to %s: %v", p.Name(), err)
		}
		cancel()
	}
}

// Close delivers whatever is still queued and stops the goroutine.
func (b *Broadcaster) Close() {
	b.cancel()
	b.wg.Wait()
}
