package session

import (
	"log/slog"
	"sync"

	"github.com/zanzhit/ppe_monitor/internal/metrics"
)

// Broadcaster fans encoded frames out to stream viewers. It outlives camera
// sessions so that viewers stay connected across start and stop.
type Broadcaster struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
}

func NewBroadcaster(log *slog.Logger, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		log:     log,
		metrics: m,
		clients: make(map[int]chan []byte),
	}
}

// Subscribe returns a channel buffering up to two frames.
func (b *Broadcaster) Subscribe() (int, <-chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan []byte, 2)
	b.clients[id] = ch
	b.metrics.ActiveViewers.Store(int64(len(b.clients)))

	b.log.Debug("viewer subscribed", slog.Int("viewer", id), slog.Int("viewers", len(b.clients)))

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.clients[id]
	if !ok {
		return
	}

	close(ch)
	delete(b.clients, id)
	b.metrics.ActiveViewers.Store(int64(len(b.clients)))

	b.log.Debug("viewer unsubscribed", slog.Int("viewer", id), slog.Int("viewers", len(b.clients)))
}

func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.clients)
}

// Publish never blocks; a slow viewer misses the frame.
func (b *Broadcaster) Publish(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.clients {
		select {
		case ch <- frame:
		default:
		}
	}
}

// Close disconnects every viewer.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
	b.metrics.ActiveViewers.Store(0)
}
