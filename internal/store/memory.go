package store

import (
	"context"
	"sync"
)

const watchBuffer = 16

type watcher struct {
	origin string
	ch     chan Change
}

// Hub is an in-process store. Handles obtained from it share the data and
// notify each other's watchers.
type Hub struct {
	mu       sync.Mutex
	data     map[string][]byte
	watchers map[string]map[*watcher]struct{}
}

func NewHub() *Hub {
	return &Hub{
		data:     map[string][]byte{},
		watchers: map[string]map[*watcher]struct{}{},
	}
}

func (h *Hub) Handle(origin string) Store {
	return &Memory{hub: h, origin: origin}
}

func (h *Hub) Close() error { return nil }

// notify must be called with h.mu held. Slow watchers lose changes once
// their buffer is full.
func (h *Hub) notify(origin string, c Change) {
	for w := range h.watchers[c.Key] {
		c.Remote = w.origin != origin
		select {
		case w.ch <- c:
		default:
		}
	}
}

// Memory is a handle on a Hub.
type Memory struct {
	hub    *Hub
	origin string
}

func (m *Memory) Origin() string { return m.origin }

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.hub.mu.Lock()
	defer m.hub.mu.Unlock()
	v, ok := m.hub.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	v := append([]byte(nil), value...)
	m.hub.mu.Lock()
	defer m.hub.mu.Unlock()
	m.hub.data[key] = v
	m.hub.notify(m.origin, Change{Key: key, Value: v})
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.hub.mu.Lock()
	defer m.hub.mu.Unlock()
	if _, ok := m.hub.data[key]; !ok {
		return nil
	}
	delete(m.hub.data, key)
	m.hub.notify(m.origin, Change{Key: key, Deleted: true})
	return nil
}

func (m *Memory) Watch(ctx context.Context, key string) (<-chan Change, func(), error) {
	w := &watcher{origin: m.origin, ch: make(chan Change, watchBuffer)}
	m.hub.mu.Lock()
	if m.hub.watchers[key] == nil {
		m.hub.watchers[key] = map[*watcher]struct{}{}
	}
	m.hub.watchers[key][w] = struct{}{}
	m.hub.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	stop := func() {
		once.Do(func() {
			close(done)
			m.hub.mu.Lock()
			delete(m.hub.watchers[key], w)
			if len(m.hub.watchers[key]) == 0 {
				delete(m.hub.watchers, key)
			}
			close(w.ch)
			m.hub.mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()
	return w.ch, stop, nil
}

func (m *Memory) Close() error { return nil }
