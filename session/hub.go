package session

import "sync"

type EventKind string

const (
	EventSaved   EventKind = "saved"
	EventCleared EventKind = "cleared"
)

// Clear reasons.
const (
	ReasonLogout       = "logout"
	ReasonExpired      = "expired"
	ReasonCorrupt      = "corrupt"
	ReasonUnauthorized = "unauthorized"
)

type Event struct {
	Namespace string
	Kind      EventKind
	Reason    string
}

// Hub fans session changes out to subscribers. Handlers run synchronously
// on the publishing goroutine and must not block.
type Hub struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (h *Hub) Subscribe(fn func(Event)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	subs := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}
