package payment

import (
	"strings"
	"time"

	"github.com/mohsenfayyazi/billder/cache"
)

// Registry keeps the in-progress web flows, one per browser session and
// invoice, until they go idle for the TTL.
type Registry struct {
	flows *cache.TTLCache[string, *Flow]
	ttl   time.Duration
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{flows: cache.NewTTLCache[string, *Flow](), ttl: ttl}
}

func registryKey(sessionID, invoiceID string) string {
	return sessionID + "/" + invoiceID
}

// Get returns the live flow, refreshing its TTL.
func (r *Registry) Get(sessionID, invoiceID string) (*Flow, bool) {
	key := registryKey(sessionID, invoiceID)
	f, ok := r.flows.Get(key)
	if ok {
		r.flows.Set(key, f, r.ttl)
	}
	return f, ok
}

// Start stores f unless the registered flow is in use. f stays reserved
// until its Begin runs, so a concurrent Start for the same invoice fails
// with ErrBusy instead of creating a second intent.
func (r *Registry) Start(sessionID, invoiceID string, f *Flow) error {
	f.setReserved(true)
	if _, stored := r.flows.SetUnless(registryKey(sessionID, invoiceID), f, r.ttl, (*Flow).inUse); !stored {
		f.setReserved(false)
		return ErrBusy
	}
	return nil
}

func (r *Registry) Remove(sessionID, invoiceID string) {
	r.flows.Delete(registryKey(sessionID, invoiceID))
}

// DropSession forgets every flow of a browser session.
func (r *Registry) DropSession(sessionID string) {
	prefix := sessionID + "/"
	r.flows.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
}
