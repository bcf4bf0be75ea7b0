package bridge

import (
	"log/slog"
	"sync"

	"github.com/fgrzl/lndkit/internal/handle"
)

// Dispatch is the pair of closures a registry entry routes native stream
// callbacks to.
type Dispatch struct {
	OnFrame func(data []byte)
	OnError func(message string)
}

// Registry maps stream identifiers to dispatch closures. Identifiers come from
// the process-wide handle sequence and are never reused, so a callback that
// arrives after Unregister resolves to nothing.
//
// The lock only covers insert, lookup and remove. Dispatch closures run after
// it has been released, so a handler may start or stop other streams.
type Registry struct {
	mu      sync.Mutex
	entries map[handle.Handle]Dispatch
}

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
)

// GlobalRegistry returns the process-wide registry used when Options.Registry
// is nil.
func GlobalRegistry() *Registry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// NewRegistry creates an empty registry. Tests use it to get an isolated
// instance.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[handle.Handle]Dispatch)}
}

// Register stores d under a fresh identifier.
func (r *Registry) Register(d Dispatch) handle.Handle {
	id := handle.Next()
	r.mu.Lock()
	r.entries[id] = d
	r.mu.Unlock()
	slog.Debug("registry: entry registered", slog.Uint64("id", uint64(id)))
	return id
}

// Lookup returns the dispatch closures for id.
func (r *Registry) Lookup(id handle.Handle) (Dispatch, bool) {
	r.mu.Lock()
	d, ok := r.entries[id]
	r.mu.Unlock()
	return d, ok
}

// Unregister removes id. It reports false when id was unknown.
func (r *Registry) Unregister(id handle.Handle) bool {
	r.mu.Lock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if ok {
		slog.Debug("registry: entry removed", slog.Uint64("id", uint64(id)))
	}
	return ok
}

// Len reports the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// DispatchFrame routes one payload to the entry for id. It reports false when
// no entry exists.
func (r *Registry) DispatchFrame(id handle.Handle, data []byte) bool {
	d, ok := r.Lookup(id)
	if !ok || d.OnFrame == nil {
		return false
	}
	d.OnFrame(data)
	return true
}

// DispatchError routes one native error message to the entry for id.
func (r *Registry) DispatchError(id handle.Handle, message string) bool {
	d, ok := r.Lookup(id)
	if !ok || d.OnError == nil {
		return false
	}
	d.OnError(message)
	return true
}
