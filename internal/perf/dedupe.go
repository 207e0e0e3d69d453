package perf

import "sync"

// AttachFunc registers one native handler for an event name and returns a
// detach function. The fire callback delivers payloads to the registry.
type AttachFunc func(event string, fire func(payload any)) (detach func())

// ListenerRegistry keeps exactly one underlying handler per event name no
// matter how many local subscribers exist, fanning callbacks out internally.
// Prevents duplicate native registrations and double-firing on add/remove.
type ListenerRegistry struct {
	mu     sync.Mutex
	attach AttachFunc
	nextID int
	subs   map[string]map[int]func(any)
	native map[string]func()
}

// NewListenerRegistry builds a registry performing native registrations via
// attach. A nil attach skips native registration (pure local fanout).
func NewListenerRegistry(attach AttachFunc) *ListenerRegistry {
	return &ListenerRegistry{
		attach: attach,
		subs:   make(map[string]map[int]func(any)),
		native: make(map[string]func()),
	}
}

// On subscribes fn to the event name and returns an unsubscribe function.
// The first subscriber for a name triggers the single native registration.
func (r *ListenerRegistry) On(event string, fn func(payload any)) (off func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subs[event]
	if !ok {
		set = make(map[int]func(any))
		r.subs[event] = set
		if r.attach != nil {
			r.native[event] = r.attach(event, func(payload any) {
				r.Dispatch(event, payload)
			})
		}
	}
	id := r.nextID
	r.nextID++
	set[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		set, ok := r.subs[event]
		if !ok {
			return
		}
		delete(set, id)
		if len(set) == 0 {
			delete(r.subs, event)
			if detach, ok := r.native[event]; ok {
				detach()
				delete(r.native, event)
			}
		}
	}
}

// Dispatch fans a payload out to every local subscriber of the event.
func (r *ListenerRegistry) Dispatch(event string, payload any) {
	r.mu.Lock()
	set := r.subs[event]
	fns := make([]func(any), 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}

// Listeners reports how many local subscribers the event has.
func (r *ListenerRegistry) Listeners(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[event])
}

// NativeCount reports how many native registrations are live.
func (r *ListenerRegistry) NativeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.native)
}
