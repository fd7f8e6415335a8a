package jobs

import "sync"

// Handle is the minimal view of a live OS process the registry needs.
type Handle interface {
	Pid() int
}

// Registry maps live job ids to process handles and records cancel intent.
//
// Invariants: a registered id implies a live process; Unregister is called
// exactly once, from the process-exit handler, never speculatively. Cancel
// intent is consumed once at exit time so a later job reusing the id cannot
// observe a stale cancel.
type Registry struct {
	mu       sync.Mutex
	procs    map[string]Handle
	canceled map[string]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		procs:    make(map[string]Handle),
		canceled: make(map[string]struct{}),
	}
}

// Register records the live handle for id, replacing any previous entry.
func (r *Registry) Register(id string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[id] = h
}

// Get returns the live handle for id, if any.
func (r *Registry) Get(id string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.procs[id]
	return h, ok
}

// Unregister removes id and reports whether it was present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.procs[id]
	delete(r.procs, id)
	return ok
}

// MarkCanceled records that the user asked to stop id. Set before signaling
// the process so the exit handler can classify the termination.
func (r *Registry) MarkCanceled(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.canceled[id] = struct{}{}
}

// ConsumeCanceled reports whether id was marked canceled and clears the mark.
func (r *Registry) ConsumeCanceled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.canceled[id]
	delete(r.canceled, id)
	return ok
}

// Settle removes id and consumes its cancel mark in one critical section.
// The process exit handler is the only caller; doing both under one lock
// keeps a concurrent stop request from acting on a half-cleaned job.
func (r *Registry) Settle(id string) (canceled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, id)
	_, canceled = r.canceled[id]
	delete(r.canceled, id)
	return canceled
}

// Len reports the number of live jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

// IDs returns the ids of all live jobs.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.procs))
	for id := range r.procs {
		ids = append(ids, id)
	}
	return ids
}
