package backend

import (
	"os"
	"sync"

	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
)

// Registry is the in-memory store of registered backends, keyed by
// namespace-id.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
}

type entry struct {
	backend *types.Backend
	refs    int
}

// New returns an empty backend registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register validates and installs a new backend. Path-kind backends
// must name a mount point that exists at registration time.
func (r *Registry) Register(b types.Backend) error {
	if b.NamespaceID == "" {
		return errs.New(errs.BadArgs)
	}
	if b.IsPathKind() {
		if err := mustExistDir(b.MountPoint); err != nil {
			return errs.Wrap(errs.BadArgs, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[b.NamespaceID]; ok {
		return errs.New(errs.NamespaceExists)
	}
	cp := b
	r.entries[b.NamespaceID] = &entry{backend: &cp}
	return nil
}

// Update replaces the mutable fields of an existing backend: mount
// point, capacity, and tracked flag. The kind never changes.
func (r *Registry) Update(nsID, mountPoint string, capacity uint64, tracked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[nsID]
	if !ok {
		return errs.New(errs.NoSuchNamespace)
	}
	if e.backend.IsPathKind() && mountPoint != "" {
		if err := mustExistDir(mountPoint); err != nil {
			return errs.Wrap(errs.BadArgs, err)
		}
		e.backend.MountPoint = mountPoint
	}
	e.backend.Capacity = capacity
	e.backend.Tracked = tracked
	return nil
}

// Unregister removes a backend, refusing while it is still referenced
// by live resources.
func (r *Registry) Unregister(nsID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[nsID]
	if !ok {
		return errs.New(errs.NoSuchNamespace)
	}
	if e.refs > 0 {
		return errs.New(errs.NamespaceNotEmpty)
	}
	delete(r.entries, nsID)
	return nil
}

// Lookup returns a read-only handle to the backend registered under
// nsID, or false if none exists.
func (r *Registry) Lookup(nsID string) (*types.Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[nsID]
	if !ok {
		return nil, false
	}
	cp := *e.backend
	return &cp, true
}

// List returns a snapshot of every registered backend.
func (r *Registry) List() []*types.Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.Backend, 0, len(r.entries))
	for _, e := range r.entries {
		cp := *e.backend
		out = append(out, &cp)
	}
	return out
}

// Count returns the number of registered namespaces, used by
// global_status.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// AddRef marks one more live resource as referencing nsID. It is a
// no-op for synthesised backends, which are never stored here.
func (r *Registry) AddRef(nsID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[nsID]; ok {
		e.refs++
	}
}

// Release reverses a prior AddRef.
func (r *Registry) Release(nsID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[nsID]; ok && e.refs > 0 {
		e.refs--
	}
}

// SynthesizeRemote builds an ephemeral, unregistered backend handle
// for a descriptor that names a hostname but no locally-registered
// namespace. It is never inserted into the registry and carries no
// refcount (spec.md §9).
func SynthesizeRemote(nsID string) *types.Backend {
	return &types.Backend{
		NamespaceID: nsID,
		Kind:        types.BackendRemote,
		Synthesized: true,
	}
}

func mustExistDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errs.New(errs.BadArgs)
	}
	return nil
}
