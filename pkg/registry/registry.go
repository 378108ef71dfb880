package registry

import (
	"sync"

	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
)

// Registry is the in-memory store of registered jobs and the processes
// authorised to submit work on their behalf.
//
// Lock ordering: callers that also hold a backend lock (pkg/backend)
// must acquire it before calling into Registry; Registry never calls
// back into pkg/backend or pkg/task while holding mu, so the reverse
// order never arises.
type Registry struct {
	mu   sync.RWMutex
	jobs map[types.JobID]*types.Job
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{jobs: make(map[types.JobID]*types.Job)}
}

// RegisterJob creates a job record. It fails with JobExists if id is
// already registered.
func (r *Registry) RegisterJob(id types.JobID, hostnames, namespaces []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; ok {
		return errs.New(errs.JobExists)
	}

	job := &types.Job{
		ID:         id,
		Hostnames:  append([]string(nil), hostnames...),
		Processes:  make(map[types.ProcessTriple]struct{}),
		Namespaces: make(map[string]struct{}, len(namespaces)),
	}
	for _, ns := range namespaces {
		job.Namespaces[ns] = struct{}{}
	}
	r.jobs[id] = job
	return nil
}

// UpdateJob replaces the hostname list and namespace capability set of
// an existing job, leaving its registered processes untouched.
func (r *Registry) UpdateJob(id types.JobID, hostnames, namespaces []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return errs.New(errs.NoSuchJob)
	}

	job.Hostnames = append([]string(nil), hostnames...)
	job.Namespaces = make(map[string]struct{}, len(namespaces))
	for _, ns := range namespaces {
		job.Namespaces[ns] = struct{}{}
	}
	return nil
}

// UnregisterJob removes a job and every process registered under it.
func (r *Registry) UnregisterJob(id types.JobID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return errs.New(errs.NoSuchJob)
	}
	delete(r.jobs, id)
	return nil
}

// RegisterProcess records triple as authorised to act for job id.
func (r *Registry) RegisterProcess(id types.JobID, triple types.ProcessTriple) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return errs.New(errs.NoSuchJob)
	}
	if _, ok := job.Processes[triple]; ok {
		return errs.New(errs.ProcessExists)
	}
	job.Processes[triple] = struct{}{}
	return nil
}

// UnregisterProcess revokes triple's authorisation for job id.
func (r *Registry) UnregisterProcess(id types.JobID, triple types.ProcessTriple) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return errs.New(errs.NoSuchJob)
	}
	if _, ok := job.Processes[triple]; !ok {
		return errs.New(errs.NoSuchProcess)
	}
	delete(job.Processes, triple)
	return nil
}

// Job returns a snapshot copy of the job record for id.
func (r *Registry) Job(id types.JobID) (*types.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, errs.New(errs.NoSuchJob)
	}
	return cloneJob(job), nil
}

// Jobs returns a snapshot of every registered job.
func (r *Registry) Jobs() []*types.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, cloneJob(job))
	}
	return out
}

// Count returns the number of registered jobs, used by global_status.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// JobForProcess finds the job that triple is authorised under, if any.
func (r *Registry) JobForProcess(triple types.ProcessTriple) (*types.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, job := range r.jobs {
		if _, ok := job.Processes[triple]; ok {
			return cloneJob(job), true
		}
	}
	return nil, false
}

// AllowsNamespace reports whether job id may reference namespace nsID.
func (r *Registry) AllowsNamespace(id types.JobID, nsID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	_, ok = job.Namespaces[nsID]
	return ok
}

func cloneJob(job *types.Job) *types.Job {
	out := &types.Job{
		ID:         job.ID,
		Hostnames:  append([]string(nil), job.Hostnames...),
		Processes:  make(map[types.ProcessTriple]struct{}, len(job.Processes)),
		Namespaces: make(map[string]struct{}, len(job.Namespaces)),
	}
	for p := range job.Processes {
		out.Processes[p] = struct{}{}
	}
	for ns := range job.Namespaces {
		out.Namespaces[ns] = struct{}{}
	}
	return out
}
