package types

import (
	"sync"
	"sync/atomic"
	"time"
)

// JobID identifies a registered job. The registering client chooses the
// id; zero is also the JobID of a task whose request carried no
// credentials.
type JobID uint32

// TaskID identifies an I/O task. Zero is reserved as "invalid".
type TaskID uint32

// InvalidTaskID is the sentinel returned when no task was allocated.
const InvalidTaskID TaskID = 0

// ResourceKind is the closed variant of storage kinds a resource may name.
type ResourceKind string

const (
	ResourceMemoryRegion    ResourceKind = "memory_region"
	ResourceLocalPosixPath  ResourceKind = "local_posix_path"
	ResourceSharedPosixPath ResourceKind = "shared_posix_path"
	ResourceRemotePosixPath ResourceKind = "remote_posix_path"
	ResourceRemoteResource  ResourceKind = "remote_resource"
	ResourceIgnorable       ResourceKind = "ignorable"
)

// Valid reports whether k is one of the six recognised resource kinds.
func (k ResourceKind) Valid() bool {
	switch k {
	case ResourceMemoryRegion, ResourceLocalPosixPath, ResourceSharedPosixPath,
		ResourceRemotePosixPath, ResourceRemoteResource, ResourceIgnorable:
		return true
	}
	return false
}

// BackendKind tags what a registered namespace is backed by.
type BackendKind string

const (
	BackendLocalPosixPath  BackendKind = "local_posix_path"
	BackendSharedPosixPath BackendKind = "shared_posix_path"
	BackendMemory          BackendKind = "memory_region"
	BackendRemote          BackendKind = "remote_resource"
)

// Operation is the closed set of I/O task operations.
type Operation string

const (
	OpCopy   Operation = "copy"
	OpMove   Operation = "move"
	OpRemove Operation = "remove"
)

// TaskStatus is the closed set of I/O task lifecycle states.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskRunning  TaskStatus = "running"
	TaskFinished TaskStatus = "finished"
	TaskError    TaskStatus = "error"
)

// Terminal reports whether s is one of the two terminal states.
func (s TaskStatus) Terminal() bool {
	return s == TaskFinished || s == TaskError
}

// ProcessTriple identifies an OS-level process authorised to act on
// behalf of a job.
type ProcessTriple struct {
	UID uint32
	GID uint32
	PID uint32
}

// Credentials captures the peer identity attached to a request, either
// supplied explicitly by the client or fetched from the connection
// socket by the session layer. Present is false for purely remote peers
// that never had local credentials to capture.
type Credentials struct {
	Triple  ProcessTriple
	Present bool
}

// ResourceDescriptor is what a client sends to name a piece of data.
// Only the fields relevant to Kind are populated.
type ResourceDescriptor struct {
	Kind ResourceKind

	// memory_region
	Address uintptr
	Size    uint64

	// local_posix_path / shared_posix_path / remote_posix_path
	NamespaceID string
	Path        string

	// remote_posix_path / remote_resource
	Hostname string

	// remote_resource
	Name           string
	MemoryHandle   []byte
	IsCollection   bool
}

// Backend is a registered storage namespace.
type Backend struct {
	NamespaceID string
	Kind        BackendKind
	MountPoint  string // empty for memory/remote kinds
	Capacity    uint64 // bytes; 0 means unlimited
	Tracked     bool
	Synthesized bool // true for on-the-fly remote backends (spec.md §4.3, §9)
}

// IsPathKind reports whether b stores data under a filesystem mount point.
func (b *Backend) IsPathKind() bool {
	switch b.Kind {
	case BackendLocalPosixPath, BackendSharedPosixPath:
		return true
	}
	return false
}

// Resource binds a descriptor to the backend instance it resolved against.
type Resource struct {
	Descriptor   ResourceDescriptor
	Backend      *Backend
	Name         string // canonical name (usually the relative path)
	IsCollection bool
	PackedSize   uint64 // bytes if serialised as a single stream
}

// Job is a registered batch job permitted to submit I/O tasks.
type Job struct {
	ID         JobID
	Hostnames  []string
	Processes  map[ProcessTriple]struct{}
	Namespaces map[string]struct{}
}

// Task is a single unit of data movement. Its status only moves forward
// (pending, running, then one terminal state) and its error code is set
// once with the terminal state, both guarded by mu; Cancelled is a fire-and-
// forget flag a worker polls between chunks. Always handled through a
// pointer — never copy a Task by value.
type Task struct {
	ID          TaskID
	JobID       JobID // zero if the submitting request carried no credentials
	Operation   Operation
	Source      *Resource
	Destination *Resource // nil for remove
	Cancelled   atomic.Bool
	CreatedAt   time.Time
	StartedAt   time.Time
	FinishedAt  time.Time

	// Remote holds cross-node transfer state (spec.md §4.7); nil for
	// purely local tasks.
	Remote *RemoteTaskState

	mu        sync.Mutex
	status    TaskStatus
	errorCode int32
}

// NewTask constructs a task in the pending state.
func NewTask(id TaskID, op Operation, src, dst *Resource) *Task {
	return &Task{
		ID:          id,
		Operation:   op,
		Source:      src,
		Destination: dst,
		status:      TaskPending,
		CreatedAt:   time.Now(),
	}
}

// Status returns the task's current lifecycle state.
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// ErrorCode returns the terminal error code; valid only once Status
// is terminal.
func (t *Task) ErrorCode() int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errorCode
}

// MarkRunning transitions a pending task to running.
func (t *Task) MarkRunning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != TaskPending {
		return
	}
	t.status = TaskRunning
	t.StartedAt = time.Now()
}

// MarkTerminal transitions the task to finished or error, recording
// code. No-op if already terminal: terminal states are immutable.
func (t *Task) MarkTerminal(status TaskStatus, code int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	t.status = status
	t.errorCode = code
	t.FinishedAt = time.Now()
}

// Cancel sets the cooperative cancellation flag.
func (t *Task) Cancel() {
	t.Cancelled.Store(true)
}

// IsCancelled reports whether Cancel has been called.
func (t *Task) IsCancelled() bool {
	return t.Cancelled.Load()
}

// RemoteTaskState tracks the staging location and peer role for a task
// whose source or destination lives on another daemon.
type RemoteTaskState struct {
	StagingPath string
	PeerAddress string
	IsAcceptor  bool

	// InlineData carries the push payload to materialise, or the pull
	// payload read back, across a Transferor.AcceptTransfer call: the
	// acceptor side of the protocol has no path-kind resource on both
	// ends of the pair, so the bytes travel through the task rather
	// than through a second resolved Resource.
	InlineData []byte
}
