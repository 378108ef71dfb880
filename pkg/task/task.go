package task

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/NGIOproject/NORNS-sub002/pkg/backend"
	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/log"
	"github.com/NGIOproject/NORNS-sub002/pkg/transfer"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
	"github.com/rs/zerolog"
)

// EventSink receives task lifecycle notifications. Implemented by
// pkg/events; nil is a valid no-op sink.
type EventSink interface {
	TaskStateChanged(id types.TaskID, status types.TaskStatus)
}

// Config configures a Manager.
type Config struct {
	Workers       int
	HighWaterMark int // 0 disables the too_many_tasks check
	Matrix        *transfer.Matrix
	Backends      *backend.Registry
	Events        EventSink
}

type workItem struct {
	task       *types.Task
	transferor transfer.Transferor
	creds      types.Credentials
	srcNS      string
	dstNS      string
}

// Manager is the task manager and worker pool of spec.md §4.5.
type Manager struct {
	mu     sync.RWMutex
	tasks  map[types.TaskID]*types.Task
	nextID uint32

	queue         chan workItem
	highWaterMark int
	paused        atomic.Bool

	matrix   *transfer.Matrix
	backends *backend.Registry
	events   EventSink

	workers int
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	logger zerolog.Logger
}

// New constructs a Manager. Call Start to launch its worker pool.
func New(cfg Config) *Manager {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	queueCap := cfg.HighWaterMark
	if queueCap <= 0 {
		queueCap = 1 << 16 // effectively unbounded; too_many_tasks check below is skipped
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		tasks:         make(map[types.TaskID]*types.Task),
		queue:         make(chan workItem, queueCap),
		highWaterMark: cfg.HighWaterMark,
		matrix:        cfg.Matrix,
		backends:      cfg.Backends,
		events:        cfg.Events,
		workers:       workers,
		ctx:           ctx,
		cancel:        cancel,
		logger:        log.WithComponent("task"),
	}
}

// Start launches the worker pool.
func (m *Manager) Start() {
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.runWorker(i)
	}
}

// Stop closes the work queue, waits for the workers to finish every
// item already queued, and then cancels the context passed to
// transferors.
func (m *Manager) Stop() {
	close(m.queue)
	m.wg.Wait()
	m.cancel()
}

// PauseAccept sets the accept-paused flag (spec.md §4.8).
func (m *Manager) PauseAccept() { m.paused.Store(true) }

// ResumeAccept clears the accept-paused flag.
func (m *Manager) ResumeAccept() { m.paused.Store(false) }

// IsPaused reports the current accept-paused state.
func (m *Manager) IsPaused() bool { return m.paused.Load() }

// Submit validates and admits a new task, returning its id. jobID
// links the task to the job whose process set authorised it, so
// UnregisterJob's tasks_pending check (spec.md §4.3) can be enforced;
// pass the zero JobID for a task submitted with no credentials.
func (m *Manager) Submit(creds types.Credentials, jobID types.JobID, op types.Operation, src, dst *types.Resource) (types.TaskID, error) {
	if m.paused.Load() {
		return types.InvalidTaskID, errs.New(errs.AcceptPaused)
	}
	if op != types.OpRemove && dst == nil {
		return types.InvalidTaskID, errs.New(errs.BadArgs)
	}
	if src == nil {
		return types.InvalidTaskID, errs.New(errs.BadArgs)
	}

	// remove names the resource to delete via src (§4.1); route it
	// through the self-pair entry for its own kind.
	dstKind := src.Descriptor.Kind
	if op != types.OpRemove && dst != nil {
		dstKind = dst.Descriptor.Kind
	}
	transferor, ok := m.matrix.Lookup(src.Descriptor.Kind, dstKind)
	if !ok {
		return types.InvalidTaskID, errs.New(errs.NotSupported)
	}
	if !transferor.Validate(src, dst) {
		return types.InvalidTaskID, errs.New(errs.BadArgs)
	}

	if m.highWaterMark > 0 && len(m.queue) >= m.highWaterMark {
		return types.InvalidTaskID, errs.New(errs.TooManyTasks)
	}

	id := types.TaskID(atomic.AddUint32(&m.nextID, 1))
	t := types.NewTask(id, op, src, dst)
	t.JobID = jobID

	m.mu.Lock()
	m.tasks[id] = t
	m.mu.Unlock()

	item := workItem{task: t, transferor: transferor, creds: creds}
	if src.Backend != nil {
		item.srcNS = src.Backend.NamespaceID
		m.backends.AddRef(item.srcNS)
	}
	if dst != nil && dst.Backend != nil {
		item.dstNS = dst.Backend.NamespaceID
		m.backends.AddRef(item.dstNS)
	}

	select {
	case m.queue <- item:
	default:
		m.mu.Lock()
		delete(m.tasks, id)
		m.mu.Unlock()
		m.releaseRefs(item)
		return types.InvalidTaskID, errs.New(errs.TooManyTasks)
	}

	m.publish(id, types.TaskPending)
	return id, nil
}

// Status returns a task's current status and terminal error code.
func (m *Manager) Status(id types.TaskID) (types.TaskStatus, int32, error) {
	m.mu.RLock()
	t, ok := m.tasks[id]
	m.mu.RUnlock()
	if !ok {
		return "", 0, errs.New(errs.NoSuchTask)
	}
	return t.Status(), t.ErrorCode(), nil
}

// Cancel sets a task's cooperative cancellation flag.
func (m *Manager) Cancel(id types.TaskID) error {
	m.mu.RLock()
	t, ok := m.tasks[id]
	m.mu.RUnlock()
	if !ok {
		return errs.New(errs.NoSuchTask)
	}
	t.Cancel()
	return nil
}

// Counts returns the number of tasks in each status bucket, used by
// global_status.
func (m *Manager) Counts() (pending, running, finished, errored uint32) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tasks {
		switch t.Status() {
		case types.TaskPending:
			pending++
		case types.TaskRunning:
			running++
		case types.TaskFinished:
			finished++
		case types.TaskError:
			errored++
		}
	}
	return
}

// OutstandingForJob reports how many of jobID's submitted tasks have
// not yet reached a terminal status, used to enforce job_unregister's
// tasks_pending error (spec.md §4.3).
func (m *Manager) OutstandingForJob(jobID types.JobID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, t := range m.tasks {
		if t.JobID == jobID && !t.Status().Terminal() {
			n++
		}
	}
	return n
}

func (m *Manager) runWorker(idx int) {
	defer m.wg.Done()
	for item := range m.queue {
		m.process(idx, item)
	}
}

func (m *Manager) process(idx int, item workItem) {
	t := item.task
	t.MarkRunning()
	m.publish(t.ID, types.TaskRunning)

	code := m.runTransferSafely(item)

	status := types.TaskFinished
	if code != errs.Success {
		status = types.TaskError
	}
	t.MarkTerminal(status, int32(code))
	m.publish(t.ID, status)
	m.releaseRefs(item)
}

// runTransferSafely invokes the transferor, converting a panic into a
// snafu completion so the worker keeps consuming further work
// (spec.md §7).
func (m *Manager) runTransferSafely(item workItem) (code errs.Code) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Uint32("task_id", uint32(item.task.ID)).Msg("worker recovered from panic")
			code = errs.Snafu
		}
	}()

	var dst *types.Resource
	if item.task.Destination != nil {
		dst = item.task.Destination
	}
	return item.transferor.Transfer(m.ctx, item.creds, item.task, item.task.Source, dst)
}

func (m *Manager) releaseRefs(item workItem) {
	if item.srcNS != "" {
		m.backends.Release(item.srcNS)
	}
	if item.dstNS != "" {
		m.backends.Release(item.dstNS)
	}
}

func (m *Manager) publish(id types.TaskID, status types.TaskStatus) {
	if m.events != nil {
		m.events.TaskStateChanged(id, status)
	}
}
