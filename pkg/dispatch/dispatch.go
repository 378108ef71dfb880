package dispatch

import (
	"context"

	"github.com/NGIOproject/NORNS-sub002/pkg/backend"
	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/log"
	"github.com/NGIOproject/NORNS-sub002/pkg/registry"
	"github.com/NGIOproject/NORNS-sub002/pkg/remote"
	"github.com/NGIOproject/NORNS-sub002/pkg/task"
	"github.com/NGIOproject/NORNS-sub002/pkg/transfer"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
	"github.com/NGIOproject/NORNS-sub002/pkg/wire"
	"github.com/rs/zerolog"
)

// Dispatcher wires the job/process registry, the backend registry, and
// the task manager into the handler table spec.md §4.3 describes. It
// implements pkg/session.Dispatcher.
type Dispatcher struct {
	jobs     *registry.Registry
	backends *backend.Registry
	tasks    *task.Manager
	remote   *remote.Acceptor
	shutdown func()
	logger   zerolog.Logger
}

// New builds a Dispatcher. matrix is shared with the task manager so
// that accepted cross-node transfers (pkg/remote.Acceptor) route
// through the same (src-kind, dst-kind) table as locally submitted
// tasks. onShutdown is invoked (asynchronously) when a "shutdown"
// command arrives; it is typically pkg/daemon's stop function. It may
// be nil in tests that don't exercise shutdown.
func New(jobs *registry.Registry, backends *backend.Registry, tasks *task.Manager, matrix *transfer.Matrix, onShutdown func()) *Dispatcher {
	return &Dispatcher{
		jobs:     jobs,
		backends: backends,
		tasks:    tasks,
		remote:   remote.NewAcceptor(backends, matrix),
		shutdown: onShutdown,
		logger:   log.WithComponent("dispatch"),
	}
}

// Dispatch routes req to its handler. A request kind with no entry —
// impossible at the Go type level since RequestKind is closed, but
// reachable if the wire decoder accepts a kind this table doesn't
// recognise — falls through to bad_request.
func (d *Dispatcher) Dispatch(ctx context.Context, req *wire.Request) *wire.Response {
	switch req.Kind {
	case wire.ReqPing:
		return ack(errs.Success)
	case wire.ReqGlobalStatus:
		return d.handleGlobalStatus()
	case wire.ReqCommand:
		return d.handleCommand(req)
	case wire.ReqJobRegister:
		return ack(d.jobs.RegisterJob(req.JobID, req.Hostnames, req.Namespaces))
	case wire.ReqJobUpdate:
		return ack(d.jobs.UpdateJob(req.JobID, req.Hostnames, req.Namespaces))
	case wire.ReqJobUnregister:
		return ack(d.handleJobUnregister(req.JobID))
	case wire.ReqProcessRegister:
		return ack(d.jobs.RegisterProcess(req.JobID, req.Triple))
	case wire.ReqProcessUnregister:
		return ack(d.jobs.UnregisterProcess(req.JobID, req.Triple))
	case wire.ReqNamespaceRegister:
		return ack(d.handleNamespaceRegister(req))
	case wire.ReqNamespaceUpdate:
		return ack(d.backends.Update(req.NamespaceID, req.MountPoint, req.Capacity, req.Tracked))
	case wire.ReqNamespaceUnregister:
		return ack(d.backends.Unregister(req.NamespaceID))
	case wire.ReqIOTaskSubmit:
		return d.handleIOTaskSubmit(req)
	case wire.ReqIOTaskStatus:
		return d.handleIOTaskStatus(req)
	case wire.ReqPushResource:
		return d.remote.HandlePush(ctx, req)
	case wire.ReqPullResource:
		return d.remote.HandlePull(ctx, req)
	default:
		return &wire.Response{Kind: wire.RespAck, Code: errs.BadRequest}
	}
}

func ack(err error) *wire.Response {
	return &wire.Response{Kind: wire.RespAck, Code: errs.CodeOf(err)}
}

func (d *Dispatcher) handleGlobalStatus() *wire.Response {
	pending, running, finished, errored := d.tasks.Counts()
	return &wire.Response{
		Kind: wire.RespGlobalStatus,
		Code: errs.Success,
		Status2: wire.GlobalStatusSnapshot{
			Jobs:          uint32(d.jobs.Count()),
			Namespaces:    uint32(d.backends.Count()),
			TasksPending:  pending,
			TasksRunning:  running,
			TasksFinished: finished,
			TasksError:    errored,
			AcceptPaused:  d.tasks.IsPaused(),
		},
	}
}

func (d *Dispatcher) handleCommand(req *wire.Request) *wire.Response {
	switch req.Command {
	case wire.CmdPing:
		return ack(nil)
	case wire.CmdPauseAccept:
		d.tasks.PauseAccept()
		return ack(nil)
	case wire.CmdResumeAccept:
		d.tasks.ResumeAccept()
		return ack(nil)
	case wire.CmdShutdown:
		if d.shutdown != nil {
			go d.shutdown()
		}
		return ack(nil)
	default:
		// Not in the closed error enumeration of spec.md §6; treated as
		// the generic "unrecognised request" case per §7.
		return &wire.Response{Kind: wire.RespAck, Code: errs.BadRequest}
	}
}

// handleJobUnregister enforces spec.md §4.3's tasks_pending error: a
// job with outstanding (non-terminal) tasks cannot be unregistered
// until they finish or error out.
func (d *Dispatcher) handleJobUnregister(id types.JobID) error {
	if n := d.tasks.OutstandingForJob(id); n > 0 {
		return errs.New(errs.TasksPending)
	}
	return d.jobs.UnregisterJob(id)
}

func (d *Dispatcher) handleNamespaceRegister(req *wire.Request) error {
	return d.backends.Register(types.Backend{
		NamespaceID: req.NamespaceID,
		Kind:        req.BackendType,
		MountPoint:  req.MountPoint,
		Capacity:    req.Capacity,
		Tracked:     req.Tracked,
	})
}

func (d *Dispatcher) handleIOTaskSubmit(req *wire.Request) *wire.Response {
	if !req.SourceSet {
		return &wire.Response{Kind: wire.RespAck, Code: errs.BadArgs}
	}
	if req.Operation != types.OpRemove && !req.DestSet {
		return &wire.Response{Kind: wire.RespAck, Code: errs.BadArgs}
	}

	// The process set is the only gate for requests that carry
	// credentials (spec.md §3): a credentialed triple with no job, or a
	// job not permitted to reference the named namespace, is rejected
	// before the resource is ever resolved against the backend
	// registry. Requests without credentials (purely remote peers)
	// carry no process to gate on and skip this check entirely.
	var jobID types.JobID
	authorize := req.Credentials.Present
	if authorize {
		job, ok := d.jobs.JobForProcess(req.Credentials.Triple)
		if !ok {
			return &wire.Response{Kind: wire.RespAck, Code: errs.NoSuchProcess}
		}
		jobID = job.ID
	}

	src, err := d.resolveResource(req.Source, authorize, jobID)
	if err != nil {
		return &wire.Response{Kind: wire.RespAck, Code: errs.CodeOf(err)}
	}

	var dst *types.Resource
	if req.DestSet {
		dst, err = d.resolveResource(req.Destination, authorize, jobID)
		if err != nil {
			return &wire.Response{Kind: wire.RespAck, Code: errs.CodeOf(err)}
		}
	}

	id, err := d.tasks.Submit(req.Credentials, jobID, req.Operation, src, dst)
	if err != nil {
		return &wire.Response{Kind: wire.RespAck, Code: errs.CodeOf(err)}
	}
	return &wire.Response{Kind: wire.RespTaskID, Code: errs.Success, TaskID: id}
}

func (d *Dispatcher) handleIOTaskStatus(req *wire.Request) *wire.Response {
	status, code, err := d.tasks.Status(req.TaskID)
	if err != nil {
		return &wire.Response{Kind: wire.RespAck, Code: errs.CodeOf(err)}
	}
	return &wire.Response{Kind: wire.RespTaskStatus, Code: errs.Success, Status: status, ErrorCode: code}
}

// resolveResource validates a descriptor against spec.md §4.3's
// uniform rules and binds it to a concrete backend: path kinds resolve
// their namespace id against the backend registry; a hostname-bearing
// descriptor whose namespace id isn't locally registered is bound to a
// synthesised remote backend (spec.md §4.3, §9) instead of failing.
// When authorize is true, any namespace-bearing descriptor is also
// checked against jobID's capability set (spec.md §3) before it is
// resolved against the backend registry at all; a namespace the job
// isn't permitted to reference is reported identically to one that
// doesn't exist, since the closed error enumeration has no dedicated
// authorization-failure code.
func (d *Dispatcher) resolveResource(desc types.ResourceDescriptor, authorize bool, jobID types.JobID) (*types.Resource, error) {
	if !desc.Kind.Valid() {
		return nil, errs.New(errs.BadArgs)
	}

	if authorize && desc.NamespaceID != "" && !d.jobs.AllowsNamespace(jobID, desc.NamespaceID) {
		return nil, errs.New(errs.NoSuchNamespace)
	}

	switch desc.Kind {
	case types.ResourceMemoryRegion:
		if desc.Address == 0 || desc.Size == 0 {
			return nil, errs.New(errs.BadArgs)
		}
		return &types.Resource{Descriptor: desc, Name: desc.Name}, nil

	case types.ResourceLocalPosixPath, types.ResourceSharedPosixPath:
		if desc.Hostname != "" {
			return nil, errs.New(errs.BadArgs)
		}
		b, ok := d.backends.Lookup(desc.NamespaceID)
		if !ok {
			return nil, errs.New(errs.NoSuchNamespace)
		}
		return &types.Resource{Descriptor: desc, Backend: b, Name: desc.Path, IsCollection: desc.IsCollection}, nil

	case types.ResourceRemotePosixPath, types.ResourceRemoteResource:
		if desc.Hostname == "" {
			return nil, errs.New(errs.BadArgs)
		}
		b, ok := d.backends.Lookup(desc.NamespaceID)
		if !ok {
			b = backend.SynthesizeRemote(desc.NamespaceID)
		}
		name := desc.Name
		if name == "" {
			name = desc.Path
		}
		return &types.Resource{Descriptor: desc, Backend: b, Name: name, IsCollection: desc.IsCollection}, nil

	case types.ResourceIgnorable:
		return &types.Resource{Descriptor: desc}, nil

	default:
		return nil, errs.New(errs.BadArgs)
	}
}
