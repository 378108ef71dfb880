package wire

import (
	"fmt"

	"github.com/NGIOproject/NORNS-sub002/pkg/types"
)

// RequestKind tags the variant carried by a Request, covering every row
// of spec.md §4.3 plus the cross-node RPCs of §4.7.
type RequestKind uint8

const (
	ReqPing RequestKind = iota
	ReqGlobalStatus
	ReqCommand
	ReqJobRegister
	ReqJobUpdate
	ReqJobUnregister
	ReqProcessRegister
	ReqProcessUnregister
	ReqNamespaceRegister
	ReqNamespaceUpdate
	ReqNamespaceUnregister
	ReqIOTaskSubmit
	ReqIOTaskStatus
	ReqPushResource
	ReqPullResource
)

// CommandName is the payload of a "command" request (spec.md §4.3).
type CommandName uint8

const (
	CmdPing CommandName = iota
	CmdPauseAccept
	CmdResumeAccept
	CmdShutdown
)

// Request is the tagged union of every client→daemon and daemon→daemon
// message. Only the fields relevant to Kind are meaningful; this mirrors
// a protobuf oneof without requiring a generated schema (spec.md §6).
type Request struct {
	Kind        RequestKind
	Credentials types.Credentials

	// job_register / job_update (JobID alone also serves job_unregister,
	// process_register and process_unregister)
	JobID      types.JobID
	Hostnames  []string
	Namespaces []string // capability list: namespace ids the job may reference

	// process_register / process_unregister
	Triple types.ProcessTriple

	// namespace_register / namespace_update / namespace_unregister
	NamespaceID string
	BackendType types.BackendKind
	Tracked     bool
	MountPoint  string
	Capacity    uint64

	// iotask_submit
	Operation     types.Operation
	Source        types.ResourceDescriptor
	SourceSet     bool
	Destination   types.ResourceDescriptor
	DestSet       bool

	// iotask_status
	TaskID types.TaskID

	// command
	Command CommandName

	// push_resource / pull_resource (remote transfer protocol, §4.7).
	// DestDescriptor names the destination for a push but is repurposed
	// to name the source to expose for a pull (pkg/remote documents the
	// repurposing at its call sites).
	RemoteTaskID   types.TaskID
	SourceKind     types.ResourceKind
	SourceName     string
	DestDescriptor types.ResourceDescriptor
	MemoryHandle   []byte
	InlineData     []byte
	TotalBytes     uint64
}

// Encode serialises req into a flat body. Encoding never produces a
// partial message (spec.md §4.1).
func (req *Request) Encode() []byte {
	w := &writer{}
	w.u8(uint8(req.Kind))
	encodeCredentials(w, req.Credentials)

	switch req.Kind {
	case ReqPing, ReqGlobalStatus:
		// no payload

	case ReqCommand:
		w.u8(uint8(req.Command))

	case ReqJobRegister, ReqJobUpdate:
		w.u32(uint32(req.JobID))
		w.strSlice(req.Hostnames)
		w.strSlice(req.Namespaces)

	case ReqJobUnregister:
		w.u32(uint32(req.JobID))

	case ReqProcessRegister, ReqProcessUnregister:
		w.u32(uint32(req.JobID))
		w.u32(req.Triple.UID)
		w.u32(req.Triple.GID)
		w.u32(req.Triple.PID)

	case ReqNamespaceRegister, ReqNamespaceUpdate:
		w.str(req.NamespaceID)
		w.str(string(req.BackendType))
		w.boolean(req.Tracked)
		w.str(req.MountPoint)
		w.u64(req.Capacity)

	case ReqNamespaceUnregister:
		w.str(req.NamespaceID)

	case ReqIOTaskSubmit:
		w.str(string(req.Operation))
		w.boolean(req.SourceSet)
		if req.SourceSet {
			encodeDescriptor(w, req.Source)
		}
		w.boolean(req.DestSet)
		if req.DestSet {
			encodeDescriptor(w, req.Destination)
		}

	case ReqIOTaskStatus:
		w.u32(uint32(req.TaskID))

	case ReqPushResource:
		w.u32(uint32(req.RemoteTaskID))
		w.str(string(req.SourceKind))
		w.str(req.SourceName)
		encodeDescriptor(w, req.DestDescriptor)
		w.bytes(req.MemoryHandle)
		w.bytes(req.InlineData)
		w.u64(req.TotalBytes)

	case ReqPullResource:
		w.u32(uint32(req.RemoteTaskID))
		encodeDescriptor(w, req.DestDescriptor)
	}

	return w.buf
}

// DecodeRequest parses a body previously produced by Request.Encode.
func DecodeRequest(body []byte) (*Request, error) {
	r := newReader(body)
	kindByte, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBodyTruncated, err)
	}
	req := &Request{Kind: RequestKind(kindByte)}

	if req.Credentials, err = decodeCredentials(r); err != nil {
		return nil, err
	}

	switch req.Kind {
	case ReqPing, ReqGlobalStatus:
		// no payload

	case ReqCommand:
		c, err := r.u8()
		if err != nil {
			return nil, err
		}
		req.Command = CommandName(c)

	case ReqJobRegister, ReqJobUpdate:
		jobID, err := r.u32()
		if err != nil {
			return nil, err
		}
		req.JobID = types.JobID(jobID)
		if req.Hostnames, err = r.strSlice(); err != nil {
			return nil, err
		}
		if req.Namespaces, err = r.strSlice(); err != nil {
			return nil, err
		}

	case ReqJobUnregister:
		jobID, err := r.u32()
		if err != nil {
			return nil, err
		}
		req.JobID = types.JobID(jobID)

	case ReqProcessRegister, ReqProcessUnregister:
		jobID, err := r.u32()
		if err != nil {
			return nil, err
		}
		req.JobID = types.JobID(jobID)
		if req.Triple.UID, err = r.u32(); err != nil {
			return nil, err
		}
		if req.Triple.GID, err = r.u32(); err != nil {
			return nil, err
		}
		if req.Triple.PID, err = r.u32(); err != nil {
			return nil, err
		}

	case ReqNamespaceRegister, ReqNamespaceUpdate:
		if req.NamespaceID, err = r.str(); err != nil {
			return nil, err
		}
		bt, err := r.str()
		if err != nil {
			return nil, err
		}
		req.BackendType = types.BackendKind(bt)
		if req.Tracked, err = r.boolean(); err != nil {
			return nil, err
		}
		if req.MountPoint, err = r.str(); err != nil {
			return nil, err
		}
		if req.Capacity, err = r.u64(); err != nil {
			return nil, err
		}

	case ReqNamespaceUnregister:
		if req.NamespaceID, err = r.str(); err != nil {
			return nil, err
		}

	case ReqIOTaskSubmit:
		op, err := r.str()
		if err != nil {
			return nil, err
		}
		req.Operation = types.Operation(op)
		if req.SourceSet, err = r.boolean(); err != nil {
			return nil, err
		}
		if req.SourceSet {
			if req.Source, err = decodeDescriptor(r); err != nil {
				return nil, err
			}
		}
		if req.DestSet, err = r.boolean(); err != nil {
			return nil, err
		}
		if req.DestSet {
			if req.Destination, err = decodeDescriptor(r); err != nil {
				return nil, err
			}
		}

	case ReqIOTaskStatus:
		taskID, err := r.u32()
		if err != nil {
			return nil, err
		}
		req.TaskID = types.TaskID(taskID)

	case ReqPushResource:
		taskID, err := r.u32()
		if err != nil {
			return nil, err
		}
		req.RemoteTaskID = types.TaskID(taskID)
		sk, err := r.str()
		if err != nil {
			return nil, err
		}
		req.SourceKind = types.ResourceKind(sk)
		if req.SourceName, err = r.str(); err != nil {
			return nil, err
		}
		if req.DestDescriptor, err = decodeDescriptor(r); err != nil {
			return nil, err
		}
		if req.MemoryHandle, err = r.bytes(); err != nil {
			return nil, err
		}
		if req.InlineData, err = r.bytes(); err != nil {
			return nil, err
		}
		if req.TotalBytes, err = r.u64(); err != nil {
			return nil, err
		}

	case ReqPullResource:
		taskID, err := r.u32()
		if err != nil {
			return nil, err
		}
		req.RemoteTaskID = types.TaskID(taskID)
		if req.DestDescriptor, err = decodeDescriptor(r); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("wire: unrecognised request kind %d", kindByte)
	}

	return req, nil
}
