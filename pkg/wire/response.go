package wire

import (
	"fmt"

	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
)

// ResponseKind tags the variant carried by a Response.
type ResponseKind uint8

const (
	RespAck ResponseKind = iota
	RespGlobalStatus
	RespTaskID
	RespTaskStatus
	RespPullHandle
)

// GlobalStatusSnapshot is the payload of a global_status response
// (spec.md §4.3, supplemented by SPEC_FULL.md's global_status counters).
type GlobalStatusSnapshot struct {
	Jobs           uint32
	Namespaces     uint32
	TasksPending   uint32
	TasksRunning   uint32
	TasksFinished  uint32
	TasksError     uint32
	AcceptPaused   bool
}

// Response is the tagged union of every daemon→client and acceptor→
// initiator message.
type Response struct {
	Kind ResponseKind
	Code errs.Code

	// RespTaskID
	TaskID types.TaskID

	// RespTaskStatus
	Status    types.TaskStatus
	ErrorCode int32

	// RespGlobalStatus
	Status2 GlobalStatusSnapshot

	// RespPullHandle (pull_resource response, §4.7)
	Handle      []byte
	PeerAddress string
	TotalBytes  uint64
}

// Encode serialises resp into a flat body.
func (resp *Response) Encode() []byte {
	w := &writer{}
	w.u8(uint8(resp.Kind))
	w.u32(uint32(resp.Code))

	switch resp.Kind {
	case RespAck:
		// no payload

	case RespTaskID:
		w.u32(uint32(resp.TaskID))

	case RespTaskStatus:
		w.str(string(resp.Status))
		w.u32(uint32(resp.ErrorCode))

	case RespGlobalStatus:
		s := resp.Status2
		w.u32(s.Jobs)
		w.u32(s.Namespaces)
		w.u32(s.TasksPending)
		w.u32(s.TasksRunning)
		w.u32(s.TasksFinished)
		w.u32(s.TasksError)
		w.boolean(s.AcceptPaused)

	case RespPullHandle:
		w.bytes(resp.Handle)
		w.str(resp.PeerAddress)
		w.u64(resp.TotalBytes)
	}

	return w.buf
}

// DecodeResponse parses a body previously produced by Response.Encode.
func DecodeResponse(body []byte) (*Response, error) {
	r := newReader(body)
	kindByte, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBodyTruncated, err)
	}
	code, err := r.u32()
	if err != nil {
		return nil, err
	}
	resp := &Response{Kind: ResponseKind(kindByte), Code: errs.Code(code)}

	switch resp.Kind {
	case RespAck:
		// no payload

	case RespTaskID:
		taskID, err := r.u32()
		if err != nil {
			return nil, err
		}
		resp.TaskID = types.TaskID(taskID)

	case RespTaskStatus:
		status, err := r.str()
		if err != nil {
			return nil, err
		}
		resp.Status = types.TaskStatus(status)
		ec, err := r.u32()
		if err != nil {
			return nil, err
		}
		resp.ErrorCode = int32(ec)

	case RespGlobalStatus:
		var s GlobalStatusSnapshot
		if s.Jobs, err = r.u32(); err != nil {
			return nil, err
		}
		if s.Namespaces, err = r.u32(); err != nil {
			return nil, err
		}
		if s.TasksPending, err = r.u32(); err != nil {
			return nil, err
		}
		if s.TasksRunning, err = r.u32(); err != nil {
			return nil, err
		}
		if s.TasksFinished, err = r.u32(); err != nil {
			return nil, err
		}
		if s.TasksError, err = r.u32(); err != nil {
			return nil, err
		}
		if s.AcceptPaused, err = r.boolean(); err != nil {
			return nil, err
		}
		resp.Status2 = s

	case RespPullHandle:
		if resp.Handle, err = r.bytes(); err != nil {
			return nil, err
		}
		if resp.PeerAddress, err = r.str(); err != nil {
			return nil, err
		}
		if resp.TotalBytes, err = r.u64(); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("wire: unrecognised response kind %d", kindByte)
	}

	return resp, nil
}
