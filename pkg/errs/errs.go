package errs

import (
	"errors"
	"fmt"
)

// Code is a member of the closed error-code enumeration of spec.md §6.
type Code int32

const (
	Success Code = iota
	Snafu
	BadArgs
	BadRequest
	OutOfMemory
	NotSupported
	SystemError
	ConnectionFailed
	RPCSendFailed
	RPCRecvFailed
	AcceptPaused
	JobExists
	NoSuchJob
	ProcessExists
	NoSuchProcess
	NamespaceExists
	NoSuchNamespace
	NamespaceNotEmpty
	TaskExists
	NoSuchTask
	TooManyTasks
	TasksPending
	ResourceExists
	NoSuchResource
)

var names = map[Code]string{
	Success:           "success",
	Snafu:             "snafu",
	BadArgs:           "bad_args",
	BadRequest:        "bad_request",
	OutOfMemory:       "out_of_memory",
	NotSupported:      "not_supported",
	SystemError:       "system_error",
	ConnectionFailed:  "connection_failed",
	RPCSendFailed:     "rpc_send_failed",
	RPCRecvFailed:     "rpc_recv_failed",
	AcceptPaused:      "accept_paused",
	JobExists:         "job_exists",
	NoSuchJob:         "no_such_job",
	ProcessExists:     "process_exists",
	NoSuchProcess:     "no_such_process",
	NamespaceExists:   "namespace_exists",
	NoSuchNamespace:   "no_such_namespace",
	NamespaceNotEmpty: "namespace_not_empty",
	TaskExists:        "task_exists",
	NoSuchTask:        "no_such_task",
	TooManyTasks:      "too_many_tasks",
	TasksPending:      "tasks_pending",
	ResourceExists:    "resource_exists",
	NoSuchResource:    "no_such_resource",
}

// String renders the wire name of c, e.g. "no_such_job".
func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int32(c))
}

// Error wraps a Code with an optional underlying cause kept for logging.
// Only Code crosses the wire; Cause is never serialised.
type Error struct {
	Code  Code
	Cause error
}

// New returns an *Error for code with no underlying cause.
func New(code Code) *Error {
	return &Error{Code: code}
}

// Wrap returns an *Error for code that retains cause for log lines.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is(err, errs.New(errs.NoSuchJob)) to match any *Error
// carrying the same Code regardless of Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the wire Code from err, defaulting to Snafu for any
// error that isn't an *Error — spec.md §7's catch-all for invariant
// violations and unexpected panics recovered in a worker.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Snafu
}
