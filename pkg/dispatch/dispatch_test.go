package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NGIOproject/NORNS-sub002/pkg/backend"
	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/registry"
	"github.com/NGIOproject/NORNS-sub002/pkg/task"
	"github.com/NGIOproject/NORNS-sub002/pkg/transfer"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
	"github.com/NGIOproject/NORNS-sub002/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T) (*Dispatcher, string) {
	t.Helper()
	dir := t.TempDir()
	jobs := registry.New()
	backends := backend.New()
	matrix := transfer.DefaultMatrix(0, nil)
	tasks := task.New(task.Config{
		Workers:  2,
		Matrix:   matrix,
		Backends: backends,
	})
	tasks.Start()
	t.Cleanup(tasks.Stop)

	return New(jobs, backends, tasks, matrix, nil), dir
}

func descriptor(ns, path string, kind types.ResourceKind) types.ResourceDescriptor {
	return types.ResourceDescriptor{Kind: kind, NamespaceID: ns, Path: path}
}

func TestDispatchPing(t *testing.T) {
	d, _ := newDispatcher(t)
	resp := d.Dispatch(context.Background(), &wire.Request{Kind: wire.ReqPing})
	assert.Equal(t, errs.Success, resp.Code)
}

func TestDispatchUnknownKindIsBadRequest(t *testing.T) {
	d, _ := newDispatcher(t)
	resp := d.Dispatch(context.Background(), &wire.Request{Kind: wire.RequestKind(200)})
	assert.Equal(t, errs.BadRequest, resp.Code)
}

func TestDispatchJobLifecycle(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	resp := d.Dispatch(ctx, &wire.Request{Kind: wire.ReqJobRegister, JobID: 42, Hostnames: []string{"h0", "h1"}})
	assert.Equal(t, errs.Success, resp.Code)

	resp = d.Dispatch(ctx, &wire.Request{Kind: wire.ReqJobRegister, JobID: 42})
	assert.Equal(t, errs.JobExists, resp.Code)

	resp = d.Dispatch(ctx, &wire.Request{Kind: wire.ReqJobUnregister, JobID: 42})
	assert.Equal(t, errs.Success, resp.Code)

	resp = d.Dispatch(ctx, &wire.Request{Kind: wire.ReqJobUnregister, JobID: 42})
	assert.Equal(t, errs.NoSuchJob, resp.Code)
}

func TestDispatchNamespaceRegisterAndUnregister(t *testing.T) {
	d, dir := newDispatcher(t)
	ctx := context.Background()

	resp := d.Dispatch(ctx, &wire.Request{
		Kind:        wire.ReqNamespaceRegister,
		NamespaceID: "nvm0",
		BackendType: types.BackendLocalPosixPath,
		MountPoint:  dir,
		Capacity:    4096,
		Tracked:     true,
	})
	assert.Equal(t, errs.Success, resp.Code)

	resp = d.Dispatch(ctx, &wire.Request{Kind: wire.ReqNamespaceUnregister, NamespaceID: "nvm0"})
	assert.Equal(t, errs.Success, resp.Code)

	resp = d.Dispatch(ctx, &wire.Request{Kind: wire.ReqNamespaceUnregister, NamespaceID: "nvm0"})
	assert.Equal(t, errs.NoSuchNamespace, resp.Code)
}

func TestDispatchSubmitCopyLocalToLocal(t *testing.T) {
	d, dir := newDispatcher(t)
	ctx := context.Background()

	resp := d.Dispatch(ctx, &wire.Request{
		Kind: wire.ReqNamespaceRegister, NamespaceID: "s0",
		BackendType: types.BackendLocalPosixPath, MountPoint: dir,
	})
	require.Equal(t, errs.Success, resp.Code)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "c"), []byte("payload"), 0o644))

	resp = d.Dispatch(ctx, &wire.Request{
		Kind:        wire.ReqIOTaskSubmit,
		Operation:   types.OpCopy,
		SourceSet:   true,
		Source:      descriptor("s0", "a/b/c", types.ResourceLocalPosixPath),
		DestSet:     true,
		Destination: descriptor("s0", "a/b/d", types.ResourceLocalPosixPath),
	})
	require.Equal(t, errs.Success, resp.Code)
	require.Equal(t, wire.RespTaskID, resp.Kind)
	taskID := resp.TaskID

	for i := 0; i < 1000; i++ {
		statusResp := d.Dispatch(ctx, &wire.Request{Kind: wire.ReqIOTaskStatus, TaskID: taskID})
		require.Equal(t, errs.Success, statusResp.Code)
		if statusResp.Status == types.TaskFinished {
			got, err := os.ReadFile(filepath.Join(dir, "a", "b", "d"))
			require.NoError(t, err)
			assert.Equal(t, "payload", string(got))
			return
		}
		if statusResp.Status == types.TaskError {
			t.Fatalf("task errored with code %d", statusResp.ErrorCode)
		}
	}
	t.Fatal("task did not reach finished within the polling budget")
}

func TestDispatchSubmitUnknownNamespaceReturnsNoSuchNamespace(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	resp := d.Dispatch(ctx, &wire.Request{
		Kind:        wire.ReqIOTaskSubmit,
		Operation:   types.OpCopy,
		SourceSet:   true,
		Source:      descriptor("ghost", "x", types.ResourceLocalPosixPath),
		DestSet:     true,
		Destination: descriptor("s0", "y", types.ResourceLocalPosixPath),
	})
	assert.Equal(t, errs.NoSuchNamespace, resp.Code)
	assert.Equal(t, wire.RespAck, resp.Kind)
}

func TestDispatchSubmitRejectsUnknownProcessWhenCredentialsPresent(t *testing.T) {
	d, dir := newDispatcher(t)
	ctx := context.Background()

	resp := d.Dispatch(ctx, &wire.Request{
		Kind: wire.ReqNamespaceRegister, NamespaceID: "s0",
		BackendType: types.BackendLocalPosixPath, MountPoint: dir,
	})
	require.Equal(t, errs.Success, resp.Code)

	resp = d.Dispatch(ctx, &wire.Request{
		Kind:        wire.ReqIOTaskSubmit,
		Operation:   types.OpCopy,
		Credentials: types.Credentials{Present: true, Triple: types.ProcessTriple{UID: 1000, GID: 1000, PID: 1}},
		SourceSet:   true,
		Source:      descriptor("s0", "a", types.ResourceLocalPosixPath),
		DestSet:     true,
		Destination: descriptor("s0", "b", types.ResourceLocalPosixPath),
	})
	assert.Equal(t, errs.NoSuchProcess, resp.Code)
}

func TestDispatchSubmitRejectsNamespaceOutsideJobCapabilitySet(t *testing.T) {
	d, dir := newDispatcher(t)
	ctx := context.Background()

	for _, ns := range []string{"s0", "other"} {
		resp := d.Dispatch(ctx, &wire.Request{
			Kind: wire.ReqNamespaceRegister, NamespaceID: ns,
			BackendType: types.BackendLocalPosixPath, MountPoint: dir,
		})
		require.Equal(t, errs.Success, resp.Code)
	}

	resp := d.Dispatch(ctx, &wire.Request{
		Kind: wire.ReqJobRegister, JobID: 7, Namespaces: []string{"s0"},
	})
	require.Equal(t, errs.Success, resp.Code)

	triple := types.ProcessTriple{UID: 1000, GID: 1000, PID: 1}
	resp = d.Dispatch(ctx, &wire.Request{Kind: wire.ReqProcessRegister, JobID: 7, Triple: triple})
	require.Equal(t, errs.Success, resp.Code)

	creds := types.Credentials{Present: true, Triple: triple}

	resp = d.Dispatch(ctx, &wire.Request{
		Kind: wire.ReqIOTaskSubmit, Operation: types.OpCopy, Credentials: creds,
		SourceSet: true, Source: descriptor("other", "a", types.ResourceLocalPosixPath),
		DestSet: true, Destination: descriptor("s0", "b", types.ResourceLocalPosixPath),
	})
	assert.Equal(t, errs.NoSuchNamespace, resp.Code, "job 7 may not reference namespace 'other'")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("x"), 0o644))
	resp = d.Dispatch(ctx, &wire.Request{
		Kind: wire.ReqIOTaskSubmit, Operation: types.OpCopy, Credentials: creds,
		SourceSet: true, Source: descriptor("s0", "a", types.ResourceLocalPosixPath),
		DestSet: true, Destination: descriptor("s0", "b", types.ResourceLocalPosixPath),
	})
	assert.Equal(t, errs.Success, resp.Code, "job 7 may reference its own namespace 's0'")
}

func TestDispatchPauseAcceptGatesSubmission(t *testing.T) {
	d, dir := newDispatcher(t)
	ctx := context.Background()

	resp := d.Dispatch(ctx, &wire.Request{
		Kind: wire.ReqNamespaceRegister, NamespaceID: "s0",
		BackendType: types.BackendLocalPosixPath, MountPoint: dir,
	})
	require.Equal(t, errs.Success, resp.Code)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("x"), 0o644))

	resp = d.Dispatch(ctx, &wire.Request{Kind: wire.ReqCommand, Command: wire.CmdPauseAccept})
	require.Equal(t, errs.Success, resp.Code)

	resp = d.Dispatch(ctx, &wire.Request{
		Kind: wire.ReqIOTaskSubmit, Operation: types.OpCopy,
		SourceSet: true, Source: descriptor("s0", "a", types.ResourceLocalPosixPath),
		DestSet: true, Destination: descriptor("s0", "b", types.ResourceLocalPosixPath),
	})
	assert.Equal(t, errs.AcceptPaused, resp.Code)

	resp = d.Dispatch(ctx, &wire.Request{Kind: wire.ReqCommand, Command: wire.CmdResumeAccept})
	require.Equal(t, errs.Success, resp.Code)

	resp = d.Dispatch(ctx, &wire.Request{
		Kind: wire.ReqIOTaskSubmit, Operation: types.OpCopy,
		SourceSet: true, Source: descriptor("s0", "a", types.ResourceLocalPosixPath),
		DestSet: true, Destination: descriptor("s0", "b", types.ResourceLocalPosixPath),
	})
	assert.Equal(t, errs.Success, resp.Code)
}

func TestDispatchJobUnregisterRejectsWhileTasksOutstanding(t *testing.T) {
	d, dir := newDispatcher(t)
	ctx := context.Background()

	resp := d.Dispatch(ctx, &wire.Request{
		Kind: wire.ReqNamespaceRegister, NamespaceID: "s0",
		BackendType: types.BackendLocalPosixPath, MountPoint: dir,
	})
	require.Equal(t, errs.Success, resp.Code)

	resp = d.Dispatch(ctx, &wire.Request{Kind: wire.ReqJobRegister, JobID: 9, Namespaces: []string{"s0"}})
	require.Equal(t, errs.Success, resp.Code)

	triple := types.ProcessTriple{UID: 1, GID: 1, PID: 1}
	resp = d.Dispatch(ctx, &wire.Request{Kind: wire.ReqProcessRegister, JobID: 9, Triple: triple})
	require.Equal(t, errs.Success, resp.Code)

	big := make([]byte, 8<<20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), big, 0o644))

	resp = d.Dispatch(ctx, &wire.Request{
		Kind: wire.ReqIOTaskSubmit, Operation: types.OpCopy,
		Credentials: types.Credentials{Present: true, Triple: triple},
		SourceSet:   true, Source: descriptor("s0", "a", types.ResourceLocalPosixPath),
		DestSet: true, Destination: descriptor("s0", "b", types.ResourceLocalPosixPath),
	})
	require.Equal(t, errs.Success, resp.Code)
	taskID := resp.TaskID

	resp = d.Dispatch(ctx, &wire.Request{Kind: wire.ReqJobUnregister, JobID: 9})
	assert.Equal(t, errs.TasksPending, resp.Code)

	for i := 0; i < 1000; i++ {
		statusResp := d.Dispatch(ctx, &wire.Request{Kind: wire.ReqIOTaskStatus, TaskID: taskID})
		require.Equal(t, errs.Success, statusResp.Code)
		if statusResp.Status.Terminal() {
			break
		}
		time.Sleep(time.Millisecond)
	}

	resp = d.Dispatch(ctx, &wire.Request{Kind: wire.ReqJobUnregister, JobID: 9})
	assert.Equal(t, errs.Success, resp.Code)
}

func TestDispatchGlobalStatusReflectsRegistries(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	d.Dispatch(ctx, &wire.Request{Kind: wire.ReqJobRegister, JobID: 1})
	resp := d.Dispatch(ctx, &wire.Request{Kind: wire.ReqGlobalStatus})
	require.Equal(t, wire.RespGlobalStatus, resp.Kind)
	assert.Equal(t, uint32(1), resp.Status2.Jobs)
}

func TestDispatchShutdownCommandInvokesCallback(t *testing.T) {
	dir := t.TempDir()
	_ = dir
	jobs := registry.New()
	backends := backend.New()
	matrix := transfer.DefaultMatrix(0, nil)
	tasks := task.New(task.Config{Workers: 1, Matrix: matrix, Backends: backends})
	tasks.Start()
	t.Cleanup(tasks.Stop)

	called := make(chan struct{})
	d := New(jobs, backends, tasks, matrix, func() { close(called) })

	resp := d.Dispatch(context.Background(), &wire.Request{Kind: wire.ReqCommand, Command: wire.CmdShutdown})
	assert.Equal(t, errs.Success, resp.Code)
	<-called
}
