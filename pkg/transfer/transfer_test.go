package transfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localResource(dir, relPath string, kind types.BackendKind) *types.Resource {
	return &types.Resource{
		Descriptor: types.ResourceDescriptor{Kind: types.ResourceLocalPosixPath, Path: relPath},
		Backend:    &types.Backend{NamespaceID: "s0", Kind: kind, MountPoint: dir},
	}
}

func TestMatrixLookupUnsupportedPair(t *testing.T) {
	m := DefaultMatrix(0, nil)
	_, ok := m.Lookup(types.ResourceIgnorable, types.ResourceIgnorable)
	assert.False(t, ok)
}

func TestMatrixLookupRemotePosixRoutesToRemoteResource(t *testing.T) {
	m := NewMatrix()
	remote := NewRemoteTransferor(noopRemoteClient{})
	m.Register(types.ResourceLocalPosixPath, types.ResourceRemoteResource, remote)

	got, ok := m.Lookup(types.ResourceLocalPosixPath, types.ResourceRemotePosixPath)
	require.True(t, ok)
	assert.Equal(t, remote, got)
}

func TestPosixTransferorCopy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("hello world"), 0o644))

	tr := NewPosixTransferor(4)
	src := localResource(dir, "a", types.BackendLocalPosixPath)
	dst := localResource(dir, "b", types.BackendLocalPosixPath)
	task := types.NewTask(1, types.OpCopy, src, dst)

	code := tr.Transfer(context.Background(), types.Credentials{}, task, src, dst)
	require.Equal(t, errs.Success, code)

	got, err := os.ReadFile(filepath.Join(dir, "b"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	_, err = os.Stat(filepath.Join(dir, "a"))
	assert.NoError(t, err, "copy must preserve the source")
}

func TestPosixTransferorMoveRemovesSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("data"), 0o644))

	tr := NewPosixTransferor(0)
	src := localResource(dir, "a", types.BackendLocalPosixPath)
	dst := localResource(dir, "b", types.BackendLocalPosixPath)
	task := types.NewTask(1, types.OpMove, src, dst)

	code := tr.Transfer(context.Background(), types.Credentials{}, task, src, dst)
	require.Equal(t, errs.Success, code)

	_, err := os.Stat(filepath.Join(dir, "a"))
	assert.True(t, os.IsNotExist(err))
}

func TestPosixTransferorRemove(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("data"), 0o644))

	tr := NewPosixTransferor(0)
	src := localResource(dir, "a", types.BackendLocalPosixPath)
	task := types.NewTask(1, types.OpRemove, src, nil)

	code := tr.Transfer(context.Background(), types.Credentials{}, task, src, nil)
	require.Equal(t, errs.Success, code)

	_, err := os.Stat(filepath.Join(dir, "a"))
	assert.True(t, os.IsNotExist(err))
}

func TestPosixTransferorCancellation(t *testing.T) {
	dir := t.TempDir()
	content := make([]byte, 1<<20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), content, 0o644))

	tr := NewPosixTransferor(16)
	src := localResource(dir, "a", types.BackendLocalPosixPath)
	dst := localResource(dir, "b", types.BackendLocalPosixPath)
	task := types.NewTask(1, types.OpCopy, src, dst)
	task.Cancel()

	code := tr.Transfer(context.Background(), types.Credentials{}, task, src, dst)
	assert.Equal(t, errs.Snafu, code)
}

func TestPosixTransferorAcceptTransferPush(t *testing.T) {
	dir := t.TempDir()
	tr := NewPosixTransferor(0)
	dst := localResource(dir, "pushed", types.BackendLocalPosixPath)
	task := &types.Task{Remote: &types.RemoteTaskState{IsAcceptor: true, InlineData: []byte("pushed-bytes")}}

	code := tr.AcceptTransfer(context.Background(), types.Credentials{}, task, nil, dst)
	require.Equal(t, errs.Success, code)

	got, err := os.ReadFile(filepath.Join(dir, "pushed"))
	require.NoError(t, err)
	assert.Equal(t, "pushed-bytes", string(got))
}

func TestPosixTransferorAcceptTransferPull(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("pull-bytes"), 0o644))

	tr := NewPosixTransferor(0)
	src := localResource(dir, "a", types.BackendLocalPosixPath)
	task := &types.Task{Remote: &types.RemoteTaskState{IsAcceptor: true}}

	code := tr.AcceptTransfer(context.Background(), types.Credentials{}, task, src, nil)
	require.Equal(t, errs.Success, code)
	assert.Equal(t, "pull-bytes", string(task.Remote.InlineData))
}

func TestPosixTransferorAcceptTransferRequiresRemoteState(t *testing.T) {
	tr := NewPosixTransferor(0)
	task := &types.Task{}

	code := tr.AcceptTransfer(context.Background(), types.Credentials{}, task, nil, nil)
	assert.Equal(t, errs.BadArgs, code)
}

func TestPackAndUnpackCollectionRoundTrips(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("top-level"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "sub", "b.txt"), []byte("nested"), 0o644))

	src := localResource(srcDir, "", types.BackendLocalPosixPath)
	data, err := PackCollection(src)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	destParent := t.TempDir()
	dst := localResource(destParent, "unpacked", types.BackendLocalPosixPath)
	require.NoError(t, UnpackCollection(dst, data))

	got, err := os.ReadFile(filepath.Join(destParent, "unpacked", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "top-level", string(got))

	got, err = os.ReadFile(filepath.Join(destParent, "unpacked", "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nested", string(got))
}

func TestAcceptTransferCollectionPushUnpacksDirectory(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "f"), []byte("payload"), 0o644))
	packed, err := PackCollection(localResource(srcDir, "", types.BackendLocalPosixPath))
	require.NoError(t, err)

	destParent := t.TempDir()
	dst := localResource(destParent, "coll", types.BackendLocalPosixPath)
	dst.IsCollection = true
	task := &types.Task{Remote: &types.RemoteTaskState{IsAcceptor: true, InlineData: packed}}

	tr := NewPosixTransferor(0)
	code := tr.AcceptTransfer(context.Background(), types.Credentials{}, task, nil, dst)
	require.Equal(t, errs.Success, code)

	got, err := os.ReadFile(filepath.Join(destParent, "coll", "f"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestSharedNoopTransferorCopyIsRecordOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("data"), 0o644))

	tr := NewSharedNoopTransferor()
	src := &types.Resource{
		Descriptor: types.ResourceDescriptor{Path: "a"},
		Backend:    &types.Backend{NamespaceID: "s0", Kind: types.BackendSharedPosixPath, MountPoint: dir},
	}
	dst := &types.Resource{
		Descriptor: types.ResourceDescriptor{Path: "b"},
		Backend:    &types.Backend{NamespaceID: "s0", Kind: types.BackendSharedPosixPath, MountPoint: dir},
	}
	task := types.NewTask(1, types.OpCopy, src, dst)

	code := tr.Transfer(context.Background(), types.Credentials{}, task, src, dst)
	require.Equal(t, errs.Success, code)

	_, err := os.Stat(filepath.Join(dir, "b"))
	assert.True(t, os.IsNotExist(err), "record-only copy must not duplicate bytes")
}
