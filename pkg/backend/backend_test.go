package backend

import (
	"testing"

	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsMissingMountpoint(t *testing.T) {
	r := New()
	err := r.Register(types.Backend{
		NamespaceID: "s0",
		Kind:        types.BackendLocalPosixPath,
		MountPoint:  "/does/not/exist/ever",
	})
	require.Error(t, err)
	assert.Equal(t, errs.BadArgs, errs.CodeOf(err))
}

func TestRegisterDuplicate(t *testing.T) {
	dir := t.TempDir()
	r := New()
	b := types.Backend{NamespaceID: "s0", Kind: types.BackendLocalPosixPath, MountPoint: dir}
	require.NoError(t, r.Register(b))
	err := r.Register(b)
	require.Error(t, err)
	assert.Equal(t, errs.NamespaceExists, errs.CodeOf(err))
}

func TestUnregisterRefusesWhileReferenced(t *testing.T) {
	dir := t.TempDir()
	r := New()
	require.NoError(t, r.Register(types.Backend{NamespaceID: "s0", Kind: types.BackendLocalPosixPath, MountPoint: dir}))

	r.AddRef("s0")
	err := r.Unregister("s0")
	require.Error(t, err)
	assert.Equal(t, errs.NamespaceNotEmpty, errs.CodeOf(err))

	r.Release("s0")
	require.NoError(t, r.Unregister("s0"))
}

func TestUnregisterUnknown(t *testing.T) {
	r := New()
	err := r.Unregister("ghost")
	require.Error(t, err)
	assert.Equal(t, errs.NoSuchNamespace, errs.CodeOf(err))
}

func TestSynthesizeRemoteNotStored(t *testing.T) {
	r := New()
	b := SynthesizeRemote("peer0")
	assert.True(t, b.Synthesized)
	assert.Equal(t, types.BackendRemote, b.Kind)

	_, ok := r.Lookup("peer0")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestLookupSnapshotIsIsolated(t *testing.T) {
	dir := t.TempDir()
	r := New()
	require.NoError(t, r.Register(types.Backend{NamespaceID: "s0", Kind: types.BackendLocalPosixPath, MountPoint: dir, Capacity: 10}))

	got, ok := r.Lookup("s0")
	require.True(t, ok)
	got.Capacity = 9999

	got2, _ := r.Lookup("s0")
	assert.Equal(t, uint64(10), got2.Capacity)
}
