package transfer

import (
	"context"
	"os"

	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
	"golang.org/x/sys/unix"
)

// memoryTransferor writes out a client-exposed memory region to a
// path-kind backend (spec.md §4.6's memory_region row). The region
// lives in the submitting process's address space, so reading it
// requires process_vm_readv rather than a plain pointer dereference.
type memoryTransferor struct {
	chunkSize int
}

// NewMemoryTransferor returns the memory_region→path-kind transferor.
func NewMemoryTransferor(chunkSize int) Transferor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &memoryTransferor{chunkSize: chunkSize}
}

func (t *memoryTransferor) Validate(src, dst *types.Resource) bool {
	if src == nil || src.Descriptor.Kind != types.ResourceMemoryRegion {
		return false
	}
	if src.Descriptor.Size == 0 {
		return false
	}
	if dst != nil && (dst.Backend == nil || !dst.Backend.IsPathKind()) {
		return false
	}
	return true
}

func (t *memoryTransferor) Transfer(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code {
	if task.Operation != types.OpCopy && task.Operation != types.OpMove {
		return errs.NotSupported
	}
	if !creds.Present {
		return errs.BadArgs
	}

	out, err := os.OpenFile(resolvePath(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.SystemError
	}
	defer out.Close()

	remaining := src.Descriptor.Size
	addr := src.Descriptor.Address
	buf := make([]byte, t.chunkSize)

	for remaining > 0 {
		if task.IsCancelled() {
			return errs.Snafu
		}

		n := uint64(t.chunkSize)
		if remaining < n {
			n = remaining
		}

		read, rerr := ReadProcessMemory(creds.Triple.PID, addr, buf[:n])
		if rerr != nil {
			return errs.SystemError
		}
		if _, werr := out.Write(buf[:read]); werr != nil {
			return errs.SystemError
		}

		addr += uintptr(read)
		remaining -= uint64(read)
	}
	return errs.Success
}

// AcceptTransfer is never reached: pkg/remote.Acceptor only ever
// resolves a local_posix_path/shared_posix_path descriptor against its
// own backend registry, so the matrix pair it looks up is always a
// path-kind self-pair, never memory_region.
func (t *memoryTransferor) AcceptTransfer(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code {
	return errs.NotSupported
}

// ReadProcessMemory copies len(buf) bytes from pid's address space at
// addr into buf, via process_vm_readv(2). Exported for pkg/remote's
// initiator-side push of a memory_region source to another daemon.
func ReadProcessMemory(pid uint32, addr uintptr, buf []byte) (int, error) {
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))

	remote := []unix.RemoteIovec{{Base: addr, Len: len(buf)}}

	return unix.ProcessVMReadv(int(pid), local, remote, 0)
}
