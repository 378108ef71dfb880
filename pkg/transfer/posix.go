package transfer

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
)

// DefaultChunkSize is the tunable streaming buffer size of spec.md
// §4.6, used when a transferor is built via NewPosixTransferor without
// an explicit override.
const DefaultChunkSize = 8 * 1024

// resolvePath joins a resource's backend mount point with its
// relative path. Resources without a path-kind backend (memory,
// remote) never call this.
func resolvePath(r *types.Resource) string {
	return filepath.Join(r.Backend.MountPoint, r.Descriptor.Path)
}

// posixTransferor moves bytes between two path-kind backends by
// streaming through regular file descriptors. It serves local↔local,
// local↔shared, and shared↔local pairs (spec.md §4.6's matrix).
type posixTransferor struct {
	chunkSize int
}

// NewPosixTransferor returns a transferor for path-kind-to-path-kind
// pairs using the given streaming chunk size (0 selects the default).
func NewPosixTransferor(chunkSize int) Transferor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &posixTransferor{chunkSize: chunkSize}
}

func (t *posixTransferor) Validate(src, dst *types.Resource) bool {
	if src == nil || src.Backend == nil || !src.Backend.IsPathKind() {
		return false
	}
	if dst != nil && (dst.Backend == nil || !dst.Backend.IsPathKind()) {
		return false
	}
	return true
}

func (t *posixTransferor) Transfer(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code {
	switch task.Operation {
	case types.OpRemove:
		return removePath(resolvePath(src))
	case types.OpCopy, types.OpMove:
		srcPath := resolvePath(src)
		dstPath := resolvePath(dst)
		if code := streamCopy(ctx, task, srcPath, dstPath, t.chunkSize); code != errs.Success {
			return code
		}
		if task.Operation == types.OpMove {
			// best-effort: a failed removal does not undo the copy but
			// still marks the task as error, per spec.md §4.6.
			if err := os.Remove(srcPath); err != nil {
				return errs.SystemError
			}
		}
		return errs.Success
	default:
		return errs.NotSupported
	}
}

// AcceptTransfer is the acceptor-side half of a cross-node push or
// pull (spec.md §4.7 step 3): a push supplies dst and the bytes to
// write in task.Remote.InlineData, a pull supplies src and leaves the
// bytes it read in the same field for pkg/remote.Acceptor to return
// over the wire.
func (t *posixTransferor) AcceptTransfer(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code {
	return acceptLocalTransfer(task, src, dst)
}

// sharedNoopTransferor handles shared→shared transfers: both ends sit
// on the same shared filesystem so a copy is record-only (spec.md
// §4.6). Move still performs a rename; remove still unlinks.
type sharedNoopTransferor struct{}

// NewSharedNoopTransferor returns the record-only shared↔shared
// transferor.
func NewSharedNoopTransferor() Transferor {
	return &sharedNoopTransferor{}
}

func (t *sharedNoopTransferor) Validate(src, dst *types.Resource) bool {
	if src == nil || src.Backend == nil || src.Backend.Kind != types.BackendSharedPosixPath {
		return false
	}
	if dst != nil && (dst.Backend == nil || dst.Backend.Kind != types.BackendSharedPosixPath) {
		return false
	}
	return true
}

func (t *sharedNoopTransferor) Transfer(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code {
	switch task.Operation {
	case types.OpRemove:
		return removePath(resolvePath(src))
	case types.OpCopy:
		return errs.Success
	case types.OpMove:
		if err := os.Rename(resolvePath(src), resolvePath(dst)); err != nil {
			return errs.SystemError
		}
		return errs.Success
	default:
		return errs.NotSupported
	}
}

// AcceptTransfer materialises or reads back bytes the same way
// posixTransferor's does: a shared backend still needs real bytes
// moved over the wire when the peer is a different daemon, so the
// record-only semantics Transfer uses for a local shared↔shared copy
// don't apply here.
func (t *sharedNoopTransferor) AcceptTransfer(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code {
	return acceptLocalTransfer(task, src, dst)
}

// acceptLocalTransfer implements the materialise-or-read-back logic
// shared by every path-kind transferor's AcceptTransfer: exactly one
// of src/dst is set, since the acceptor only ever resolves the one
// side of the pair it can locally name.
func acceptLocalTransfer(task *types.Task, src, dst *types.Resource) errs.Code {
	if task.Remote == nil {
		return errs.BadArgs
	}
	switch {
	case dst != nil && dst.IsCollection:
		if err := UnpackCollection(dst, task.Remote.InlineData); err != nil {
			return errs.SystemError
		}
		return errs.Success
	case dst != nil:
		if err := writeFileAtomic(resolvePath(dst), task.Remote.InlineData); err != nil {
			return errs.SystemError
		}
		return errs.Success
	case src != nil && src.IsCollection:
		data, err := PackCollection(src)
		if err != nil {
			return errs.SystemError
		}
		task.Remote.InlineData = data
		return errs.Success
	case src != nil:
		data, err := os.ReadFile(resolvePath(src))
		if err != nil {
			return errs.SystemError
		}
		task.Remote.InlineData = data
		return errs.Success
	default:
		return errs.BadArgs
	}
}

// writeFileAtomic writes data to path via a temp-path-then-rename so a
// crash never leaves a partial file visible (spec.md §4.7).
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".norns-tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func removePath(path string) errs.Code {
	if err := os.RemoveAll(path); err != nil {
		return errs.SystemError
	}
	return errs.Success
}

// streamCopy reads srcPath and writes dstPath chunkSize bytes at a
// time, checking for cancellation between chunks. There is no
// dedicated "cancelled" wire code (spec.md §6's enumeration omits
// one); a cancelled transfer surfaces as snafu.
func streamCopy(ctx context.Context, task *types.Task, srcPath, dstPath string, chunkSize int) errs.Code {
	in, err := os.Open(srcPath)
	if err != nil {
		return errs.SystemError
	}
	defer in.Close()

	out, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.SystemError
	}
	defer out.Close()

	buf := make([]byte, chunkSize)
	for {
		select {
		case <-ctx.Done():
			return errs.Snafu
		default:
		}
		if task.IsCancelled() {
			return errs.Snafu
		}

		n, rerr := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return errs.SystemError
			}
		}
		if rerr == io.EOF {
			return errs.Success
		}
		if rerr != nil {
			return errs.SystemError
		}
	}
}
