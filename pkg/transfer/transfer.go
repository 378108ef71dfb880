package transfer

import (
	"context"

	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
)

// Transferor implements the three operations of spec.md §4.6 for one
// (source-kind, destination-kind) pair.
type Transferor interface {
	// Validate performs structural and semantic checks specific to the
	// pair before a task is admitted.
	Validate(src, dst *types.Resource) bool

	// Transfer performs the work synchronously on the calling worker.
	// It must respect ctx cancellation and task.IsCancelled() between
	// chunks.
	Transfer(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code

	// AcceptTransfer is the server-side handler invoked on the
	// destination daemon when a peer initiates a cross-node push. It
	// is never called for purely local pairs.
	AcceptTransfer(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code
}

type matrixKey struct {
	src types.ResourceKind
	dst types.ResourceKind
}

// Matrix is the (src-kind, dst-kind) → Transferor table.
type Matrix struct {
	entries map[matrixKey]Transferor
}

// NewMatrix returns an empty matrix.
func NewMatrix() *Matrix {
	return &Matrix{entries: make(map[matrixKey]Transferor)}
}

// Register installs the transferor for one kind pair, overwriting any
// prior entry. It is called only during startup wiring.
func (m *Matrix) Register(src, dst types.ResourceKind, t Transferor) {
	m.entries[matrixKey{routeKind(src), routeKind(dst)}] = t
}

// Lookup returns the transferor for a kind pair, or ok=false if the
// pair is unsupported (spec.md §9: "entries not present make the pair
// unsupported and yield not_supported at submission time").
func (m *Matrix) Lookup(src, dst types.ResourceKind) (Transferor, bool) {
	t, ok := m.entries[matrixKey{routeKind(src), routeKind(dst)}]
	return t, ok
}

// routeKind folds remote_posix_path into remote_resource for matrix
// purposes: both name data on another daemon and route through the
// same push/pull transferors (spec.md §4.6's matrix only lists
// remote_resource explicitly).
func routeKind(k types.ResourceKind) types.ResourceKind {
	if k == types.ResourceRemotePosixPath {
		return types.ResourceRemoteResource
	}
	return k
}
