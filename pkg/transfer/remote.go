package transfer

import (
	"context"

	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
)

// RemoteClient is the seam between the transferor matrix and the
// cross-node transfer protocol of pkg/remote. It is defined here
// rather than imported from pkg/remote so that pkg/remote can depend
// on pkg/transfer's types without creating an import cycle; the
// daemon wires a concrete *remote.Client in at startup.
type RemoteClient interface {
	// Push initiates a push_resource RPC to the peer named by
	// dst.Descriptor.Hostname, asking it to materialise src under dst.
	Push(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code

	// Pull initiates a pull_resource RPC to the peer named by
	// src.Descriptor.Hostname, writing the returned bytes into dst.
	Pull(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code

	// Accept is part of the RemoteClient contract but is never invoked:
	// pkg/remote.Acceptor resolves every push/pull locally to a
	// path-kind self-pair (posixTransferor or sharedNoopTransferor), so
	// remoteTransferor.AcceptTransfer — and therefore this method — is
	// never reached on the accept side of the protocol.
	Accept(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code
}

// remoteTransferor handles every pair where either side is
// remote_posix_path/remote_resource (spec.md §4.6, §4.7).
type remoteTransferor struct {
	client RemoteClient
}

// NewRemoteTransferor returns the transferor for remote pairs, backed
// by client for the actual network protocol.
func NewRemoteTransferor(client RemoteClient) Transferor {
	return &remoteTransferor{client: client}
}

func (t *remoteTransferor) Validate(src, dst *types.Resource) bool {
	remote := func(r *types.Resource) bool {
		return r != nil && (r.Descriptor.Kind == types.ResourceRemotePosixPath || r.Descriptor.Kind == types.ResourceRemoteResource)
	}
	return remote(src) || remote(dst)
}

func (t *remoteTransferor) Transfer(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code {
	if src != nil && (src.Descriptor.Kind == types.ResourceRemotePosixPath || src.Descriptor.Kind == types.ResourceRemoteResource) {
		return t.client.Pull(ctx, creds, task, src, dst)
	}
	return t.client.Push(ctx, creds, task, src, dst)
}

// AcceptTransfer delegates to the client's Accept hook. In practice
// it's unreachable: the matrix only ever registers a remote_resource
// pair on the initiator side (spec.md §4.6), and pkg/remote.Acceptor
// never looks one up, since it resolves the RPC's descriptor to a
// local path kind before consulting the matrix at all.
func (t *remoteTransferor) AcceptTransfer(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code {
	return t.client.Accept(ctx, creds, task, src, dst)
}

// DefaultMatrix populates every pair required by spec.md §4.6's table.
// chunkSize is the streaming buffer size for posix/memory transferors;
// remoteClient may be nil until pkg/remote is wired, in which case
// remote pairs resolve but fail with not_supported when invoked.
func DefaultMatrix(chunkSize int, remoteClient RemoteClient) *Matrix {
	m := NewMatrix()

	posix := NewPosixTransferor(chunkSize)
	sharedNoop := NewSharedNoopTransferor()
	memory := NewMemoryTransferor(chunkSize)

	m.Register(types.ResourceLocalPosixPath, types.ResourceLocalPosixPath, posix)
	m.Register(types.ResourceLocalPosixPath, types.ResourceSharedPosixPath, posix)
	m.Register(types.ResourceSharedPosixPath, types.ResourceLocalPosixPath, posix)
	m.Register(types.ResourceSharedPosixPath, types.ResourceSharedPosixPath, sharedNoop)

	m.Register(types.ResourceMemoryRegion, types.ResourceLocalPosixPath, memory)
	m.Register(types.ResourceMemoryRegion, types.ResourceSharedPosixPath, memory)

	if remoteClient == nil {
		remoteClient = noopRemoteClient{}
	}
	remote := NewRemoteTransferor(remoteClient)

	m.Register(types.ResourceLocalPosixPath, types.ResourceRemoteResource, remote)
	m.Register(types.ResourceSharedPosixPath, types.ResourceRemoteResource, remote)
	m.Register(types.ResourceMemoryRegion, types.ResourceRemoteResource, remote)
	m.Register(types.ResourceRemoteResource, types.ResourceLocalPosixPath, remote)
	m.Register(types.ResourceRemoteResource, types.ResourceSharedPosixPath, remote)

	return m
}

type noopRemoteClient struct{}

func (noopRemoteClient) Push(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code {
	return errs.NotSupported
}

func (noopRemoteClient) Pull(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code {
	return errs.NotSupported
}

func (noopRemoteClient) Accept(ctx context.Context, creds types.Credentials, task *types.Task, src, dst *types.Resource) errs.Code {
	return errs.NotSupported
}
