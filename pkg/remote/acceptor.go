package remote

import (
	"context"

	"github.com/NGIOproject/NORNS-sub002/pkg/backend"
	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/log"
	"github.com/NGIOproject/NORNS-sub002/pkg/transfer"
	"github.com/NGIOproject/NORNS-sub002/pkg/types"
	"github.com/NGIOproject/NORNS-sub002/pkg/wire"
	"github.com/rs/zerolog"
)

// Acceptor handles incoming push_resource/pull_resource RPCs on behalf
// of the remote endpoint's dispatcher (spec.md §4.7 step 3). It
// resolves the RPC's descriptor against this daemon's own backend
// registry — never the initiator's — and then routes the materialise-
// or-expose step through the same matrix a local task uses, via the
// self-pair entry for the one side it resolved (push: dst paired with
// itself; pull: src paired with itself). AcceptTransfer is the
// matrix-side counterpart of Push/Pull on pkg/remote.Client.
type Acceptor struct {
	backends *backend.Registry
	matrix   *transfer.Matrix
	logger   zerolog.Logger
}

// NewAcceptor builds an Acceptor over backends, routing every accepted
// transfer through matrix.
func NewAcceptor(backends *backend.Registry, matrix *transfer.Matrix) *Acceptor {
	return &Acceptor{backends: backends, matrix: matrix, logger: log.WithComponent("remote-acceptor")}
}

// HandlePush materialises an inbound push_resource RPC's bytes into
// the local backend its destination descriptor names.
func (a *Acceptor) HandlePush(ctx context.Context, req *wire.Request) *wire.Response {
	dst, err := a.resolveLocal(req.DestDescriptor)
	if err != nil {
		return ack(errs.CodeOf(err))
	}

	transferor, ok := a.matrix.Lookup(dst.Descriptor.Kind, dst.Descriptor.Kind)
	if !ok {
		return ack(errs.NotSupported)
	}

	t := &types.Task{Remote: &types.RemoteTaskState{IsAcceptor: true, InlineData: req.InlineData}}
	if code := transferor.AcceptTransfer(ctx, req.Credentials, t, nil, dst); code != errs.Success {
		a.logger.Warn().Str("code", code.String()).Str("namespace", req.DestDescriptor.NamespaceID).Msg("push_resource accept failed")
		return ack(code)
	}
	return ack(errs.Success)
}

// HandlePull reads the local resource named by req.DestDescriptor (the
// RPC repurposes that field to name the source to expose; see
// pkg/remote.Client.Pull) and returns it inline.
func (a *Acceptor) HandlePull(ctx context.Context, req *wire.Request) *wire.Response {
	src, err := a.resolveLocal(req.DestDescriptor)
	if err != nil {
		return &wire.Response{Kind: wire.RespPullHandle, Code: errs.CodeOf(err)}
	}

	transferor, ok := a.matrix.Lookup(src.Descriptor.Kind, src.Descriptor.Kind)
	if !ok {
		return &wire.Response{Kind: wire.RespPullHandle, Code: errs.NotSupported}
	}

	t := &types.Task{Remote: &types.RemoteTaskState{IsAcceptor: true}}
	if code := transferor.AcceptTransfer(ctx, req.Credentials, t, src, nil); code != errs.Success {
		a.logger.Warn().Str("code", code.String()).Str("namespace", req.DestDescriptor.NamespaceID).Msg("pull_resource accept failed")
		return &wire.Response{Kind: wire.RespPullHandle, Code: code}
	}

	data := t.Remote.InlineData
	return &wire.Response{
		Kind:       wire.RespPullHandle,
		Code:       errs.Success,
		Handle:     data,
		TotalBytes: uint64(len(data)),
	}
}

func (a *Acceptor) resolveLocal(desc types.ResourceDescriptor) (*types.Resource, error) {
	if desc.Kind != types.ResourceLocalPosixPath && desc.Kind != types.ResourceSharedPosixPath {
		return nil, errs.New(errs.BadArgs)
	}
	b, ok := a.backends.Lookup(desc.NamespaceID)
	if !ok {
		return nil, errs.New(errs.NoSuchNamespace)
	}
	return &types.Resource{Descriptor: desc, Backend: b, Name: desc.Path, IsCollection: desc.IsCollection}, nil
}

func ack(code errs.Code) *wire.Response {
	return &wire.Response{Kind: wire.RespAck, Code: code}
}
