// Package remote implements the cross-node transfer protocol of
// spec.md §4.7: an initiator/acceptor model layered directly on
// pkg/wire over the TCP remote endpoint. Client is the initiator-side
// implementation of pkg/transfer's RemoteClient seam; Acceptor is the
// server-side handler an endpoint's dispatcher calls into for incoming
// push_resource/pull_resource requests.
package remote
