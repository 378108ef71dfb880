package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/NGIOproject/NORNS-sub002/pkg/errs"
	"github.com/NGIOproject/NORNS-sub002/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDispatcher struct {
	fn func(ctx context.Context, req *wire.Request) *wire.Response
}

func (d stubDispatcher) Dispatch(ctx context.Context, req *wire.Request) *wire.Response {
	return d.fn(ctx, req)
}

func pipe(t *testing.T) (client, server net.Conn) {
	t.Helper()
	client, server = net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func readResponse(t *testing.T, conn net.Conn) *wire.Response {
	t.Helper()
	var hdr [wire.HeaderSize]byte
	_, err := readFull(conn, hdr[:])
	require.NoError(t, err)
	n, err := wire.DecodeHeader(hdr[:])
	require.NoError(t, err)
	body := make([]byte, n)
	_, err = readFull(conn, body)
	require.NoError(t, err)
	resp, derr := wire.DecodeResponseBody(body)
	require.Nil(t, derr)
	return resp
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestSessionEchoesPingResponse(t *testing.T) {
	client, server := pipe(t)

	disp := stubDispatcher{fn: func(ctx context.Context, req *wire.Request) *wire.Response {
		assert.Equal(t, wire.ReqPing, req.Kind)
		return &wire.Response{Kind: wire.RespAck, Code: errs.Success}
	}}

	s := New(server, disp)
	go s.Serve(context.Background())

	req := &wire.Request{Kind: wire.ReqPing}
	_, err := client.Write(wire.EncodeRequest(req))
	require.NoError(t, err)

	resp := readResponse(t, client)
	assert.Equal(t, wire.RespAck, resp.Kind)
	assert.Equal(t, errs.Success, resp.Code)
}

func TestSessionMalformedBodyGetsBadRequestAndContinues(t *testing.T) {
	client, server := pipe(t)

	var dispatched int
	disp := stubDispatcher{fn: func(ctx context.Context, req *wire.Request) *wire.Response {
		dispatched++
		return &wire.Response{Kind: wire.RespAck, Code: errs.Success}
	}}

	s := New(server, disp)
	go s.Serve(context.Background())

	// A header claiming a body kind byte that decodes to an unknown
	// request kind is malformed but the framing itself is intact.
	badBody := append([]byte{0xFF}, make([]byte, 13)...) // kind + empty credentials
	hdr := wire.EncodeHeader(len(badBody))
	_, err := client.Write(append(hdr[:], badBody...))
	require.NoError(t, err)

	resp := readResponse(t, client)
	assert.Equal(t, wire.RespAck, resp.Kind)
	assert.Equal(t, errs.BadRequest, resp.Code)
	assert.Equal(t, 0, dispatched, "dispatcher must not run on a decode failure")

	// The session must still be alive for a subsequent well-formed request.
	req := &wire.Request{Kind: wire.ReqPing}
	_, err = client.Write(wire.EncodeRequest(req))
	require.NoError(t, err)

	resp2 := readResponse(t, client)
	assert.Equal(t, errs.Success, resp2.Code)
	assert.Equal(t, 1, dispatched)
}

func TestSessionClosesOnPeerDisconnect(t *testing.T) {
	client, server := pipe(t)
	disp := stubDispatcher{fn: func(ctx context.Context, req *wire.Request) *wire.Response {
		return &wire.Response{Kind: wire.RespAck, Code: errs.Success}
	}}

	done := make(chan struct{})
	s := New(server, disp)
	go func() {
		s.Serve(context.Background())
		close(done)
	}()

	require.NoError(t, client.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after peer closed")
	}
}

func TestSessionGetsDistinctCorrelationIDs(t *testing.T) {
	_, server1 := pipe(t)
	_, server2 := pipe(t)
	disp := stubDispatcher{fn: func(ctx context.Context, req *wire.Request) *wire.Response {
		return &wire.Response{Kind: wire.RespAck, Code: errs.Success}
	}}

	s1 := New(server1, disp)
	s2 := New(server2, disp)

	assert.NotEmpty(t, s1.id)
	assert.NotEmpty(t, s2.id)
	assert.NotEqual(t, s1.id, s2.id)
}

func TestSessionLeavesCredentialsAbsentOnNonUnixConn(t *testing.T) {
	client, server := pipe(t)
	var seen bool
	disp := stubDispatcher{fn: func(ctx context.Context, req *wire.Request) *wire.Response {
		// net.Pipe connections are not *net.UnixConn, so credential
		// capture is a no-op here; the request must still carry through
		// with whatever Present value the client sent.
		seen = req.Credentials.Present
		return &wire.Response{Kind: wire.RespAck, Code: errs.Success}
	}}

	s := New(server, disp)
	go s.Serve(context.Background())

	req := &wire.Request{Kind: wire.ReqPing}
	_, err := client.Write(wire.EncodeRequest(req))
	require.NoError(t, err)
	_ = readResponse(t, client)
	assert.False(t, seen)
}
