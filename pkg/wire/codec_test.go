package wire

import (
	"testing"

	"github.com/NGIOproject/NORNS-sub002/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	hdr := EncodeHeader(1234)
	n, err := DecodeHeader(hdr[:])
	require.NoError(t, err)
	assert.Equal(t, 1234, n)
}

func TestHeaderRejectsOversizedBody(t *testing.T) {
	var hdr [HeaderSize]byte
	hdr[0] = 0xFF // absurdly large length
	_, err := DecodeHeader(hdr[:])
	assert.Error(t, err)
}

func TestRequestRoundTrip(t *testing.T) {
	cases := []*Request{
		{Kind: ReqPing},
		{Kind: ReqGlobalStatus},
		{Kind: ReqCommand, Command: CmdPauseAccept},
		{
			Kind:       ReqJobRegister,
			JobID:      42,
			Hostnames:  []string{"h0", "h1"},
			Namespaces: []string{"s0"},
		},
		{
			Kind:   ReqProcessRegister,
			JobID:  42,
			Triple: types.ProcessTriple{UID: 1000, GID: 1000, PID: 4242},
		},
		{
			Kind:        ReqNamespaceRegister,
			NamespaceID: "nvm0",
			BackendType: types.BackendMemory,
			Tracked:     true,
			MountPoint:  "/mnt/nvm0",
			Capacity:    4096,
		},
		{
			Kind:      ReqIOTaskSubmit,
			Operation: types.OpCopy,
			SourceSet: true,
			Source: types.ResourceDescriptor{
				Kind:        types.ResourceLocalPosixPath,
				NamespaceID: "s0",
				Path:        "a/b/c",
			},
			DestSet: true,
			Destination: types.ResourceDescriptor{
				Kind:        types.ResourceLocalPosixPath,
				NamespaceID: "s0",
				Path:        "a/b/d",
			},
		},
		{Kind: ReqIOTaskStatus, TaskID: 7},
		{
			Kind:         ReqPushResource,
			RemoteTaskID: 9,
			SourceKind:   types.ResourceLocalPosixPath,
			SourceName:   "a/b/c",
			DestDescriptor: types.ResourceDescriptor{
				Kind:        types.ResourceRemotePosixPath,
				NamespaceID: "r0",
				Hostname:    "node1",
				Path:        "x/y",
			},
			TotalBytes: 1024,
		},
	}

	for _, req := range cases {
		req.Credentials = types.Credentials{Present: true, Triple: types.ProcessTriple{UID: 1, GID: 2, PID: 3}}
		framed := EncodeRequest(req)

		n, err := DecodeHeader(framed[:HeaderSize])
		require.NoError(t, err)
		assert.Equal(t, len(framed)-HeaderSize, n)

		got, err := DecodeRequest(framed[HeaderSize:])
		require.NoError(t, err)
		assert.Equal(t, req, got)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	cases := []*Response{
		{Kind: RespAck},
		{Kind: RespTaskID, TaskID: 99},
		{Kind: RespTaskStatus, Status: types.TaskFinished, ErrorCode: 0},
		{Kind: RespGlobalStatus, Status2: GlobalStatusSnapshot{
			Jobs: 2, Namespaces: 3, TasksPending: 1, TasksRunning: 1,
			TasksFinished: 5, TasksError: 0, AcceptPaused: true,
		}},
	}
	for _, resp := range cases {
		framed := EncodeResponse(resp)
		got, err := DecodeResponse(framed[HeaderSize:])
		require.NoError(t, err)
		assert.Equal(t, resp, got)
	}
}

func TestDecodeRequestRejectsTruncatedBody(t *testing.T) {
	_, err := DecodeRequestBody([]byte{0x01})
	require.Error(t, err)
}

func TestDecodeRequestRejectsUnknownKind(t *testing.T) {
	// kind byte followed by a complete 13-byte credentials block, so the
	// decoder reaches the kind switch rather than failing on truncation.
	_, err := DecodeRequestBody([]byte{0xFF, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	require.Error(t, err)
}
