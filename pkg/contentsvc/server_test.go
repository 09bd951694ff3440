package contentsvc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/containifyci/repostack/pkg/heuristiclog"
	"github.com/opencontainers/go-digest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// startServer brings a real Server up on a loopback listener and
// returns a dialed client connection.
func startServer(t *testing.T) (*Service, *grpc.ClientConn) {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	svc := NewService(store, heuristiclog.Noop())
	server := NewServer(svc)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///"+lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return svc, conn
}

func method(name string) string { return "/" + ServiceName + "/" + name }

func TestServerWriteCommitInfoRoundTrip(t *testing.T) {
	svc, conn := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data := bytes.Repeat([]byte("payload."), 512) // 4096 bytes
	expected := digest.FromBytes(data)

	writeDesc := &grpc.StreamDesc{StreamName: "Write", ServerStreams: true, ClientStreams: true}
	stream, err := conn.NewStream(ctx, writeDesc, method("Write"))
	require.NoError(t, err)

	require.NoError(t, stream.SendMsg(&WriteRequest{Ref: "r", Action: ActionWrite, Data: data}))
	var resp WriteResponse
	require.NoError(t, stream.RecvMsg(&resp))
	assert.Equal(t, int64(4096), resp.Offset)

	require.NoError(t, stream.SendMsg(&WriteRequest{Action: ActionCommit, Expected: expected}))
	require.NoError(t, stream.RecvMsg(&resp))
	assert.Equal(t, expected, resp.Digest)
	require.NoError(t, stream.CloseSend())

	assert.Equal(t, expected, svc.LastCommittedDigest())

	var info InfoResponse
	require.NoError(t, conn.Invoke(ctx, method("Info"), &InfoRequest{Digest: expected}, &info))
	assert.Equal(t, int64(4096), info.Size)
	assert.Equal(t, expected, info.Digest)
}

func TestServerStatusAndAbort(t *testing.T) {
	_, conn := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	writeDesc := &grpc.StreamDesc{StreamName: "Write", ServerStreams: true, ClientStreams: true}
	stream, err := conn.NewStream(ctx, writeDesc, method("Write"))
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(&WriteRequest{Ref: "pending", Action: ActionWrite, Data: []byte("partial")}))
	var resp WriteResponse
	require.NoError(t, stream.RecvMsg(&resp))

	var status StatusResponse
	require.NoError(t, conn.Invoke(ctx, method("Status"), &StatusRequest{Ref: "pending"}, &status))
	assert.Equal(t, int64(len("partial")), status.Offset)

	var aborted AbortResponse
	require.NoError(t, conn.Invoke(ctx, method("Abort"), &AbortRequest{Ref: "pending"}, &aborted))

	err = conn.Invoke(ctx, method("Status"), &StatusRequest{Ref: "pending"}, &status)
	require.Error(t, err, "session is gone after abort")
}

func TestServerReadStreamsBlob(t *testing.T) {
	svc, conn := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data := bytes.Repeat([]byte("x"), ReadChunkSize+100)
	expected := digest.FromBytes(data)
	ws := svc.NewWriteStream()
	_, err := ws.Handle(WriteRequest{Ref: "blob", Action: ActionWrite, Data: data})
	require.NoError(t, err)
	_, err = ws.Handle(WriteRequest{Action: ActionCommit, Expected: expected})
	require.NoError(t, err)

	readDesc := &grpc.StreamDesc{StreamName: "Read", ServerStreams: true}
	stream, err := conn.NewStream(ctx, readDesc, method("Read"))
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(&ReadRequest{Digest: expected}))
	require.NoError(t, stream.CloseSend())

	var got bytes.Buffer
	for {
		var chunk ReadResponse
		if err := stream.RecvMsg(&chunk); err != nil {
			require.True(t, errors.Is(err, io.EOF), "unexpected stream error: %v", err)
			break
		}
		got.Write(chunk.Data)
	}
	assert.True(t, bytes.Equal(data, got.Bytes()))
}
