package contentsvc

import (
	"bytes"
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/containifyci/repostack/pkg/heuristiclog"
	"github.com/opencontainers/go-digest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return NewService(store, heuristiclog.Noop())
}

func randomData(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

func ingestEntries(t *testing.T, s *Service) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(s.store.Root(), "ingest"))
	require.NoError(t, err)
	return entries
}

func TestWriteCommitAtomicity(t *testing.T) {
	svc := newService(t)
	data := randomData(t, 4096)
	expected := digest.FromBytes(data)

	stream := svc.NewWriteStream()
	resp, err := stream.Handle(WriteRequest{Ref: "r", Action: ActionWrite, Data: data})
	require.NoError(t, err)
	assert.Equal(t, int64(4096), resp.Offset)

	// Continuation frame: empty ref, COMMIT with the expected digest.
	resp, err = stream.Handle(WriteRequest{Action: ActionCommit, Expected: expected})
	require.NoError(t, err)
	assert.Equal(t, expected, resp.Digest)

	blobPath := filepath.Join(svc.store.Root(), "blobs", "sha256", expected.Hex())
	info, err := os.Stat(blobPath)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), info.Size())
	assert.Empty(t, ingestEntries(t, svc), "ingest dir must be empty after commit")
	assert.Equal(t, expected, svc.LastCommittedDigest())
}

func TestAbortRemovesIngestFile(t *testing.T) {
	svc := newService(t)

	stream := svc.NewWriteStream()
	_, err := stream.Handle(WriteRequest{Ref: "r", Action: ActionWrite, Data: []byte("partial")})
	require.NoError(t, err)
	require.Len(t, ingestEntries(t, svc), 1)

	require.NoError(t, svc.Abort("r"))
	assert.Empty(t, ingestEntries(t, svc))
	assert.Empty(t, string(svc.LastCommittedDigest()))

	blobs, err := os.ReadDir(filepath.Join(svc.store.Root(), "blobs", "sha256"))
	require.NoError(t, err)
	assert.Empty(t, blobs)
}

func TestOffsetsGrowMonotonically(t *testing.T) {
	svc := newService(t)
	stream := svc.NewWriteStream()

	var last int64
	total := 0
	for _, size := range []int{100, 1, 4096, 0, 257} {
		data := randomData(t, size)
		_, err := stream.Handle(WriteRequest{Ref: "r", Action: ActionWrite, Data: data})
		require.NoError(t, err)
		total += size

		stat, err := stream.Handle(WriteRequest{Action: ActionStat})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stat.Offset, last)
		assert.Equal(t, int64(total), stat.Offset)
		last = stat.Offset
	}
}

func TestCommitDigestMismatchFailsAndCleansUp(t *testing.T) {
	svc := newService(t)
	stream := svc.NewWriteStream()

	_, err := stream.Handle(WriteRequest{Ref: "r", Action: ActionWrite, Data: []byte("content")})
	require.NoError(t, err)

	wrong := digest.FromString("something else")
	_, err = stream.Handle(WriteRequest{Action: ActionCommit, Expected: wrong})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected digest")
	assert.Empty(t, ingestEntries(t, svc))
	assert.Empty(t, string(svc.LastCommittedDigest()))
}

func TestEmptyRefWriteWithoutSessionIsIgnored(t *testing.T) {
	svc := newService(t)
	stream := svc.NewWriteStream()

	resp, err := stream.Handle(WriteRequest{Action: ActionWrite, Data: []byte("orphan")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.Offset)
	assert.Empty(t, ingestEntries(t, svc))

	stat, err := stream.Handle(WriteRequest{Action: ActionStat})
	require.NoError(t, err)
	assert.Equal(t, int64(0), stat.Offset)
}

func TestConcurrentUploadsOfSameRefDoNotCollide(t *testing.T) {
	svc := newService(t)

	// Two independent temp paths for the same ref never collide thanks
	// to the per-session UUID suffix.
	p1 := svc.store.IngestPath("the/same:ref")
	p2 := svc.store.IngestPath("the/same:ref")
	assert.NotEqual(t, p1, p2)
	assert.Equal(t, filepath.Dir(p1), filepath.Dir(p2))
	assert.NotContains(t, filepath.Base(p1), "/")
}

func TestReadStreamsInChunks(t *testing.T) {
	svc := newService(t)
	data := randomData(t, ReadChunkSize*2+500)
	expected := digest.FromBytes(data)

	stream := svc.NewWriteStream()
	_, err := stream.Handle(WriteRequest{Ref: "blob", Action: ActionWrite, Data: data})
	require.NoError(t, err)
	_, err = stream.Handle(WriteRequest{Action: ActionCommit, Expected: expected})
	require.NoError(t, err)

	ch, err := svc.Read(context.Background(), expected, 0)
	require.NoError(t, err)
	var got bytes.Buffer
	chunks := 0
	for chunk := range ch {
		require.LessOrEqual(t, len(chunk), ReadChunkSize)
		got.Write(chunk)
		chunks++
	}
	assert.Equal(t, 3, chunks)
	assert.True(t, bytes.Equal(data, got.Bytes()))
}

func TestReadWithOffset(t *testing.T) {
	svc := newService(t)
	data := []byte("0123456789")
	expected := digest.FromBytes(data)

	stream := svc.NewWriteStream()
	_, err := stream.Handle(WriteRequest{Ref: "r", Action: ActionWrite, Data: data})
	require.NoError(t, err)
	_, err = stream.Handle(WriteRequest{Action: ActionCommit, Expected: expected})
	require.NoError(t, err)

	ch, err := svc.Read(context.Background(), expected, 4)
	require.NoError(t, err)
	var got bytes.Buffer
	for chunk := range ch {
		got.Write(chunk)
	}
	assert.Equal(t, "456789", got.String())
}

func TestInfoAndStatus(t *testing.T) {
	svc := newService(t)
	data := []byte("blob body")
	expected := digest.FromBytes(data)

	stream := svc.NewWriteStream()
	_, err := stream.Handle(WriteRequest{Ref: "r", Action: ActionWrite, Data: data})
	require.NoError(t, err)

	status, err := svc.Status("r")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), status.Offset)

	_, err = stream.Handle(WriteRequest{Action: ActionCommit, Expected: expected})
	require.NoError(t, err)

	_, err = svc.Status("r")
	require.Error(t, err, "session is destroyed by COMMIT")

	info, err := svc.Info(expected)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size)
}

type staticReach map[digest.Digest]bool

func (r staticReach) IsReferenced(dgst digest.Digest) (bool, error) { return r[dgst], nil }

func TestGCRemovesUnreferencedBlobs(t *testing.T) {
	svc := newService(t)

	commit := func(body string) digest.Digest {
		t.Helper()
		stream := svc.NewWriteStream()
		_, err := stream.Handle(WriteRequest{Ref: body, Action: ActionWrite, Data: []byte(body)})
		require.NoError(t, err)
		resp, err := stream.Handle(WriteRequest{Action: ActionCommit})
		require.NoError(t, err)
		return resp.Digest
	}

	keep := commit("referenced blob")
	drop := commit("unreferenced blob")

	gc := NewGC(svc, staticReach{keep: true})
	removed, err := gc.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.True(t, svc.store.HasBlob(keep))
	assert.False(t, svc.store.HasBlob(drop))

	// The lock is released: a second pass runs clean.
	_, err = gc.Run()
	require.NoError(t, err)
}
