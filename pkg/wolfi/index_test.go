package wolfi

import (
	"archive/tar"
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildAPKINDEX(t *testing.T, names ...string) []byte {
	t.Helper()
	var content bytes.Buffer
	for _, n := range names {
		content.WriteString("P:" + n + "\n")
		content.WriteString("V:1.0\n\n")
	}

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "APKINDEX", Size: int64(content.Len())}))
	_, err := tw.Write(content.Bytes())
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	_, err = gw.Write(tarBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return gzBuf.Bytes()
}

func testIndex(t *testing.T) *Index {
	data := buildAPKINDEX(t, "build-base", "ca-certificates", "nodejs-22", "nodejs-20", "nodejs-18",
		"nodejs-stage0", "openjdk-21", "openjdk-21-jre-base", "python-3.12", "python-3.11")
	idx, err := parseAPKINDEX(data)
	require.NoError(t, err)
	return idx
}

func TestHasPackage(t *testing.T) {
	idx := testIndex(t)
	assert.True(t, idx.HasPackage("build-base"))
	assert.True(t, idx.HasPackage("ca-certificates"))
	assert.False(t, idx.HasPackage("nonexistent-package-12345"))
}

func TestGetVersions_FiltersNonNumericAndVariants(t *testing.T) {
	idx := testIndex(t)
	versions := idx.GetVersions("nodejs")
	assert.Equal(t, []string{"22", "20", "18"}, versions)

	openjdk := idx.GetVersions("openjdk")
	assert.Equal(t, []string{"21"}, openjdk, "variant suffix -jre-base must be excluded")
}

func TestGetLatestVersion(t *testing.T) {
	idx := testIndex(t)
	latest, ok := idx.GetLatestVersion("nodejs")
	assert.True(t, ok)
	assert.Equal(t, "nodejs-22", latest)

	latestPy, ok := idx.GetLatestVersion("python")
	assert.True(t, ok)
	assert.Equal(t, "python-3.12", latestPy)
}

func TestMatchVersion(t *testing.T) {
	idx := testIndex(t)
	available := idx.GetVersions("nodejs")

	match, ok := idx.MatchVersion("nodejs", "18", available)
	assert.True(t, ok)
	assert.Equal(t, "nodejs-18", match)

	_, ok = idx.MatchVersion("nodejs", "99999", available)
	assert.False(t, ok)
}

type stubFetcher struct{ data []byte }

func (s stubFetcher) Fetch(ctx context.Context) ([]byte, error) { return s.data, nil }

func TestFetch_WritesCacheAndReloads(t *testing.T) {
	dir := t.TempDir()
	data := buildAPKINDEX(t, "build-base")
	cache := Cache{Dir: dir}

	idx, err := Fetch(context.Background(), stubFetcher{data: data}, cache)
	require.NoError(t, err)
	assert.True(t, idx.HasPackage("build-base"))

	// Second call should hit the parsed cache without needing the
	// fetcher again.
	idx2, err := Fetch(context.Background(), stubFetcher{data: nil}, cache)
	require.NoError(t, err)
	assert.True(t, idx2.HasPackage("build-base"))
}
