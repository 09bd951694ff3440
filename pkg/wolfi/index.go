// Package wolfi implements the Wolfi Package Index oracle (spec.md §4.8):
// an APKINDEX-in-tar.gz package-name catalog, fetched once and cached on
// disk with a 24h TTL, used by the Validator to confirm build/runtime
// package names actually exist.
//
// Grounded on the original Rust implementation's WolfiPackageIndex
// (original_source/src/validation/wolfi_index.rs): the HTTPS fetch /
// 24h-TTL tar.gz cache / binary parsed-cache-invalidated-by-mtime
// structure, and the get_versions/get_latest_version/match_version
// numeric-descending-sort semantics, are carried over unchanged; bincode
// becomes encoding/gob (idiomatic Go equivalent, justified in DESIGN.md)
// and reqwest becomes net/http, grounded on the teacher's pkg/github
// HTTP-client-with-retry shape for the fetch itself.
package wolfi

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/containifyci/repostack/pkg/filesystem"
)

const (
	// DefaultIndexURL is the real Chainguard-hosted APKINDEX endpoint.
	DefaultIndexURL = "https://packages.wolfi.dev/os/x86_64/APKINDEX.tar.gz"

	cacheTTL = 24 * time.Hour
)

// Index is an immutable, queryable Wolfi package-name catalog.
type Index struct {
	packages map[string]struct{}
}

// Fetcher abstracts the HTTPS download so tests substitute a local
// tarball instead of reaching packages.wolfi.dev.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPFetcher is the real fetcher, a plain *http.Client against url.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

func NewHTTPFetcher(url string) *HTTPFetcher {
	if url == "" {
		url = DefaultIndexURL
	}
	return &HTTPFetcher{URL: url, Client: &http.Client{Timeout: 60 * time.Second}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building APKINDEX request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading APKINDEX: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading APKINDEX: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading APKINDEX response: %w", err)
	}
	return data, nil
}

// Cache is the on-disk location of the tar.gz and its parsed companion.
type Cache struct {
	Dir string
}

func (c Cache) tarGzPath() string  { return filepath.Join(c.Dir, "APKINDEX.tar.gz") }
func (c Cache) parsedPath() string { return filepath.Join(c.Dir, "packages.gob") }

// Fetch loads the package index, preferring (in order): a fresh parsed
// binary cache, a fresh tar.gz cache, a fresh network fetch. A stale
// cache is only used if the network fetch itself fails (spec.md §7,
// WolfiIndexFetch: "a stale cache within TTL is preferred over failure"
// — read literally for TTL staleness, and generalized here so that a
// fetch error never fails validation outright while ANY cache exists).
func Fetch(ctx context.Context, fetcher Fetcher, cache Cache) (*Index, error) {
	if idx, err := loadParsedCache(cache); err == nil {
		return idx, nil
	}

	content, fresh, err := loadOrRefreshTarGz(ctx, fetcher, cache)
	if err != nil {
		return nil, err
	}

	idx, err := parseAPKINDEX(content)
	if err != nil {
		return nil, fmt.Errorf("parsing APKINDEX: %w", err)
	}
	if fresh {
		if err := saveParsedCache(cache, idx); err != nil {
			return nil, fmt.Errorf("saving parsed cache: %w", err)
		}
	}
	return idx, nil
}

func loadOrRefreshTarGz(ctx context.Context, fetcher Fetcher, cache Cache) ([]byte, bool, error) {
	path := cache.tarGzPath()
	if info, err := os.Stat(path); err == nil && time.Since(info.ModTime()) < cacheTTL {
		data, err := os.ReadFile(path)
		if err == nil {
			return data, false, nil
		}
	}

	data, err := fetcher.Fetch(ctx)
	if err != nil {
		// Fall back to a stale cache rather than fail outright, per
		// spec.md §7's WolfiIndexFetch recovery policy.
		if stale, staleErr := os.ReadFile(path); staleErr == nil {
			return stale, false, nil
		}
		return nil, false, fmt.Errorf("%w", err)
	}

	if err := filesystem.DirectoryExists(cache.Dir); err != nil {
		return nil, false, fmt.Errorf("preparing wolfi cache dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, false, fmt.Errorf("writing APKINDEX cache: %w", err)
	}
	return data, true, nil
}

func loadParsedCache(cache Cache) (*Index, error) {
	parsedPath := cache.parsedPath()
	parsedInfo, err := os.Stat(parsedPath)
	if err != nil {
		return nil, err
	}
	if time.Since(parsedInfo.ModTime()) >= cacheTTL {
		return nil, fmt.Errorf("parsed cache is older than %s", cacheTTL)
	}
	if tarInfo, err := os.Stat(cache.tarGzPath()); err == nil && tarInfo.ModTime().After(parsedInfo.ModTime()) {
		return nil, fmt.Errorf("parsed cache is stale")
	}

	f, err := os.Open(parsedPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	if err := gob.NewDecoder(f).Decode(&names); err != nil {
		return nil, fmt.Errorf("decoding parsed cache: %w", err)
	}
	return newIndex(names), nil
}

func saveParsedCache(cache Cache, idx *Index) error {
	if err := filesystem.DirectoryExists(cache.Dir); err != nil {
		return err
	}
	f, err := os.Create(cache.parsedPath())
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(idx.AllPackages())
}

func newIndex(names []string) *Index {
	idx := &Index{packages: make(map[string]struct{}, len(names))}
	for _, n := range names {
		idx.packages[n] = struct{}{}
	}
	return idx
}

// FromNames builds an in-memory index from a literal package list, for
// callers (and other packages' tests) that need an oracle without a
// tarball or network fetch.
func FromNames(names []string) *Index {
	return newIndex(names)
}

// FromFile loads a committed APKINDEX.tar.gz snapshot, used by tests that
// don't want a network dependency.
func FromFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return parseAPKINDEX(data)
}

// parseAPKINDEX decompresses a (possibly multi-member) gzip stream, reads
// the "APKINDEX" tar entry, and collects every "P:<name>" line.
func parseAPKINDEX(data []byte) (*Index, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompressing APKINDEX.tar.gz: %w", err)
	}
	gz.Multistream(true)
	defer gz.Close()

	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar entries: %w", err)
		}
		if hdr.Name != "APKINDEX" {
			continue
		}
		scanner := bufio.NewScanner(tr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if name, ok := strings.CutPrefix(line, "P:"); ok {
				names = append(names, strings.TrimSpace(name))
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scanning APKINDEX content: %w", err)
		}
		break
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no packages found in APKINDEX")
	}
	return newIndex(names), nil
}

// HasPackage reports exact package-name membership.
func (idx *Index) HasPackage(name string) bool {
	_, ok := idx.packages[name]
	return ok
}

// AllPackages returns every package name, sorted, for tests and the
// Validator's Levenshtein-suggestion search space.
func (idx *Index) AllPackages() []string {
	out := make([]string, 0, len(idx.packages))
	for name := range idx.packages {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetVersions returns every numeric version suffix of "<prefix>-<n>"
// packages, sorted descending. Non-numeric suffixes (stage0, doc, dev)
// and variant suffixes (openjdk-9-jre-base) are excluded, matching the
// original's filtering rules exactly.
func (idx *Index) GetVersions(prefix string) []string {
	withDash := prefix + "-"
	var versions []string
	for name := range idx.packages {
		version, ok := strings.CutPrefix(name, withDash)
		if !ok || version == "" {
			continue
		}
		if version[0] < '0' || version[0] > '9' {
			continue
		}
		if strings.Contains(version, "-") {
			continue
		}
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool {
		return compareVersions(versions[i], versions[j]) > 0
	})
	return versions
}

// compareVersions compares dot-separated numeric version strings
// component by component (so "21" > "9" and "1.92" > "1.75").
func compareVersions(a, b string) int {
	ap := versionParts(a)
	bp := versionParts(b)
	n := len(ap)
	if len(bp) > n {
		n = len(bp)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(ap) {
			av = ap[i]
		}
		if i < len(bp) {
			bv = bp[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func versionParts(v string) []int {
	fields := strings.Split(v, ".")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// GetLatestVersion returns the full package name of the highest version
// for prefix, e.g. "nodejs" -> "nodejs-22".
func (idx *Index) GetLatestVersion(prefix string) (string, bool) {
	versions := idx.GetVersions(prefix)
	if len(versions) == 0 {
		return "", false
	}
	return prefix + "-" + versions[0], true
}

// MatchVersion finds the best match for requested among available,
// trying an exact match first, then a prefix match (e.g. "3.11" matches
// "3.11.5").
func (idx *Index) MatchVersion(prefix, requested string, available []string) (string, bool) {
	for _, v := range available {
		if v == requested {
			return prefix + "-" + requested, true
		}
	}
	for _, v := range available {
		if strings.HasPrefix(v, requested) {
			return prefix + "-" + v, true
		}
	}
	return "", false
}
