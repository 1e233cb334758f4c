package main

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip Create failed: %v", err)
		}
		if _, err := io.WriteString(w, body); err != nil {
			t.Fatalf("zip Write failed: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close failed: %v", err)
	}
	return buf.Bytes()
}

// archiveServer serves archives by dataset name and counts requests.
type archiveServer struct {
	*httptest.Server
	hits    int32
	mu      sync.Mutex
	paths   []string
	chunked bool
}

func newArchiveServer(t *testing.T, archives map[string][]byte) *archiveServer {
	s := &archiveServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.hits, 1)
		s.mu.Lock()
		s.paths = append(s.paths, r.URL.Path)
		s.mu.Unlock()
		name := strings.TrimSuffix(filepath.Base(r.URL.Path), ".zip")
		body, ok := archives[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if s.chunked {
			// flushing before the body is complete forces chunked encoding
			half := len(body) / 2
			w.Write(body[:half])
			w.(http.Flusher).Flush()
			w.Write(body[half:])
			return
		}
		w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *archiveServer) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func newTestFetcher(t *testing.T, srv *archiveServer, inDir string) *Fetcher {
	t.Helper()
	m, err := NewDataMap("test", srv.URL+"/{scale}/{category}/{name}.zip")
	if err != nil {
		t.Fatalf("NewDataMap failed: %v", err)
	}
	return &Fetcher{
		Client:    srv.Client(),
		Map:       m,
		InDir:     inDir,
		ChunkSize: DefaultChunkSize,
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s) failed: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestEnsureFetchesOnce(t *testing.T) {
	const name = "ne_10m_roads"
	srv := newArchiveServer(t, map[string][]byte{
		name: makeZip(t, map[string]string{
			name + ".shp": "shp",
			name + ".shx": "shx",
			name + ".dbf": "dbf",
		}),
	})
	inDir := t.TempDir()
	f := newTestFetcher(t, srv, inDir)

	fetched, err := f.Ensure(context.Background(), name)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if !fetched {
		t.Errorf("first Ensure fetched = false, want true")
	}
	fetched, err = f.Ensure(context.Background(), name)
	if err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	if fetched {
		t.Errorf("second Ensure fetched = true, want false")
	}
	if hits := atomic.LoadInt32(&srv.hits); hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}
	if diff := cmp.Diff([]string{"/10m/cultural/ne_10m_roads.zip"}, srv.requested()); diff != "" {
		t.Errorf("request paths mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{name}, listDir(t, inDir)); diff != "" {
		t.Errorf("in dir mismatch, archive not removed? (-want +got):\n%s", diff)
	}
	want := []string{name + ".dbf", name + ".shp", name + ".shx"}
	if diff := cmp.Diff(want, listDir(t, filepath.Join(inDir, name))); diff != "" {
		t.Errorf("extracted files mismatch (-want +got):\n%s", diff)
	}
	data, err := os.ReadFile(ShapefilePath(inDir, name))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "shp" {
		t.Errorf("shapefile content = %q, want %q", data, "shp")
	}
}

func TestEnsureSkipsExistingDir(t *testing.T) {
	srv := newArchiveServer(t, nil)
	inDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(inDir, "ne_110m_land"), 0755); err != nil {
		t.Fatal(err)
	}
	f := newTestFetcher(t, srv, inDir)

	fetched, err := f.Ensure(context.Background(), "ne_110m_land")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if fetched || atomic.LoadInt32(&srv.hits) != 0 {
		t.Errorf("Ensure touched the network for an existing dataset")
	}
}

func TestEnsureUnknownLength(t *testing.T) {
	const name = "ne_50m_rivers_lake_centerlines"
	srv := newArchiveServer(t, map[string][]byte{
		name: makeZip(t, map[string]string{name + ".shp": strings.Repeat("x", 40000)}),
	})
	srv.chunked = true
	inDir := t.TempDir()
	f := newTestFetcher(t, srv, inDir)
	f.ChunkSize = 1024

	if _, err := f.Ensure(context.Background(), name); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	info, err := os.Stat(ShapefilePath(inDir, name))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 40000 {
		t.Errorf("shapefile size = %d, want 40000", info.Size())
	}
	if diff := cmp.Diff([]string{"/50m/physical/ne_50m_rivers_lake_centerlines.zip"}, srv.requested()); diff != "" {
		t.Errorf("request paths mismatch (-want +got):\n%s", diff)
	}
}

func TestEnsureBadStatus(t *testing.T) {
	srv := newArchiveServer(t, nil)
	inDir := t.TempDir()
	f := newTestFetcher(t, srv, inDir)

	_, err := f.Ensure(context.Background(), "ne_10m_lakes")
	if !errors.Is(err, ErrBadStatus) {
		t.Fatalf("err = %v, want ErrBadStatus", err)
	}
	if names := listDir(t, inDir); len(names) != 0 {
		t.Errorf("in dir = %v after failed fetch, want empty", names)
	}
}

func TestEnsureCorruptArchive(t *testing.T) {
	srv := newArchiveServer(t, map[string][]byte{"ne_10m_lakes": []byte("<html>not a zip</html>")})
	inDir := t.TempDir()
	f := newTestFetcher(t, srv, inDir)

	if _, err := f.Ensure(context.Background(), "ne_10m_lakes"); err == nil {
		t.Fatalf("Ensure succeeded on corrupt archive")
	}
	if _, err := os.Stat(filepath.Join(inDir, "ne_10m_lakes")); !os.IsNotExist(err) {
		t.Errorf("dataset dir exists after corrupt archive, err = %v", err)
	}
}

func TestUnzipTargetExists(t *testing.T) {
	inDir := t.TempDir()
	zipPath := filepath.Join(inDir, "ne_10m_roads.zip")
	if err := os.WriteFile(zipPath, makeZip(t, map[string]string{"a.shp": "a"}), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(inDir, "ne_10m_roads"), 0755); err != nil {
		t.Fatal(err)
	}
	f := &Fetcher{InDir: inDir}

	if err := f.Unzip("ne_10m_roads"); !errors.Is(err, ErrTargetExists) {
		t.Fatalf("err = %v, want ErrTargetExists", err)
	}
	if _, err := os.Stat(zipPath); err != nil {
		t.Errorf("archive removed after failed unzip: %v", err)
	}
}

func TestUnzipRejectsEscapingMember(t *testing.T) {
	inDir := t.TempDir()
	zipPath := filepath.Join(inDir, "ne_10m_roads.zip")
	if err := os.WriteFile(zipPath, makeZip(t, map[string]string{"../evil.shp": "x"}), 0644); err != nil {
		t.Fatal(err)
	}
	f := &Fetcher{InDir: inDir}

	if err := f.Unzip("ne_10m_roads"); !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("err = %v, want ErrUnsafePath", err)
	}
	if _, err := os.Stat(filepath.Join(inDir, "evil.shp")); !os.IsNotExist(err) {
		t.Errorf("escaping member written, err = %v", err)
	}
}

func TestEnsureRegistersCleanup(t *testing.T) {
	const name = "ne_10m_roads"
	srv := newArchiveServer(t, map[string][]byte{name: makeZip(t, map[string]string{name + ".shp": "shp"})})
	f := newTestFetcher(t, srv, t.TempDir())
	f.Exit = NewSafeExit()

	if _, err := f.Ensure(context.Background(), name); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if n := len(f.Exit.funcs); n != 0 {
		t.Errorf("%d cleanups left registered after Ensure, want 0", n)
	}
}

func TestCopyChunks(t *testing.T) {
	src := strings.Repeat("natural earth ", 100)
	var dst bytes.Buffer
	var calls, reported int

	n, err := copyChunks(&dst, iotest.HalfReader(strings.NewReader(src)), 64, func(k int) int {
		calls++
		reported += k
		return reported
	})
	if err != nil {
		t.Fatalf("copyChunks failed: %v", err)
	}
	if n != int64(len(src)) || reported != len(src) {
		t.Errorf("copied %d, reported %d, want %d", n, reported, len(src))
	}
	if dst.String() != src {
		t.Errorf("copied data mismatch")
	}
	if calls < len(src)/64 {
		t.Errorf("progress called %d times, want at least %d", calls, len(src)/64)
	}
}

func TestCopyChunksReadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := copyChunks(io.Discard, iotest.ErrReader(boom), DefaultChunkSize, nil)
	if err != boom {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

// lockedBuffer collects the progress bar output written from its refresh goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDownloadProgress(t *testing.T) {
	const name = "ne_50m_rivers_lake_centerlines"
	archive := makeZip(t, map[string]string{name + ".shp": strings.Repeat("x", 40000)})

	for _, chunked := range []bool{false, true} {
		srv := newArchiveServer(t, map[string][]byte{name: archive})
		srv.chunked = chunked
		f := newTestFetcher(t, srv, t.TempDir())
		out := &lockedBuffer{}
		f.Progress = out

		if err := f.Download(context.Background(), name); err != nil {
			t.Fatalf("Download(chunked=%v) failed: %v", chunked, err)
		}
		got := out.String()
		if chunked {
			if strings.Contains(got, "%") || !strings.Contains(got, "/ ?") {
				t.Errorf("unknown length: progress %q, want byte count without percentage", got)
			}
		} else if !strings.Contains(got, "%") {
			t.Errorf("known length: progress %q, want percentage", got)
		}
	}
}
