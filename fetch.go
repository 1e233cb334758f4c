package main

import (
	"archive/zip"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// DefaultChunkSize 下载分块大小
const DefaultChunkSize = 8192

var (
	// ErrTargetExists is returned when the extraction directory already exists.
	ErrTargetExists = errors.New("extraction target already exists")
	// ErrBadStatus is returned for a non-2xx archive response.
	ErrBadStatus = errors.New("unexpected http status")
	// ErrUnsafePath is returned for an archive member that escapes its directory.
	ErrUnsafePath = errors.New("archive member outside target directory")
)

// Fetcher 数据集下载器
type Fetcher struct {
	Client    *http.Client
	Map       *DataMap
	InDir     string
	ChunkSize int
	// Progress receives the download bar; nil disables it.
	Progress io.Writer
	Exit     *SafeExit
}

// NewFetcher builds a fetcher from the run configuration.
func NewFetcher(conf *Conf, m *DataMap, exit *SafeExit) *Fetcher {
	f := &Fetcher{
		Client:    newHTTPClient(conf.Source.Timeout),
		Map:       m,
		InDir:     conf.Run.InDir,
		ChunkSize: conf.Source.ChunkSize,
		Exit:      exit,
	}
	if conf.Output.OutputTerminal {
		f.Progress = os.Stdout
	}
	return f
}

// newHTTPClient has no overall timeout unless one is configured.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Ensure downloads and extracts name unless its directory already exists.
// It reports whether a fetch happened.
func (f *Fetcher) Ensure(ctx context.Context, name string) (bool, error) {
	dir := DatasetDir(f.InDir, name)
	if _, err := os.Stat(dir); err == nil {
		log.Debugf("dataset %s present at %s, skip", name, dir)
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, errors.Wrapf(err, "stat %s", dir)
	}

	zipPath := f.zipPath(name)
	id := f.Exit.Register(func() {
		os.Remove(zipPath)
		os.RemoveAll(dir)
	})
	defer f.Exit.Unregister(id)

	if err := f.Download(ctx, name); err != nil {
		os.Remove(zipPath)
		return true, err
	}
	if err := f.Unzip(name); err != nil {
		if !errors.Is(err, ErrTargetExists) {
			os.Remove(zipPath)
			os.RemoveAll(dir)
		}
		return true, err
	}
	return true, nil
}

func (f *Fetcher) zipPath(name string) string {
	return filepath.Join(f.InDir, name+".zip")
}

// Download streams the archive of name into <InDir>/<name>.zip.
func (f *Fetcher) Download(ctx context.Context, name string) error {
	url, err := f.Map.GetDatasetURL(name)
	if err != nil {
		return err
	}
	log.Infof("Url %s (%s)", url, f.Map.Name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "build request for %s", name)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "fetch %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(ErrBadStatus, "fetch %s: %s", url, resp.Status)
	}

	out, err := os.Create(f.zipPath(name))
	if err != nil {
		return errors.Wrap(err, "create archive file")
	}
	defer out.Close()

	bar := f.newBar(name, resp.ContentLength)
	n, err := copyChunks(out, resp.Body, f.chunkSize(), bar.Add)
	bar.Finish()
	if err != nil {
		return errors.Wrapf(err, "download %s", name)
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(err, "close archive file")
	}
	log.Infof("Downloading %s: %.4f Mb done", name, float64(n)/1024.0/1024.0)
	return nil
}

func (f *Fetcher) chunkSize() int {
	if f.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return f.ChunkSize
}

// newBar shows a percentage when total is known and a byte count otherwise.
func (f *Fetcher) newBar(name string, total int64) *pb.ProgressBar {
	if total < 0 {
		total = 0
	}
	bar := pb.New64(total).SetUnits(pb.U_BYTES).Prefix("Downloading " + name + " ")
	bar.SetRefreshRate(500 * time.Millisecond)
	if f.Progress == nil {
		bar.NotPrint = true
	} else {
		bar.Output = f.Progress
	}
	bar.Start()
	return bar
}

// Unzip extracts <InDir>/<name>.zip into <InDir>/<name>/ and removes the archive.
func (f *Fetcher) Unzip(name string) error {
	zipPath := f.zipPath(name)
	dir := DatasetDir(f.InDir, name)

	r, err := zip.OpenReader(zipPath)
	if errors.Is(err, zip.ErrInsecurePath) {
		r.Close()
		return errors.Wrap(ErrUnsafePath, zipPath)
	}
	if err != nil {
		return errors.Wrapf(err, "open archive %s", zipPath)
	}
	defer r.Close()

	if err := os.Mkdir(dir, os.ModePerm); err != nil {
		if os.IsExist(err) {
			return errors.Wrap(ErrTargetExists, dir)
		}
		return errors.Wrapf(err, "create %s", dir)
	}
	for _, zf := range r.File {
		if err := extractFile(zf, dir); err != nil {
			return errors.Wrapf(err, "extract %s", name)
		}
	}
	if err := r.Close(); err != nil {
		return errors.Wrap(err, "close archive")
	}
	if err := os.Remove(zipPath); err != nil {
		return errors.Wrap(err, "remove archive")
	}
	log.Infof("extracted %s (%d files)", dir, len(r.File))
	return nil
}
