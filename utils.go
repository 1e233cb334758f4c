package main

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// copyChunks copies src to dst in chunks of size bytes until src is
// exhausted, reporting each chunk to progress.
func copyChunks(dst io.Writer, src io.Reader, size int, progress func(int) int) (int64, error) {
	buf := make([]byte, size)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
			if progress != nil {
				progress(n)
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// extractFile writes one archive member below dir.
func extractFile(zf *zip.File, dir string) error {
	target := filepath.Join(dir, zf.Name)
	if target != dir && !strings.HasPrefix(target, dir+string(os.PathSeparator)) {
		return errors.Wrap(ErrUnsafePath, zf.Name)
	}
	if zf.FileInfo().IsDir() {
		return os.MkdirAll(target, os.ModePerm)
	}
	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
