package common

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// rotatingFile is an append-only log file that is gzipped and replaced once
// a write would grow it past maxSize. At most maxBackups gzipped files are
// kept next to it.
type rotatingFile struct {
	mu         sync.Mutex
	path       string
	maxSize    int64
	maxBackups int
	file       *os.File
	size       int64
}

func openRotatingFile(path string, maxSize int64, maxBackups int) (*rotatingFile, error) {
	if isSymlink(filepath.Dir(path)) {
		return nil, errors.New("security error: log directory is a symlink")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "creating log directory")
	}
	if isSymlink(path) {
		return nil, errors.New("security error: log file is a symlink")
	}

	r := &rotatingFile{path: path, maxSize: maxSize, maxBackups: maxBackups}
	if err := r.open(); err != nil {
		return nil, err
	}
	if r.size >= r.maxSize {
		if err := r.rotate(); err != nil {
			r.file.Close()
			return nil, err
		}
	}
	return r, nil
}

func (r *rotatingFile) open() error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return errors.Wrap(err, "opening log file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Wrap(err, "stat log file")
	}
	r.file = f
	r.size = info.Size()
	return nil
}

// Write implements io.Writer. One zerolog event is one Write, so an entry
// never straddles two files.
func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, os.ErrClosed
	}
	if r.size > 0 && r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate compresses the current file into a timestamped backup and starts
// a new one. Callers must hold r.mu.
func (r *rotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return errors.Wrap(err, "closing log file")
	}
	r.file = nil

	backup := fmt.Sprintf("%s.%s", r.path, time.Now().Format("20060102-150405.000"))
	if err := gzipFile(r.path, backup+".gz"); err != nil {
		// Keep the data even if it can't be compressed.
		os.Rename(r.path, backup)
	} else {
		os.Remove(r.path)
	}
	r.prune()
	return r.open()
}

// prune removes the oldest backups beyond maxBackups. Backup names embed
// their timestamp, so lexical order is age order.
func (r *rotatingFile) prune() {
	backups, err := filepath.Glob(r.path + ".*")
	if err != nil || len(backups) <= r.maxBackups {
		return
	}
	sort.Strings(backups)
	for _, old := range backups[:len(backups)-r.maxBackups] {
		os.Remove(old)
	}
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// isSymlink reports whether path is a symbolic link. A missing path is not.
func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}
