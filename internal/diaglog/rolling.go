package diaglog

import (
	"os"
	"sync"
)

// rollingWriter appends to path and rotates it to path+".1" when the next
// write would push it past maxSize. One rotated generation is kept, so the
// newest entries always survive and the log stays under 2*maxSize on disk.
type rollingWriter struct {
	mu      sync.Mutex
	path    string
	maxSize int64
	f       *os.File
	size    int64
}

// backupPath is the single rotated generation of path.
func backupPath(path string) string {
	return path + ".1"
}

func newRollingWriter(path string, maxSize int64) (*rollingWriter, error) {
	rw := &rollingWriter{path: path, maxSize: maxSize}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *rollingWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	rw.f, rw.size = f, info.Size()
	return nil
}

// rotate must be called with mu held. When the rename fails the live
// file is reopened and keeps growing until a later rotation succeeds.
func (rw *rollingWriter) rotate() error {
	_ = rw.f.Close()
	renameErr := os.Rename(rw.path, backupPath(rw.path))
	if err := rw.open(); err != nil {
		if renameErr != nil {
			return renameErr
		}
		return err
	}
	return nil
}

// Write appends p, rotating first when p would not fit. A write larger
// than maxSize on its own still lands in a fresh file.
func (rw *rollingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.size > 0 && rw.size+int64(len(p)) > rw.maxSize {
		if err := rw.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := rw.f.Write(p)
	rw.size += int64(n)
	if err != nil {
		return n, err
	}
	_ = rw.f.Sync()
	return n, nil
}

func (rw *rollingWriter) close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	_ = rw.f.Sync()
	return rw.f.Close()
}
