// Package sink writes a reassembled ASF file to disk.
package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/zsiec/mmsget/internal/mmsh"
)

// ErrNotFinished is returned by Err while the download is still running.
var ErrNotFinished = errors.New("sink: download not finished")

// File is an mmsh.Sink over an *os.File. Writes land at their absolute
// offsets, so a seekable download may leave holes until every packet has
// arrived.
type File struct {
	path string
	log  *slog.Logger

	mu       sync.Mutex
	f        *os.File
	size     int64
	written  int64
	finished bool
	err      error
	done     chan struct{}
}

var _ mmsh.Sink = (*File)(nil)

// Create creates or truncates the file at path.
func Create(path string, log *slog.Logger) (*File, error) {
	if log == nil {
		log = slog.Default()
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", path, err)
	}
	return &File{
		path: path,
		log:  log.With("component", "sink", "path", path),
		f:    f,
		done: make(chan struct{}),
	}, nil
}

// WriteAt writes p at off.
func (s *File) WriteAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, os.ErrClosed
	}
	n, err := s.f.WriteAt(p, off)
	s.written += int64(n)
	return n, err
}

// NotifySize sizes the file to the total length announced by the stream
// header.
func (s *File) NotifySize(size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
	if s.f == nil {
		return
	}
	if err := s.f.Truncate(size); err != nil {
		s.log.Warn("preallocate failed", "size", size, "error", err)
	}
}

// NotifyFinished flushes and closes the file.
func (s *File) NotifyFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	s.err = s.closeLocked()
	s.log.Info("file complete", "size", s.size, "written", s.written)
	close(s.done)
}

// NotifyFailed closes the file and records err. The partial file is kept.
func (s *File) NotifyFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	s.finished = true
	if cerr := s.closeLocked(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	s.err = err
	s.log.Error("download failed", "error", err, "written", s.written)
	close(s.done)
}

// Done is closed once the download has finished or failed.
func (s *File) Done() <-chan struct{} {
	return s.done
}

// Err returns the outcome of the download: nil on success, the failure
// otherwise, or ErrNotFinished before Done is closed.
func (s *File) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		return ErrNotFinished
	}
	return s.err
}

// Size returns the total size announced by the stream header, or 0 for a
// live stream.
func (s *File) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Close releases the file without reporting an outcome. It is a no-op after
// NotifyFinished or NotifyFailed.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *File) closeLocked() error {
	if s.f == nil {
		return nil
	}
	f := s.f
	s.f = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sink: sync %s: %w", s.path, err)
	}
	return f.Close()
}
