package logger

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	fileBufferSize    = 32 * 1024
	fileFlushInterval = 5 * time.Second
)

// fileSink is a buffered, append-only log file. A background goroutine
// flushes it every fileFlushInterval until close.
type fileSink struct {
	mu   sync.Mutex
	f    *os.File
	buf  *bufio.Writer
	stop chan struct{}
	done chan struct{}
}

func openFileSink(path string) (*fileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, err
	}

	s := &fileSink{
		f:    f,
		buf:  bufio.NewWriterSize(f, fileBufferSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.flushLoop()
	return s, nil
}

func (s *fileSink) flushLoop() {
	defer close(s.done)
	ticker := time.NewTicker(fileFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.flush()
		case <-s.stop:
			return
		}
	}
}

func (s *fileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return 0, os.ErrClosed
	}
	return s.buf.Write(p)
}

func (s *fileSink) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return nil
	}
	return s.buf.Flush()
}

// close stops the flush loop, writes what is buffered and closes the file
func (s *fileSink) close() error {
	s.mu.Lock()
	if s.buf == nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stop)
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	err := errors.Join(s.buf.Flush(), s.f.Sync(), s.f.Close())
	s.buf = nil
	return err
}
