package cache

import (
	"os"
	"sync"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// fileWriteSession writes to the incomplete area and promotes or parks
// the file when finished. The state transitions are all renames, so
// readers and other processes only ever see whole entries.
type fileWriteSession struct {
	driver   *FilesystemDriver
	imageID  string
	file     *os.File
	digester digest.Digester

	mu      sync.Mutex
	written int64
	done    bool
}

func (s *fileWriteSession) ImageID() string { return s.imageID }

func (s *fileWriteSession) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func (s *fileWriteSession) Digest() digest.Digest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digester.Digest()
}

func (s *fileWriteSession) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return 0, errors.Errorf("write to finished cache session for %s", s.imageID)
	}
	n, err := s.file.Write(p)
	if n > 0 {
		s.written += int64(n)
		s.digester.Hash().Write(p[:n])
	}
	if err != nil {
		return n, errors.Wrapf(err, "writing image %s to cache", s.imageID)
	}
	return n, nil
}

// Commit makes the payload durable and renames it into place. A
// failure at any point parks the file as invalid instead.
func (s *fileWriteSession) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return errors.Errorf("cache session for %s already finished", s.imageID)
	}
	s.done = true
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		s.park()
		return errors.Wrapf(err, "syncing image %s", s.imageID)
	}
	if err := s.file.Close(); err != nil {
		s.park()
		return errors.Wrapf(err, "closing image %s", s.imageID)
	}
	layout := s.driver.layout
	if err := os.Rename(layout.IncompletePath(s.imageID), layout.EntryPath(s.imageID)); err != nil {
		s.park()
		return errors.Wrapf(err, "promoting image %s", s.imageID)
	}
	s.driver.noteCommit(s.imageID, s.digester.Digest())
	return nil
}

func (s *fileWriteSession) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	s.file.Close()
	return s.park()
}

func (s *fileWriteSession) park() error {
	layout := s.driver.layout
	if err := os.Rename(layout.IncompletePath(s.imageID), layout.InvalidPath(s.imageID)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "marking image %s invalid", s.imageID)
	}
	return nil
}

var _ WriteSession = &fileWriteSession{}
