package cache

import (
	"io"
	"time"

	"github.com/opencontainers/go-digest"
)

// CachedImage describes one complete entry.
type CachedImage struct {
	ID           string        `json:"image_id"`
	Size         int64         `json:"size"`
	LastAccessed time.Time     `json:"last_accessed"`
	LastModified time.Time     `json:"last_modified"`
	Hits         uint64        `json:"hits"`
	Digest       digest.Digest `json:"digest,omitempty"`
}

// QueuedImage describes one pending prefetch.
type QueuedImage struct {
	ID       string    `json:"image_id"`
	QueuedAt time.Time `json:"queued_at"`
}

// Entry is an open, complete cache entry. The caller owns it and must
// Close it.
type Entry interface {
	io.ReadCloser
	// Size is the payload size in bytes, observed at open time.
	Size() int64
}

// WriteSession is an exclusive claim on an image's slot in the cache.
// Bytes written to it are invisible to readers, and a running SHA256
// is kept as they arrive. A session must be finished exactly once:
// Commit publishes the payload as a complete entry atomically, Abort
// parks it as an invalid entry for the cleaner. Abort after Commit is
// a no-op, so deferring it is safe.
type WriteSession interface {
	io.Writer
	ImageID() string
	// Written reports how many payload bytes the session has accepted.
	Written() int64
	// Digest returns the SHA256 of the bytes written so far.
	Digest() digest.Digest
	Commit() error
	Abort() error
}

// Driver is the cache state machine. The production implementation is
// FilesystemDriver; mock.Driver is an in-memory stand-in for tests.
// All methods are safe for concurrent use, including concurrent use
// from separate processes sharing the cache directory.
type Driver interface {
	// IsCached reports whether a complete entry exists. No side
	// effects; a reader may observe false while a write is mid-flight,
	// which is fine because it then falls through to the origin store.
	IsCached(imageID string) bool

	// GetHitCount returns the accumulated read count for an image;
	// zero if unknown. Counts are per-process and reset when the entry
	// is rewritten.
	GetHitCount(imageID string) uint64

	// OpenForRead opens a complete entry and records the access (atime
	// bump, hit count). Returns ErrNotCached if there is no entry.
	OpenForRead(imageID string) (Entry, error)

	// OpenForWrite exclusively claims the incomplete entry for an
	// image. Returns ErrWriteInProgress if another writer holds it.
	OpenForWrite(imageID string) (WriteSession, error)

	// DeleteCachedImage removes a complete entry; no-op if absent.
	DeleteCachedImage(imageID string) error

	// DeleteAllCachedImages removes every complete entry and returns
	// how many were removed.
	DeleteAllCachedImages() (int, error)

	// QueueImage creates a prefetch marker unless the image is already
	// cached or already queued. Returns true if a marker was created.
	QueueImage(imageID string) (bool, error)

	// PopNextQueued atomically claims the oldest prefetch marker.
	// ok is false when the queue is empty; errors are reserved for
	// filesystem failure.
	PopNextQueued() (imageID string, ok bool, err error)

	// GetCachedImages lists complete entries, most recently accessed
	// first.
	GetCachedImages() ([]CachedImage, error)

	// GetQueuedImages lists pending prefetches, oldest first.
	GetQueuedImages() ([]QueuedImage, error)

	// DeleteQueuedImage removes a prefetch marker; no-op if absent.
	DeleteQueuedImage(imageID string) error

	// DeleteAllQueuedImages removes every prefetch marker and returns
	// how many were removed.
	DeleteAllQueuedImages() (int, error)

	// ReapInvalid deletes invalid entries that have been dead longer
	// than the grace period, returning how many were deleted.
	ReapInvalid(grace time.Duration) (int, error)

	// ReapStalled deletes incomplete entries no writer has touched
	// within stallAge, on the presumption the writer is dead. Returns
	// how many were deleted.
	ReapStalled(stallAge time.Duration) (int, error)
}
