package cache

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Subdirectories of the cache root. A file directly under the root is
// a complete entry; these hold every other state an image can be in.
const (
	incompleteDir = "incomplete"
	invalidDir    = "invalid"
	stalledDir    = "stalled"
	queueDir      = "queue"
)

// Layout maps image IDs to their location in the cache tree. Callers
// are expected to have validated IDs at the API boundary; the layout
// itself does plain joins.
type Layout struct {
	// Dir is the cache root, e.g. /var/lib/imagecached/cache
	Dir string
}

// Init creates the cache directory tree. It is safe to call on an
// already-initialised tree, and safe to call from several processes at
// once.
func (l Layout) Init() error {
	for _, dir := range []string{
		l.Dir,
		filepath.Join(l.Dir, incompleteDir),
		filepath.Join(l.Dir, invalidDir),
		filepath.Join(l.Dir, stalledDir),
		filepath.Join(l.Dir, queueDir),
	} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return errors.Wrapf(err, "creating cache directory %s", dir)
		}
	}
	return nil
}

// EntryPath is where a complete, valid image lives. Presence of a
// regular file here is the sole signal that an image is cached.
func (l Layout) EntryPath(imageID string) string {
	return filepath.Join(l.Dir, imageID)
}

// IncompletePath is where an in-progress write lives until it is
// committed or aborted.
func (l Layout) IncompletePath(imageID string) string {
	return filepath.Join(l.Dir, incompleteDir, imageID)
}

// InvalidPath is where a failed or abandoned write is parked for
// inspection until the cleaner reaps it.
func (l Layout) InvalidPath(imageID string) string {
	return filepath.Join(l.Dir, invalidDir, imageID)
}

// QueuePath is where the marker for a pending prefetch lives. The
// marker is an empty file; its mtime is the enqueue time.
func (l Layout) QueuePath(imageID string) string {
	return filepath.Join(l.Dir, queueDir, imageID)
}

func (l Layout) incompleteDir() string { return filepath.Join(l.Dir, incompleteDir) }
func (l Layout) invalidDir() string    { return filepath.Join(l.Dir, invalidDir) }
func (l Layout) queueDir() string      { return filepath.Join(l.Dir, queueDir) }
