// +build !linux

package cache

import (
	"os"
	"time"
)

// atimeOf falls back to mtime on platforms where we don't reach for
// the raw stat structure. This is a documented limitation: recency is
// then last-write order, not last-read order, so eviction will not
// notice reads. Linux builds get real access times.
func atimeOf(path string, fi os.FileInfo) time.Time {
	return fi.ModTime()
}
