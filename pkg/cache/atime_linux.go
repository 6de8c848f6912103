// +build linux

package cache

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// atimeOf returns the last access time of the file at path. Recency
// for eviction prefers atime; note that on `noatime`/`relatime` mounts
// the kernel stops maintaining it, which is why reads also bump the
// timestamp explicitly (see FilesystemDriver.OpenForRead).
func atimeOf(path string, fi os.FileInfo) time.Time {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fi.ModTime()
	}
	return time.Unix(st.Atim.Unix())
}
