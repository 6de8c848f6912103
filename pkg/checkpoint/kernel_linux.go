// +build linux

package checkpoint

import (
	"bytes"

	"golang.org/x/sys/unix"
)

func getKernelVersion() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "unknown"
	}
	release := uts.Release[:]
	if i := bytes.IndexByte(release, 0); i >= 0 {
		release = release[:i]
	}
	return string(release)
}
