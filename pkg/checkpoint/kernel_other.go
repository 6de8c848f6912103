// +build !linux,!darwin

package checkpoint

import "runtime"

func getKernelVersion() string {
	return runtime.GOOS
}
