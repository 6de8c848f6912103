// Package checkpoint logs the daemon's build and platform details at
// startup and then at staggered intervals, so log retention always
// holds a recent record of what is deployed where. Setting the
// environment variable CHECKPOINT_DISABLE suppresses it.
package checkpoint

import (
	"sort"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
)

const announcePeriod = 6 * time.Hour

type announcer struct {
	doneCh chan struct{}
	once   sync.Once
}

// Stop ends the periodic announcements.
func (a *announcer) Stop() {
	a.once.Do(func() { close(a.doneCh) })
}

// Announce reports product and version, the kernel version, and any
// extra details the caller supplies.
func Announce(product, version string, extra map[string]string, logger log.Logger) *announcer {
	flags := map[string]string{
		"kernel-version": getKernelVersion(),
	}
	for k, v := range extra {
		flags[k] = v
	}

	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	keyvals := []interface{}{"product", product, "version", version}
	for _, k := range keys {
		keyvals = append(keyvals, k, flags[k])
	}

	a := &announcer{doneCh: make(chan struct{})}
	if isCheckDisabled() {
		return a
	}

	go func() {
		logger.Log(keyvals...)
		for {
			select {
			case <-time.After(randomStagger(announcePeriod)):
				logger.Log(keyvals...)
			case <-a.doneCh:
				return
			}
		}
	}()

	return a
}
