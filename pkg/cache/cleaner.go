package cache

import (
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// Cleaner reaps the cache's failure residue: invalid entries that have
// outlived their grace period, and incomplete entries whose writer has
// gone quiet for longer than any legitimate write would.
type Cleaner struct {
	Driver   Driver
	Grace    time.Duration
	StallAge time.Duration
	Logger   log.Logger
}

// Clean runs one reaping pass.
func (c *Cleaner) Clean() error {
	invalid, err := c.Driver.ReapInvalid(c.Grace)
	if err != nil {
		return errors.Wrap(err, "reaping invalid entries")
	}
	stalled, err := c.Driver.ReapStalled(c.StallAge)
	if err != nil {
		return errors.Wrap(err, "reaping stalled writes")
	}
	if invalid > 0 || stalled > 0 {
		c.Logger.Log("invalid_reaped", invalid, "stalled_reaped", stalled)
	}
	return nil
}

// Run cleans on every tick, until the channel closes.
func (c *Cleaner) Run(tick <-chan time.Time) {
	for range tick {
		if err := c.Clean(); err != nil {
			c.Logger.Log("err", err)
		}
	}
}
