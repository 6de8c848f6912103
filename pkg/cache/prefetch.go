package cache

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/imagecached/imagecached/pkg/store"
)

// Prefetcher drains the prefetch queue: it claims markers oldest
// first, pulls each image from the origin store and commits it to the
// cache. One loop per process; the queue itself lives on disk, so
// markers survive restarts and are picked up again by whichever
// process gets to them first.
type Prefetcher struct {
	Driver       Driver
	Store        store.Store
	Logger       log.Logger
	PollInterval time.Duration

	initOnce sync.Once
	wakeups  chan struct{}
}

// Wake nudges the loop without waiting for the next poll. QueueImage
// callers use it so prefetches start promptly.
func (p *Prefetcher) Wake() {
	select {
	case p.wakeup() <- struct{}{}:
	default:
		// a wakeup is already pending; the next drain will see the marker
	}
}

func (p *Prefetcher) wakeup() chan struct{} {
	p.initOnce.Do(func() {
		p.wakeups = make(chan struct{}, 1)
	})
	return p.wakeups
}

// Loop drains the queue on every wakeup and on a steady poll. The poll
// is what picks up markers queued by other processes, or left behind
// by a crashed one.
func (p *Prefetcher) Loop(stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	if p.Driver == nil || p.Store == nil || p.Logger == nil || p.PollInterval == 0 {
		panic("cache.Prefetcher fields are nil")
	}

	poll := time.Tick(p.PollInterval)
	p.Logger.Log("tick", p.PollInterval)

	for {
		select {
		case <-stop:
			p.Logger.Log("stopping", "true")
			return
		case <-p.wakeup():
		case <-poll:
		}
		p.drain(stop)
	}
}

// Drain fetches queued images until the queue is empty, returning how
// many fetches succeeded and how many failed. A failed fetch is logged
// and does not stop the drain. Images that turn out to be cached
// already, or that another writer is mid-way through, count as
// neither.
func (p *Prefetcher) Drain() (fetched, failed int) {
	return p.drain(nil)
}

// drain stops between items when stop closes; the item in flight is
// always finished, never cut off.
func (p *Prefetcher) drain(stop <-chan struct{}) (fetched, failed int) {
	for {
		select {
		case <-stop:
			return fetched, failed
		default:
		}
		imageID, ok, err := p.Driver.PopNextQueued()
		if err != nil {
			p.Logger.Log("err", err)
			return fetched, failed
		}
		if !ok {
			return fetched, failed
		}
		skipped, err := p.fetch(imageID)
		if err != nil {
			p.Logger.Log("image", imageID, "err", err)
			failed++
			continue
		}
		if !skipped {
			fetched++
		}
	}
}

// fetch pulls one image from the origin store into the cache. The
// write session is claimed before touching the store, so a concurrent
// read-through of the same image cannot double-write; whoever loses
// the claim simply leaves the image to the winner.
func (p *Prefetcher) fetch(imageID string) (skipped bool, err error) {
	if p.Driver.IsCached(imageID) {
		return true, nil
	}
	session, err := p.Driver.OpenForWrite(imageID)
	if err != nil {
		if err == ErrWriteInProgress {
			p.Logger.Log("image", imageID, "skipped", "write in progress")
			return true, nil
		}
		return false, err
	}
	defer session.Abort()

	stream, err := p.Store.Get(context.Background(), imageID)
	if err != nil {
		return false, errors.Wrapf(err, "fetching image %s from store", imageID)
	}
	defer stream.Body.Close()

	if _, err := io.Copy(session, stream.Body); err != nil {
		return false, errors.Wrapf(err, "downloading image %s", imageID)
	}
	if stream.Size >= 0 && session.Written() != stream.Size {
		return false, SizeMismatchError{Declared: stream.Size, Actual: session.Written()}
	}
	if stream.Digest != "" && session.Digest() != stream.Digest {
		return false, ChecksumMismatchError{Declared: stream.Digest, Actual: session.Digest()}
	}
	if err := session.Commit(); err != nil {
		return false, err
	}
	p.Logger.Log("image", imageID, "prefetched", "true", "size", session.Written())
	return false, nil
}
