package cache

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// fileEntry is an Entry backed by the cache file itself.
type fileEntry struct {
	file *os.File
	size int64
}

func (e *fileEntry) Read(p []byte) (int, error) { return e.file.Read(p) }
func (e *fileEntry) Close() error               { return e.file.Close() }
func (e *fileEntry) Size() int64                { return e.size }

// FilesystemDriver keeps the whole cache on a local filesystem and
// coordinates through it alone. Exclusive creates fence concurrent
// writers, renames publish and retract entries atomically, and removes
// claim queue markers, so any number of processes can share one cache
// directory without locks or a sidecar service.
//
// Hit counts and content digests are per-process bookkeeping; they are
// not persisted and other processes do not see them.
type FilesystemDriver struct {
	layout Layout
	logger log.Logger

	mu      sync.Mutex
	hits    map[string]uint64
	digests map[string]digest.Digest
}

// NewFilesystemDriver initialises the cache tree under dir and returns
// a driver for it.
func NewFilesystemDriver(dir string, logger log.Logger) (*FilesystemDriver, error) {
	layout := Layout{Dir: dir}
	if err := layout.Init(); err != nil {
		return nil, err
	}
	return &FilesystemDriver{
		layout:  layout,
		logger:  logger,
		hits:    map[string]uint64{},
		digests: map[string]digest.Digest{},
	}, nil
}

func (d *FilesystemDriver) IsCached(imageID string) bool {
	fi, err := os.Stat(d.layout.EntryPath(imageID))
	return err == nil && fi.Mode().IsRegular()
}

func (d *FilesystemDriver) GetHitCount(imageID string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hits[imageID]
}

// OpenForRead opens a complete entry and records the access. The atime
// bump is an explicit touch because noatime mounts would otherwise
// leave eviction blind to reads.
func (d *FilesystemDriver) OpenForRead(imageID string) (Entry, error) {
	path := d.layout.EntryPath(imageID)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotCached
		}
		return nil, errors.Wrapf(err, "opening cached image %s", imageID)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stating cached image %s", imageID)
	}
	if err := os.Chtimes(path, time.Now(), fi.ModTime()); err != nil && !os.IsNotExist(err) {
		d.logger.Log("err", errors.Wrapf(err, "updating access time of %s", imageID))
	}
	d.mu.Lock()
	d.hits[imageID]++
	d.mu.Unlock()
	return &fileEntry{file: f, size: fi.Size()}, nil
}

// OpenForWrite claims the image's slot with an exclusive create. The
// create is the fence: of any number of processes racing to cache the
// same image, exactly one gets the session and the rest get
// ErrWriteInProgress.
func (d *FilesystemDriver) OpenForWrite(imageID string) (WriteSession, error) {
	f, err := os.OpenFile(d.layout.IncompletePath(imageID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrWriteInProgress
		}
		return nil, errors.Wrapf(err, "creating incomplete entry for %s", imageID)
	}
	return &fileWriteSession{
		driver:   d,
		imageID:  imageID,
		file:     f,
		digester: digest.SHA256.Digester(),
	}, nil
}

func (d *FilesystemDriver) DeleteCachedImage(imageID string) error {
	if err := os.Remove(d.layout.EntryPath(imageID)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "deleting cached image %s", imageID)
	}
	d.forget(imageID)
	return nil
}

func (d *FilesystemDriver) DeleteAllCachedImages() (int, error) {
	infos, err := ioutil.ReadDir(d.layout.Dir)
	if err != nil {
		return 0, errors.Wrap(err, "listing cache directory")
	}
	deleted := 0
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		if err := os.Remove(d.layout.EntryPath(fi.Name())); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return deleted, errors.Wrapf(err, "deleting cached image %s", fi.Name())
		}
		d.forget(fi.Name())
		deleted++
	}
	return deleted, nil
}

// QueueImage drops a marker file into the queue directory. Exclusive
// create makes repeat queueing a no-op, and a cached image is never
// queued.
func (d *FilesystemDriver) QueueImage(imageID string) (bool, error) {
	if d.IsCached(imageID) {
		return false, nil
	}
	f, err := os.OpenFile(d.layout.QueuePath(imageID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "queueing image %s", imageID)
	}
	return true, f.Close()
}

// PopNextQueued claims the oldest marker. The remove is the claim:
// when several workers race, the filesystem hands the marker to
// exactly one of them and the others move on to the next.
func (d *FilesystemDriver) PopNextQueued() (string, bool, error) {
	infos, err := ioutil.ReadDir(d.layout.queueDir())
	if err != nil {
		return "", false, errors.Wrap(err, "listing prefetch queue")
	}
	// Name breaks ties so two markers with the same mtime still pop in
	// a stable order everywhere.
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ModTime().Equal(infos[j].ModTime()) {
			return infos[i].Name() < infos[j].Name()
		}
		return infos[i].ModTime().Before(infos[j].ModTime())
	})
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		err := os.Remove(d.layout.QueuePath(fi.Name()))
		if err == nil {
			return fi.Name(), true, nil
		}
		if os.IsNotExist(err) {
			continue
		}
		return "", false, errors.Wrapf(err, "claiming queued image %s", fi.Name())
	}
	return "", false, nil
}

func (d *FilesystemDriver) GetCachedImages() ([]CachedImage, error) {
	infos, err := ioutil.ReadDir(d.layout.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "listing cache directory")
	}
	images := make([]CachedImage, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		id := fi.Name()
		d.mu.Lock()
		hits, dig := d.hits[id], d.digests[id]
		d.mu.Unlock()
		images = append(images, CachedImage{
			ID:           id,
			Size:         fi.Size(),
			LastAccessed: atimeOf(d.layout.EntryPath(id), fi),
			LastModified: fi.ModTime(),
			Hits:         hits,
			Digest:       dig,
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].LastAccessed.After(images[j].LastAccessed) })
	return images, nil
}

func (d *FilesystemDriver) GetQueuedImages() ([]QueuedImage, error) {
	infos, err := ioutil.ReadDir(d.layout.queueDir())
	if err != nil {
		return nil, errors.Wrap(err, "listing prefetch queue")
	}
	queued := make([]QueuedImage, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		queued = append(queued, QueuedImage{ID: fi.Name(), QueuedAt: fi.ModTime()})
	}
	sort.Slice(queued, func(i, j int) bool { return queued[i].QueuedAt.Before(queued[j].QueuedAt) })
	return queued, nil
}

func (d *FilesystemDriver) DeleteQueuedImage(imageID string) error {
	if err := os.Remove(d.layout.QueuePath(imageID)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "deleting queued image %s", imageID)
	}
	return nil
}

func (d *FilesystemDriver) DeleteAllQueuedImages() (int, error) {
	infos, err := ioutil.ReadDir(d.layout.queueDir())
	if err != nil {
		return 0, errors.Wrap(err, "listing prefetch queue")
	}
	deleted := 0
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		if err := os.Remove(d.layout.QueuePath(fi.Name())); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return deleted, errors.Wrapf(err, "deleting queued image %s", fi.Name())
		}
		deleted++
	}
	return deleted, nil
}

func (d *FilesystemDriver) ReapInvalid(grace time.Duration) (int, error) {
	return d.reapOlderThan(d.layout.invalidDir(), grace)
}

func (d *FilesystemDriver) ReapStalled(stallAge time.Duration) (int, error) {
	return d.reapOlderThan(d.layout.incompleteDir(), stallAge)
}

// reapOlderThan deletes regular files under dir whose mtime is older
// than age. mtime tracks the last write, which for incomplete entries
// is what separates a slow writer still making progress from a dead
// one.
func (d *FilesystemDriver) reapOlderThan(dir string, age time.Duration) (int, error) {
	infos, err := ioutil.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "listing %s", dir)
	}
	cutoff := time.Now().Add(-age)
	reaped := 0
	for _, fi := range infos {
		if fi.IsDir() || fi.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, fi.Name())
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return reaped, errors.Wrapf(err, "reaping %s", path)
		}
		d.logger.Log("reaped", path, "age", time.Since(fi.ModTime()).String())
		reaped++
	}
	return reaped, nil
}

// noteCommit resets per-process bookkeeping when a fresh payload is
// promoted. The previous entry's hit history does not describe the new
// bytes.
func (d *FilesystemDriver) noteCommit(imageID string, dig digest.Digest) {
	d.mu.Lock()
	d.hits[imageID] = 0
	d.digests[imageID] = dig
	d.mu.Unlock()
}

func (d *FilesystemDriver) forget(imageID string) {
	d.mu.Lock()
	delete(d.hits, imageID)
	delete(d.digests, imageID)
	d.mu.Unlock()
}

var _ Driver = &FilesystemDriver{}
