package mock

import (
	"bytes"
	"io"
	"io/ioutil"
	"sort"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/imagecached/imagecached/pkg/cache"
)

type image struct {
	data     []byte
	accessed time.Time
	modified time.Time
	hits     uint64
	digest   digest.Digest
}

// Driver is an in-memory cache.Driver with the same semantics as the
// filesystem one, minus the filesystem. Set Err to make every fallible
// method fail.
type Driver struct {
	Err error

	mu      sync.Mutex
	images  map[string]*image
	queue   map[string]time.Time
	writing map[string]bool
	now     time.Time
}

func NewDriver() *Driver {
	return &Driver{
		images:  map[string]*image{},
		queue:   map[string]time.Time{},
		writing: map[string]bool{},
		now:     time.Now(),
	}
}

// Add puts a complete entry in place, as if it had been cached
// earlier. Successive Adds get successively later access times.
func (d *Driver) Add(imageID string, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = d.now.Add(time.Second)
	d.images[imageID] = &image{
		data:     data,
		accessed: d.now,
		modified: d.now,
		digest:   digest.FromBytes(data),
	}
}

func (d *Driver) IsCached(imageID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.images[imageID]
	return ok
}

func (d *Driver) GetHitCount(imageID string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if img, ok := d.images[imageID]; ok {
		return img.hits
	}
	return 0
}

func (d *Driver) OpenForRead(imageID string) (cache.Entry, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[imageID]
	if !ok {
		return nil, cache.ErrNotCached
	}
	d.now = d.now.Add(time.Second)
	img.accessed = d.now
	img.hits++
	return &entry{ReadCloser: ioutil.NopCloser(bytes.NewReader(img.data)), size: int64(len(img.data))}, nil
}

func (d *Driver) OpenForWrite(imageID string) (cache.WriteSession, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writing[imageID] {
		return nil, cache.ErrWriteInProgress
	}
	d.writing[imageID] = true
	return &session{
		driver:   d,
		imageID:  imageID,
		digester: digest.SHA256.Digester(),
	}, nil
}

func (d *Driver) DeleteCachedImage(imageID string) error {
	if d.Err != nil {
		return d.Err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.images, imageID)
	return nil
}

func (d *Driver) DeleteAllCachedImages() (int, error) {
	if d.Err != nil {
		return 0, d.Err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.images)
	d.images = map[string]*image{}
	return n, nil
}

func (d *Driver) QueueImage(imageID string) (bool, error) {
	if d.Err != nil {
		return false, d.Err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, cached := d.images[imageID]; cached {
		return false, nil
	}
	if _, queued := d.queue[imageID]; queued {
		return false, nil
	}
	d.now = d.now.Add(time.Second)
	d.queue[imageID] = d.now
	return true, nil
}

func (d *Driver) PopNextQueued() (string, bool, error) {
	if d.Err != nil {
		return "", false, d.Err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var oldest string
	var oldestAt time.Time
	for id, at := range d.queue {
		if oldest == "" || at.Before(oldestAt) {
			oldest, oldestAt = id, at
		}
	}
	if oldest == "" {
		return "", false, nil
	}
	delete(d.queue, oldest)
	return oldest, true, nil
}

func (d *Driver) GetCachedImages() ([]cache.CachedImage, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	images := make([]cache.CachedImage, 0, len(d.images))
	for id, img := range d.images {
		images = append(images, cache.CachedImage{
			ID:           id,
			Size:         int64(len(img.data)),
			LastAccessed: img.accessed,
			LastModified: img.modified,
			Hits:         img.hits,
			Digest:       img.digest,
		})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].LastAccessed.After(images[j].LastAccessed) })
	return images, nil
}

func (d *Driver) GetQueuedImages() ([]cache.QueuedImage, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	queued := make([]cache.QueuedImage, 0, len(d.queue))
	for id, at := range d.queue {
		queued = append(queued, cache.QueuedImage{ID: id, QueuedAt: at})
	}
	sort.Slice(queued, func(i, j int) bool { return queued[i].QueuedAt.Before(queued[j].QueuedAt) })
	return queued, nil
}

func (d *Driver) DeleteQueuedImage(imageID string) error {
	if d.Err != nil {
		return d.Err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.queue, imageID)
	return nil
}

func (d *Driver) DeleteAllQueuedImages() (int, error) {
	if d.Err != nil {
		return 0, d.Err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.queue)
	d.queue = map[string]time.Time{}
	return n, nil
}

func (d *Driver) ReapInvalid(grace time.Duration) (int, error) {
	if d.Err != nil {
		return 0, d.Err
	}
	return 0, nil
}

func (d *Driver) ReapStalled(stallAge time.Duration) (int, error) {
	if d.Err != nil {
		return 0, d.Err
	}
	return 0, nil
}

var _ cache.Driver = &Driver{}

type entry struct {
	io.ReadCloser
	size int64
}

func (e *entry) Size() int64 { return e.size }

type session struct {
	driver   *Driver
	imageID  string
	digester digest.Digester

	mu   sync.Mutex
	buf  bytes.Buffer
	done bool
}

func (s *session) ImageID() string { return s.imageID }

func (s *session) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(s.buf.Len())
}

func (s *session) Digest() digest.Digest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digester.Digest()
}

func (s *session) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digester.Hash().Write(p)
	return s.buf.Write(p)
}

func (s *session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	delete(s.driver.writing, s.imageID)
	s.driver.now = s.driver.now.Add(time.Second)
	s.driver.images[s.imageID] = &image{
		data:     s.buf.Bytes(),
		accessed: s.driver.now,
		modified: s.driver.now,
		digest:   s.digester.Digest(),
	}
	return nil
}

func (s *session) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	delete(s.driver.writing, s.imageID)
	return nil
}

var _ cache.WriteSession = &session{}
