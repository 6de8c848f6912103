package server

import (
	"context"
	"io/ioutil"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/imagecached/imagecached/pkg/api"
	"github.com/imagecached/imagecached/pkg/cache"
	cachemock "github.com/imagecached/imagecached/pkg/cache/mock"
	apierrors "github.com/imagecached/imagecached/pkg/errors"
	"github.com/imagecached/imagecached/pkg/store"
	storemock "github.com/imagecached/imagecached/pkg/store/mock"
)

const (
	cachedImage = "7f96c291-0b03-4589-aa95-bbf69ab42e1e"
	storedImage = "661aa2f5-e6e4-4e41-93a2-2d4a4a2d42d3"
)

var payload = []byte("pretend this is a machine image")

// countingStore returns a store backed by the given images, plus a
// counter of how many times the origin was actually consulted.
func countingStore(images map[string][]byte) (*storemock.Store, *int) {
	backing := &storemock.Store{Images: images, Digests: map[string]digest.Digest{}}
	for id, data := range images {
		backing.Digests[id] = digest.FromBytes(data)
	}
	fetches := 0
	counted := &storemock.Store{GetFn: func(imageID string) (*store.ImageStream, error) {
		fetches++
		return backing.Get(context.Background(), imageID)
	}}
	return counted, &fetches
}

func TestGetImageCacheHit(t *testing.T) {
	driver := cachemock.NewDriver()
	driver.Add(cachedImage, payload)
	origin, fetches := countingStore(nil)
	s := New("test", driver, origin, nil, log.NewNopLogger())

	dl, err := s.GetImage(context.Background(), cachedImage)
	assert.NoError(t, err)
	defer dl.Body.Close()
	assert.Equal(t, api.SourceCache, dl.Source)
	assert.Equal(t, int64(len(payload)), dl.Size)

	data, err := ioutil.ReadAll(dl.Body)
	assert.NoError(t, err)
	assert.Equal(t, payload, data)

	assert.Equal(t, 0, *fetches)
	assert.Equal(t, uint64(1), driver.GetHitCount(cachedImage))
}

func TestGetImageMissFillsCache(t *testing.T) {
	driver := cachemock.NewDriver()
	origin, fetches := countingStore(map[string][]byte{storedImage: payload})
	s := New("test", driver, origin, nil, log.NewNopLogger())

	dl, err := s.GetImage(context.Background(), storedImage)
	assert.NoError(t, err)
	assert.Equal(t, api.SourceStore, dl.Source)
	data, err := ioutil.ReadAll(dl.Body)
	assert.NoError(t, err)
	dl.Body.Close()
	assert.Equal(t, payload, data)
	assert.True(t, driver.IsCached(storedImage))

	// The second request comes off the cache; the origin has been
	// consulted exactly once.
	dl, err = s.GetImage(context.Background(), storedImage)
	assert.NoError(t, err)
	defer dl.Body.Close()
	assert.Equal(t, api.SourceCache, dl.Source)
	data, err = ioutil.ReadAll(dl.Body)
	assert.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, 1, *fetches)
}

func TestGetImagePassthroughDuringWrite(t *testing.T) {
	driver := cachemock.NewDriver()
	origin, fetches := countingStore(map[string][]byte{storedImage: payload})
	// Another download holds the write slot for this image.
	session, err := driver.OpenForWrite(storedImage)
	assert.NoError(t, err)
	defer session.Abort()

	s := New("test", driver, origin, nil, log.NewNopLogger())

	dl, err := s.GetImage(context.Background(), storedImage)
	assert.NoError(t, err)
	assert.Equal(t, api.SourceStore, dl.Source)
	data, err := ioutil.ReadAll(dl.Body)
	assert.NoError(t, err)
	dl.Body.Close()
	assert.Equal(t, payload, data)

	// Passthrough serves the bytes but leaves caching to the holder
	// of the write slot.
	assert.False(t, driver.IsCached(storedImage))
	assert.Equal(t, 1, *fetches)
}

func TestGetImageNotFound(t *testing.T) {
	driver := cachemock.NewDriver()
	s := New("test", driver, &storemock.Store{}, nil, log.NewNopLogger())

	_, err := s.GetImage(context.Background(), storedImage)
	assert.Error(t, err)
	assert.True(t, apierrors.IsMissing(err))
}

func TestGetImageRejectsBadID(t *testing.T) {
	driver := cachemock.NewDriver()
	origin, fetches := countingStore(nil)
	s := New("test", driver, origin, nil, log.NewNopLogger())

	_, err := s.GetImage(context.Background(), "../../etc/passwd")
	apiErr, ok := err.(*apierrors.Error)
	if !ok || apiErr.Type != apierrors.User {
		t.Errorf("expected user error, got %#v", err)
	}
	assert.Equal(t, 0, *fetches)
}

func TestImageStatus(t *testing.T) {
	driver := cachemock.NewDriver()
	driver.Add(cachedImage, payload)
	queued, err := driver.QueueImage(storedImage)
	assert.NoError(t, err)
	assert.True(t, queued)
	s := New("test", driver, &storemock.Store{}, nil, log.NewNopLogger())

	status, err := s.ImageStatus(context.Background(), cachedImage)
	assert.NoError(t, err)
	assert.True(t, status.Cached)
	assert.False(t, status.Queued)
	if assert.NotNil(t, status.Entry) {
		assert.Equal(t, int64(len(payload)), status.Entry.Size)
		assert.Equal(t, digest.FromBytes(payload), status.Entry.Digest)
	}

	status, err = s.ImageStatus(context.Background(), storedImage)
	assert.NoError(t, err)
	assert.False(t, status.Cached)
	assert.True(t, status.Queued)
	assert.Nil(t, status.Entry)
}

func TestQueueImage(t *testing.T) {
	driver := cachemock.NewDriver()
	driver.Add(cachedImage, payload)
	s := New("test", driver, &storemock.Store{}, nil, log.NewNopLogger())

	queued, err := s.QueueImage(context.Background(), storedImage)
	assert.NoError(t, err)
	assert.True(t, queued)

	// Queueing again is a no-op, not an error.
	queued, err = s.QueueImage(context.Background(), storedImage)
	assert.NoError(t, err)
	assert.False(t, queued)

	// Already-cached images have nothing to prefetch.
	queued, err = s.QueueImage(context.Background(), cachedImage)
	assert.NoError(t, err)
	assert.False(t, queued)
}

func TestQueueImageFeedsPrefetcher(t *testing.T) {
	driver := cachemock.NewDriver()
	origin, fetches := countingStore(map[string][]byte{storedImage: payload})
	prefetcher := &cache.Prefetcher{Driver: driver, Store: origin, Logger: log.NewNopLogger()}
	s := New("test", driver, origin, prefetcher, log.NewNopLogger())

	queued, err := s.QueueImage(context.Background(), storedImage)
	assert.NoError(t, err)
	assert.True(t, queued)

	fetched, failed := prefetcher.Drain()
	assert.Equal(t, 1, fetched)
	assert.Equal(t, 0, failed)
	assert.True(t, driver.IsCached(storedImage))
	assert.Equal(t, 1, *fetches)
}

func TestListCachedImagesMatch(t *testing.T) {
	driver := cachemock.NewDriver()
	driver.Add(cachedImage, payload)
	driver.Add(storedImage, payload)
	s := New("test", driver, &storemock.Store{}, nil, log.NewNopLogger())

	images, err := s.ListCachedImages(context.Background(), "")
	assert.NoError(t, err)
	assert.Len(t, images, 2)

	images, err = s.ListCachedImages(context.Background(), "7f96*")
	assert.NoError(t, err)
	if assert.Len(t, images, 1) {
		assert.Equal(t, cachedImage, images[0].ID)
	}
}

func TestListQueuedImagesMatch(t *testing.T) {
	driver := cachemock.NewDriver()
	for _, id := range []string{cachedImage, storedImage} {
		queued, err := driver.QueueImage(id)
		assert.NoError(t, err)
		assert.True(t, queued)
	}
	s := New("test", driver, &storemock.Store{}, nil, log.NewNopLogger())

	queue, err := s.ListQueuedImages(context.Background(), "")
	assert.NoError(t, err)
	assert.Len(t, queue, 2)

	queue, err = s.ListQueuedImages(context.Background(), "661a*")
	assert.NoError(t, err)
	if assert.Len(t, queue, 1) {
		assert.Equal(t, storedImage, queue[0].ID)
	}
}

func TestDeleteCachedImages(t *testing.T) {
	driver := cachemock.NewDriver()
	driver.Add(cachedImage, payload)
	driver.Add(storedImage, payload)
	s := New("test", driver, &storemock.Store{}, nil, log.NewNopLogger())

	assert.NoError(t, s.DeleteCachedImage(context.Background(), cachedImage))
	assert.False(t, driver.IsCached(cachedImage))

	deleted, err := s.DeleteAllCachedImages(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestDeleteQueuedImages(t *testing.T) {
	driver := cachemock.NewDriver()
	for _, id := range []string{cachedImage, storedImage} {
		_, err := driver.QueueImage(id)
		assert.NoError(t, err)
	}
	s := New("test", driver, &storemock.Store{}, nil, log.NewNopLogger())

	assert.NoError(t, s.DeleteQueuedImage(context.Background(), cachedImage))
	queue, err := s.ListQueuedImages(context.Background(), "")
	assert.NoError(t, err)
	assert.Len(t, queue, 1)

	deleted, err := s.DeleteAllQueuedImages(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestPingSurfacesDriverError(t *testing.T) {
	driver := cachemock.NewDriver()
	driver.Err = errors.New("cache filesystem gone")
	s := New("test", driver, &storemock.Store{}, nil, log.NewNopLogger())

	assert.Error(t, s.Ping(context.Background()))
}
