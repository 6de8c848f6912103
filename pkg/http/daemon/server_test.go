package daemon

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"

	"github.com/imagecached/imagecached/pkg/api"
	"github.com/imagecached/imagecached/pkg/cache"
	apierrors "github.com/imagecached/imagecached/pkg/errors"
	transport "github.com/imagecached/imagecached/pkg/http"
	"github.com/imagecached/imagecached/pkg/http/client"
	"github.com/imagecached/imagecached/pkg/server"
	storemock "github.com/imagecached/imagecached/pkg/store/mock"
)

const (
	storedImage  = "7f96c291-0b03-4589-aa95-bbf69ab42e1e"
	missingImage = "a89bc725-81a9-46eb-8767-b0b9c23d9b78"
)

var storedPayload = []byte("pretend this is a machine image")

func TestRouterImplementsServer(t *testing.T) {
	router := NewRouter()
	// Calling NewHandler attaches handlers to the router
	NewHandler(nil, router)
	err := transport.ImplementsServer(router)
	if err != nil {
		t.Error(err)
	}
}

func newTestDaemon(t *testing.T) (*cache.FilesystemDriver, *httptest.Server, *client.Client, func()) {
	dir, err := ioutil.TempDir("", "imagecache-daemon-test")
	if err != nil {
		t.Fatal(err)
	}
	driver, err := cache.NewFilesystemDriver(dir, log.NewNopLogger())
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}

	origin := &storemock.Store{
		Images:  map[string][]byte{storedImage: storedPayload},
		Digests: map[string]digest.Digest{storedImage: digest.FromBytes(storedPayload)},
	}

	apiServer := server.New("test-version", driver, origin, nil, log.NewNopLogger())
	router := NewRouter()
	handler := NewHandler(apiServer, router)
	ts := httptest.NewServer(handler)
	apiClient := client.New(http.DefaultClient, router, ts.URL)

	return driver, ts, apiClient, func() {
		ts.Close()
		os.RemoveAll(dir)
	}
}

// The commit of a teed download happens as the response body finishes;
// give it a moment rather than racing it.
func waitCached(t *testing.T, driver *cache.FilesystemDriver, imageID string) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if driver.IsCached(imageID) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("image %s never appeared in the cache", imageID)
}

func TestDaemonPingAndVersion(t *testing.T) {
	_, _, apiClient, cleanup := newTestDaemon(t)
	defer cleanup()

	ctx := context.Background()
	if err := apiClient.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	version, err := apiClient.Version(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "test-version", version)
}

func TestDaemonGetImageReadThrough(t *testing.T) {
	driver, _, apiClient, cleanup := newTestDaemon(t)
	defer cleanup()

	ctx := context.Background()
	download, err := apiClient.GetImage(ctx, storedImage)
	if err != nil {
		t.Fatal(err)
	}
	body, err := ioutil.ReadAll(download.Body)
	download.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, storedPayload, body)
	assert.Equal(t, api.SourceStore, download.Source)
	assert.Equal(t, int64(len(storedPayload)), download.Size)

	waitCached(t, driver, storedImage)

	download, err = apiClient.GetImage(ctx, storedImage)
	if err != nil {
		t.Fatal(err)
	}
	body, err = ioutil.ReadAll(download.Body)
	download.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, storedPayload, body)
	assert.Equal(t, api.SourceCache, download.Source)
}

func TestDaemonGetImagePassthrough(t *testing.T) {
	driver, _, apiClient, cleanup := newTestDaemon(t)
	defer cleanup()

	// Hold the write slot so the daemon cannot cache the download.
	session, err := driver.OpenForWrite(storedImage)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Abort()

	download, err := apiClient.GetImage(context.Background(), storedImage)
	if err != nil {
		t.Fatal(err)
	}
	body, err := ioutil.ReadAll(download.Body)
	download.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, storedPayload, body)
	assert.Equal(t, api.SourceStore, download.Source)
	assert.False(t, driver.IsCached(storedImage))
}

func TestDaemonGetImageMissing(t *testing.T) {
	_, _, apiClient, cleanup := newTestDaemon(t)
	defer cleanup()

	_, err := apiClient.GetImage(context.Background(), missingImage)
	if err == nil {
		t.Fatal("expected an error for a missing image")
	}
	if !apierrors.IsMissing(err) {
		t.Errorf("expected a missing-image error, got %v", err)
	}
}

func TestDaemonRejectsInvalidImageID(t *testing.T) {
	_, ts, _, cleanup := newTestDaemon(t)
	defer cleanup()

	resp, err := http.Get(ts.URL + "/v1/images/not-a-uuid")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a bad image ID, got %q", resp.Status)
	}
}

func TestDaemonQueueFlow(t *testing.T) {
	_, _, apiClient, cleanup := newTestDaemon(t)
	defer cleanup()

	ctx := context.Background()
	queued, err := apiClient.QueueImage(ctx, missingImage)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, queued)

	// Queueing again is a no-op, not an error.
	queued, err = apiClient.QueueImage(ctx, missingImage)
	if err != nil {
		t.Fatal(err)
	}
	assert.False(t, queued)

	list, err := apiClient.ListQueuedImages(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if assert.Len(t, list, 1) {
		assert.Equal(t, missingImage, list[0].ID)
	}

	status, err := apiClient.ImageStatus(ctx, missingImage)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, status.Queued)
	assert.False(t, status.Cached)

	if err := apiClient.DeleteQueuedImage(ctx, missingImage); err != nil {
		t.Fatal(err)
	}
	list, err = apiClient.ListQueuedImages(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, list, 0)
}

func TestDaemonCacheManagement(t *testing.T) {
	driver, _, apiClient, cleanup := newTestDaemon(t)
	defer cleanup()

	ctx := context.Background()
	download, err := apiClient.GetImage(ctx, storedImage)
	if err != nil {
		t.Fatal(err)
	}
	ioutil.ReadAll(download.Body)
	download.Body.Close()
	waitCached(t, driver, storedImage)

	list, err := apiClient.ListCachedImages(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if assert.Len(t, list, 1) {
		assert.Equal(t, storedImage, list[0].ID)
		assert.Equal(t, int64(len(storedPayload)), list[0].Size)
	}

	status, err := apiClient.ImageStatus(ctx, storedImage)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, status.Cached)
	if assert.NotNil(t, status.Entry) {
		assert.Equal(t, int64(len(storedPayload)), status.Entry.Size)
	}

	if err := apiClient.DeleteCachedImage(ctx, storedImage); err != nil {
		t.Fatal(err)
	}
	assert.False(t, driver.IsCached(storedImage))

	// Refill and clear the lot.
	download, err = apiClient.GetImage(ctx, storedImage)
	if err != nil {
		t.Fatal(err)
	}
	ioutil.ReadAll(download.Body)
	download.Body.Close()
	waitCached(t, driver, storedImage)

	deleted, err := apiClient.DeleteAllCachedImages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 1, deleted)
}

func TestDaemonUnknownRoute(t *testing.T) {
	_, ts, _, cleanup := newTestDaemon(t)
	defer cleanup()

	resp, err := http.Get(ts.URL + "/v1/nonsense")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown path, got %q", resp.Status)
	}
}

func TestDaemonListMatchFilter(t *testing.T) {
	_, _, apiClient, cleanup := newTestDaemon(t)
	defer cleanup()

	ctx := context.Background()
	for _, id := range []string{storedImage, missingImage} {
		if _, err := apiClient.QueueImage(ctx, id); err != nil {
			t.Fatal(err)
		}
	}

	list, err := apiClient.ListQueuedImages(ctx, "7f96*")
	if err != nil {
		t.Fatal(err)
	}
	if assert.Len(t, list, 1) {
		assert.Equal(t, storedImage, list[0].ID)
	}

	list, err = apiClient.ListQueuedImages(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, list, 2)
}
