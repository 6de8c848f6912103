package api

import (
	"context"
	"io"

	"github.com/imagecached/imagecached/pkg/cache"
)

// Where an image download was served from.
const (
	SourceCache = "cache"
	SourceStore = "store"
)

// ImageDownload is a streamed image payload. Size is -1 when the
// length is not known up front. Source says whether the bytes come
// from the local cache or straight from the origin store.
type ImageDownload struct {
	Body   io.ReadCloser
	Size   int64
	Source string
}

// ImageStatus reports where an image stands in the cache. Entry is
// only populated when the image is cached.
type ImageStatus struct {
	ID     string             `json:"image_id"`
	Cached bool               `json:"cached"`
	Queued bool               `json:"queued"`
	Entry  *cache.CachedImage `json:"entry,omitempty"`
}

// DeletedCount reports how many items a bulk delete removed.
type DeletedCount struct {
	Deleted int `json:"deleted"`
}

// QueueResult reports whether queueing an image did anything; it is
// false when the image was already cached or already queued.
type QueueResult struct {
	ImageID string `json:"image_id"`
	Queued  bool   `json:"queued"`
}

// Server defines the operations the image cache daemon offers a
// connecting imagecachectl, or any other API consumer.
type Server interface {
	Ping(ctx context.Context) error
	Version(ctx context.Context) (string, error)

	// GetImage streams an image's payload, from the cache when it is
	// there and from the origin store when not. Misses are cached on
	// the way through whenever the cache slot can be claimed.
	GetImage(ctx context.Context, imageID string) (*ImageDownload, error)

	ImageStatus(ctx context.Context, imageID string) (ImageStatus, error)

	// ListCachedImages returns cached entries, most recently accessed
	// first. A non-empty match restricts the list to IDs matching the
	// glob pattern.
	ListCachedImages(ctx context.Context, match string) ([]cache.CachedImage, error)
	DeleteCachedImage(ctx context.Context, imageID string) error
	DeleteAllCachedImages(ctx context.Context) (int, error)

	// QueueImage marks an image for background prefetch. It reports
	// false, without error, when the image is already cached or
	// already queued.
	QueueImage(ctx context.Context, imageID string) (bool, error)
	ListQueuedImages(ctx context.Context, match string) ([]cache.QueuedImage, error)
	DeleteQueuedImage(ctx context.Context, imageID string) error
	DeleteAllQueuedImages(ctx context.Context) (int, error)
}
