/* Package server implements the image cache API on top of a cache
driver and an origin store.

Image data requests are read-through: a hit streams straight off the
cache, a miss streams from the origin store while a copy lands in the
cache, and when the cache cannot take the copy (another writer holds
the slot, or the cache filesystem is unwell) the response degrades to a
plain passthrough rather than failing.
*/
package server

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/ryanuber/go-glob"

	"github.com/imagecached/imagecached/pkg/api"
	"github.com/imagecached/imagecached/pkg/cache"
	apierrors "github.com/imagecached/imagecached/pkg/errors"
	"github.com/imagecached/imagecached/pkg/store"
)

type Server struct {
	version    string
	driver     cache.Driver
	store      store.Store
	prefetcher *cache.Prefetcher
	logger     log.Logger
}

// New constructs the API implementation. The prefetcher may be nil,
// in which case queued images wait for whichever process runs the
// prefetch loop.
func New(version string, driver cache.Driver, origin store.Store, prefetcher *cache.Prefetcher, logger log.Logger) *Server {
	return &Server{
		version:    version,
		driver:     driver,
		store:      origin,
		prefetcher: prefetcher,
		logger:     logger,
	}
}

var _ api.Server = &Server{}

// Ping checks that the cache tree is reachable.
func (s *Server) Ping(ctx context.Context) error {
	_, err := s.driver.GetQueuedImages()
	return err
}

func (s *Server) Version(ctx context.Context) (string, error) {
	return s.version, nil
}

func (s *Server) GetImage(ctx context.Context, imageID string) (*api.ImageDownload, error) {
	if err := validateImageID(imageID); err != nil {
		return nil, err
	}

	entry, err := s.driver.OpenForRead(imageID)
	if err == nil {
		countOutcome(outcomeHit)
		return &api.ImageDownload{Body: entry, Size: entry.Size(), Source: api.SourceCache}, nil
	}
	if err != cache.ErrNotCached {
		// A broken entry must not take reads down; the origin still
		// has the bytes.
		s.logger.Log("image", imageID, "err", err)
	}

	stream, err := s.store.Get(ctx, imageID)
	if err != nil {
		return nil, err
	}

	session, err := s.driver.OpenForWrite(imageID)
	if err != nil {
		if err != cache.ErrWriteInProgress {
			s.logger.Log("image", imageID, "err", err)
		}
		countOutcome(outcomePassthrough)
		return &api.ImageDownload{Body: stream.Body, Size: stream.Size, Source: api.SourceStore}, nil
	}

	countOutcome(outcomeMiss)
	body := cache.TeeToCache(stream.Body, session, stream.Size, stream.Digest, log.With(s.logger, "image", imageID))
	return &api.ImageDownload{Body: body, Size: stream.Size, Source: api.SourceStore}, nil
}

func (s *Server) ImageStatus(ctx context.Context, imageID string) (api.ImageStatus, error) {
	if err := validateImageID(imageID); err != nil {
		return api.ImageStatus{}, err
	}
	status := api.ImageStatus{ID: imageID}

	images, err := s.driver.GetCachedImages()
	if err != nil {
		return api.ImageStatus{}, err
	}
	for i := range images {
		if images[i].ID == imageID {
			status.Cached = true
			status.Entry = &images[i]
			break
		}
	}

	queued, err := s.driver.GetQueuedImages()
	if err != nil {
		return api.ImageStatus{}, err
	}
	for _, q := range queued {
		if q.ID == imageID {
			status.Queued = true
			break
		}
	}
	return status, nil
}

func (s *Server) ListCachedImages(ctx context.Context, match string) ([]cache.CachedImage, error) {
	images, err := s.driver.GetCachedImages()
	if err != nil || match == "" {
		return images, err
	}
	matched := images[:0]
	for _, image := range images {
		if glob.Glob(match, image.ID) {
			matched = append(matched, image)
		}
	}
	return matched, nil
}

func (s *Server) DeleteCachedImage(ctx context.Context, imageID string) error {
	if err := validateImageID(imageID); err != nil {
		return err
	}
	if err := s.driver.DeleteCachedImage(imageID); err != nil {
		return err
	}
	s.logger.Log("image", imageID, "deleted", "true")
	return nil
}

func (s *Server) DeleteAllCachedImages(ctx context.Context) (int, error) {
	deleted, err := s.driver.DeleteAllCachedImages()
	if err != nil {
		return deleted, err
	}
	s.logger.Log("deleted_cached", deleted)
	return deleted, nil
}

func (s *Server) QueueImage(ctx context.Context, imageID string) (bool, error) {
	if err := validateImageID(imageID); err != nil {
		return false, err
	}
	queued, err := s.driver.QueueImage(imageID)
	if err != nil {
		return false, err
	}
	if queued {
		s.logger.Log("image", imageID, "queued", "true")
		if s.prefetcher != nil {
			s.prefetcher.Wake()
		}
	}
	return queued, nil
}

func (s *Server) ListQueuedImages(ctx context.Context, match string) ([]cache.QueuedImage, error) {
	queued, err := s.driver.GetQueuedImages()
	if err != nil || match == "" {
		return queued, err
	}
	matched := queued[:0]
	for _, image := range queued {
		if glob.Glob(match, image.ID) {
			matched = append(matched, image)
		}
	}
	return matched, nil
}

func (s *Server) DeleteQueuedImage(ctx context.Context, imageID string) error {
	if err := validateImageID(imageID); err != nil {
		return err
	}
	return s.driver.DeleteQueuedImage(imageID)
}

func (s *Server) DeleteAllQueuedImages(ctx context.Context) (int, error) {
	deleted, err := s.driver.DeleteAllQueuedImages()
	if err != nil {
		return deleted, err
	}
	s.logger.Log("deleted_queued", deleted)
	return deleted, nil
}

// Image IDs are UUIDs. Anything else is rejected at the API boundary,
// which doubles as the guard against IDs like "../../etc/passwd"
// reaching the filesystem layer.
func validateImageID(imageID string) error {
	if _, err := uuid.Parse(imageID); err != nil {
		return &apierrors.Error{
			Type: apierrors.User,
			Err:  errors.Wrapf(err, "invalid image ID %q", imageID),
			Help: `Invalid image ID

Image IDs are UUIDs, for example 661aa2f5-e6e4-4e41-93a2-2d4a4a2d42d3.
The ID given is not one, so it cannot name an image.
`,
		}
	}
	return nil
}
