/* Package store abstracts the origin of image payloads.

The cache sits in front of a Store: reads that miss the cache stream
from the store, and the prefetch worker pulls from it in the
background. Implementations exist for a local directory (FileStore)
and for an HTTP origin (HTTPStore); anything that can hand back a
byte stream for an image ID can be a Store.
*/
package store

import (
	"context"
	"io"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	apierrors "github.com/imagecached/imagecached/pkg/errors"
)

// SizeUnknown is the Size of a stream whose origin did not declare a
// length.
const SizeUnknown int64 = -1

// ImageStream is an image payload on its way out of an origin store.
// Size is SizeUnknown and Digest empty when the origin does not
// declare them; verification of the cached copy is then skipped.
type ImageStream struct {
	Body   io.ReadCloser
	Size   int64
	Digest digest.Digest
}

// ErrNotFound is returned when the origin store has no such image.
var ErrNotFound = &apierrors.Error{
	Type: apierrors.Missing,
	Err:  errors.New("image not found in store"),
	Help: `Image not found

The origin store has no image with that ID. Check the ID; if the image
was recently uploaded, the store may not have finished registering it.
`,
}

// Store is an origin for image payloads. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get opens the payload for an image. The caller must close the
	// stream's Body.
	Get(ctx context.Context, imageID string) (*ImageStream, error)
}
