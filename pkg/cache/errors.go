package cache

import (
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	apierrors "github.com/imagecached/imagecached/pkg/errors"
)

var (
	// ErrNotCached is returned when asked to read an image that has no
	// complete entry. Callers recover by fetching from the origin
	// store instead.
	ErrNotCached = &apierrors.Error{
		Type: apierrors.Missing,
		Err:  errors.New("image not in cache"),
		Help: `Image not cached

The image you asked for has no entry in the cache. If it should have
one, queue it for prefetch or request its data so it is cached on the
way through.
`,
	}

	// ErrWriteInProgress means another writer holds the incomplete
	// entry for this image. It is a signal to skip the cache write,
	// not a failure: the other writer will finish the job.
	ErrWriteInProgress = &apierrors.Error{
		Type: apierrors.Conflict,
		Err:  errors.New("image is already being cached"),
		Help: `Image is already being cached

Another worker is writing this image into the cache. There is nothing
to do but wait for it to finish; requests for the image data are still
served from the origin store in the meantime.
`,
	}
)

// SizeMismatchError is the write path finding out the origin's
// declared size does not match the bytes actually streamed. The entry
// is marked invalid; bytes already delivered to a client stand.
type SizeMismatchError struct {
	Declared int64
	Actual   int64
}

func (e SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch: origin declared %d bytes, streamed %d", e.Declared, e.Actual)
}

// ChecksumMismatchError is the same condition for content digests.
type ChecksumMismatchError struct {
	Declared digest.Digest
	Actual   digest.Digest
}

func (e ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: origin declared %s, streamed data has %s", e.Declared, e.Actual)
}
