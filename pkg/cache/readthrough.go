package cache

import (
	"io"

	"github.com/go-kit/kit/log"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// TeeToCache wraps a stream from the origin store so that bytes are
// copied into the given write session on their way to the caller.
//
// The caller's stream always wins: if the cache side fails the session
// is aborted and reading carries on untouched. When the source reaches
// EOF the copy is verified against the declared size and digest (pass
// a negative size or empty digest when the origin doesn't know) and
// committed. A Close before EOF means the caller went away; the
// partial copy is aborted.
func TeeToCache(src io.ReadCloser, session WriteSession, declaredSize int64, declaredDigest digest.Digest, logger log.Logger) io.ReadCloser {
	return &teeReader{
		src:            src,
		session:        session,
		declaredSize:   declaredSize,
		declaredDigest: declaredDigest,
		logger:         logger,
	}
}

type teeReader struct {
	src            io.ReadCloser
	session        WriteSession
	declaredSize   int64
	declaredDigest digest.Digest
	logger         log.Logger

	cacheDead bool
	finished  bool
}

func (t *teeReader) Read(p []byte) (int, error) {
	n, err := t.src.Read(p)
	if n > 0 && !t.cacheDead {
		if _, werr := t.session.Write(p[:n]); werr != nil {
			// A full disk or similar must not break the caller's
			// download. Stop copying and leave the partial entry for
			// the cleaner.
			t.logger.Log("err", werr, "caching", "abandoned")
			t.session.Abort()
			t.cacheDead = true
		}
	}
	switch {
	case err == io.EOF:
		t.finish()
	case err != nil:
		t.fail(err)
	}
	return n, err
}

// Close aborts the copy if the source never reached EOF. This is the
// client-disconnect path.
func (t *teeReader) Close() error {
	if !t.finished {
		t.finished = true
		if !t.cacheDead {
			if err := t.session.Abort(); err != nil {
				t.logger.Log("err", err)
			}
		}
	}
	return t.src.Close()
}

// finish verifies and commits the copy once the source is exhausted.
// Verification failures only cost us the cache entry; the caller
// already has the bytes the origin sent.
func (t *teeReader) finish() {
	if t.finished {
		return
	}
	t.finished = true
	if t.cacheDead {
		return
	}
	if t.declaredSize >= 0 && t.session.Written() != t.declaredSize {
		err := SizeMismatchError{Declared: t.declaredSize, Actual: t.session.Written()}
		t.logger.Log("image", t.session.ImageID(), "err", err)
		t.session.Abort()
		return
	}
	if t.declaredDigest != "" && t.session.Digest() != t.declaredDigest {
		err := ChecksumMismatchError{Declared: t.declaredDigest, Actual: t.session.Digest()}
		t.logger.Log("image", t.session.ImageID(), "err", err)
		t.session.Abort()
		return
	}
	if err := t.session.Commit(); err != nil {
		t.logger.Log("err", errors.Wrapf(err, "committing image %s", t.session.ImageID()))
		return
	}
	t.logger.Log("image", t.session.ImageID(), "cached", "true", "size", t.session.Written())
}

func (t *teeReader) fail(readErr error) {
	if t.finished {
		return
	}
	t.finished = true
	if !t.cacheDead {
		t.logger.Log("image", t.session.ImageID(), "err", errors.Wrap(readErr, "source stream failed"))
		t.session.Abort()
	}
}
