package store

import (
	"context"
	"net/http"
	"net/url"
	"path"

	"github.com/go-kit/kit/log"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	"github.com/imagecached/imagecached/pkg/store/middleware"
)

// DigestHeader carries the origin's declared content digest, when it
// has one. The value is a canonical digest string such as
// "sha256:abc...".
const DigestHeader = "X-Image-Digest"

// HTTPStore fetches image payloads from an HTTP(S) origin. The image
// ID is appended to the base URL path. Declared sizes come from
// Content-Length and digests from the X-Image-Digest header.
//
// Requests are rate limited per host, backing off when the origin
// answers 429 and recovering as fetches succeed.
type HTTPStore struct {
	client   *http.Client
	baseURL  *url.URL
	limiters *middleware.RateLimiters
	logger   log.Logger
}

// HTTPStoreConfig defines how an HTTPStore should be constructed.
type HTTPStoreConfig struct {
	BaseURL string
	RPS     float64
	Burst   int
	Logger  log.Logger
}

func NewHTTPStore(config HTTPStoreConfig) (*HTTPStore, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing store URL %q", config.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported store URL scheme %q", u.Scheme)
	}
	limiters := &middleware.RateLimiters{
		RPS:    config.RPS,
		Burst:  config.Burst,
		Logger: config.Logger,
	}
	// No client timeout: image payloads are large and stream for as
	// long as they stream. Cancellation comes from the request context.
	client := &http.Client{
		Transport: limiters.RoundTripper(http.DefaultTransport, u.Host),
	}
	return &HTTPStore{
		client:   client,
		baseURL:  u,
		limiters: limiters,
		logger:   config.Logger,
	}, nil
}

func (s *HTTPStore) Get(ctx context.Context, imageID string) (*ImageStream, error) {
	u := *s.baseURL
	u.Path = path.Join(u.Path, imageID)

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "constructing request %s", u.String())
	}
	req = req.WithContext(ctx)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching image %s", imageID)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		// carry on below
	case http.StatusNotFound, http.StatusGone:
		resp.Body.Close()
		return nil, ErrNotFound
	default:
		resp.Body.Close()
		return nil, errors.Errorf("fetching image %s: %s", imageID, resp.Status)
	}
	s.limiters.Recover(s.baseURL.Host)

	var dig digest.Digest
	if h := resp.Header.Get(DigestHeader); h != "" {
		d, err := digest.Parse(h)
		if err != nil {
			// Treat an unparseable digest as undeclared rather than
			// failing the whole fetch.
			s.logger.Log("image", imageID, "err", errors.Wrapf(err, "bad %s header %q", DigestHeader, h))
		} else {
			dig = d
		}
	}
	return &ImageStream{Body: resp.Body, Size: resp.ContentLength, Digest: dig}, nil
}

var _ Store = &HTTPStore{}
