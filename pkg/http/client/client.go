package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/imagecached/imagecached/pkg/api"
	"github.com/imagecached/imagecached/pkg/cache"
	apierrors "github.com/imagecached/imagecached/pkg/errors"
	transport "github.com/imagecached/imagecached/pkg/http"
)

// Client is an api.Server that forwards every call to an imagecached
// instance over HTTP.
type Client struct {
	client   *http.Client
	router   *mux.Router
	endpoint string
}

var _ api.Server = &Client{}

func New(c *http.Client, router *mux.Router, endpoint string) *Client {
	return &Client{
		client:   c,
		router:   router,
		endpoint: endpoint,
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, nil, transport.Ping)
}

func (c *Client) Version(ctx context.Context) (string, error) {
	var v string
	err := c.get(ctx, &v, transport.Version)
	return v, err
}

// GetImage streams the image payload. Unlike the other methods the
// response body is handed to the caller undecoded; the caller owns
// closing it.
func (c *Client) GetImage(ctx context.Context, imageID string) (*api.ImageDownload, error) {
	u, err := transport.MakeURL(c.endpoint, c.router, transport.GetImage, "id", imageID)
	if err != nil {
		return nil, errors.Wrap(err, "constructing URL")
	}

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "constructing request %s", u)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.executeRequest(req)
	if err != nil {
		return nil, err
	}
	return &api.ImageDownload{
		Body:   resp.Body,
		Size:   resp.ContentLength,
		Source: resp.Header.Get(transport.SourceHeader),
	}, nil
}

func (c *Client) ImageStatus(ctx context.Context, imageID string) (api.ImageStatus, error) {
	var res api.ImageStatus
	err := c.get(ctx, &res, transport.ImageStatus, "id", imageID)
	return res, err
}

func (c *Client) ListCachedImages(ctx context.Context, match string) ([]cache.CachedImage, error) {
	var res []cache.CachedImage
	err := c.get(ctx, &res, transport.ListCachedImages, matchParam(match)...)
	return res, err
}

func (c *Client) DeleteCachedImage(ctx context.Context, imageID string) error {
	return c.methodWithResp(ctx, "DELETE", nil, transport.DeleteCachedImage, nil, "id", imageID)
}

func (c *Client) DeleteAllCachedImages(ctx context.Context) (int, error) {
	var res api.DeletedCount
	err := c.methodWithResp(ctx, "DELETE", &res, transport.DeleteAllCachedImages, nil)
	return res.Deleted, err
}

func (c *Client) QueueImage(ctx context.Context, imageID string) (bool, error) {
	var res api.QueueResult
	err := c.methodWithResp(ctx, "PUT", &res, transport.QueueImage, nil, "id", imageID)
	return res.Queued, err
}

func (c *Client) ListQueuedImages(ctx context.Context, match string) ([]cache.QueuedImage, error) {
	var res []cache.QueuedImage
	err := c.get(ctx, &res, transport.ListQueuedImages, matchParam(match)...)
	return res, err
}

// matchParam leaves an empty match pattern off the URL entirely.
func matchParam(match string) []string {
	if match == "" {
		return nil
	}
	return []string{"match", match}
}

func (c *Client) DeleteQueuedImage(ctx context.Context, imageID string) error {
	return c.methodWithResp(ctx, "DELETE", nil, transport.DeleteQueuedImage, nil, "id", imageID)
}

func (c *Client) DeleteAllQueuedImages(ctx context.Context) (int, error) {
	var res api.DeletedCount
	err := c.methodWithResp(ctx, "DELETE", &res, transport.DeleteAllQueuedImages, nil)
	return res.Deleted, err
}

// --- Request helpers

// methodWithResp handles body encoding and URL construction, and
// decodes the response into dest when there is one to decode.
func (c *Client) methodWithResp(ctx context.Context, method string, dest interface{}, route string, body interface{}, urlParams ...string) error {
	u, err := transport.MakeURL(c.endpoint, c.router, route, urlParams...)
	if err != nil {
		return errors.Wrap(err, "constructing URL")
	}

	var bodyBytes []byte
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
	}

	req, err := http.NewRequest(method, u.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return errors.Wrapf(err, "constructing request %s", u)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")

	resp, err := c.executeRequest(req)
	if err != nil {
		return errors.Wrap(err, "executing HTTP request")
	}
	defer resp.Body.Close()

	respBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "decoding response from server")
	}
	if len(respBytes) <= 0 {
		return nil
	}
	if err := json.Unmarshal(respBytes, &dest); err != nil {
		return errors.Wrap(err, "decoding response from server")
	}
	return nil
}

// get executes a GET against the daemon and unmarshals the response
// into dest, if not nil.
func (c *Client) get(ctx context.Context, dest interface{}, route string, urlParams ...string) error {
	u, err := transport.MakeURL(c.endpoint, c.router, route, urlParams...)
	if err != nil {
		return errors.Wrap(err, "constructing URL")
	}

	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return errors.Wrapf(err, "constructing request %s", u)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")

	resp, err := c.executeRequest(req)
	if err != nil {
		return errors.Wrap(err, "executing HTTP request")
	}
	defer resp.Body.Close()

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return errors.Wrap(err, "decoding response from server")
		}
	}
	return nil
}

func (c *Client) executeRequest(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "executing HTTP request")
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent, http.StatusAccepted:
		return resp, nil
	default:
		defer resp.Body.Close()
		body, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return resp, errors.Wrap(err, "reading response body of error")
		}
		// Use the content type to discriminate between `apierrors.Error`,
		// and any old error
		if strings.HasPrefix(resp.Header.Get(http.CanonicalHeaderKey("Content-Type")), "application/json") {
			var niceError apierrors.Error
			if err := json.Unmarshal(body, &niceError); err != nil {
				return resp, errors.Wrap(err, "decoding response body of error")
			}
			// just in case it's JSON but not one of our own errors
			if niceError.Err != nil {
				return resp, &niceError
			}
			// fallthrough
		}
		return resp, errors.New(resp.Status + " " + string(body))
	}
}
