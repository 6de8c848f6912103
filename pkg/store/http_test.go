package store

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
)

func newHTTPStore(t *testing.T, handler http.Handler) (*HTTPStore, *httptest.Server) {
	server := httptest.NewServer(handler)
	s, err := NewHTTPStore(HTTPStoreConfig{
		BaseURL: server.URL,
		RPS:     50,
		Burst:   10,
		Logger:  log.NewNopLogger(),
	})
	if err != nil {
		server.Close()
		t.Fatal(err)
	}
	return s, server
}

func TestHTTPStoreGet(t *testing.T) {
	payload := []byte("image payload over http")
	dig := digest.FromBytes(payload)

	s, server := newHTTPStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/img-1", r.URL.Path)
		w.Header().Set(DigestHeader, dig.String())
		w.Write(payload)
	}))
	defer server.Close()
	s.baseURL.Path = "/images"

	stream, err := s.Get(context.Background(), "img-1")
	assert.NoError(t, err)
	defer stream.Body.Close()
	assert.EqualValues(t, len(payload), stream.Size)
	assert.Equal(t, dig, stream.Digest)

	got, err := ioutil.ReadAll(stream.Body)
	assert.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestHTTPStoreGetMissing(t *testing.T) {
	s, server := newHTTPStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := s.Get(context.Background(), "no-such-image")
	assert.Equal(t, ErrNotFound, err)
}

func TestHTTPStoreGetServerError(t *testing.T) {
	s, server := newHTTPStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := s.Get(context.Background(), "img-1")
	assert.Error(t, err)
	assert.NotEqual(t, ErrNotFound, err)
}

func TestHTTPStoreIgnoresBadDigestHeader(t *testing.T) {
	s, server := newHTTPStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(DigestHeader, "not a digest at all")
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	stream, err := s.Get(context.Background(), "img-1")
	assert.NoError(t, err)
	defer stream.Body.Close()
	assert.Empty(t, stream.Digest, "an unparseable digest is treated as undeclared")
}

func TestHTTPStoreRejectsOtherSchemes(t *testing.T) {
	_, err := NewHTTPStore(HTTPStoreConfig{BaseURL: "ftp://store.example.com/images", RPS: 1, Burst: 1, Logger: log.NewNopLogger()})
	assert.Error(t, err)
}
