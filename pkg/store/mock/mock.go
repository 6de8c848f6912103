package mock

import (
	"bytes"
	"context"
	"io/ioutil"

	"github.com/opencontainers/go-digest"

	"github.com/imagecached/imagecached/pkg/store"
)

// Store serves image payloads from memory. Set GetFn to override the
// default behaviour entirely.
type Store struct {
	Images  map[string][]byte
	Digests map[string]digest.Digest
	Err     error
	GetFn   func(imageID string) (*store.ImageStream, error)
}

func (m *Store) Get(ctx context.Context, imageID string) (*store.ImageStream, error) {
	if m.GetFn != nil {
		return m.GetFn(imageID)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	data, ok := m.Images[imageID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.ImageStream{
		Body:   ioutil.NopCloser(bytes.NewReader(data)),
		Size:   int64(len(data)),
		Digest: m.Digests[imageID],
	}, nil
}

var _ store.Store = &Store{}
