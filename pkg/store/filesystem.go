package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FileStore serves image payloads from a local directory, one file per
// image ID. It declares sizes (from stat) but not digests.
type FileStore struct {
	Dir string
}

func (s FileStore) Get(ctx context.Context, imageID string) (*ImageStream, error) {
	f, err := os.Open(filepath.Join(s.Dir, imageID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "opening image %s", imageID)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stating image %s", imageID)
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, ErrNotFound
	}
	return &ImageStream{Body: f, Size: fi.Size()}, nil
}

var _ Store = FileStore{}
