package cache

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayoutInit(t *testing.T) {
	dir, err := ioutil.TempDir("", "imagecache-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	layout := Layout{Dir: dir}
	assert.NoError(t, layout.Init())
	// Init again, as a second process sharing the directory would.
	assert.NoError(t, layout.Init())

	for _, sub := range []string{incompleteDir, invalidDir, stalledDir, queueDir} {
		fi, err := os.Stat(filepath.Join(dir, sub))
		if err != nil {
			t.Fatalf("expected %s to exist: %v", sub, err)
		}
		assert.True(t, fi.IsDir())
	}

	assert.Equal(t, filepath.Join(dir, "img-1"), layout.EntryPath("img-1"))
	assert.Equal(t, filepath.Join(dir, "incomplete", "img-1"), layout.IncompletePath("img-1"))
	assert.Equal(t, filepath.Join(dir, "invalid", "img-1"), layout.InvalidPath("img-1"))
	assert.Equal(t, filepath.Join(dir, "queue", "img-1"), layout.QueuePath("img-1"))
}
