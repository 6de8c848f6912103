package main

import (
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	f, err := ioutil.TempFile("", "imagecached-config")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return f.Name()
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("listen", ":9292", "")
	fs.String("cache-dir", "", "")
	fs.Int64("cache-max-size", 1*1024*1024*1024, "")
	fs.Float64("cache-extra-free-percent", 5, "")
	fs.Duration("cache-invalid-grace", time.Hour, "")
	fs.Duration("cache-stall-time", 24*time.Hour, "")
	fs.String("store-url", "", "")
	fs.Float64("store-rps", 50, "")
	fs.Int("store-burst", 10, "")
	fs.Duration("prefetch-poll-interval", time.Minute, "")
	fs.Bool("run-janitor", false, "")
	fs.Duration("prune-interval", 5*time.Minute, "")
	fs.Duration("clean-interval", 5*time.Minute, "")
	return fs
}

func TestConfigFileAppliesToUnsetFlags(t *testing.T) {
	path := writeConfig(t, `
dir: /var/lib/imagecache
max_size: 2147483648
invalid_grace: 90m
store_url: https://images.internal/payloads
run_janitor: true
`)
	defer os.Remove(path)

	fs := testFlags()
	if err := fs.Parse([]string{}); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := applyConfig(fs, cfg); err != nil {
		t.Fatal(err)
	}

	dir, _ := fs.GetString("cache-dir")
	assert.Equal(t, "/var/lib/imagecache", dir)
	maxSize, _ := fs.GetInt64("cache-max-size")
	assert.Equal(t, int64(2147483648), maxSize)
	grace, _ := fs.GetDuration("cache-invalid-grace")
	assert.Equal(t, 90*time.Minute, grace)
	storeURL, _ := fs.GetString("store-url")
	assert.Equal(t, "https://images.internal/payloads", storeURL)
	janitor, _ := fs.GetBool("run-janitor")
	assert.True(t, janitor)

	// Settings absent from the file keep their defaults.
	stall, _ := fs.GetDuration("cache-stall-time")
	assert.Equal(t, 24*time.Hour, stall)
}

func TestCommandLineBeatsConfigFile(t *testing.T) {
	path := writeConfig(t, "max_size: 2147483648\ndir: /var/lib/imagecache\n")
	defer os.Remove(path)

	fs := testFlags()
	if err := fs.Parse([]string{"--cache-max-size=123456"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := applyConfig(fs, cfg); err != nil {
		t.Fatal(err)
	}

	maxSize, _ := fs.GetInt64("cache-max-size")
	assert.Equal(t, int64(123456), maxSize)
	// Untouched flags still pick up file values.
	dir, _ := fs.GetString("cache-dir")
	assert.Equal(t, "/var/lib/imagecache", dir)
}

func TestConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "max_siez: 10\n")
	defer os.Remove(path)

	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestConfigRejectsBadDurations(t *testing.T) {
	path := writeConfig(t, "invalid_grace: soon\n")
	defer os.Remove(path)

	_, err := loadConfig(path)
	assert.Error(t, err)
}
