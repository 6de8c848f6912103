package main

import (
	"io/ioutil"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	yaml "gopkg.in/yaml.v2"
)

// config mirrors the daemon's flags so deployments can keep settings
// in a file. Zero values mean "not set"; flags given on the command
// line always win.
type config struct {
	Listen           string   `yaml:"listen"`
	Dir              string   `yaml:"dir"`
	MaxSize          int64    `yaml:"max_size"`
	ExtraFreePercent float64  `yaml:"extra_free_percent"`
	InvalidGrace     duration `yaml:"invalid_grace"`
	StallTime        duration `yaml:"stall_time"`
	StoreURL         string   `yaml:"store_url"`
	StoreRPS         float64  `yaml:"store_rps"`
	StoreBurst       int      `yaml:"store_burst"`
	PrefetchPoll     duration `yaml:"prefetch_poll_interval"`
	RunJanitor       bool     `yaml:"run_janitor"`
	PruneInterval    duration `yaml:"prune_interval"`
	CleanInterval    duration `yaml:"clean_interval"`
}

// duration lets YAML carry time.Duration values as strings ("90m",
// "24h").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func loadConfig(path string) (config, error) {
	var cfg config
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.UnmarshalStrict(buf, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, nil
}

func (c config) flagSettings() map[string]string {
	settings := map[string]string{}
	if c.Listen != "" {
		settings["listen"] = c.Listen
	}
	if c.Dir != "" {
		settings["cache-dir"] = c.Dir
	}
	if c.MaxSize != 0 {
		settings["cache-max-size"] = strconv.FormatInt(c.MaxSize, 10)
	}
	if c.ExtraFreePercent != 0 {
		settings["cache-extra-free-percent"] = strconv.FormatFloat(c.ExtraFreePercent, 'f', -1, 64)
	}
	if c.InvalidGrace.Duration != 0 {
		settings["cache-invalid-grace"] = c.InvalidGrace.String()
	}
	if c.StallTime.Duration != 0 {
		settings["cache-stall-time"] = c.StallTime.String()
	}
	if c.StoreURL != "" {
		settings["store-url"] = c.StoreURL
	}
	if c.StoreRPS != 0 {
		settings["store-rps"] = strconv.FormatFloat(c.StoreRPS, 'f', -1, 64)
	}
	if c.StoreBurst != 0 {
		settings["store-burst"] = strconv.Itoa(c.StoreBurst)
	}
	if c.PrefetchPoll.Duration != 0 {
		settings["prefetch-poll-interval"] = c.PrefetchPoll.String()
	}
	if c.RunJanitor {
		settings["run-janitor"] = "true"
	}
	if c.PruneInterval.Duration != 0 {
		settings["prune-interval"] = c.PruneInterval.String()
	}
	if c.CleanInterval.Duration != 0 {
		settings["clean-interval"] = c.CleanInterval.String()
	}
	return settings
}

// applyConfig copies file settings onto flags the command line left
// alone.
func applyConfig(fs *pflag.FlagSet, cfg config) error {
	for name, value := range cfg.flagSettings() {
		if fs.Changed(name) {
			continue
		}
		if err := fs.Set(name, value); err != nil {
			return errors.Wrapf(err, "applying config setting %s", name)
		}
	}
	return nil
}
