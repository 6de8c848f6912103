package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/imagecached/imagecached/pkg/cache"
	"github.com/imagecached/imagecached/pkg/checkpoint"
	httpdaemon "github.com/imagecached/imagecached/pkg/http/daemon"
	"github.com/imagecached/imagecached/pkg/server"
	"github.com/imagecached/imagecached/pkg/store"
)

var version = "unversioned"

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  imagecached is a caching proxy daemon for machine image payloads.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}
	var (
		listenAddr           = fs.StringP("listen", "l", ":9292", "Listen address for API clients")
		configFile           = fs.String("config", "", "Path to a YAML file supplying the same settings as the flags; flags win")
		cacheDir             = fs.String("cache-dir", "", "Directory holding the image cache; required")
		cacheMaxSize         = fs.Int64("cache-max-size", 1*1024*1024*1024, "Upper bound, in bytes, on the sum of cached image sizes")
		cacheExtraFree       = fs.Float64("cache-extra-free-percent", 5, "Extra room to free beyond the size bound when pruning, as a percentage of the bound")
		cacheInvalidGrace    = fs.Duration("cache-invalid-grace", time.Hour, "How long invalid entries are kept around for inspection before the cleaner removes them")
		cacheStallTime       = fs.Duration("cache-stall-time", 24*time.Hour, "Age at which an unfinished write counts as stalled and is reclaimed")
		storeURL             = fs.String("store-url", "", "Origin image store, file:///path or http(s)://host/prefix; required")
		storeRPS             = fs.Float64("store-rps", 50, "Max origin store requests per second")
		storeBurst           = fs.Int("store-burst", 10, "Burst of origin store requests allowed over the rate limit")
		prefetchPollInterval = fs.Duration("prefetch-poll-interval", time.Minute, "How often the prefetcher checks the queue, absent wakeups")
		runJanitor           = fs.Bool("run-janitor", false, "Prune and clean the cache from this process; otherwise run imagecache-pruner and imagecache-cleaner separately")
		pruneInterval        = fs.Duration("prune-interval", 5*time.Minute, "How often the in-process janitor prunes the cache (with --run-janitor)")
		cleanInterval        = fs.Duration("clean-interval", 5*time.Minute, "How often the in-process janitor reaps invalid and stalled entries (with --run-janitor)")
		versionFlag          = fs.Bool("version", false, "Print version and exit")
	)
	fs.Parse(os.Args)

	if *versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	// Logger component.
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	if *configFile != "" {
		cfg, err := loadConfig(*configFile)
		if err != nil {
			logger.Log("stage", "config", "err", err)
			os.Exit(1)
		}
		if err := applyConfig(fs, cfg); err != nil {
			logger.Log("stage", "config", "err", err)
			os.Exit(1)
		}
	}

	if *cacheDir == "" {
		logger.Log("stage", "startup", "err", "--cache-dir is required")
		os.Exit(1)
	}

	// Cache driver component.
	var driver cache.Driver
	{
		fsDriver, err := cache.NewFilesystemDriver(*cacheDir, log.With(logger, "component", "cache"))
		if err != nil {
			logger.Log("stage", "cache init", "err", err)
			os.Exit(1)
		}
		driver = cache.InstrumentDriver(fsDriver)
	}

	// Origin store component.
	var origin store.Store
	var storeKind string
	{
		logger := log.With(logger, "component", "store")
		u, err := url.Parse(*storeURL)
		if err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		switch u.Scheme {
		case "file":
			origin = store.FileStore{Dir: u.Path}
			storeKind = "file"
			logger.Log("kind", storeKind, "dir", u.Path)
		case "http", "https":
			origin, err = store.NewHTTPStore(store.HTTPStoreConfig{
				BaseURL: *storeURL,
				RPS:     *storeRPS,
				Burst:   *storeBurst,
				Logger:  logger,
			})
			if err != nil {
				logger.Log("err", err)
				os.Exit(1)
			}
			storeKind = "http"
			logger.Log("kind", storeKind, "url", *storeURL)
		default:
			logger.Log("err", fmt.Sprintf("unsupported --store-url %q; use file:// or http(s)://", *storeURL))
			os.Exit(1)
		}
		origin = store.InstrumentStore(origin)
	}

	// Periodic record of what's deployed.
	updates := checkpoint.Announce("imagecached", version, map[string]string{"store": storeKind}, log.With(logger, "component", "checkpoint"))
	defer updates.Stop()

	// Shutdown mechanics.
	errc := make(chan error)
	shutdown := make(chan struct{})
	shutdownWg := &sync.WaitGroup{}

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	// Prefetch worker.
	prefetcher := &cache.Prefetcher{
		Driver:       driver,
		Store:        origin,
		Logger:       log.With(logger, "component", "prefetcher"),
		PollInterval: *prefetchPollInterval,
	}
	shutdownWg.Add(1)
	go prefetcher.Loop(shutdown, shutdownWg)

	// Optional in-process janitor. Deployments sharing the cache dir
	// between several daemons run imagecache-pruner and
	// imagecache-cleaner on one host instead.
	if *runJanitor {
		pruner := &cache.Pruner{
			Driver:        driver,
			MaxSize:       *cacheMaxSize,
			ExtraFraction: *cacheExtraFree / 100,
			Logger:        log.With(logger, "component", "pruner"),
		}
		pruneTicker := time.NewTicker(*pruneInterval)
		defer pruneTicker.Stop()
		go pruner.Run(pruneTicker.C)

		cleaner := &cache.Cleaner{
			Driver:   driver,
			Grace:    *cacheInvalidGrace,
			StallAge: *cacheStallTime,
			Logger:   log.With(logger, "component", "cleaner"),
		}
		cleanTicker := time.NewTicker(*cleanInterval)
		defer cleanTicker.Stop()
		go cleaner.Run(cleanTicker.C)
	}

	// The server.
	apiServer := server.New(version, driver, origin, prefetcher, log.With(logger, "component", "server"))

	// HTTP transport component.
	go func() {
		logger := log.With(logger, "component", "http")
		logger.Log("addr", *listenAddr)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		router := httpdaemon.NewRouter()
		mux.Handle("/", httpdaemon.NewHandler(apiServer, router))
		errc <- http.ListenAndServe(*listenAddr, mux)
	}()

	logger.Log("version", version, "cache_dir", *cacheDir)

	// Go!
	shutdownErr := <-errc
	logger.Log("exiting", shutdownErr)
	close(shutdown)
	shutdownWg.Wait()
}
