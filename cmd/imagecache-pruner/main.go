package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/imagecached/imagecached/pkg/cache"
)

var version = "unversioned"

func main() {
	fs := pflag.NewFlagSet("default", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  imagecache-pruner evicts least recently used images until the cache\n")
		fmt.Fprintf(os.Stderr, "  fits its size bound. It runs once and exits, which suits cron; give\n")
		fmt.Fprintf(os.Stderr, "  --interval to keep it running instead.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}
	var (
		cacheDir          = fs.String("cache-dir", "", "Directory holding the image cache; required")
		cacheMaxSize      = fs.Int64("cache-max-size", 1*1024*1024*1024, "Upper bound, in bytes, on the sum of cached image sizes")
		cacheExtraFree    = fs.Float64("cache-extra-free-percent", 5, "Extra room to free beyond the size bound when pruning, as a percentage of the bound")
		interval          = fs.Duration("interval", 0, "Prune every interval instead of once; 0 means run once and exit")
		listenMetricsAddr = fs.String("listen-metrics", "", "listen address for /metrics endpoint")
		versionFlag       = fs.Bool("version", false, "Print version and exit")
	)
	fs.Parse(os.Args)

	if *versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	if *cacheDir == "" {
		logger.Log("stage", "startup", "err", "--cache-dir is required")
		os.Exit(1)
	}

	var driver cache.Driver
	{
		fsDriver, err := cache.NewFilesystemDriver(*cacheDir, log.With(logger, "component", "cache"))
		if err != nil {
			logger.Log("stage", "cache init", "err", err)
			os.Exit(1)
		}
		driver = cache.InstrumentDriver(fsDriver)
	}

	pruner := &cache.Pruner{
		Driver:        driver,
		MaxSize:       *cacheMaxSize,
		ExtraFraction: *cacheExtraFree / 100,
		Logger:        log.With(logger, "component", "pruner"),
	}

	if *interval == 0 {
		if _, _, err := pruner.Prune(); err != nil {
			logger.Log("err", err)
			os.Exit(1)
		}
		return
	}

	if *listenMetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Log("component", "http", "addr", *listenMetricsAddr)
			logger.Log("component", "http", "err", http.ListenAndServe(*listenMetricsAddr, mux))
		}()
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	logger.Log("version", version, "cache_dir", *cacheDir, "interval", interval.String())
	for {
		select {
		case <-ticker.C:
			if _, _, err := pruner.Prune(); err != nil {
				logger.Log("err", err)
			}
		case sig := <-sigc:
			logger.Log("exiting", sig.String())
			return
		}
	}
}
