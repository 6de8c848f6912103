package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	icmetrics "github.com/imagecached/imagecached/pkg/metrics"
)

var (
	storeRequestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "imagecache",
		Subsystem: "store",
		Name:      "request_duration_seconds",
		Help:      "Duration of origin store requests, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{icmetrics.LabelMethod, icmetrics.LabelSuccess})
)

type instrumentedStore struct {
	next Store
}

func InstrumentStore(s Store) Store {
	return &instrumentedStore{
		next: s,
	}
}

func (i *instrumentedStore) Get(ctx context.Context, imageID string) (_ *ImageStream, err error) {
	defer func(begin time.Time) {
		storeRequestDuration.With(
			icmetrics.LabelMethod, "Get",
			icmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.next.Get(ctx, imageID)
}
