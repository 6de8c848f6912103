package cache

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	icmetrics "github.com/imagecached/imagecached/pkg/metrics"
)

var (
	cacheRequestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "imagecache",
		Subsystem: "cache",
		Name:      "request_duration_seconds",
		Help:      "Duration of cache driver operations, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{icmetrics.LabelMethod, icmetrics.LabelSuccess})

	cacheSize = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Namespace: "imagecache",
		Subsystem: "cache",
		Name:      "size_bytes",
		Help:      "Total size of complete cache entries, as of the last prune pass.",
	}, []string{})
)

type instrumentedDriver struct {
	next Driver
}

func InstrumentDriver(d Driver) Driver {
	return &instrumentedDriver{
		next: d,
	}
}

func (i *instrumentedDriver) observe(method string, begin time.Time, err error) {
	cacheRequestDuration.With(
		icmetrics.LabelMethod, method,
		icmetrics.LabelSuccess, fmt.Sprint(err == nil),
	).Observe(time.Since(begin).Seconds())
}

func (i *instrumentedDriver) IsCached(imageID string) bool {
	defer func(begin time.Time) {
		i.observe("IsCached", begin, nil)
	}(time.Now())
	return i.next.IsCached(imageID)
}

func (i *instrumentedDriver) GetHitCount(imageID string) uint64 {
	defer func(begin time.Time) {
		i.observe("GetHitCount", begin, nil)
	}(time.Now())
	return i.next.GetHitCount(imageID)
}

func (i *instrumentedDriver) OpenForRead(imageID string) (_ Entry, err error) {
	defer func(begin time.Time) {
		i.observe("OpenForRead", begin, err)
	}(time.Now())
	return i.next.OpenForRead(imageID)
}

func (i *instrumentedDriver) OpenForWrite(imageID string) (_ WriteSession, err error) {
	defer func(begin time.Time) {
		i.observe("OpenForWrite", begin, err)
	}(time.Now())
	return i.next.OpenForWrite(imageID)
}

func (i *instrumentedDriver) DeleteCachedImage(imageID string) (err error) {
	defer func(begin time.Time) {
		i.observe("DeleteCachedImage", begin, err)
	}(time.Now())
	return i.next.DeleteCachedImage(imageID)
}

func (i *instrumentedDriver) DeleteAllCachedImages() (_ int, err error) {
	defer func(begin time.Time) {
		i.observe("DeleteAllCachedImages", begin, err)
	}(time.Now())
	return i.next.DeleteAllCachedImages()
}

func (i *instrumentedDriver) QueueImage(imageID string) (_ bool, err error) {
	defer func(begin time.Time) {
		i.observe("QueueImage", begin, err)
	}(time.Now())
	return i.next.QueueImage(imageID)
}

func (i *instrumentedDriver) PopNextQueued() (_ string, _ bool, err error) {
	defer func(begin time.Time) {
		i.observe("PopNextQueued", begin, err)
	}(time.Now())
	return i.next.PopNextQueued()
}

func (i *instrumentedDriver) GetCachedImages() (_ []CachedImage, err error) {
	defer func(begin time.Time) {
		i.observe("GetCachedImages", begin, err)
	}(time.Now())
	return i.next.GetCachedImages()
}

func (i *instrumentedDriver) GetQueuedImages() (_ []QueuedImage, err error) {
	defer func(begin time.Time) {
		i.observe("GetQueuedImages", begin, err)
	}(time.Now())
	return i.next.GetQueuedImages()
}

func (i *instrumentedDriver) DeleteQueuedImage(imageID string) (err error) {
	defer func(begin time.Time) {
		i.observe("DeleteQueuedImage", begin, err)
	}(time.Now())
	return i.next.DeleteQueuedImage(imageID)
}

func (i *instrumentedDriver) DeleteAllQueuedImages() (_ int, err error) {
	defer func(begin time.Time) {
		i.observe("DeleteAllQueuedImages", begin, err)
	}(time.Now())
	return i.next.DeleteAllQueuedImages()
}

func (i *instrumentedDriver) ReapInvalid(grace time.Duration) (_ int, err error) {
	defer func(begin time.Time) {
		i.observe("ReapInvalid", begin, err)
	}(time.Now())
	return i.next.ReapInvalid(grace)
}

func (i *instrumentedDriver) ReapStalled(stallAge time.Duration) (_ int, err error) {
	defer func(begin time.Time) {
		i.observe("ReapStalled", begin, err)
	}(time.Now())
	return i.next.ReapStalled(stallAge)
}
