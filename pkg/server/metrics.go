package server

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	icmetrics "github.com/imagecached/imagecached/pkg/metrics"
)

const (
	outcomeHit         = "hit"
	outcomeMiss        = "miss"
	outcomePassthrough = "passthrough"
)

var imageRequests = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
	Namespace: "imagecache",
	Subsystem: "server",
	Name:      "image_requests_total",
	Help:      "Count of image data requests, by outcome.",
}, []string{icmetrics.LabelOutcome})

func countOutcome(outcome string) {
	imageRequests.With(icmetrics.LabelOutcome, outcome).Add(1)
}
