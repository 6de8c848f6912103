package cache

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promdto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func findMetric(name string, metricType promdto.MetricType, labels ...string) (*promdto.Metric, error) {
	metricsRegistry := prometheus.DefaultRegisterer.(*prometheus.Registry)
	metrics, err := metricsRegistry.Gather()
	if err != nil {
		return nil, fmt.Errorf("error reading metrics registry: %v", err)
	}
	for _, metricFamily := range metrics {
		if *metricFamily.Name != name {
			continue
		}
		if *metricFamily.Type != metricType {
			return nil, fmt.Errorf("metric %v has type %v, not %v", name, metricFamily.Type, metricType)
		}
	candidates:
		for _, metric := range metricFamily.Metric {
			if len(labels) != len(metric.Label)*2 {
				continue
			}
			for idx, label := range metric.Label {
				if labels[idx*2] != *label.Name || labels[idx*2+1] != *label.Value {
					continue candidates
				}
			}
			return metric, nil
		}
		return nil, fmt.Errorf("can't find metric %v with labels %v", name, labels)
	}
	return nil, fmt.Errorf("can't find metric %v in registry", name)
}

func TestInstrumentedDriver(t *testing.T) {
	driver, _, cleanup := newTestDriver(t)
	defer cleanup()
	instrumented := InstrumentDriver(driver)

	_, err := instrumented.OpenForRead("img-absent")
	assert.Equal(t, ErrNotCached, err)

	session, err := instrumented.OpenForWrite("img-1")
	assert.NoError(t, err)
	_, err = session.Write([]byte("payload"))
	assert.NoError(t, err)
	assert.NoError(t, session.Commit())
	assert.True(t, instrumented.IsCached("img-1"))

	missed, err := findMetric("imagecache_cache_request_duration_seconds", promdto.MetricType_HISTOGRAM,
		"method", "OpenForRead", "success", "false")
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, *missed.Histogram.SampleCount >= 1)

	wrote, err := findMetric("imagecache_cache_request_duration_seconds", promdto.MetricType_HISTOGRAM,
		"method", "OpenForWrite", "success", "true")
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, *wrote.Histogram.SampleCount >= 1)
}
