package index

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/meigma/classpath/index"

const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultStale = "stale"
)

type cacheMetrics struct {
	lookups metric.Int64Counter
	builds  metric.Int64Counter
	results map[string]metric.AddOption
}

func newCacheMetrics(mp metric.MeterProvider) (*cacheMetrics, error) {
	meter := mp.Meter(meterName)

	lookups, err := meter.Int64Counter("classpath.index.cache.lookups",
		metric.WithDescription("Archive index cache lookups by result"),
		metric.WithUnit("{lookup}"))
	if err != nil {
		return nil, err
	}
	builds, err := meter.Int64Counter("classpath.index.builds",
		metric.WithDescription("Archive indexes built from disk"),
		metric.WithUnit("{index}"))
	if err != nil {
		return nil, err
	}

	results := make(map[string]metric.AddOption, 3)
	for _, r := range []string{resultHit, resultMiss, resultStale} {
		results[r] = metric.WithAttributeSet(attribute.NewSet(attribute.String("result", r)))
	}
	return &cacheMetrics{lookups: lookups, builds: builds, results: results}, nil
}

func (m *cacheMetrics) lookup(result string) {
	m.lookups.Add(context.Background(), 1, m.results[result])
}

func (m *cacheMetrics) built() {
	m.builds.Add(context.Background(), 1)
}
