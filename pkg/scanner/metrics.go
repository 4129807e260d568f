package scanner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/praetorian-inc/sigscan/pkg/scanner"

// Compile kinds recorded on the compile duration histogram.
const (
	compileSignatures = "signatures"
	compileFind       = "find"
)

type metrics struct {
	blobs     metric.Int64Counter
	bytes     metric.Int64Counter
	matches   metric.Int64Counter
	cacheHits metric.Int64Counter
	compile   metric.Float64Histogram
}

func newMetrics(meter metric.Meter) *metrics {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	blobs, _ := meter.Int64Counter("sigscan_blobs_scanned_total", metric.WithDescription("Blobs scanned"))
	bytes, _ := meter.Int64Counter("sigscan_bytes_scanned_total", metric.WithUnit("By"))
	matches, _ := meter.Int64Counter("sigscan_matches_total")
	hits, _ := meter.Int64Counter("sigscan_searcher_cache_hits_total")
	compile, _ := meter.Float64Histogram("sigscan_compile_duration_ms", metric.WithUnit("ms"))
	return &metrics{
		blobs:     blobs,
		bytes:     bytes,
		matches:   matches,
		cacheHits: hits,
		compile:   compile,
	}
}

func (m *metrics) scanned(ctx context.Context, size int64, matches int) {
	m.blobs.Add(ctx, 1)
	m.bytes.Add(ctx, size)
	m.matches.Add(ctx, int64(matches))
}

func (m *metrics) compiled(ctx context.Context, kind string, elapsed time.Duration) {
	m.compile.Record(ctx, float64(elapsed.Microseconds())/1000,
		metric.WithAttributes(attribute.String("kind", kind)))
}
