package hxmodel

import (
	"sync/atomic"

	"github.com/pthm/hxmodel/lib/metrics"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/pthm/hxmodel"

var (
	logger    atomic.Pointer[zerolog.Logger]
	collector atomic.Pointer[metrics.Collector]
)

func init() {
	nop := zerolog.Nop()
	logger.Store(&nop)
}

// SetLogger sets the logger used for debug events (forks, identity map
// changes, deserialization hits and misses). The default discards
// everything.
func SetLogger(l zerolog.Logger) {
	l = l.With().Str("module", "hxmodel").Logger()
	logger.Store(&l)
}

func log() *zerolog.Logger {
	return logger.Load()
}

// tracer returns the tracer used to wrap serialize, deserialize, merge and
// validate traversals. It follows the global otel provider, a no-op until
// the application installs one.
func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// SetMetrics sets the collector fed by identity maps, forks and registries.
// nil disables metrics.
func SetMetrics(c *metrics.Collector) {
	collector.Store(c)
}

func metricsCollector() *metrics.Collector {
	return collector.Load()
}
