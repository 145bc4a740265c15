package listener

import (
	"time"

	"github.com/Suhaibinator/SEffect/pkg/codec"
	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/Suhaibinator/SEffect/pkg/metrics"
	"github.com/Suhaibinator/SEffect/pkg/router"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultSlowRequestThreshold is used when Config.SlowRequestThreshold is zero.
const DefaultSlowRequestThreshold = time.Second

// TracerName is the instrumentation name of the default tracer.
const TracerName = "github.com/Suhaibinator/SEffect/listener"

// Config defines the configuration of a Listener.
type Config struct {
	// Routes is the route tree compiled into the routing table by New.
	Routes []router.Definition

	// Middlewares run for every request, in order, before routing.
	Middlewares []common.Middleware

	// ErrorEffect turns a failed pipeline into a response.
	// Nil means effect.DefaultErrorEffect.
	ErrorEffect common.ErrorEffect

	// Logger receives access and error logs. Nil means zap.NewProduction,
	// or a no-op logger when that fails.
	Logger *zap.Logger

	// MaxInFlight bounds the number of pipelines running at once. Requests over
	// the bound wait in arrival order. Zero means unbounded.
	MaxInFlight int

	// Metrics, when set, records request counts, durations, in-flight and
	// queue-wait figures.
	Metrics *metrics.Collector

	// Tracer starts one span per request. Nil means otel.Tracer(TracerName).
	Tracer trace.Tracer

	// Codec encodes response bodies. Nil means codec.JSON.
	Codec codec.Codec

	// SlowRequestThreshold marks requests logged at Warn level for their duration.
	SlowRequestThreshold time.Duration

	// DisableAccessLog turns off the per-request access log. Errors are still logged.
	DisableAccessLog bool

	// AccessLogFilter, when set, decides whether a finished request is access-logged.
	AccessLogFilter func(req *common.Request, res *common.Response) bool
}
