// Package listener serves a compiled route table over net/http.
// Each request runs its own pipeline (global middlewares, routing, route
// middleware, handler effect, error stage) on its own goroutine, and its
// response is written exactly once.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Suhaibinator/SEffect/pkg/codec"
	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/Suhaibinator/SEffect/pkg/effect"
	"github.com/Suhaibinator/SEffect/pkg/metrics"
	"github.com/Suhaibinator/SEffect/pkg/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrShuttingDown is the error answered to requests that arrive after Shutdown was called.
var ErrShuttingDown = effect.NewHTTPError(http.StatusServiceUnavailable, "Service Unavailable")

// Listener is an http.Handler running every request through the configured
// middlewares and route table.
type Listener struct {
	config      Config
	table       router.Table
	pipeline    common.Effect
	errorEffect common.ErrorEffect
	logger      *zap.Logger
	tracer      trace.Tracer
	metrics     *metrics.Collector
	codec       codec.Codec
	sem         *semaphore.Weighted
	slow        time.Duration

	ingress  chan *exchange
	quit     chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once

	wg         sync.WaitGroup
	shutdown   bool
	shutdownMu sync.RWMutex
}

// exchange is one inbound request waiting for its response to be written.
type exchange struct {
	w       http.ResponseWriter
	r       *http.Request
	arrived time.Time
	done    chan struct{}
	tracked bool // counted in the wait group
}

// New compiles the route tree of cfg and starts the ingress loop.
// A route table that fails to compile is returned as an error.
func New(cfg Config) (*Listener, error) {
	table, err := router.Compile(cfg.Routes...)
	if err != nil {
		return nil, fmt.Errorf("compile routes: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}

	c := cfg.Codec
	if c == nil {
		c = codec.JSON
	}

	slow := cfg.SlowRequestThreshold
	if slow <= 0 {
		slow = DefaultSlowRequestThreshold
	}

	l := &Listener{
		config:      cfg,
		table:       table,
		errorEffect: effect.ProvideErrorEffect(cfg.ErrorEffect),
		logger:      logger,
		tracer:      tracer,
		metrics:     cfg.Metrics,
		codec:       c,
		slow:        slow,
		ingress:     make(chan *exchange),
		quit:        make(chan struct{}),
		loopDone:    make(chan struct{}),
	}
	if cfg.MaxInFlight > 0 {
		l.sem = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	}
	l.pipeline = l.buildPipeline(cfg.Middlewares)

	for _, route := range table.Routes() {
		logger.Debug("Registered route",
			zap.String("method", route.Method),
			zap.String("path", route.Template),
		)
	}

	go l.loop()
	return l, nil
}

// MustNew is like New but panics if the routes do not compile.
func MustNew(cfg Config) *Listener {
	l, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return l
}

// Table returns the compiled routing table.
func (l *Listener) Table() router.Table {
	return l.table
}

func (l *Listener) buildPipeline(middlewares []common.Middleware) common.Effect {
	guarded := make([]common.Middleware, len(middlewares))
	for i, mw := range middlewares {
		guarded[i] = checkpoint(mw)
	}
	global := effect.CombineMiddlewares(guarded...)
	routing := l.table.Effect()

	return effect.Recover(func(req *common.Request) (*common.Response, error) {
		out, err := global(req)
		if err != nil || out == nil {
			return nil, err
		}
		if err := out.Context().Err(); err != nil {
			return nil, err
		}
		return routing(out)
	})
}

// checkpoint aborts before mw when the request context is already done.
func checkpoint(mw common.Middleware) common.Middleware {
	return func(req *common.Request) (*common.Request, error) {
		if err := req.Context().Err(); err != nil {
			return nil, err
		}
		return mw(req)
	}
}

// ServeHTTP implements http.Handler. It hands the request to the ingress loop
// and returns once the response has been written.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Shutdown sets the flag under the write lock before it waits, so no
	// request is added to the wait group once Wait may have started.
	l.shutdownMu.RLock()
	isShutdown := l.shutdown
	if !isShutdown {
		l.wg.Add(1)
	}
	l.shutdownMu.RUnlock()

	x := &exchange{w: w, r: r, arrived: time.Now(), done: make(chan struct{}), tracked: !isShutdown}
	if isShutdown {
		l.metrics.Reject("shutting_down")
		go l.serve(x, false, ErrShuttingDown)
		<-x.done
		return
	}

	select {
	case l.ingress <- x:
	case <-l.quit:
		l.metrics.Reject("shutting_down")
		go l.serve(x, false, ErrShuttingDown)
	case <-r.Context().Done():
		// The client went away before admission; nobody is left to answer.
		l.metrics.Reject("client_gone")
		l.wg.Done()
		return
	}
	<-x.done
}

// loop admits requests in arrival order until the listener is stopped.
func (l *Listener) loop() {
	defer close(l.loopDone)
	for {
		select {
		case x := <-l.ingress:
			l.admit(x)
		case <-l.quit:
			return
		}
	}
}

func (l *Listener) admit(x *exchange) {
	if l.sem == nil {
		go l.serve(x, false, nil)
		return
	}
	if err := l.sem.Acquire(x.r.Context(), 1); err != nil {
		l.metrics.Reject("queue_abandoned")
		go l.serve(x, false, err)
		return
	}
	go l.serve(x, true, nil)
}

// serve runs the pipeline of one exchange, or the error stage alone when the
// request was refused, and writes the response.
func (l *Listener) serve(x *exchange, release bool, refused error) {
	if x.tracked {
		defer l.wg.Done()
	}
	defer close(x.done)
	if release {
		defer l.sem.Release(1)
	}

	l.metrics.ObserveQueueWait(time.Since(x.arrived))
	defer l.metrics.TrackInFlight()()

	start := time.Now()
	req := common.NewRequest(x.r)
	ctx, span := l.tracer.Start(req.Context(), req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.target", req.URL),
		),
	)
	defer span.End()
	req = req.WithContext(ctx)

	var res *common.Response
	if refused != nil {
		res = l.fail(req, refused)
	} else {
		res = l.Dispatch(req)
	}

	status := l.write(x.w, req, res)
	duration := time.Since(start)

	route := req.Route()
	if route != "" {
		span.SetName(req.Method + " " + route)
		span.SetAttributes(attribute.String("http.route", route))
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	if req.Err != nil {
		span.RecordError(req.Err)
	}
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}

	l.metrics.ObserveRequest(req.Method, route, status, duration)
	l.logRequest(req, res, route, status, duration, span.SpanContext())
}

// Dispatch runs the request pipeline and returns the response to write.
// It never fails: no output becomes 404 Not Found and any error or panic is
// turned into a response by the error effect.
func (l *Listener) Dispatch(req *common.Request) *common.Response {
	res, err := l.pipeline(req)
	if err != nil {
		return l.fail(req, err)
	}
	if res == nil {
		return &common.Response{Status: http.StatusNotFound}
	}
	return res
}

// fail attaches err to req and runs the error effect. A panicking or empty
// error effect falls back to the default one.
func (l *Listener) fail(req *common.Request, err error) (res *common.Response) {
	err = classify(err)
	req.Err = err

	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error("Panic recovered in error effect",
				zap.Any("panic", rec),
				zap.Error(err),
				zap.String("method", req.Method),
				zap.String("path", req.Path),
			)
			res = effect.DefaultErrorEffect(req, err)
		}
	}()
	return l.errorEffect(req, err)
}

// contextError reports a request whose context ended during the pipeline.
type contextError struct {
	err    error
	status int
}

func (e *contextError) Error() string   { return http.StatusText(e.status) }
func (e *contextError) Unwrap() error   { return e.err }
func (e *contextError) HTTPStatus() int { return e.status }

// classify gives context errors without a status their HTTP meaning:
// an expired deadline is 408, a canceled request 503.
func classify(err error) error {
	var se effect.StatusError
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &contextError{err: err, status: http.StatusRequestTimeout}
	case errors.Is(err, context.Canceled):
		return &contextError{err: err, status: http.StatusServiceUnavailable}
	}
	return err
}

// Shutdown gracefully shuts down the listener.
// It stops accepting new requests and waits for existing requests to complete.
// If the context is canceled before all requests complete, it returns the context's error.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.shutdownMu.Lock()
	l.shutdown = true
	l.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.stopOnce.Do(func() { close(l.quit) })
		<-l.loopDone
		return nil
	case <-ctx.Done():
		l.stopOnce.Do(func() { close(l.quit) })
		return ctx.Err()
	}
}
