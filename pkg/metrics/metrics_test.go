package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(Config{Namespace: "seffect", Registerer: reg})
	require.NoError(t, err)

	c.ObserveRequest("GET", "/user/:id", 200, 10*time.Millisecond)
	c.ObserveRequest("GET", "/user/:id", 200, 20*time.Millisecond)
	c.ObserveRequest("POST", "", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "/user/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("POST", UnmatchedRoute, "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.duration))
}

func TestCollectorInFlight(t *testing.T) {
	c := MustNewCollector(Config{})

	done1 := c.TrackInFlight()
	done2 := c.TrackInFlight()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.inFlight))

	done1()
	done2()
	assert.Equal(t, 0.0, testutil.ToFloat64(c.inFlight))
}

func TestCollectorQueueWaitAndReject(t *testing.T) {
	c := MustNewCollector(Config{})
	c.ObserveQueueWait(5 * time.Millisecond)
	c.Reject("shutting_down")
	c.Reject("shutting_down")

	assert.Equal(t, 1, testutil.CollectAndCount(c.queueWait))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.rejected.WithLabelValues("shutting_down")))
}

func TestNewCollectorDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(Config{Registerer: reg})
	require.NoError(t, err)

	_, err = NewCollector(Config{Registerer: reg})
	require.Error(t, err)
	var are prometheus.AlreadyRegisteredError
	assert.True(t, errors.As(err, &are))

	assert.Panics(t, func() { MustNewCollector(Config{Registerer: reg}) })
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveRequest("GET", "/", 200, time.Second)
		c.TrackInFlight()()
		c.ObserveQueueWait(time.Second)
		c.Reject("x")
	})
	assert.NotNil(t, c.Handler())
}

func TestCollectorHandler(t *testing.T) {
	c := MustNewCollector(Config{Namespace: "seffect"})
	c.ObserveRequest("GET", "/", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `seffect_requests_total{method="GET",route="/",status="200"} 1`), body)
	assert.Contains(t, body, "seffect_requests_in_flight 0")
}
