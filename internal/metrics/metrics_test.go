package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReservation("ok")
		m.ObserveRelease(3)
		m.ObserveTransition("pending", "confirmed", "ok")
		m.ObserveOrderCreated("guest")
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveReservation("ok")
	m.ObserveReservation("ok")
	m.ObserveReservation("exhausted")
	m.ObserveRelease(4)
	m.ObserveRelease(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Reservations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reservations.WithLabelValues("exhausted")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ReleasedUnits))
}

func TestMiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/api/schedules/:id", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "missing")
	})
	app.Get("/metrics", Handler(reg))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/schedules/9", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/schedules/:id", "404")))

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "burrito_http_requests_total")
}
