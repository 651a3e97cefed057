package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "halluguard_http_requests_total",
			Help: "Total number of HTTP requests, by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "halluguard_http_request_duration_seconds",
			Help:    "Duration of HTTP requests, by method and route",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"method", "route"},
	)
)

// metricsMiddleware records request count and latency per route pattern
func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)
		if err != nil {
			// Renders the error so the final status is known
			c.Error(err)
		}

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request().Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())

		return err
	}
}
