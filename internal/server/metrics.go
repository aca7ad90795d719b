package server

import "net/http"

// MetricsHandler serves Prometheus metrics.
type MetricsHandler struct {
	http.Handler
}

// NewMetricsHandler wraps the exposition handler of a metrics registry.
func NewMetricsHandler(h http.Handler) *MetricsHandler {
	return &MetricsHandler{Handler: h}
}

func (m *MetricsHandler) Routes() []string {
	return []string{"/metrics"}
}
