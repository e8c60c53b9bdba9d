package main

import (
	"net/http"

	"github.com/foldnet/gameserver/internal/metrics"
	"github.com/foldnet/gameserver/internal/observability"
)

// newMetricsMux builds the daemon's metrics HTTP surface: a JSON
// snapshot, a time-series endpoint, and the Prometheus scrape endpoint.
func newMetricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.PrometheusHandler())
	mux.Handle("/metrics.json", metrics.Global().JSONHandler())
	mux.Handle("/metrics/timeseries", metrics.Global().TimeSeriesHandler())
	return mux
}

func httpListenAndServe(addr string, mux *http.ServeMux) error {
	return http.ListenAndServe(addr, observability.HTTPMiddleware(mux))
}
