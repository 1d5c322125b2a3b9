package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/visiprobe/visiprobe/internal/errors"
	"github.com/visiprobe/visiprobe/internal/observability"
)

// metricsFallbackPort is used when the exporter has not reported its port.
var metricsFallbackPort = 9090

var metricsTransport http.RoundTripper = &http.Transport{
	ResponseHeaderTimeout: 5 * time.Second,
	MaxIdleConns:          2,
}

// MetricsHandler serves the Prometheus exporter's scrape output on the main
// listener, so scan counters can be scraped from the API port.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		apperrors.RespondWithError(w, r, errors.NewErrorEnvelope(apperrors.CodeServiceUnavailable, "Metrics exporter not initialized"))
		return
	}

	port := observability.GetMetricsPort()
	if port == 0 {
		port = metricsFallbackPort
	}
	target := &url.URL{Scheme: "http", Host: fmt.Sprintf("127.0.0.1:%d", port), Path: "/metrics"}

	proxy := &httputil.ReverseProxy{
		Transport: metricsTransport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			out := *target
			pr.Out.URL = &out
			pr.Out.Host = target.Host
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del("Authorization")
		},
		ModifyResponse: func(resp *http.Response) error {
			if resp.Header.Get("Content-Type") == "" {
				resp.Header.Set("Content-Type", "text/plain; version=0.0.4")
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			if observability.ServerLogger != nil {
				observability.ServerLogger.Warn("Prometheus exporter unreachable",
					zap.String("target", target.String()), zap.Error(err))
			}
			apperrors.RespondWithError(w, r, apperrors.WrapExternalService(r.Context(), err, "Prometheus exporter unavailable"))
		},
	}
	proxy.ServeHTTP(w, r)
}
