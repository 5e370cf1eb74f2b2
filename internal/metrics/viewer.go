// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the Prometheus collectors of the viewer daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "imjs_build_info",
		Help: "Build information (always 1)",
	}, []string{"version"})

	signInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imjs_signins_total",
		Help: "Sign-in attempts by kind and outcome",
	}, []string{"kind", "outcome"}) // kind=interactive|silent|callback

	signOutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imjs_signouts_total",
		Help: "Total number of sign-outs",
	})

	imodelOpensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imjs_imodel_opens_total",
		Help: "iModel open attempts by outcome",
	}, []string{"outcome"}) // outcome=success|not_found|no_views|error

	imodelOpenDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "imjs_imodel_open_duration_seconds",
		Help:    "Time from open request to resolved view",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	viewResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imjs_view_resolutions_total",
		Help: "Resolved default views by source",
	}, []string{"source"}) // source=default|spatial|drawing|none

	screenRendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imjs_screen_renders_total",
		Help: "Rendered screens by name",
	}, []string{"screen"})

	discoveryLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imjs_discovery_lookups_total",
		Help: "Discovery lookups by result",
	}, []string{"result"}) // result=hit|miss|error

	remoteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imjs_remote_request_duration_seconds",
		Help:    "Outbound request latency by client, operation and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"client", "operation", "status"})

	storeOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imjs_session_store_op_duration_seconds",
		Help:    "Session store operation latency",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
	}, []string{"backend", "op", "result"})

	openIModels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "imjs_open_imodels",
		Help: "Number of browser sessions with an open iModel",
	})
)

// SetBuildInfo publishes the running version.
func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}

// RecordSignIn counts a sign-in attempt.
func RecordSignIn(kind, outcome string) {
	signInsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordSignOut counts a sign-out.
func RecordSignOut() {
	signOutsTotal.Inc()
}

// RecordIModelOpen counts an open attempt and, on success, its duration.
func RecordIModelOpen(outcome string, d time.Duration) {
	imodelOpensTotal.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		imodelOpenDuration.Observe(d.Seconds())
	}
}

// RecordViewResolution counts where the default view came from.
func RecordViewResolution(source string) {
	viewResolutionsTotal.WithLabelValues(source).Inc()
}

// RecordScreen counts a rendered screen.
func RecordScreen(screen string) {
	screenRendersTotal.WithLabelValues(screen).Inc()
}

// RecordDiscoveryLookup counts a discovery lookup.
func RecordDiscoveryLookup(result string) {
	discoveryLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveRemoteRequest records one outbound call.
func ObserveRemoteRequest(client, operation, status string, d time.Duration) {
	remoteRequestDuration.WithLabelValues(client, operation, status).Observe(d.Seconds())
}

// ObserveStoreOp records one session store operation.
func ObserveStoreOp(backend, op, result string, d time.Duration) {
	storeOpDuration.WithLabelValues(backend, op, result).Observe(d.Seconds())
}

// IncOpenIModels counts a session that opened a container.
func IncOpenIModels() { openIModels.Inc() }

// DecOpenIModels counts a session that closed its container.
func DecOpenIModels() { openIModels.Dec() }
