// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetCircuitBreakerState_ExactlyOneActive(t *testing.T) {
	SetCircuitBreakerState("platform", "open")

	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("platform", "open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("platform", "closed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(circuitBreakerState.WithLabelValues("platform", "half-open")))
}

func TestRecordIModelOpen(t *testing.T) {
	before := testutil.ToFloat64(imodelOpensTotal.WithLabelValues("success"))
	RecordIModelOpen("success", 300*time.Millisecond)
	RecordIModelOpen("no_views", time.Second)

	assert.Equal(t, before+1, testutil.ToFloat64(imodelOpensTotal.WithLabelValues("success")))

	var m dto.Metric
	require.NoError(t, imodelOpenDuration.Write(&m))
	assert.GreaterOrEqual(t, m.GetHistogram().GetSampleCount(), uint64(1))
}

func TestObserveHTTPRequest_UnmatchedRoute(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	ObserveHTTPRequest("GET", "", 404, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
