package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := capturesTotal
	Init()

	require.NotNil(t, capturesTotal)
	assert.Same(t, first, capturesTotal)
	require.NotNil(t, adsTotal)
	require.NotNil(t, enrichmentsTotal)
	require.NotNil(t, rateLimitDelaySeconds)
}

func TestObserveCapture(t *testing.T) {
	Init()
	before := testutil.ToFloat64(capturesTotal.WithLabelValues(CaptureStructuralFailure))

	ObserveCapture(CaptureStructuralFailure, 3*time.Second)

	after := testutil.ToFloat64(capturesTotal.WithLabelValues(CaptureStructuralFailure))
	assert.Equal(t, before+1, after)
	assert.Positive(t, testutil.CollectAndCount(captureDurationSeconds))
}

func TestObserveAdsIgnoresNonPositive(t *testing.T) {
	Init()
	before := testutil.ToFloat64(adsTotal.WithLabelValues(AdSuperseded))

	ObserveAds(AdSuperseded, 0)
	ObserveAds(AdSuperseded, 2)

	assert.Equal(t, before+2, testutil.ToFloat64(adsTotal.WithLabelValues(AdSuperseded)))
}

func TestObserveEnrichmentAndCatalogSize(t *testing.T) {
	Init()
	before := testutil.ToFloat64(enrichmentsTotal.WithLabelValues(EnrichSkipped))

	ObserveEnrichment(EnrichSkipped)
	SetCatalogEntries("ads", 42)

	assert.Equal(t, before+1, testutil.ToFloat64(enrichmentsTotal.WithLabelValues(EnrichSkipped)))
	assert.Equal(t, 42.0, testutil.ToFloat64(catalogEntries.WithLabelValues("ads")))
}

func TestObserveRateLimitDelay(t *testing.T) {
	ObserveRateLimitDelay("enrich", 1500*time.Millisecond)
	assert.Positive(t, testutil.CollectAndCount(rateLimitDelaySeconds))
}
