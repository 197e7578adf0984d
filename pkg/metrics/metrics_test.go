package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSourceFetch(t *testing.T) {
	before := testutil.ToFloat64(SourceFetchesTotal.WithLabelValues("test-src", "failure"))

	RecordSourceFetch("test-src", false, 10*time.Millisecond)
	RecordSourceFetch("test-src", true, 20*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(SourceFetchesTotal.WithLabelValues("test-src", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SourceFetchesTotal.WithLabelValues("test-src", "success")))
	assert.NotZero(t, testutil.ToFloat64(SourceLastUpdate.WithLabelValues("test-src")))
}

func TestRecordConsensus(t *testing.T) {
	RecordConsensus("TEST/USD", 101.5, 87, 1.2, 0.4, true)

	assert.Equal(t, 101.5, testutil.ToFloat64(ConsensusPrice.WithLabelValues("TEST/USD")))
	assert.Equal(t, 87.0, testutil.ToFloat64(Confidence.WithLabelValues("TEST/USD")))
	assert.Equal(t, 0.0, testutil.ToFloat64(AnomaliesTotal.WithLabelValues("TEST/USD")))

	RecordConsensus("TEST/USD", 150, 40, 1.2, 48, false)
	assert.Equal(t, 1.0, testutil.ToFloat64(AnomaliesTotal.WithLabelValues("TEST/USD")))
}

func TestRecordQuorumFailure(t *testing.T) {
	RecordAggregation("Q/USD", 3, time.Millisecond)
	assert.Equal(t, 3.0, testutil.ToFloat64(SuccessfulSources.WithLabelValues("Q/USD")))

	RecordQuorumFailure("Q/USD")
	assert.Equal(t, 0.0, testutil.ToFloat64(SuccessfulSources.WithLabelValues("Q/USD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(QuorumFailuresTotal.WithLabelValues("Q/USD")))
}
