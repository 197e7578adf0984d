package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name            string
		report          *Report
		total           int
		wantConfidence  int
		wantSpread      float64
		wantSpreadConf  float64
		wantSourceConf  float64
		wantSourceCount int
	}{
		{
			name:            "zero spread all sources",
			report:          &Report{Median: 100, Min: 100, Max: 100, SuccessfulSources: 4, TotalSources: 4},
			total:           4,
			wantConfidence:  100,
			wantSpreadConf:  100,
			wantSourceConf:  100,
			wantSourceCount: 4,
		},
		{
			name:            "fifty percent spread",
			report:          &Report{Median: 100, Min: 75, Max: 125, SuccessfulSources: 3, TotalSources: 4},
			total:           4,
			wantConfidence:  38, // round(75 / 2)
			wantSpread:      50,
			wantSpreadConf:  0,
			wantSourceConf:  75,
			wantSourceCount: 3,
		},
		{
			name:            "wide spread floors at zero",
			report:          &Report{Median: 100, Min: 10, Max: 400, SuccessfulSources: 2, TotalSources: 2},
			total:           2,
			wantConfidence:  50,
			wantSpread:      390,
			wantSpreadConf:  0,
			wantSourceConf:  100,
			wantSourceCount: 2,
		},
		{
			name:            "small spread half sources",
			report:          &Report{Median: 100, Min: 99, Max: 101, SuccessfulSources: 2, TotalSources: 4},
			total:           4,
			wantConfidence:  73, // (96 + 50) / 2
			wantSpread:      2,
			wantSpreadConf:  96,
			wantSourceConf:  50,
			wantSourceCount: 2,
		},
		{
			name:            "total falls back to report",
			report:          &Report{Median: 10, Min: 10, Max: 10, SuccessfulSources: 1, TotalSources: 2},
			total:           0,
			wantConfidence:  75,
			wantSpreadConf:  100,
			wantSourceConf:  50,
			wantSourceCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Score(tt.report, tt.total)
			assert.Equal(t, tt.wantConfidence, c.Confidence)
			assert.InDelta(t, tt.wantSpread, c.SpreadPercent, 1e-9)
			assert.InDelta(t, tt.wantSpreadConf, c.SpreadConfidence, 1e-9)
			assert.InDelta(t, tt.wantSourceConf, c.SourceConfidence, 1e-9)
			assert.Equal(t, tt.wantSourceCount, c.SourceCount)
			assert.Equal(t, tt.report.Median, c.Price)
		})
	}
}

func TestScore_Bounds(t *testing.T) {
	c := Score(&Report{Median: 1, Min: 1, Max: 1, SuccessfulSources: 9, TotalSources: 9}, 3)
	assert.Equal(t, 100, c.Confidence)

	assert.Equal(t, Confidence{}, Score(nil, 3))
}

func TestScore_Monotonic(t *testing.T) {
	tight := Score(&Report{Median: 100, Min: 99, Max: 101, SuccessfulSources: 3, TotalSources: 4}, 4)
	loose := Score(&Report{Median: 100, Min: 90, Max: 110, SuccessfulSources: 3, TotalSources: 4}, 4)
	assert.Greater(t, tight.Confidence, loose.Confidence)

	more := Score(&Report{Median: 100, Min: 99, Max: 101, SuccessfulSources: 4, TotalSources: 4}, 4)
	assert.Greater(t, more.Confidence, tight.Confidence)
}
