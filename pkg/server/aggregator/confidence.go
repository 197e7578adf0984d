package aggregator

import (
	"math"
)

// Confidence is the scored view of a report.
type Confidence struct {
	Price            float64 `json:"price"`
	Confidence       int     `json:"confidence"`
	SpreadPercent    float64 `json:"spread_percent"`
	SpreadConfidence float64 `json:"spread_confidence"`
	SourceConfidence float64 `json:"source_confidence"`
	SourceCount      int     `json:"source_count"`
}

// Score derives a 0-100 confidence from a report.
//
// This is an auditable heuristic, not a statistical confidence interval. Two equally
// weighted halves penalize disagreement and missing sources independently:
//
//	spreadPercent    = (max - min) / median * 100
//	spreadConfidence = max(0, 100 - 2*spreadPercent)   // 0% -> 100, >=50% -> 0
//	sourceConfidence = successful / totalConfigured * 100
//	confidence       = round((spreadConfidence + sourceConfidence) / 2)
//
// totalConfiguredSources <= 0 falls back to report.TotalSources.
func Score(report *Report, totalConfiguredSources int) Confidence {
	if report == nil {
		return Confidence{}
	}

	total := totalConfiguredSources
	if total <= 0 {
		total = report.TotalSources
	}

	var spread float64
	if report.Median > 0 {
		spread = (report.Max - report.Min) / report.Median * 100
	}
	spreadConfidence := math.Max(0, 100-spread*2)

	var sourceConfidence float64
	if total > 0 {
		sourceConfidence = math.Min(100, float64(report.SuccessfulSources)/float64(total)*100)
	}

	score := int(math.Round((spreadConfidence + sourceConfidence) / 2))
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	return Confidence{
		Price:            report.Median,
		Confidence:       score,
		SpreadPercent:    spread,
		SpreadConfidence: spreadConfidence,
		SourceConfidence: sourceConfidence,
		SourceCount:      report.SuccessfulSources,
	}
}
