// Package stationanalytics computes the throughput and KPI metrics
// described in §4.12 for station operations dashboards. Stateless —
// these are pure computations over caller-supplied counters, not a
// persisted workflow.
package stationanalytics

import "math"

// ThroughputResult is the outcome of ThroughputMetrics.
type ThroughputResult struct {
	Processed int
	Delayed   int
	SLARisk   float64
}

// ThroughputMetrics computes the fraction of processed shipments that were
// delayed, rounded to 4 decimal places. Zero when processed is zero.
func ThroughputMetrics(processed, delayed int) ThroughputResult {
	risk := 0.0
	if processed > 0 {
		risk = round(float64(delayed)/float64(processed), 4)
	}
	return ThroughputResult{Processed: processed, Delayed: delayed, SLARisk: risk}
}

// KPISummary is the outcome of ComputeKPISummary.
type KPISummary struct {
	BottleneckIndicator string
	SLARisk             float64
	RiskFlag            string
}

// bottleneckThresholds: an average dwell time over 90 minutes points at
// loading as the bottleneck; otherwise throughput under 25/hour points at
// staffing; otherwise there's no indicated bottleneck.
const (
	dwellBottleneckMinutes    = 90.0
	throughputBottleneckPerHr = 25.0
	slaRiskAmberThreshold     = 0.08
	slaRiskRedThreshold       = 0.15
)

// ComputeKPISummary derives the station's bottleneck indicator and SLA risk
// flag from its throughput and dwell-time metrics.
func ComputeKPISummary(throughputPerHour, avgDwellMinutes float64, delayedShipments, totalShipments int) KPISummary {
	indicator := "none"
	switch {
	case avgDwellMinutes > dwellBottleneckMinutes:
		indicator = "loading"
	case throughputPerHour < throughputBottleneckPerHr:
		indicator = "staffing"
	}

	slaRisk := 0.0
	if totalShipments > 0 {
		slaRisk = round(float64(delayedShipments)/float64(totalShipments), 4)
	}

	riskFlag := "green"
	switch {
	case slaRisk >= slaRiskRedThreshold:
		riskFlag = "red"
	case slaRisk >= slaRiskAmberThreshold:
		riskFlag = "amber"
	}

	return KPISummary{BottleneckIndicator: indicator, SLARisk: slaRisk, RiskFlag: riskFlag}
}

func round(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(v*mult) / mult
}
