package analytics

import (
	"fmt"
	"sort"
	"strings"
)

// Report renders all four statistic categories plus the recommendation as a
// human-readable text block, suitable for the CLI and the dashboard's
// diagnostics view.
func (a *Aggregator) Report(windowDays int) string {
	timeouts := a.TimeoutStats(windowDays)
	responses := a.ResponseTimeStats(windowDays)
	connection := a.ConnectionQualityStats(windowDays)
	rec := a.RecommendedTimeouts()

	var b strings.Builder
	fmt.Fprintf(&b, "Telemetry report (last %d days)\n", windowDays)
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	fmt.Fprintf(&b, "Timeouts: %d total (%d connection, %d response)\n",
		timeouts.Total, timeouts.ConnectionTimeouts, timeouts.ResponseTimeouts)
	if timeouts.Total > 0 {
		fmt.Fprintf(&b, "  avg configured %.0fms, avg actual %.0fms\n",
			timeouts.AvgConfiguredMs, timeouts.AvgActualMs)
		for _, model := range sortedKeys(timeouts.ByModel) {
			fmt.Fprintf(&b, "  %s: %d\n", model, timeouts.ByModel[model])
		}
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Responses: %d total, success rate %.1f%%\n",
		responses.Total, responses.SuccessRate*100)
	if responses.Total > 0 {
		fmt.Fprintf(&b, "  mean %.0fms, median %dms, p95 %dms\n",
			responses.MeanMs, responses.MedianMs, responses.P95Ms)
		models := make([]string, 0, len(responses.AvgByModel))
		for m := range responses.AvgByModel {
			models = append(models, m)
		}
		sort.Strings(models)
		for _, m := range models {
			fmt.Fprintf(&b, "  %s: avg %.0fms\n", m, responses.AvgByModel[m])
		}
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Connection: %d samples, avg latency %.0fms\n",
		connection.Total, connection.AvgLatencyMs)
	if connection.CurrentQuality != "" {
		fmt.Fprintf(&b, "  current quality: %s\n", connection.CurrentQuality)
	}
	for _, q := range sortedKeys(connection.QualityHistogram) {
		fmt.Fprintf(&b, "  %s: %d\n", q, connection.QualityHistogram[q])
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Recommended timeouts: connection %dms, response %dms (confidence %.2f)\n",
		rec.ConnectionTimeoutMs, rec.ResponseTimeoutMs, rec.Confidence)

	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
