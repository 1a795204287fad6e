package types

import "time"

// Suite status values shared by probe and capability suites. The partial
// state means some but not all expected resources were ready.
const (
	StatusHealthy   = "healthy"
	StatusPartial   = "partial"
	StatusUnhealthy = "unhealthy"
	StatusError     = "error"
	StatusSkipped   = "skipped"
)

// SuiteResult is the outcome of one verification suite.
type SuiteResult struct {
	// Status is completed or failed.
	Status string `json:"status"`
	// ExecutionSeconds is the suite's wall time.
	ExecutionSeconds float64 `json:"executionSeconds"`
	// Error holds the failure message when Status is failed.
	Error string `json:"error,omitempty"`
	// Results holds the suite's detail payload, keyed by check name.
	Results map[string]interface{} `json:"results,omitempty"`
}

// ReportSummary aggregates suite outcomes.
type ReportSummary struct {
	// TotalSuites is the number of executed suites.
	TotalSuites int `json:"totalSuites"`
	// Succeeded is the number of suites that completed.
	Succeeded int `json:"succeeded"`
	// Failed is the number of suites that failed to run.
	Failed int `json:"failed"`
	// WallSeconds is the total execution time.
	WallSeconds float64 `json:"wallSeconds"`
}

// Report is the top-level verification report written by the probe and
// capability commands. The schema is suite name to status/metrics so that
// downstream tooling can consume any suite without knowing its shape.
type Report struct {
	// Timestamp is when the report was generated.
	Timestamp time.Time `json:"timestamp"`
	// RunID identifies the run, also used as archive ref.
	RunID string `json:"runID"`
	// Component is the platform component under test, if any.
	Component string `json:"component,omitempty"`
	// Namespace is the probed namespace, if any.
	Namespace string `json:"namespace,omitempty"`
	// Summary aggregates suite outcomes.
	Summary ReportSummary `json:"summary"`
	// Suites maps suite name to its result.
	Suites map[string]SuiteResult `json:"suites"`
	// Recommendations are follow-up hints derived from the results.
	Recommendations []string `json:"recommendations,omitempty"`
}

// SampleStats is the measured outcome of a capability suite.
type SampleStats struct {
	// Total is the number of samples taken.
	Total int `json:"total"`
	// Duration is the suite's sampling wall time.
	Duration time.Duration `json:"duration"`
	// ReceivedBytes is the total bytes read from targets.
	ReceivedBytes int64 `json:"receivedBytes"`
	// PercentileLatencies is the latency distribution in seconds,
	// keyed by percentile (0, 50, 90, 95, 99, 100).
	PercentileLatencies map[float64]float64 `json:"percentileLatencies"`
	// ErrorStats groups sampling failures by kind.
	ErrorStats ErrorStats `json:"errorStats"`
}

// ErrorStats groups failures by their cause.
type ErrorStats struct {
	// UnknownErrors is the list of unclassified error messages.
	UnknownErrors []string `json:"unknownErrors"`
	// NetErrors counts low-level net errors by message.
	NetErrors map[string]int32 `json:"netErrors"`
	// ResponseCodes counts non-2xx responses by HTTP status code.
	ResponseCodes map[int]int32 `json:"responseCodes"`
	// HTTP2Errors counts http2 protocol errors.
	HTTP2Errors HTTP2ErrorStats `json:"http2Errors"`
}

// HTTP2ErrorStats includes the http2 errors.
type HTTP2ErrorStats struct {
	// ConnectionErrors counts http2 connection-level errors.
	ConnectionErrors map[string]int32 `json:"connectionErrors"`
	// StreamErrors counts http2 stream-level errors.
	StreamErrors map[string]int32 `json:"streamErrors"`
}

// NewErrorStats returns an initialized ErrorStats.
func NewErrorStats() ErrorStats {
	return ErrorStats{
		UnknownErrors: make([]string, 0, 64),
		NetErrors:     make(map[string]int32),
		ResponseCodes: make(map[int]int32),
		HTTP2Errors: HTTP2ErrorStats{
			ConnectionErrors: make(map[string]int32),
			StreamErrors:     make(map[string]int32),
		},
	}
}

// Copy returns a deep copy of ErrorStats.
func (e ErrorStats) Copy() ErrorStats {
	res := NewErrorStats()
	res.UnknownErrors = append(res.UnknownErrors, e.UnknownErrors...)
	for code, n := range e.ResponseCodes {
		res.ResponseCodes[code] = n
	}
	for msg, n := range e.NetErrors {
		res.NetErrors[msg] = n
	}
	for msg, n := range e.HTTP2Errors.ConnectionErrors {
		res.HTTP2Errors.ConnectionErrors[msg] = n
	}
	for msg, n := range e.HTTP2Errors.StreamErrors {
		res.HTTP2Errors.StreamErrors[msg] = n
	}
	return res
}
