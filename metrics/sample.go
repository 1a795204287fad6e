package metrics

import (
	"container/list"
	"math"
	"sort"
	"sync"

	"github.com/vsem-svoim/basecap/api/types"
)

// SampleMetric is a measurement related to one capability check sample.
type SampleMetric interface {
	// ObserveLatency observes latency.
	ObserveLatency(seconds float64)
	// ObserveFailure observes failure response.
	ObserveFailure(err error)
	// ObserveReceivedBytes observes the bytes read from the target.
	ObserveReceivedBytes(bytes int64)
	// Gather returns the summary.
	Gather() types.SampleStats
}

type sampleMetricImpl struct {
	mu            sync.Mutex
	errorStats    types.ErrorStats
	latencies     *list.List
	receivedBytes int64
	failures      int
}

// NewSampleMetric returns a thread-safe SampleMetric.
func NewSampleMetric() SampleMetric {
	return &sampleMetricImpl{
		latencies:  list.New(),
		errorStats: types.NewErrorStats(),
	}
}

// ObserveLatency implements SampleMetric.
func (m *sampleMetricImpl) ObserveLatency(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies.PushBack(seconds)
}

// ObserveFailure implements SampleMetric.
func (m *sampleMetricImpl) ObserveFailure(err error) {
	if err == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++

	// HTTP code classification first, then http2, then net.
	code := codeFromHTTP(err)
	switch {
	case code != 0:
		m.errorStats.ResponseCodes[code]++
	case isHTTP2Error(err):
		updateHTTP2ErrorStats(&m.errorStats.HTTP2Errors, err)
	case isNetRelatedError(err):
		updateNetErrors(m.errorStats.NetErrors, err)
	default:
		m.errorStats.UnknownErrors = append(m.errorStats.UnknownErrors, err.Error())
	}
}

// ObserveReceivedBytes implements SampleMetric.
func (m *sampleMetricImpl) ObserveReceivedBytes(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receivedBytes += bytes
}

// Gather implements SampleMetric.
func (m *sampleMetricImpl) Gather() types.SampleStats {
	latencies := m.dumpLatencies()

	m.mu.Lock()
	defer m.mu.Unlock()
	return types.SampleStats{
		Total:               len(latencies),
		ReceivedBytes:       m.receivedBytes,
		PercentileLatencies: BuildPercentileLatencies(latencies),
		ErrorStats:          m.errorStats.Copy(),
	}
}

func (m *sampleMetricImpl) dumpLatencies() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]float64, 0, m.latencies.Len())
	for e := m.latencies.Front(); e != nil; e = e.Next() {
		res = append(res, e.Value.(float64))
	}
	return res
}

var percentiles = []float64{0, 50, 90, 95, 99, 100}

// BuildPercentileLatencies builds the latency distribution, keyed by
// percentile.
func BuildPercentileLatencies(latencies []float64) map[float64]float64 {
	if len(latencies) == 0 {
		return nil
	}

	res := make(map[float64]float64, len(percentiles))

	n := len(latencies)
	sort.Float64s(latencies)
	for _, p := range percentiles {
		idx := int(math.Ceil(float64(n) * p / 100))
		if idx > 0 {
			idx--
		}
		res[p] = latencies[idx]
	}
	return res
}
