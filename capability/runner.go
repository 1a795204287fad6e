// Package capability measures what a running platform component can actually
// serve: it samples the kube-apiserver and component endpoints with weighted
// checks and reports the latency distribution and failure breakdown.
package capability

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v2"
	"k8s.io/client-go/rest"

	"github.com/vsem-svoim/basecap/api/types"
	"github.com/vsem-svoim/basecap/metrics"
)

const defaultTimeout = 60 * time.Second

// LoadSuite parses and validates a capability suite document.
func LoadSuite(data []byte) (*types.CapabilitySuite, error) {
	suite := types.CapabilitySuite{}
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to unmarshal capability suite: %w", err)
	}
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return &suite, nil
}

// Run samples the targets described by spec and gathers the stats. Clients
// beyond the connection count share connections (client % conns).
func Run(ctx context.Context, spec *types.CapabilitySpec, restCli []rest.Interface, httpCli *http.Client) (*types.SampleStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rndChecks, err := NewWeightedRandomChecks(spec)
	if err != nil {
		return nil, err
	}

	if httpCli == nil {
		httpCli = http.DefaultClient
	}

	qps := spec.Rate
	if qps == 0 {
		qps = math.MaxInt32
	}
	limiter := rate.NewLimiter(rate.Limit(qps), 10)

	builderCh := rndChecks.Chan()
	var wg sync.WaitGroup

	sampleMetric := metrics.NewSampleMetric()
	for i := 0; i < spec.Client; i++ {
		var cli rest.Interface
		if len(restCli) > 0 {
			cli = restCli[i%len(restCli)]
		}
		wg.Add(1)
		go func(cli rest.Interface) {
			defer wg.Done()

			for builder := range builderCh {
				checker := builder.Build(cli, httpCli)

				if err := limiter.Wait(ctx); err != nil {
					cancel()
					return
				}

				func() {
					checkCtx, checkCancel := context.WithTimeout(ctx, defaultTimeout)
					defer checkCancel()

					start := time.Now()
					defer func() {
						sampleMetric.ObserveLatency(time.Since(start).Seconds())
					}()

					bytes, err := checker.Do(checkCtx)
					sampleMetric.ObserveReceivedBytes(bytes)
					if err != nil {
						sampleMetric.ObserveFailure(err)
					}
				}()
			}
		}(cli)
	}

	start := time.Now()

	rndChecks.Run(ctx, spec.Total)
	rndChecks.Stop()
	wg.Wait()

	stats := sampleMetric.Gather()
	stats.Total = spec.Total
	stats.Duration = time.Since(start)
	return &stats, nil
}

// errorCount sums all classified and unclassified failures.
func errorCount(stats *types.SampleStats) int {
	count := len(stats.ErrorStats.UnknownErrors)
	for _, n := range stats.ErrorStats.NetErrors {
		count += int(n)
	}
	for _, n := range stats.ErrorStats.ResponseCodes {
		count += int(n)
	}
	for _, n := range stats.ErrorStats.HTTP2Errors.ConnectionErrors {
		count += int(n)
	}
	for _, n := range stats.ErrorStats.HTTP2Errors.StreamErrors {
		count += int(n)
	}
	return count
}

// RunSuite runs one suite and folds the stats into a report entry. Every
// sample failing marks the suite unhealthy, a subset failing marks it
// partial.
func RunSuite(ctx context.Context, suite *types.CapabilitySuite, restCli []rest.Interface, httpCli *http.Client) types.SuiteResult {
	start := time.Now()

	stats, err := Run(ctx, &suite.Spec, restCli, httpCli)
	if err != nil {
		return types.SuiteResult{
			Status:           types.StatusError,
			ExecutionSeconds: time.Since(start).Seconds(),
			Error:            err.Error(),
		}
	}

	failed := errorCount(stats)
	status := types.StatusHealthy
	switch {
	case failed >= stats.Total:
		status = types.StatusUnhealthy
	case failed > 0:
		status = types.StatusPartial
	}

	return types.SuiteResult{
		Status:           status,
		ExecutionSeconds: time.Since(start).Seconds(),
		Results: map[string]interface{}{
			"total":               stats.Total,
			"failed":              failed,
			"durationSeconds":     stats.Duration.Seconds(),
			"receivedBytes":       stats.ReceivedBytes,
			"percentileLatencies": stats.PercentileLatencies,
			"errorStats":          stats.ErrorStats,
		},
	}
}
