// Package orchestrate drives the platform's workflow pipelines: scheduled
// data ingestion through Argo Workflows and GitOps deployment through ArgoCD.
package orchestrate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/vsem-svoim/basecap/api/types"
	"github.com/vsem-svoim/basecap/argocli"
	"github.com/vsem-svoim/basecap/log"
	"github.com/vsem-svoim/basecap/schedule"
)

// WorkflowSubmitter submits one workflow and blocks until it completes.
type WorkflowSubmitter interface {
	Submit(ctx context.Context, timeout time.Duration, opts argocli.SubmitOptions) error
}

// IngestionConfig describes one ingestion run.
type IngestionConfig struct {
	// Business is the validated source table and business rules.
	Business *types.BusinessConfig
	// Template is the WorkflowTemplate each source instantiates.
	Template string
	// RunID tags workflow names so that reruns never collide.
	RunID string
	// SubmitTimeout bounds one workflow submission including --wait.
	SubmitTimeout time.Duration
	// Parallelism caps concurrent source submissions.
	Parallelism int
}

// SourceOutcome is the result of one source's ingestion.
type SourceOutcome struct {
	// Source is the data source name.
	Source string `json:"source"`
	// Priority is the source's priority tier.
	Priority types.Priority `json:"priority"`
	// Workflow is the submitted workflow name.
	Workflow string `json:"workflow"`
	// Attempts is how many submissions were made.
	Attempts int `json:"attempts"`
	// Succeeded reports whether any attempt completed.
	Succeeded bool `json:"succeeded"`
	// SLAMet reports whether completion beat the window-adjusted deadline.
	SLAMet bool `json:"slaMet"`
	// Error is the last attempt's failure, if any.
	Error string `json:"error,omitempty"`
}

// IngestionResult is the business report of one ingestion run.
type IngestionResult struct {
	// Window is the business window the run was planned for.
	Window types.Window `json:"window"`
	// RunID tags the run.
	RunID string `json:"runID"`
	// Total is the number of planned sources.
	Total int `json:"total"`
	// Succeeded is the number of sources that completed.
	Succeeded int `json:"succeeded"`
	// Failed is the number of sources that exhausted retries.
	Failed int `json:"failed"`
	// SLAComplianceRate is succeeded-in-SLA over total, 0..1.
	SLAComplianceRate float64 `json:"slaComplianceRate"`
	// Escalations names critical sources that failed and need business
	// attention.
	Escalations []string `json:"escalations,omitempty"`
	// Outcomes are the per-source results in plan order.
	Outcomes []SourceOutcome `json:"outcomes"`
}

// Ingestor runs planned ingestion workflows.
type Ingestor struct {
	submitter WorkflowSubmitter
	clock     clock.PassiveClock
}

// NewIngestor creates an Ingestor running on the real clock.
func NewIngestor(submitter WorkflowSubmitter) *Ingestor {
	return NewIngestorWithClock(submitter, clock.RealClock{})
}

// NewIngestorWithClock creates an Ingestor with an injected clock.
func NewIngestorWithClock(submitter WorkflowSubmitter, c clock.PassiveClock) *Ingestor {
	return &Ingestor{submitter: submitter, clock: c}
}

// workflowName builds the workflow name for one source.
func workflowName(source, runID string) string {
	name := strings.ReplaceAll(source, "_", "-")
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return fmt.Sprintf("ingestion-%s-%s", name, runID)
}

// RunIngestion plans the current window and submits one workflow per selected
// source, applying the source's retry policy and verifying its SLA deadline.
func (ing *Ingestor) RunIngestion(ctx context.Context, cfg IngestionConfig) (*IngestionResult, error) {
	logger := log.GetLogger(ctx).WithKeyValues("runID", cfg.RunID)

	planner := schedule.NewPlannerWithClock(cfg.Business, ing.clock)
	plan, err := planner.BuildPlan()
	if err != nil {
		return nil, fmt.Errorf("failed to build ingestion plan: %w", err)
	}

	logger.LogKV("msg", "ingestion plan ready",
		"window", string(plan.Window), "sources", len(plan.Items))

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = len(plan.Items)
	}

	var mu sync.Mutex
	outcomes := make([]SourceOutcome, len(plan.Items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for idx, item := range plan.Items {
		idx, item := idx, item
		g.Go(func() error {
			outcome := ing.runSource(gctx, cfg, plan.Window, item)

			mu.Lock()
			outcomes[idx] = outcome
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &IngestionResult{
		Window:   plan.Window,
		RunID:    cfg.RunID,
		Total:    len(outcomes),
		Outcomes: outcomes,
	}

	slaMet := 0
	for _, outcome := range outcomes {
		if outcome.Succeeded {
			result.Succeeded++
			if outcome.SLAMet {
				slaMet++
			}
			continue
		}

		result.Failed++
		if outcome.Priority == types.PriorityCritical {
			result.Escalations = append(result.Escalations, outcome.Source)
		}
	}
	if result.Total > 0 {
		result.SLAComplianceRate = float64(slaMet) / float64(result.Total)
	}

	for _, source := range result.Escalations {
		logger.WithKeyValues("level", "warn").LogKV(
			"msg", "critical source failed, business escalation required",
			"source", source)
	}

	return result, nil
}

// runSource submits one source's workflow, retrying per its policy.
func (ing *Ingestor) runSource(ctx context.Context, cfg IngestionConfig, window types.Window, item types.PlanItem) SourceOutcome {
	logger := log.GetLogger(ctx).WithKeyValues("source", item.Source)

	src, _ := cfg.Business.Source(item.Source)
	name := workflowName(item.Source, cfg.RunID)

	opts := argocli.SubmitOptions{
		Name:     name,
		Template: cfg.Template,
		Wait:     true,
		Parameters: map[string]string{
			"source-url":       src.URL,
			"source-type":      src.Type,
			"priority":         string(item.Priority),
			"business-context": string(window),
			"sla-deadline":     item.SLADeadline.Format(time.RFC3339),
		},
	}

	outcome := SourceOutcome{
		Source:   item.Source,
		Priority: item.Priority,
		Workflow: name,
	}

	delay := time.Duration(item.Retry.RetryDelayMinutes) * time.Minute
	for attempt := 0; attempt <= item.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.LogKV("msg", "retrying ingestion workflow",
				"attempt", attempt, "delay", delay.String())
			select {
			case <-ctx.Done():
				outcome.Error = ctx.Err().Error()
				return outcome
			case <-time.After(delay):
			}

			// retried workflows need fresh names
			opts.Name = fmt.Sprintf("%s-r%d", name, attempt)
		}

		outcome.Attempts = attempt + 1
		err := ing.submitter.Submit(ctx, cfg.SubmitTimeout, opts)
		if err == nil {
			outcome.Succeeded = true
			outcome.Workflow = opts.Name
			outcome.SLAMet = !ing.clock.Now().After(item.SLADeadline)
			return outcome
		}

		outcome.Error = err.Error()
		logger.WithKeyValues("level", "warn").LogKV(
			"msg", "ingestion workflow failed",
			"workflow", opts.Name, "error", err.Error())
	}

	return outcome
}
