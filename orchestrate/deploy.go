package orchestrate

import (
	"context"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/vsem-svoim/basecap/api/types"
	"github.com/vsem-svoim/basecap/argocli"
	"github.com/vsem-svoim/basecap/log"
	"github.com/vsem-svoim/basecap/manifests"
)

// GitopsRunner covers the kubectl operations the deployment pipeline shells
// out for.
type GitopsRunner interface {
	ApplyWithData(ctx context.Context, timeout time.Duration, data string) error
	DeleteAll(ctx context.Context, timeout time.Duration, resource string) error
	WorkflowStatus(ctx context.Context, timeout time.Duration, name string) (phase, progress string, _ error)
	ApplicationsHealth(ctx context.Context, timeout time.Duration) ([]argocli.ApplicationHealth, error)
}

// DeploymentConfig describes one GitOps deployment run.
type DeploymentConfig struct {
	// GitRepoURL is the platform repository ArgoCD deploys from.
	GitRepoURL string
	// GitRevision is the revision to deploy.
	GitRevision string
	// Environment selects the overlay, like dev or prod.
	Environment string
	// RunID tags the triggered workflow.
	RunID string
	// MonitorTimeout bounds the workflow watch.
	MonitorTimeout time.Duration
	// PollInterval is the workflow status poll interval.
	PollInterval time.Duration
	// HealthyRatio is the fraction of applications that must be Healthy
	// for validation to pass. Zero means the 0.8 default.
	HealthyRatio float64
}

// DeploymentResult is the stage-by-stage outcome of one deployment run.
type DeploymentResult struct {
	// RunID tags the run.
	RunID string `json:"runID"`
	// Succeeded reports whether every mandatory stage passed.
	Succeeded bool `json:"succeeded"`
	// Workflow is the triggered workflow name.
	Workflow string `json:"workflow,omitempty"`
	// Stages maps stage name to its result.
	Stages map[string]types.SuiteResult `json:"stages"`
}

// Deployer runs the GitOps deployment pipeline: prerequisites, cleanup,
// trigger, monitor, validate.
type Deployer struct {
	client          kubernetes.Interface
	workflows       GitopsRunner
	argocd          GitopsRunner
	argoCDNamespace string
}

// NewDeployer creates a Deployer. The workflows runner targets the workflow
// namespace, the argocd runner targets the ArgoCD namespace.
func NewDeployer(client kubernetes.Interface, workflows, argocd GitopsRunner, argoCDNamespace string) *Deployer {
	return &Deployer{
		client:          client,
		workflows:       workflows,
		argocd:          argocd,
		argoCDNamespace: argoCDNamespace,
	}
}

// stage runs fn and folds it into a stage result.
func stage(fn func() (string, map[string]interface{}, error)) types.SuiteResult {
	start := time.Now()
	status, details, err := fn()

	res := types.SuiteResult{
		Status:           status,
		ExecutionSeconds: time.Since(start).Seconds(),
		Results:          details,
	}
	if err != nil {
		res.Status = types.StatusError
		res.Error = err.Error()
	}
	return res
}

func skipped() types.SuiteResult {
	return types.SuiteResult{Status: types.StatusSkipped}
}

// RunDeployment executes the pipeline. Cleanup failures never stop the run;
// a failed prerequisite or trigger stage skips everything after it.
func (d *Deployer) RunDeployment(ctx context.Context, cfg DeploymentConfig) (*DeploymentResult, error) {
	logger := log.GetLogger(ctx).WithKeyValues("runID", cfg.RunID)

	workflow := "gitops-deployment-" + cfg.RunID
	if len(cfg.RunID) > 8 {
		workflow = "gitops-deployment-" + cfg.RunID[:8]
	}

	result := &DeploymentResult{
		RunID:    cfg.RunID,
		Workflow: workflow,
		Stages:   map[string]types.SuiteResult{},
	}

	result.Stages["prerequisites"] = stage(func() (string, map[string]interface{}, error) {
		return d.checkPrerequisites(ctx)
	})
	if result.Stages["prerequisites"].Status != types.StatusHealthy {
		logger.WithKeyValues("level", "warn").LogKV("msg", "prerequisites not met, aborting deployment")
		for _, name := range []string{"cleanup", "trigger", "monitor", "validate"} {
			result.Stages[name] = skipped()
		}
		return result, nil
	}

	result.Stages["cleanup"] = stage(func() (string, map[string]interface{}, error) {
		return d.cleanup(ctx)
	})

	result.Stages["trigger"] = stage(func() (string, map[string]interface{}, error) {
		return d.trigger(ctx, cfg, workflow)
	})
	if result.Stages["trigger"].Status != types.StatusHealthy {
		result.Stages["monitor"] = skipped()
		result.Stages["validate"] = skipped()
		return result, nil
	}

	result.Stages["monitor"] = stage(func() (string, map[string]interface{}, error) {
		return d.monitor(ctx, cfg, workflow)
	})
	if result.Stages["monitor"].Status != types.StatusHealthy {
		result.Stages["validate"] = skipped()
		return result, nil
	}

	result.Stages["validate"] = stage(func() (string, map[string]interface{}, error) {
		return d.validate(ctx, cfg)
	})

	result.Succeeded = result.Stages["monitor"].Status == types.StatusHealthy &&
		result.Stages["validate"].Status == types.StatusHealthy
	logger.LogKV("msg", "deployment pipeline finished",
		"workflow", workflow, "succeeded", result.Succeeded)
	return result, nil
}

// checkPrerequisites verifies the ArgoCD server is up before triggering.
func (d *Deployer) checkPrerequisites(ctx context.Context) (string, map[string]interface{}, error) {
	deploy, err := d.client.AppsV1().Deployments(d.argoCDNamespace).
		Get(ctx, "argocd-server", metav1.GetOptions{})
	if err != nil {
		return "", nil, fmt.Errorf("failed to get argocd-server deployment: %w", err)
	}

	ready := deploy.Status.ReadyReplicas > 0
	status := types.StatusHealthy
	if !ready {
		status = types.StatusUnhealthy
	}
	return status, map[string]interface{}{
		"argocdServerReadyReplicas": deploy.Status.ReadyReplicas,
	}, nil
}

// cleanup removes stale ArgoCD applications so the new run starts clean.
// Failures degrade the stage but never stop the pipeline.
func (d *Deployer) cleanup(ctx context.Context) (string, map[string]interface{}, error) {
	failures := map[string]interface{}{}
	for _, resource := range []string{"applications.argoproj.io", "applicationsets.argoproj.io"} {
		if err := d.argocd.DeleteAll(ctx, 5*time.Minute, resource); err != nil {
			failures[resource] = err.Error()
		}
	}

	if len(failures) > 0 {
		return types.StatusPartial, map[string]interface{}{"failures": failures}, nil
	}
	return types.StatusHealthy, nil, nil
}

// trigger applies the generated deployment workflow manifest.
func (d *Deployer) trigger(ctx context.Context, cfg DeploymentConfig, workflow string) (string, map[string]interface{}, error) {
	manifest, err := manifests.DeploymentWorkflow(manifests.DeploymentWorkflowParams{
		Name:        workflow,
		RunID:       cfg.RunID,
		GitRepoURL:  cfg.GitRepoURL,
		GitRevision: cfg.GitRevision,
		Environment: cfg.Environment,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to render deployment workflow: %w", err)
	}

	if err := d.workflows.ApplyWithData(ctx, 5*time.Minute, manifest); err != nil {
		return "", nil, fmt.Errorf("failed to apply deployment workflow: %w", err)
	}
	return types.StatusHealthy, map[string]interface{}{"workflow": workflow}, nil
}

// monitor polls the workflow until it finishes or the timeout expires.
func (d *Deployer) monitor(ctx context.Context, cfg DeploymentConfig, workflow string) (string, map[string]interface{}, error) {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	monitorTimeout := cfg.MonitorTimeout
	if monitorTimeout <= 0 {
		monitorTimeout = 30 * time.Minute
	}

	logger := log.GetLogger(ctx).WithKeyValues("workflow", workflow)

	deadline := time.Now().Add(monitorTimeout)
	for {
		phase, progress, err := d.workflows.WorkflowStatus(ctx, time.Minute, workflow)
		if err != nil {
			return "", nil, err
		}

		logger.LogKV("msg", "workflow status", "phase", phase, "progress", progress)
		details := map[string]interface{}{"phase": phase, "progress": progress}
		switch phase {
		case "Succeeded":
			return types.StatusHealthy, details, nil
		case "Failed", "Error":
			return types.StatusUnhealthy, details, nil
		}

		if time.Now().After(deadline) {
			return "", details, fmt.Errorf("workflow %s still %s after %s",
				workflow, phase, monitorTimeout)
		}

		select {
		case <-ctx.Done():
			return "", details, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// validate checks that enough ArgoCD applications report Healthy.
func (d *Deployer) validate(ctx context.Context, cfg DeploymentConfig) (string, map[string]interface{}, error) {
	ratio := cfg.HealthyRatio
	if ratio <= 0 {
		ratio = 0.8
	}

	apps, err := d.argocd.ApplicationsHealth(ctx, time.Minute)
	if err != nil {
		return "", nil, fmt.Errorf("failed to list applications: %w", err)
	}

	healthy := 0
	perApp := map[string]interface{}{}
	for _, app := range apps {
		if app.Health == "Healthy" {
			healthy++
		}
		perApp[app.Name] = map[string]interface{}{
			"health": app.Health,
			"sync":   app.Sync,
		}
	}

	details := map[string]interface{}{
		"coverage":     coverage(healthy, len(apps)),
		"applications": perApp,
	}

	if len(apps) == 0 || float64(healthy) < ratio*float64(len(apps)) {
		return types.StatusUnhealthy, details, nil
	}
	return types.StatusHealthy, details, nil
}

// coverage renders a healthy count like "4/5".
func coverage(healthy, total int) string {
	return fmt.Sprintf("%d/%d", healthy, total)
}
