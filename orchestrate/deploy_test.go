package orchestrate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/vsem-svoim/basecap/api/types"
	"github.com/vsem-svoim/basecap/argocli"
)

// fakeGitops fakes the kubectl surface of the deployment pipeline.
type fakeGitops struct {
	applied    []string
	deleted    []string
	deleteErr  error
	phases     []string
	statusCall int
	apps       []argocli.ApplicationHealth
	appsErr    error
}

func (f *fakeGitops) ApplyWithData(_ context.Context, _ time.Duration, data string) error {
	f.applied = append(f.applied, data)
	return nil
}

func (f *fakeGitops) DeleteAll(_ context.Context, _ time.Duration, resource string) error {
	f.deleted = append(f.deleted, resource)
	return f.deleteErr
}

func (f *fakeGitops) WorkflowStatus(_ context.Context, _ time.Duration, _ string) (string, string, error) {
	if len(f.phases) == 0 {
		return "", "", fmt.Errorf("no workflow")
	}

	idx := f.statusCall
	if idx >= len(f.phases) {
		idx = len(f.phases) - 1
	}
	f.statusCall++
	return f.phases[idx], "1/2", nil
}

func (f *fakeGitops) ApplicationsHealth(_ context.Context, _ time.Duration) ([]argocli.ApplicationHealth, error) {
	return f.apps, f.appsErr
}

func argocdServer(readyReplicas int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Namespace: "argocd", Name: "argocd-server"},
		Status:     appsv1.DeploymentStatus{ReadyReplicas: readyReplicas},
	}
}

func healthyApps(healthy, total int) []argocli.ApplicationHealth {
	apps := make([]argocli.ApplicationHealth, total)
	for i := range apps {
		apps[i] = argocli.ApplicationHealth{
			Name:   fmt.Sprintf("app-%d", i),
			Health: "Degraded",
			Sync:   "OutOfSync",
		}
		if i < healthy {
			apps[i].Health = "Healthy"
			apps[i].Sync = "Synced"
		}
	}
	return apps
}

func deployConfig() DeploymentConfig {
	return DeploymentConfig{
		GitRepoURL:     "https://github.com/vsem-svoim/base-platform",
		GitRevision:    "main",
		Environment:    "dev",
		RunID:          "0123456789abcdef",
		MonitorTimeout: time.Second,
		PollInterval:   time.Millisecond,
	}
}

func TestRunDeploymentSucceeds(t *testing.T) {
	gitops := &fakeGitops{
		phases: []string{"Running", "Succeeded"},
		apps:   healthyApps(4, 5),
	}
	d := NewDeployer(fake.NewSimpleClientset(argocdServer(1)), gitops, gitops, "argocd")

	result, err := d.RunDeployment(context.Background(), deployConfig())
	require.NoError(t, err)

	assert.True(t, result.Succeeded)
	assert.Equal(t, "gitops-deployment-01234567", result.Workflow)
	for _, name := range []string{"prerequisites", "cleanup", "trigger", "monitor", "validate"} {
		assert.Equal(t, types.StatusHealthy, result.Stages[name].Status, name)
	}

	assert.Equal(t, []string{"applications.argoproj.io", "applicationsets.argoproj.io"}, gitops.deleted)
	require.Len(t, gitops.applied, 1)
	assert.Contains(t, gitops.applied[0], "gitops-deployment-01234567")
	assert.Contains(t, gitops.applied[0], "gitops-automated-deployment")
	assert.Contains(t, gitops.applied[0], "https://github.com/vsem-svoim/base-platform")

	assert.Equal(t, "4/5", result.Stages["validate"].Results["coverage"])
}

func TestRunDeploymentPrerequisitesNotMet(t *testing.T) {
	gitops := &fakeGitops{}
	d := NewDeployer(fake.NewSimpleClientset(argocdServer(0)), gitops, gitops, "argocd")

	result, err := d.RunDeployment(context.Background(), deployConfig())
	require.NoError(t, err)

	assert.False(t, result.Succeeded)
	assert.Equal(t, types.StatusUnhealthy, result.Stages["prerequisites"].Status)
	for _, name := range []string{"cleanup", "trigger", "monitor", "validate"} {
		assert.Equal(t, types.StatusSkipped, result.Stages[name].Status, name)
	}
	assert.Empty(t, gitops.applied)
}

func TestRunDeploymentCleanupFailureDoesNotStopPipeline(t *testing.T) {
	gitops := &fakeGitops{
		deleteErr: fmt.Errorf("forbidden"),
		phases:    []string{"Succeeded"},
		apps:      healthyApps(5, 5),
	}
	d := NewDeployer(fake.NewSimpleClientset(argocdServer(1)), gitops, gitops, "argocd")

	result, err := d.RunDeployment(context.Background(), deployConfig())
	require.NoError(t, err)

	assert.Equal(t, types.StatusPartial, result.Stages["cleanup"].Status)
	assert.True(t, result.Succeeded)
}

func TestRunDeploymentWorkflowFails(t *testing.T) {
	gitops := &fakeGitops{
		phases: []string{"Running", "Failed"},
		apps:   healthyApps(5, 5),
	}
	d := NewDeployer(fake.NewSimpleClientset(argocdServer(1)), gitops, gitops, "argocd")

	result, err := d.RunDeployment(context.Background(), deployConfig())
	require.NoError(t, err)

	assert.False(t, result.Succeeded)
	assert.Equal(t, types.StatusUnhealthy, result.Stages["monitor"].Status)
	assert.Equal(t, types.StatusSkipped, result.Stages["validate"].Status)
}

func TestRunDeploymentValidationBelowThreshold(t *testing.T) {
	gitops := &fakeGitops{
		phases: []string{"Succeeded"},
		apps:   healthyApps(3, 5),
	}
	d := NewDeployer(fake.NewSimpleClientset(argocdServer(1)), gitops, gitops, "argocd")

	result, err := d.RunDeployment(context.Background(), deployConfig())
	require.NoError(t, err)

	assert.False(t, result.Succeeded)
	assert.Equal(t, types.StatusUnhealthy, result.Stages["validate"].Status)
	assert.Equal(t, "3/5", result.Stages["validate"].Results["coverage"])
}

func TestRunDeploymentNoApplicationsFailsValidation(t *testing.T) {
	gitops := &fakeGitops{
		phases: []string{"Succeeded"},
	}
	d := NewDeployer(fake.NewSimpleClientset(argocdServer(1)), gitops, gitops, "argocd")

	result, err := d.RunDeployment(context.Background(), deployConfig())
	require.NoError(t, err)

	assert.False(t, result.Succeeded)
	assert.Equal(t, types.StatusUnhealthy, result.Stages["validate"].Status)
}
