package manifests

import (
	"bytes"
	"fmt"
	"text/template"
)

// DeploymentWorkflowParams fills the GitOps deployment workflow manifest.
type DeploymentWorkflowParams struct {
	// Name is the workflow name.
	Name string
	// RunID labels the workflow for later lookup.
	RunID string
	// GitRepoURL is the platform repository.
	GitRepoURL string
	// GitRevision is the revision to deploy.
	GitRevision string
	// Environment selects the overlay.
	Environment string
}

// DeploymentWorkflow renders the Workflow manifest that instantiates the
// gitops-automated-deployment WorkflowTemplate.
func DeploymentWorkflow(params DeploymentWorkflowParams) (string, error) {
	data, err := FS.ReadFile("workflow/gitops-deployment.yaml")
	if err != nil {
		return "", fmt.Errorf("unexpected error when read workflow manifest from embed memory: %w", err)
	}

	tmpl, err := template.New("gitops-deployment").Parse(string(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse workflow manifest: %w", err)
	}

	buf := bytes.Buffer{}
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("failed to render workflow manifest: %w", err)
	}
	return buf.String(), nil
}
