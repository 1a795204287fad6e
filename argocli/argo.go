package argocli

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// ArgoRunner is the wrapper of exec.Command to execute argo command.
type ArgoRunner struct {
	kubeCfgPath string
	namespace   string
}

func NewArgoRunner(kubeCfgPath string, namespace string) *ArgoRunner {
	return &ArgoRunner{
		kubeCfgPath: kubeCfgPath,
		namespace:   namespace,
	}
}

func (ar *ArgoRunner) commonArgs() []string {
	args := []string{}
	if ar.kubeCfgPath != "" {
		args = append(args, "--kubeconfig", ar.kubeCfgPath)
	}
	if ar.namespace != "" {
		args = append(args, "-n", ar.namespace)
	}
	return args
}

// SubmitOptions describes one workflow submission.
type SubmitOptions struct {
	// Name is the workflow name.
	Name string
	// Template is the WorkflowTemplate to instantiate.
	Template string
	// Parameters are passed as -p key=value, in key order.
	Parameters map[string]string
	// Wait blocks until the workflow completes.
	Wait bool
}

// Submit instantiates a WorkflowTemplate. With opts.Wait the call returns
// only when the workflow finished, and a failed workflow surfaces as the
// argo binary's non-zero exit.
func (ar *ArgoRunner) Submit(ctx context.Context, timeout time.Duration, opts SubmitOptions) error {
	if opts.Template == "" {
		return fmt.Errorf("template is required")
	}

	args := append(ar.commonArgs(), "submit",
		"--from", "workflowtemplate/"+opts.Template)
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}

	keys := make([]string, 0, len(opts.Parameters))
	for key := range opts.Parameters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "-p", fmt.Sprintf("%s=%s", key, opts.Parameters[key]))
	}

	if opts.Wait {
		args = append(args, "--wait")
	}

	_, err := runCommand(ctx, timeout, "argo", args)
	return err
}
