package argocli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// KubectlRunner is the wrapper of exec.Command to execute kubectl command.
type KubectlRunner struct {
	kubeCfgPath string
	namespace   string
}

func NewKubectlRunner(kubeCfgPath string, namespace string) *KubectlRunner {
	return &KubectlRunner{
		kubeCfgPath: kubeCfgPath,
		namespace:   namespace,
	}
}

func (kr *KubectlRunner) commonArgs() []string {
	args := []string{}
	if kr.kubeCfgPath != "" {
		args = append(args, "--kubeconfig", kr.kubeCfgPath)
	}
	if kr.namespace != "" {
		args = append(args, "-n", kr.namespace)
	}
	return args
}

// CreateNamespace creates a new namespace.
func (kr *KubectlRunner) CreateNamespace(ctx context.Context, timeout time.Duration, name string) error {
	args := []string{}
	if kr.kubeCfgPath != "" {
		args = append(args, "--kubeconfig", kr.kubeCfgPath)
	}
	args = append(args, "create", "namespace", name)

	_, err := runCommand(ctx, timeout, "kubectl", args)
	return err
}

// DeleteNamespace delete a namespace.
func (kr *KubectlRunner) DeleteNamespace(ctx context.Context, timeout time.Duration, name string) error {
	args := []string{}
	if kr.kubeCfgPath != "" {
		args = append(args, "--kubeconfig", kr.kubeCfgPath)
	}
	args = append(args, "delete", "namespace", name)

	_, err := runCommand(ctx, timeout, "kubectl", args)
	return err
}

// Apply runs apply subcommand for a manifest file.
func (kr *KubectlRunner) Apply(ctx context.Context, timeout time.Duration, filePath string) error {
	args := append(kr.commonArgs(), "apply", "-f", filePath)

	_, err := runCommand(ctx, timeout, "kubectl", args)
	return err
}

// ApplyWithData runs kubectl apply with manifest data piped through stdin.
func (kr *KubectlRunner) ApplyWithData(ctx context.Context, timeout time.Duration, data string) error {
	args := append(kr.commonArgs(), "apply", "-f", "-")

	_, err := runCommandWithInput(ctx, timeout, "kubectl", args, data)
	return err
}

// Delete runs delete subcommand for a manifest file.
func (kr *KubectlRunner) Delete(ctx context.Context, timeout time.Duration, filePath string) error {
	args := append(kr.commonArgs(), "delete", "-f", filePath)

	_, err := runCommand(ctx, timeout, "kubectl", args)
	return err
}

// DeleteAll deletes all objects of a resource kind in the runner's namespace.
func (kr *KubectlRunner) DeleteAll(ctx context.Context, timeout time.Duration, resource string) error {
	if resource == "" {
		return fmt.Errorf("resource is required")
	}

	args := append(kr.commonArgs(), "delete", resource, "--all", "--ignore-not-found")

	_, err := runCommand(ctx, timeout, "kubectl", args)
	return err
}

// Wait runs wait subcommand.
func (kr *KubectlRunner) Wait(ctx context.Context, timeout time.Duration, condition, waitTimeout, target string) error {
	if condition == "" {
		return fmt.Errorf("condition is required")
	}

	if target == "" {
		return fmt.Errorf("target is required")
	}

	args := append(kr.commonArgs(), "wait", "--for="+condition)
	if waitTimeout != "" {
		args = append(args, "--timeout="+waitTimeout)
	}
	args = append(args, target)

	_, err := runCommand(ctx, timeout, "kubectl", args)
	return err
}

// WorkflowStatus reads a workflow's phase and progress via jsonpath.
func (kr *KubectlRunner) WorkflowStatus(ctx context.Context, timeout time.Duration, name string) (phase, progress string, _ error) {
	args := append(kr.commonArgs(), "get", "workflow", name,
		"-o", "jsonpath={.status.phase}/{.status.progress}")

	data, err := runCommand(ctx, timeout, "kubectl", args)
	if err != nil {
		return "", "", err
	}

	parts := strings.SplitN(strings.TrimSpace(string(data)), "/", 2)
	phase = parts[0]
	if len(parts) == 2 {
		progress = parts[1]
	}
	return phase, progress, nil
}

// ApplicationHealth is one ArgoCD application's health and sync state.
type ApplicationHealth struct {
	Name   string
	Health string
	Sync   string
}

// applicationList matches the fields we read from kubectl get -o json.
type applicationList struct {
	Items []struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
		Status struct {
			Health struct {
				Status string `json:"status"`
			} `json:"health"`
			Sync struct {
				Status string `json:"status"`
			} `json:"sync"`
		} `json:"status"`
	} `json:"items"`
}

// ApplicationsHealth lists ArgoCD applications with their health status.
func (kr *KubectlRunner) ApplicationsHealth(ctx context.Context, timeout time.Duration) ([]ApplicationHealth, error) {
	args := append(kr.commonArgs(), "get", "applications.argoproj.io", "-o", "json")

	data, err := runCommand(ctx, timeout, "kubectl", args)
	if err != nil {
		return nil, err
	}

	var list applicationList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal application list: %w", err)
	}

	apps := make([]ApplicationHealth, 0, len(list.Items))
	for _, item := range list.Items {
		apps = append(apps, ApplicationHealth{
			Name:   item.Metadata.Name,
			Health: item.Status.Health.Status,
			Sync:   item.Status.Sync.Status,
		})
	}
	return apps, nil
}
