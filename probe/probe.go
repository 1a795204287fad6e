// Package probe verifies a platform component's Kubernetes footprint: the
// namespace, deployments, services, configmaps, autoscalers and volume claims
// a component is expected to run with.
package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/vsem-svoim/basecap/api/types"
	"github.com/vsem-svoim/basecap/log"
)

// suiteFunc runs one verification suite and returns its status and details.
type suiteFunc func(ctx context.Context) (string, map[string]interface{}, error)

// Prober runs the verification suites of one component profile against a
// cluster.
type Prober struct {
	client  kubernetes.Interface
	profile *types.ProbeProfile
}

// NewProber creates a Prober for a component profile.
func NewProber(client kubernetes.Interface, profile *types.ProbeProfile) *Prober {
	return &Prober{client: client, profile: profile}
}

// Run executes all suites concurrently and returns suite name to result. A
// suite that cannot reach the API server reports status error instead of
// failing the whole probe.
func (p *Prober) Run(ctx context.Context) map[string]types.SuiteResult {
	suites := map[string]suiteFunc{
		"namespace":   p.checkNamespace,
		"deployments": p.checkDeployments,
		"services":    p.checkServices,
		"configmaps":  p.checkConfigMaps,
		"autoscalers": p.checkAutoscalers,
		"volumes":     p.checkVolumeClaims,
	}

	var mu sync.Mutex
	results := make(map[string]types.SuiteResult, len(suites))

	g, ctx := errgroup.WithContext(ctx)
	for name, fn := range suites {
		name, fn := name, fn
		g.Go(func() error {
			start := time.Now()
			status, details, err := fn(ctx)

			res := types.SuiteResult{
				Status:           status,
				ExecutionSeconds: time.Since(start).Seconds(),
				Results:          details,
			}
			if err != nil {
				res.Status = types.StatusError
				res.Error = err.Error()
				log.GetLogger(ctx).WithKeyValues(
					"suite", name, "component", p.profile.Spec.Component,
				).LogKV("msg", "probe suite failed", "error", err.Error())
			}

			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	// suite errors are folded into results, never returned
	_ = g.Wait()

	return results
}

// aggregate maps a ready count onto the suite status.
func aggregate(ready, total int) string {
	switch {
	case total == 0:
		return types.StatusSkipped
	case ready == total:
		return types.StatusHealthy
	case ready > 0:
		return types.StatusPartial
	default:
		return types.StatusUnhealthy
	}
}

// coverage renders a ready count like "3/5".
func coverage(ready, total int) string {
	return fmt.Sprintf("%d/%d", ready, total)
}

func (p *Prober) checkNamespace(ctx context.Context) (string, map[string]interface{}, error) {
	ns, err := p.client.CoreV1().Namespaces().Get(ctx, p.profile.Spec.Namespace, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return types.StatusUnhealthy, map[string]interface{}{
				"exists": false,
			}, nil
		}
		return "", nil, fmt.Errorf("failed to get namespace %s: %w", p.profile.Spec.Namespace, err)
	}

	return types.StatusHealthy, map[string]interface{}{
		"exists": true,
		"phase":  string(ns.Status.Phase),
		"labels": ns.Labels,
	}, nil
}

// deploymentReady requires every desired replica to be both ready and
// available.
func deploymentReady(desired, ready, available int32) bool {
	return desired > 0 && ready == desired && available == desired
}

func (p *Prober) checkDeployments(ctx context.Context) (string, map[string]interface{}, error) {
	spec := p.profile.Spec

	readyCount := 0
	missing := []string{}
	perDeployment := map[string]interface{}{}
	for _, name := range spec.Deployments {
		deploy, err := p.client.AppsV1().Deployments(spec.Namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				missing = append(missing, name)
				perDeployment[name] = map[string]interface{}{"found": false}
				continue
			}
			return "", nil, fmt.Errorf("failed to get deployment %s: %w", name, err)
		}

		desired := int32(1)
		if deploy.Spec.Replicas != nil {
			desired = *deploy.Spec.Replicas
		}
		ready := deploymentReady(desired, deploy.Status.ReadyReplicas, deploy.Status.AvailableReplicas)
		if ready {
			readyCount++
		}

		conditions := map[string]string{}
		for _, cond := range deploy.Status.Conditions {
			conditions[string(cond.Type)] = string(cond.Status)
		}

		detail := map[string]interface{}{
			"found":             true,
			"ready":             ready,
			"desiredReplicas":   desired,
			"readyReplicas":     deploy.Status.ReadyReplicas,
			"availableReplicas": deploy.Status.AvailableReplicas,
			"conditions":        conditions,
		}
		if containers := deploy.Spec.Template.Spec.Containers; len(containers) > 0 {
			detail["image"] = containers[0].Image
			detail["resources"] = map[string]interface{}{
				"requests": resourceAmounts(containers[0].Resources.Requests),
				"limits":   resourceAmounts(containers[0].Resources.Limits),
			}
		}
		perDeployment[name] = detail
	}

	details := map[string]interface{}{
		"coverage":    coverage(readyCount, len(spec.Deployments)),
		"deployments": perDeployment,
	}
	if len(missing) > 0 {
		details["missing"] = missing
	}
	return aggregate(readyCount, len(spec.Deployments)), details, nil
}

func resourceAmounts(list corev1.ResourceList) map[string]string {
	amounts := make(map[string]string, len(list))
	for name, quantity := range list {
		amounts[string(name)] = quantity.String()
	}
	return amounts
}

func (p *Prober) checkServices(ctx context.Context) (string, map[string]interface{}, error) {
	spec := p.profile.Spec

	readyCount := 0
	missing := []string{}
	perService := map[string]interface{}{}
	for _, name := range spec.Services {
		svc, err := p.client.CoreV1().Services(spec.Namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				missing = append(missing, name)
				perService[name] = map[string]interface{}{"found": false}
				continue
			}
			return "", nil, fmt.Errorf("failed to get service %s: %w", name, err)
		}

		ports := make([]int32, 0, len(svc.Spec.Ports))
		for _, port := range svc.Spec.Ports {
			ports = append(ports, port.Port)
		}

		readyEndpoints, err := p.readyEndpoints(ctx, name)
		if err != nil {
			return "", nil, err
		}
		if readyEndpoints > 0 {
			readyCount++
		}

		perService[name] = map[string]interface{}{
			"found":          true,
			"clusterIP":      svc.Spec.ClusterIP,
			"ports":          ports,
			"readyEndpoints": readyEndpoints,
		}
	}

	details := map[string]interface{}{
		"coverage": coverage(readyCount, len(spec.Services)),
		"services": perService,
	}
	if len(missing) > 0 {
		details["missing"] = missing
	}
	return aggregate(readyCount, len(spec.Services)), details, nil
}

// readyEndpoints counts ready addresses across a service's endpoint subsets.
func (p *Prober) readyEndpoints(ctx context.Context, service string) (int, error) {
	endpoints, err := p.client.CoreV1().Endpoints(p.profile.Spec.Namespace).Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get endpoints %s: %w", service, err)
	}

	total := 0
	for _, subset := range endpoints.Subsets {
		total += len(subset.Addresses)
	}
	return total, nil
}

func (p *Prober) checkConfigMaps(ctx context.Context) (string, map[string]interface{}, error) {
	spec := p.profile.Spec

	foundCount := 0
	missing := []string{}
	perConfigMap := map[string]interface{}{}
	for _, name := range spec.ConfigMaps {
		cm, err := p.client.CoreV1().ConfigMaps(spec.Namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				missing = append(missing, name)
				perConfigMap[name] = map[string]interface{}{"found": false}
				continue
			}
			return "", nil, fmt.Errorf("failed to get configmap %s: %w", name, err)
		}
		foundCount++
		perConfigMap[name] = map[string]interface{}{
			"found": true,
			"keys":  len(cm.Data) + len(cm.BinaryData),
		}
	}

	details := map[string]interface{}{
		"coverage":   coverage(foundCount, len(spec.ConfigMaps)),
		"configmaps": perConfigMap,
	}
	if len(missing) > 0 {
		details["missing"] = missing
	}
	return aggregate(foundCount, len(spec.ConfigMaps)), details, nil
}

func (p *Prober) checkAutoscalers(ctx context.Context) (string, map[string]interface{}, error) {
	spec := p.profile.Spec

	hpas, err := p.client.AutoscalingV2().HorizontalPodAutoscalers(spec.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", nil, fmt.Errorf("failed to list autoscalers: %w", err)
	}

	withinBounds := 0
	perHPA := map[string]interface{}{}
	for _, hpa := range hpas.Items {
		minReplicas := int32(1)
		if hpa.Spec.MinReplicas != nil {
			minReplicas = *hpa.Spec.MinReplicas
		}
		if hpa.Status.CurrentReplicas >= minReplicas {
			withinBounds++
		}
		perHPA[hpa.Name] = map[string]interface{}{
			"target":          hpa.Spec.ScaleTargetRef.Name,
			"minReplicas":     minReplicas,
			"maxReplicas":     hpa.Spec.MaxReplicas,
			"currentReplicas": hpa.Status.CurrentReplicas,
			"desiredReplicas": hpa.Status.DesiredReplicas,
		}
	}

	details := map[string]interface{}{
		"coverage":    coverage(withinBounds, len(hpas.Items)),
		"autoscalers": perHPA,
	}
	return aggregate(withinBounds, len(hpas.Items)), details, nil
}

func (p *Prober) checkVolumeClaims(ctx context.Context) (string, map[string]interface{}, error) {
	spec := p.profile.Spec

	pvcs, err := p.client.CoreV1().PersistentVolumeClaims(spec.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return "", nil, fmt.Errorf("failed to list volume claims: %w", err)
	}

	bound := 0
	perPVC := map[string]interface{}{}
	for _, pvc := range pvcs.Items {
		if pvc.Status.Phase == corev1.ClaimBound {
			bound++
		}

		detail := map[string]interface{}{
			"phase": string(pvc.Status.Phase),
		}
		if pvc.Spec.StorageClassName != nil {
			detail["storageClass"] = *pvc.Spec.StorageClassName
		}
		if storage, ok := pvc.Spec.Resources.Requests[corev1.ResourceStorage]; ok {
			detail["requestedStorage"] = storage.String()
		}
		perPVC[pvc.Name] = detail
	}

	details := map[string]interface{}{
		"coverage": coverage(bound, len(pvcs.Items)),
		"claims":   perPVC,
	}
	return aggregate(bound, len(pvcs.Items)), details, nil
}
