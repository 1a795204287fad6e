package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/vsem-svoim/basecap/api/types"
)

func testProfile() *types.ProbeProfile {
	return &types.ProbeProfile{
		Version: 1,
		Spec: types.ProbeSpec{
			Namespace:   "base-data-acquisition",
			Component:   "data-acquisition",
			Deployments: []string{"acquisition-orchestrator", "acquisition-agent"},
			Services:    []string{"acquisition-orchestrator"},
			ConfigMaps:  []string{"acquisition-config"},
		},
	}
}

func namespaceObj(name string) *corev1.Namespace {
	return &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: map[string]string{"platform": "base"},
		},
		Status: corev1.NamespaceStatus{Phase: corev1.NamespaceActive},
	}
}

func deploymentObj(ns, name string, desired, ready, available int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: name},
		Spec: appsv1.DeploymentSpec{
			Replicas: &desired,
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  name,
							Image: "base/" + name + ":latest",
							Resources: corev1.ResourceRequirements{
								Requests: corev1.ResourceList{
									corev1.ResourceCPU: resource.MustParse("100m"),
								},
							},
						},
					},
				},
			},
		},
		Status: appsv1.DeploymentStatus{
			ReadyReplicas:     ready,
			AvailableReplicas: available,
			Conditions: []appsv1.DeploymentCondition{
				{Type: appsv1.DeploymentAvailable, Status: corev1.ConditionTrue},
			},
		},
	}
}

func serviceObj(ns, name string, readyAddresses int) []runtime.Object {
	addresses := make([]corev1.EndpointAddress, readyAddresses)
	for i := range addresses {
		addresses[i] = corev1.EndpointAddress{IP: "10.0.0.1"}
	}
	return []runtime.Object{
		&corev1.Service{
			ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: name},
			Spec: corev1.ServiceSpec{
				ClusterIP: "10.96.0.10",
				Ports:     []corev1.ServicePort{{Port: 8080}},
			},
		},
		&corev1.Endpoints{
			ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: name},
			Subsets:    []corev1.EndpointSubset{{Addresses: addresses}},
		},
	}
}

func TestProbeAllHealthy(t *testing.T) {
	profile := testProfile()
	ns := profile.Spec.Namespace

	objects := []runtime.Object{
		namespaceObj(ns),
		deploymentObj(ns, "acquisition-orchestrator", 2, 2, 2),
		deploymentObj(ns, "acquisition-agent", 1, 1, 1),
		&corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: "acquisition-config"},
			Data:       map[string]string{"sources.yaml": "..."},
		},
	}
	objects = append(objects, serviceObj(ns, "acquisition-orchestrator", 2)...)

	prober := NewProber(fake.NewSimpleClientset(objects...), profile)
	results := prober.Run(context.Background())

	require.Len(t, results, 6)
	assert.Equal(t, types.StatusHealthy, results["namespace"].Status)
	assert.Equal(t, types.StatusHealthy, results["deployments"].Status)
	assert.Equal(t, types.StatusHealthy, results["services"].Status)
	assert.Equal(t, types.StatusHealthy, results["configmaps"].Status)
	// nothing deployed to scale or mount
	assert.Equal(t, types.StatusSkipped, results["autoscalers"].Status)
	assert.Equal(t, types.StatusSkipped, results["volumes"].Status)

	assert.Equal(t, "2/2", results["deployments"].Results["coverage"])
	assert.Equal(t, "1/1", results["services"].Results["coverage"])
}

func TestProbeDeploymentsPartial(t *testing.T) {
	profile := testProfile()
	profile.Spec.Deployments = []string{
		"acquisition-orchestrator", "acquisition-agent", "acquisition-model",
	}
	ns := profile.Spec.Namespace

	client := fake.NewSimpleClientset(
		namespaceObj(ns),
		deploymentObj(ns, "acquisition-orchestrator", 2, 2, 2),
		// one replica still unavailable
		deploymentObj(ns, "acquisition-agent", 2, 2, 1),
	)

	prober := NewProber(client, profile)
	results := prober.Run(context.Background())

	deployments := results["deployments"]
	assert.Equal(t, types.StatusPartial, deployments.Status)
	assert.Equal(t, "1/3", deployments.Results["coverage"])
	assert.Equal(t, []string{"acquisition-model"}, deployments.Results["missing"])

	perDeployment := deployments.Results["deployments"].(map[string]interface{})
	agent := perDeployment["acquisition-agent"].(map[string]interface{})
	assert.Equal(t, false, agent["ready"])
	model := perDeployment["acquisition-model"].(map[string]interface{})
	assert.Equal(t, false, model["found"])
}

func TestProbeNamespaceMissing(t *testing.T) {
	prober := NewProber(fake.NewSimpleClientset(), testProfile())
	results := prober.Run(context.Background())

	namespace := results["namespace"]
	assert.Equal(t, types.StatusUnhealthy, namespace.Status)
	assert.Equal(t, false, namespace.Results["exists"])
	assert.Equal(t, types.StatusUnhealthy, results["deployments"].Status)
}

func TestProbeServiceWithoutEndpoints(t *testing.T) {
	profile := testProfile()
	ns := profile.Spec.Namespace

	client := fake.NewSimpleClientset(
		namespaceObj(ns),
		&corev1.Service{
			ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: "acquisition-orchestrator"},
			Spec:       corev1.ServiceSpec{ClusterIP: "10.96.0.10"},
		},
	)

	prober := NewProber(client, profile)
	results := prober.Run(context.Background())
	assert.Equal(t, types.StatusUnhealthy, results["services"].Status)
}

func TestProbeAutoscalersAndVolumes(t *testing.T) {
	profile := testProfile()
	ns := profile.Spec.Namespace
	minReplicas := int32(2)

	client := fake.NewSimpleClientset(
		namespaceObj(ns),
		&autoscalingv2.HorizontalPodAutoscaler{
			ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: "acquisition-agent"},
			Spec: autoscalingv2.HorizontalPodAutoscalerSpec{
				ScaleTargetRef: autoscalingv2.CrossVersionObjectReference{
					Name: "acquisition-agent",
				},
				MinReplicas: &minReplicas,
				MaxReplicas: 10,
			},
			Status: autoscalingv2.HorizontalPodAutoscalerStatus{
				CurrentReplicas: 3,
				DesiredReplicas: 3,
			},
		},
		&corev1.PersistentVolumeClaim{
			ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: "acquisition-cache"},
			Spec: corev1.PersistentVolumeClaimSpec{
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceStorage: resource.MustParse("10Gi"),
					},
				},
			},
			Status: corev1.PersistentVolumeClaimStatus{
				Phase: corev1.ClaimBound,
			},
		},
	)

	prober := NewProber(client, profile)
	results := prober.Run(context.Background())

	autoscalers := results["autoscalers"]
	assert.Equal(t, types.StatusHealthy, autoscalers.Status)
	perHPA := autoscalers.Results["autoscalers"].(map[string]interface{})
	agent := perHPA["acquisition-agent"].(map[string]interface{})
	assert.Equal(t, int32(3), agent["currentReplicas"])

	volumes := results["volumes"]
	assert.Equal(t, types.StatusHealthy, volumes.Status)
	perPVC := volumes.Results["claims"].(map[string]interface{})
	cache := perPVC["acquisition-cache"].(map[string]interface{})
	assert.Equal(t, "Bound", cache["phase"])
	assert.Equal(t, "10Gi", cache["requestedStorage"])
}

func TestAggregate(t *testing.T) {
	assert.Equal(t, types.StatusSkipped, aggregate(0, 0))
	assert.Equal(t, types.StatusHealthy, aggregate(3, 3))
	assert.Equal(t, types.StatusPartial, aggregate(1, 3))
	assert.Equal(t, types.StatusUnhealthy, aggregate(0, 3))
}

func TestLoadProfile(t *testing.T) {
	profile, err := LoadProfile([]byte(`
version: 1
description: data acquisition footprint
spec:
  namespace: base-data-acquisition
  component: data-acquisition
  deployments:
  - acquisition-orchestrator
  services:
  - acquisition-orchestrator
`))
	require.NoError(t, err)
	assert.Equal(t, "base-data-acquisition", profile.Spec.Namespace)

	_, err = LoadProfile([]byte("version: 2"))
	assert.Error(t, err)

	_, err = LoadProfile([]byte(`
version: 1
spec:
  namespace: base-data-acquisition
  component: data-acquisition
`))
	assert.Error(t, err)
}
