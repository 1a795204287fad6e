package types

import "fmt"

// ProbeProfile defines what a component's Kubernetes footprint should look
// like: the namespace it lives in and the resources expected there.
type ProbeProfile struct {
	// Version defines the version of this object.
	Version int `json:"version" yaml:"version"`
	// Description is a string value to describe this object.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Spec defines the expected footprint.
	Spec ProbeSpec `json:"spec" yaml:"spec"`
}

// ProbeSpec lists the expected resources of one platform component.
type ProbeSpec struct {
	// Namespace is the component's namespace.
	Namespace string `json:"namespace" yaml:"namespace"`
	// Component is the component name, like data-quality.
	Component string `json:"component" yaml:"component"`
	// Deployments are the expected deployment names (agents, models,
	// orchestrators).
	Deployments []string `json:"deployments" yaml:"deployments"`
	// Services are the expected service names.
	Services []string `json:"services,omitempty" yaml:"services,omitempty"`
	// ConfigMaps are the expected configmap names.
	ConfigMaps []string `json:"configMaps,omitempty" yaml:"configMaps,omitempty"`
}

// Validate verifies fields of ProbeProfile.
func (p ProbeProfile) Validate() error {
	if p.Version != 1 {
		return fmt.Errorf("version should be 1")
	}
	return p.Spec.Validate()
}

// Validate verifies fields of ProbeSpec.
func (spec ProbeSpec) Validate() error {
	if spec.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if spec.Component == "" {
		return fmt.Errorf("component is required")
	}
	if len(spec.Deployments) == 0 {
		return fmt.Errorf("at least one expected deployment is required")
	}
	return nil
}
