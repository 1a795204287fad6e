package types

import "fmt"

// KubeGroupVersionResource identifies the resource URI.
type KubeGroupVersionResource struct {
	// Group is the name about a collection of related functionality.
	Group string `json:"group" yaml:"group"`
	// Version is a version of that group.
	Version string `json:"version" yaml:"version"`
	// Resource is a type in that versioned group APIs.
	Resource string `json:"resource" yaml:"resource"`
}

// Validate validates KubeGroupVersionResource.
func (m *KubeGroupVersionResource) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if m.Resource == "" {
		return fmt.Errorf("resource is required")
	}
	return nil
}

// CapabilitySuite defines one capability measurement suite: how many samples
// to take against a component and what each sample looks like.
type CapabilitySuite struct {
	// Version defines the version of this object.
	Version int `json:"version" yaml:"version"`
	// Name is the suite name used as report key.
	Name string `json:"name" yaml:"name"`
	// Description is a string value to describe this object.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Spec defines behavior of the suite.
	Spec CapabilitySpec `json:"spec" yaml:"spec"`
}

// CapabilitySpec defines the sampling traffic for the target component.
type CapabilitySpec struct {
	// Rate defines the maximum samples per second (zero is no limit).
	Rate float64 `json:"rate" yaml:"rate"`
	// Total defines the total number of samples.
	Total int `json:"total" yaml:"total"`
	// Conns defines total number of long connections used for traffic.
	Conns int `json:"conns" yaml:"conns"`
	// Client defines total number of concurrent clients.
	Client int `json:"client" yaml:"client"`
	// Checks defines the different kinds of checks with weights.
	// The engine randomly picks by weight.
	Checks []*WeightedCheck `json:"checks" yaml:"checks"`
}

// WeightedCheck represents a check with weight.
// Only one of the check types may be specified.
type WeightedCheck struct {
	// Shares defines weight in the same group.
	Shares int `json:"shares" yaml:"shares"`
	// APIGet reads one object from the kube-apiserver.
	APIGet *CheckAPIGet `json:"apiGet,omitempty" yaml:"apiGet,omitempty"`
	// APIList lists objects from the kube-apiserver.
	APIList *CheckAPIList `json:"apiList,omitempty" yaml:"apiList,omitempty"`
	// HTTPGet probes a component endpoint over plain HTTP.
	HTTPGet *CheckHTTPGet `json:"httpGet,omitempty" yaml:"httpGet,omitempty"`
}

// CheckAPIGet defines a GET sample for a target object.
type CheckAPIGet struct {
	// KubeGroupVersionResource identifies the resource URI.
	KubeGroupVersionResource `yaml:",inline"`
	// Namespace is object's namespace.
	Namespace string `json:"namespace" yaml:"namespace"`
	// Name is object's name.
	Name string `json:"name" yaml:"name"`
}

// CheckAPIList defines a LIST sample for target objects.
type CheckAPIList struct {
	// KubeGroupVersionResource identifies the resource URI.
	KubeGroupVersionResource `yaml:",inline"`
	// Namespace is object's namespace.
	Namespace string `json:"namespace" yaml:"namespace"`
	// Limit defines the page size.
	Limit int `json:"limit" yaml:"limit"`
	// Selector defines how to identify a set of objects.
	Selector string `json:"selector" yaml:"selector"`
}

// CheckHTTPGet defines an HTTP GET sample against a component endpoint,
// typically an agent's health or readiness path.
type CheckHTTPGet struct {
	// URL is the endpoint to probe.
	URL string `json:"url" yaml:"url"`
}

// Validate verifies fields of CapabilitySuite.
func (s CapabilitySuite) Validate() error {
	if s.Version != 1 {
		return fmt.Errorf("version should be 1")
	}
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.Spec.Validate()
}

// Validate verifies fields of CapabilitySpec.
func (spec CapabilitySpec) Validate() error {
	if spec.Conns <= 0 {
		return fmt.Errorf("conns requires > 0: %v", spec.Conns)
	}
	if spec.Rate < 0 {
		return fmt.Errorf("rate requires >= 0: %v", spec.Rate)
	}
	if spec.Total <= 0 {
		return fmt.Errorf("total requires > 0: %v", spec.Total)
	}
	if spec.Client <= 0 {
		return fmt.Errorf("client requires > 0: %v", spec.Client)
	}
	if len(spec.Checks) == 0 {
		return fmt.Errorf("at least one check is required")
	}
	for idx, check := range spec.Checks {
		if err := check.Validate(); err != nil {
			return fmt.Errorf("idx: %v check: %v", idx, err)
		}
	}
	return nil
}

// Validate verifies fields of WeightedCheck.
func (c WeightedCheck) Validate() error {
	if c.Shares < 0 {
		return fmt.Errorf("shares(%v) requires >= 0", c.Shares)
	}

	switch {
	case c.APIGet != nil:
		return c.APIGet.Validate()
	case c.APIList != nil:
		return c.APIList.Validate()
	case c.HTTPGet != nil:
		return c.HTTPGet.Validate()
	default:
		return fmt.Errorf("empty check value")
	}
}

// Validate validates CheckAPIGet type.
func (c *CheckAPIGet) Validate() error {
	if err := c.KubeGroupVersionResource.Validate(); err != nil {
		return fmt.Errorf("kube metadata: %v", err)
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// Validate validates CheckAPIList type.
func (c *CheckAPIList) Validate() error {
	if err := c.KubeGroupVersionResource.Validate(); err != nil {
		return fmt.Errorf("kube metadata: %v", err)
	}
	if c.Limit < 0 {
		return fmt.Errorf("limit must >= 0")
	}
	return nil
}

// Validate validates CheckHTTPGet type.
func (c *CheckHTTPGet) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}
