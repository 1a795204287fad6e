package types

import (
	"fmt"
	"time"
)

// Priority classifies a data source by business criticality.
type Priority string

const (
	// PriorityCritical is for sources that must never be stale during
	// market hours, like primary market data feeds.
	PriorityCritical Priority = "critical"
	// PriorityHigh is for secondary market data feeds.
	PriorityHigh Priority = "high"
	// PriorityMedium is for reference data.
	PriorityMedium Priority = "medium"
	// PriorityLow is for alternative data.
	PriorityLow Priority = "low"
)

// Validate returns error if Priority is not supported.
func (p Priority) Validate() error {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return nil
	default:
		return fmt.Errorf("unsupported priority %s", p)
	}
}

// Window represents the business processing window derived from wall-clock
// time.
type Window string

const (
	// WindowMarketHours covers weekdays between market open and close.
	WindowMarketHours Window = "market_hours_critical"
	// WindowOffHours covers weekday time outside market hours.
	WindowOffHours Window = "off_hours_standard"
	// WindowWeekend covers Saturday and Sunday.
	WindowWeekend Window = "weekend_maintenance"
)

// SLAMultiplier returns the factor applied to a source's base SLA in this
// window. SLAs tighten during market hours and relax on weekends.
func (w Window) SLAMultiplier() float64 {
	switch w {
	case WindowMarketHours:
		return 0.5
	case WindowWeekend:
		return 2.0
	default:
		return 1.0
	}
}

// SourceCategory groups data sources by the kind of feed they provide.
type SourceCategory string

const (
	// SourceCategoryMarket is live market data (prices, trades).
	SourceCategoryMarket SourceCategory = "market"
	// SourceCategoryReference is slowly-changing reference data.
	SourceCategoryReference SourceCategory = "reference"
	// SourceCategoryAlternative is non-core data like sentiment feeds.
	SourceCategoryAlternative SourceCategory = "alternative"
)

// Validate returns error if SourceCategory is not supported.
func (c SourceCategory) Validate() error {
	switch c {
	case SourceCategoryMarket, SourceCategoryReference, SourceCategoryAlternative:
		return nil
	default:
		return fmt.Errorf("unsupported source category %s", c)
	}
}

// SourceConfig describes one upstream data source.
type SourceConfig struct {
	// Name is the unique source name, used in workflow names.
	Name string `json:"name" yaml:"name"`
	// Category is the kind of feed.
	Category SourceCategory `json:"category" yaml:"category"`
	// Priority defines the business criticality.
	Priority Priority `json:"priority" yaml:"priority"`
	// SLAMinutes is the base freshness SLA before window adjustment.
	SLAMinutes int `json:"slaMinutes" yaml:"slaMinutes"`
	// URL is the upstream endpoint passed to the ingestion workflow.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// Type is the connector type passed to the ingestion workflow.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Validate verifies fields of SourceConfig.
func (s SourceConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := s.Category.Validate(); err != nil {
		return err
	}
	if err := s.Priority.Validate(); err != nil {
		return err
	}
	if s.SLAMinutes <= 0 {
		return fmt.Errorf("slaMinutes requires > 0: %v", s.SLAMinutes)
	}
	return nil
}

// BusinessHours defines when the market is open.
type BusinessHours struct {
	// MarketOpen is the opening time in HH:MM.
	MarketOpen string `json:"marketOpen" yaml:"marketOpen"`
	// MarketClose is the closing time in HH:MM.
	MarketClose string `json:"marketClose" yaml:"marketClose"`
	// Timezone is an IANA timezone name the hours are expressed in.
	Timezone string `json:"timezone" yaml:"timezone"`
}

// Validate verifies fields of BusinessHours.
func (h BusinessHours) Validate() error {
	open, err := time.Parse("15:04", h.MarketOpen)
	if err != nil {
		return fmt.Errorf("invalid marketOpen %q: %w", h.MarketOpen, err)
	}
	close, err := time.Parse("15:04", h.MarketClose)
	if err != nil {
		return fmt.Errorf("invalid marketClose %q: %w", h.MarketClose, err)
	}
	if !open.Before(close) {
		return fmt.Errorf("marketOpen %s must be before marketClose %s",
			h.MarketOpen, h.MarketClose)
	}
	if _, err := time.LoadLocation(h.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", h.Timezone, err)
	}
	return nil
}

// RetryPolicy defines how often a failed ingestion is retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"`
	// RetryDelayMinutes is the delay between attempts.
	RetryDelayMinutes int `json:"retryDelayMinutes" yaml:"retryDelayMinutes"`
}

// Validate verifies fields of RetryPolicy.
func (r RetryPolicy) Validate() error {
	if r.MaxRetries < 0 {
		return fmt.Errorf("maxRetries requires >= 0: %v", r.MaxRetries)
	}
	if r.RetryDelayMinutes < 0 {
		return fmt.Errorf("retryDelayMinutes requires >= 0: %v", r.RetryDelayMinutes)
	}
	return nil
}

// BusinessConfig defines the ingestion business rules: the source table,
// market hours and the retry policy per priority tier.
type BusinessConfig struct {
	// Version defines the version of this object.
	Version int `json:"version" yaml:"version"`
	// Description is a string value to describe this object.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Sources is the static table of known data sources.
	Sources []SourceConfig `json:"sources" yaml:"sources"`
	// BusinessHours defines the market hours window.
	BusinessHours BusinessHours `json:"businessHours" yaml:"businessHours"`
	// RetryPolicies maps priority tiers to retry behavior.
	RetryPolicies map[Priority]RetryPolicy `json:"retryPolicies" yaml:"retryPolicies"`
}

// Validate verifies fields of BusinessConfig.
func (c BusinessConfig) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("version should be 1")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	seen := make(map[string]struct{}, len(c.Sources))
	for idx, src := range c.Sources {
		if err := src.Validate(); err != nil {
			return fmt.Errorf("idx: %v source: %v", idx, err)
		}
		if _, ok := seen[src.Name]; ok {
			return fmt.Errorf("duplicate source name %s", src.Name)
		}
		seen[src.Name] = struct{}{}
	}

	if err := c.BusinessHours.Validate(); err != nil {
		return fmt.Errorf("businessHours: %v", err)
	}

	for _, src := range c.Sources {
		policy, ok := c.RetryPolicies[src.Priority]
		if !ok {
			return fmt.Errorf("missing retry policy for priority %s", src.Priority)
		}
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("retry policy %s: %v", src.Priority, err)
		}
	}
	return nil
}

// Source returns the source config by name.
func (c BusinessConfig) Source(name string) (SourceConfig, bool) {
	for _, src := range c.Sources {
		if src.Name == name {
			return src, true
		}
	}
	return SourceConfig{}, false
}

// PlanItem is one scheduled source in an ingestion plan.
type PlanItem struct {
	// Source is the data source name.
	Source string `json:"source" yaml:"source"`
	// Category is the source's category.
	Category SourceCategory `json:"category" yaml:"category"`
	// Priority is the source's priority tier.
	Priority Priority `json:"priority" yaml:"priority"`
	// SLADeadline is the window-adjusted deadline for this run.
	SLADeadline time.Time `json:"slaDeadline" yaml:"slaDeadline"`
	// Retry is the retry policy applied to this source's workflow.
	Retry RetryPolicy `json:"retry" yaml:"retry"`
}

// IngestionPlan is the output of business planning: which sources to process
// in the current window and by when.
type IngestionPlan struct {
	// Window is the business window the plan was computed for.
	Window Window `json:"window" yaml:"window"`
	// GeneratedAt is when the plan was computed.
	GeneratedAt time.Time `json:"generatedAt" yaml:"generatedAt"`
	// Items are the selected sources in table order.
	Items []PlanItem `json:"items" yaml:"items"`
}
