package schedule

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v2"
	"k8s.io/utils/clock"

	"github.com/vsem-svoim/basecap/api/types"
)

// defaultRetryPolicies is applied when the config omits a tier.
var defaultRetryPolicies = map[types.Priority]types.RetryPolicy{
	types.PriorityCritical: {MaxRetries: 5, RetryDelayMinutes: 1},
	types.PriorityHigh:     {MaxRetries: 3, RetryDelayMinutes: 5},
	types.PriorityMedium:   {MaxRetries: 2, RetryDelayMinutes: 15},
	types.PriorityLow:      {MaxRetries: 1, RetryDelayMinutes: 60},
}

// LoadConfig parses and validates a business config document.
func LoadConfig(data []byte) (*types.BusinessConfig, error) {
	cfg := types.BusinessConfig{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal business config: %w", err)
	}

	if cfg.RetryPolicies == nil {
		cfg.RetryPolicies = map[types.Priority]types.RetryPolicy{}
	}
	for priority, policy := range defaultRetryPolicies {
		if _, ok := cfg.RetryPolicies[priority]; !ok {
			cfg.RetryPolicies[priority] = policy
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SelectSources picks the sources to process in a window. Market hours focus
// on critical and high market feeds plus reference data, off hours process
// the full table, and weekends only touch alternative sources.
func SelectSources(cfg *types.BusinessConfig, window types.Window) []types.SourceConfig {
	selected := make([]types.SourceConfig, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		switch window {
		case types.WindowMarketHours:
			if src.Category == types.SourceCategoryMarket &&
				(src.Priority == types.PriorityCritical || src.Priority == types.PriorityHigh) {
				selected = append(selected, src)
			} else if src.Category == types.SourceCategoryReference {
				selected = append(selected, src)
			}
		case types.WindowWeekend:
			if src.Category == types.SourceCategoryAlternative {
				selected = append(selected, src)
			}
		default:
			selected = append(selected, src)
		}
	}
	return selected
}

// Deadline computes the window-adjusted SLA deadline for a named source.
// Unknown sources get a one hour default.
func Deadline(cfg *types.BusinessConfig, name string, window types.Window, now time.Time) time.Time {
	src, ok := cfg.Source(name)
	if !ok {
		return now.Add(time.Hour)
	}
	adjusted := int(float64(src.SLAMinutes) * window.SLAMultiplier())
	return now.Add(time.Duration(adjusted) * time.Minute)
}

// RetryPolicyFor returns the retry policy for a priority tier, falling back
// to the static defaults for tiers the config does not override.
func RetryPolicyFor(cfg *types.BusinessConfig, priority types.Priority) types.RetryPolicy {
	if policy, ok := cfg.RetryPolicies[priority]; ok {
		return policy
	}
	return defaultRetryPolicies[priority]
}

// Planner computes ingestion plans from a business config.
type Planner struct {
	cfg   *types.BusinessConfig
	clock clock.PassiveClock
}

// NewPlanner creates a Planner running on the real clock.
func NewPlanner(cfg *types.BusinessConfig) *Planner {
	return NewPlannerWithClock(cfg, clock.RealClock{})
}

// NewPlannerWithClock creates a Planner with an injected clock.
func NewPlannerWithClock(cfg *types.BusinessConfig, c clock.PassiveClock) *Planner {
	return &Planner{cfg: cfg, clock: c}
}

// BuildPlan classifies the current window, selects the sources it covers and
// attaches per-source deadlines and retry policies.
func (p *Planner) BuildPlan() (*types.IngestionPlan, error) {
	now := p.clock.Now()

	window, err := Classify(p.cfg.BusinessHours, now)
	if err != nil {
		return nil, fmt.Errorf("failed to classify window: %w", err)
	}

	sources := SelectSources(p.cfg, window)
	items := make([]types.PlanItem, 0, len(sources))
	for _, src := range sources {
		items = append(items, types.PlanItem{
			Source:      src.Name,
			Category:    src.Category,
			Priority:    src.Priority,
			SLADeadline: Deadline(p.cfg, src.Name, window, now),
			Retry:       RetryPolicyFor(p.cfg, src.Priority),
		})
	}

	return &types.IngestionPlan{
		Window:      window,
		GeneratedAt: now,
		Items:       items,
	}, nil
}
