package probe

import (
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/vsem-svoim/basecap/api/types"
)

// LoadProfile parses and validates a component probe profile document.
func LoadProfile(data []byte) (*types.ProbeProfile, error) {
	profile := types.ProbeProfile{}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal probe profile: %w", err)
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &profile, nil
}
