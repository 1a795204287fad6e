package helmcli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyValues(t *testing.T) {
	for idx, tc := range []struct {
		from     map[string]interface{}
		to       map[string]interface{}
		expected map[string]interface{}
	}{
		{
			from: map[string]interface{}{
				"namespace": "basecap-feeds",
				"feed": map[string]interface{}{
					"namePattern": "feed-%d",
				},
			},
			to: map[string]interface{}{
				"namespace": "default",
				"feed": map[string]interface{}{
					"namePattern":  "market-%d",
					"paddingBytes": "1024",
				},
			},
			expected: map[string]interface{}{
				"namespace": "basecap-feeds",
				"feed": map[string]interface{}{
					"namePattern":  "feed-%d",
					"paddingBytes": "1024",
				},
			},
		},
		{
			from: map[string]interface{}{
				"namespace": "basecap-feeds",
				"feed":      "disabled",
			},
			to: map[string]interface{}{
				"namespace": "basecap-feeds",
				"feed": map[string]interface{}{
					"namePattern": "feed-%d",
				},
			},
			expected: map[string]interface{}{
				"namespace": "basecap-feeds",
				"feed":      "disabled",
			},
		},
		{
			from: map[string]interface{}{
				"total": 10,
				"feed": map[string]interface{}{
					"namePattern": "feed-%d",
				},
			},
			to: map[string]interface{}{
				"replica": 1,
			},
			expected: map[string]interface{}{
				"total": 10,
				"feed": map[string]interface{}{
					"namePattern": "feed-%d",
				},
				"replica": 1,
			},
		},
		{
			from: map[string]interface{}{
				"feed": map[string]interface{}{
					"resources": map[string]interface{}{
						"cpu":    "100m",
						"memory": "64Mi",
					},
				},
				"replica": 2,
			},
			to: map[string]interface{}{
				"total": 10,
				"feed": map[string]interface{}{
					"resources":   "none",
					"namePattern": "feed-%d",
				},
			},
			expected: map[string]interface{}{
				"total": 10,
				"feed": map[string]interface{}{
					"resources": map[string]interface{}{
						"cpu":    "100m",
						"memory": "64Mi",
					},
					"namePattern": "feed-%d",
				},
				"replica": 2,
			},
		},
	} {
		err := applyValues(tc.to, tc.from)
		assert.NoError(t, err, "#%v", idx)
		assert.Equal(t, tc.expected, tc.to, "#%v", idx)
	}
}

func TestStringPathValuesApplier(t *testing.T) {
	to := map[string]interface{}{
		"namespace": "default",
	}

	err := StringPathValuesApplier("namespace=basecap-feeds", "feed.namePattern=feed-%d")(to)
	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"namespace": "basecap-feeds",
		"feed": map[string]interface{}{
			"namePattern": "feed-%d",
		},
	}, to)
}
