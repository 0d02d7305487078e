package api

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelineCSV(t *testing.T) {
	results := map[string]interface{}{
		"timeline": []interface{}{
			map[string]interface{}{
				"time": "2025-01-06T06:00:00Z",
				"metrics": map[string]interface{}{
					"active_trains": 2.0,
					"average_delay": 1.5,
					"capacity": map[string]interface{}{
						"used_capacity":        150.0,
						"capacity_utilization": 75.0,
					},
				},
			},
			map[string]interface{}{
				"time": "2025-01-06T06:01:00Z",
				"metrics": map[string]interface{}{
					"active_trains": 3.0,
				},
			},
		},
	}

	out, err := timelineCSV(results)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 6)
	assert.Equal(t, []string{"timestamp", "metric", "value"}, records[0])

	// Metrics within a tick come out in sorted key order; nested sections
	// are flattened with a dotted prefix.
	assert.Equal(t, []string{"2025-01-06T06:00:00Z", "active_trains", "2"}, records[1])
	assert.Equal(t, []string{"2025-01-06T06:00:00Z", "average_delay", "1.5"}, records[2])
	assert.Equal(t, []string{"2025-01-06T06:00:00Z", "capacity.capacity_utilization", "75"}, records[3])
	assert.Equal(t, []string{"2025-01-06T06:00:00Z", "capacity.used_capacity", "150"}, records[4])
	assert.Equal(t, []string{"2025-01-06T06:01:00Z", "active_trains", "3"}, records[5])
}

func TestTimelineCSVErrors(t *testing.T) {
	t.Run("missing timeline", func(t *testing.T) {
		_, err := timelineCSV(map[string]interface{}{"summary": map[string]interface{}{}})
		assert.Error(t, err)
	})

	t.Run("malformed entries are skipped", func(t *testing.T) {
		out, err := timelineCSV(map[string]interface{}{
			"timeline": []interface{}{
				"not an object",
				map[string]interface{}{"time": "2025-01-06T06:00:00Z"}, // no metrics
			},
		})
		require.NoError(t, err)

		records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
		require.NoError(t, err)
		assert.Len(t, records, 1) // header only
	})
}

func TestSortedKeys(t *testing.T) {
	m := map[string]interface{}{"c": 1, "a": 2, "b": 3}
	assert.Equal(t, []string{"a", "b", "c"}, sortedKeys(m))
	assert.Empty(t, sortedKeys(map[string]interface{}{}))
}
