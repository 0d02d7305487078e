package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/railops/railsim_core/internal/cache"
	"github.com/railops/railsim_core/internal/models"
)

// ExportResults handles GET /v2/simulations/:id/export
func ExportResults(c *fiber.Ctx) error {
	format := c.Query("format", "json")
	if format != "json" && format != "csv" {
		return c.Status(400).JSON(fiber.Map{
			"error": "format must be json or csv",
		})
	}

	rec, err := cache.GetSimulation(c.Context(), c.Params("id"))
	if err != nil {
		log.Printf("Cache error: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	if rec == nil {
		return c.Status(404).JSON(fiber.Map{
			"error": "simulation not found or expired",
		})
	}

	if rec.Status != models.RunCompleted || rec.Results == nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "simulation not completed or no results available",
		})
	}

	if format == "json" {
		return c.JSON(fiber.Map{
			"simulation_info": fiber.Map{
				"id":             rec.SimulationID,
				"name":           rec.Name,
				"type":           rec.SimulationType,
				"duration_hours": rec.DurationHours,
				"completed_at":   rec.CompletedAt,
			},
			"results": rec.Results,
		})
	}

	data, err := timelineCSV(rec.Results)
	if err != nil {
		log.Printf("CSV export error: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "failed to export results",
		})
	}

	return c.JSON(fiber.Map{
		"format": "csv",
		"data":   data,
	})
}

// timelineCSV flattens the result timeline to (timestamp, metric, value)
// rows. Metric columns are emitted in sorted order so identical results
// export identically.
func timelineCSV(results map[string]interface{}) (string, error) {
	timeline, ok := results["timeline"].([]interface{})
	if !ok {
		return "", fmt.Errorf("results contain no timeline")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"timestamp", "metric", "value"}); err != nil {
		return "", err
	}

	for _, raw := range timeline {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		timestamp, _ := entry["time"].(string)
		metrics, ok := entry["metrics"].(map[string]interface{})
		if !ok {
			continue
		}

		for _, key := range sortedKeys(metrics) {
			switch v := metrics[key].(type) {
			case map[string]interface{}:
				// Type-specific sections are flattened with a prefix
				for _, sub := range sortedKeys(v) {
					row := []string{timestamp, key + "." + sub, fmt.Sprintf("%v", v[sub])}
					if err := w.Write(row); err != nil {
						return "", err
					}
				}
			default:
				if err := w.Write([]string{timestamp, key, fmt.Sprintf("%v", v)}); err != nil {
					return "", err
				}
			}
		}
	}

	w.Flush()
	return buf.String(), w.Error()
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
