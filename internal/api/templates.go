package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/railops/railsim_core/internal/models"
)

// ScenarioTemplate describes a predefined simulation scenario
type ScenarioTemplate struct {
	Name              string                 `json:"name"`
	Description       string                 `json:"description"`
	SimulationType    models.SimulationType  `json:"simulation_type"`
	DefaultParameters map[string]interface{} `json:"default_parameters"`
	RequiredInputs    []string               `json:"required_inputs"`
}

var scenarioTemplates = []ScenarioTemplate{
	{
		Name:           "Schedule Delay Impact",
		Description:    "Simulate the impact of schedule delays on the entire network",
		SimulationType: models.SimSchedule,
		DefaultParameters: map[string]interface{}{
			"delay_probability":     0.1,
			"average_delay_minutes": 15,
			"max_delay_minutes":     60,
			"cascade_effect":        true,
		},
		RequiredInputs: []string{"affected_schedules", "delay_duration"},
	},
	{
		Name:           "Track Maintenance Impact",
		Description:    "Simulate the impact of track maintenance on train operations",
		SimulationType: models.SimIncident,
		DefaultParameters: map[string]interface{}{
			"incident_probability": 0.2,
			"incident_types":       []string{"maintenance"},
			"repair_time_hours":    8,
		},
		RequiredInputs: []string{"track_id", "maintenance_start_time"},
	},
	{
		Name:           "Peak Hour Capacity",
		Description:    "Simulate train operations during peak hours with increased demand",
		SimulationType: models.SimCapacity,
		DefaultParameters: map[string]interface{}{
			"demand_multiplier":  1.5,
			"peak_hours":         []int{7, 8, 17, 18},
			"capacity_threshold": 0.9,
		},
		RequiredInputs: []string{"peak_hours", "demand_increase"},
	},
	{
		Name:           "Weather Impact",
		Description:    "Simulate the impact of adverse weather conditions on operations",
		SimulationType: models.SimWeather,
		DefaultParameters: map[string]interface{}{
			"weather_type":               "heavy_rain",
			"severity":                   "severe",
			"duration_hours":             4,
			"speed_reduction_percentage": 0.3,
		},
		RequiredInputs: []string{"weather_conditions", "affected_area"},
	},
	{
		Name:           "Equipment Failure",
		Description:    "Simulate the impact of train equipment failures",
		SimulationType: models.SimIncident,
		DefaultParameters: map[string]interface{}{
			"incident_probability": 0.05,
			"incident_types":       []string{"breakdown"},
			"repair_time_hours":    2,
		},
		RequiredInputs: []string{"train_id", "failure_type"},
	},
}

// ScenarioTemplates handles GET /v2/simulations/templates
func ScenarioTemplates(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"templates": scenarioTemplates,
	})
}
