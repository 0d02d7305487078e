package api

import (
	"strings"
	"testing"

	"github.com/railops/railsim_core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationRequestNormalize(t *testing.T) {
	req := SimulationRequest{Name: "test", SimulationType: models.SimSchedule}
	req.normalize()

	assert.Equal(t, 24, req.DurationHours)
	assert.Equal(t, 60.0, req.TimeStepSeconds)

	// Explicit values survive
	req = SimulationRequest{DurationHours: 2, TimeStepSeconds: 300}
	req.normalize()
	assert.Equal(t, 2, req.DurationHours)
	assert.Equal(t, 300.0, req.TimeStepSeconds)
}

func TestSimulationRequestValidate(t *testing.T) {
	valid := SimulationRequest{
		Name:            "Morning rush analysis",
		SimulationType:  models.SimCapacity,
		DurationHours:   24,
		TimeStepSeconds: 60,
	}

	tests := []struct {
		name    string
		mutate  func(r *SimulationRequest)
		wantErr string
	}{
		{"valid request", func(r *SimulationRequest) {}, ""},
		{"empty name", func(r *SimulationRequest) { r.Name = "" }, "name"},
		{"name too long", func(r *SimulationRequest) { r.Name = strings.Repeat("x", 101) }, "name"},
		{"unknown type", func(r *SimulationRequest) { r.SimulationType = "chaos" }, "simulation_type"},
		{"duration too long", func(r *SimulationRequest) { r.DurationHours = 200 }, "duration_hours"},
		{"negative duration", func(r *SimulationRequest) { r.DurationHours = -1 }, "duration_hours"},
		{"step too small", func(r *SimulationRequest) { r.TimeStepSeconds = 0.5 }, "time_step_seconds"},
		{"step too large", func(r *SimulationRequest) { r.TimeStepSeconds = 7200 }, "time_step_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestScenarioTemplatesWellFormed(t *testing.T) {
	require.NotEmpty(t, scenarioTemplates)

	names := make(map[string]bool)
	for _, tpl := range scenarioTemplates {
		assert.NotEmpty(t, tpl.Name)
		assert.NotEmpty(t, tpl.Description)
		assert.True(t, tpl.SimulationType.Valid(), "template %q has invalid type", tpl.Name)
		assert.NotEmpty(t, tpl.DefaultParameters, "template %q has no defaults", tpl.Name)
		assert.False(t, names[tpl.Name], "duplicate template name %q", tpl.Name)
		names[tpl.Name] = true
	}
}
