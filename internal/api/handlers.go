package api

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/railops/railsim_core/internal/cache"
	"github.com/railops/railsim_core/internal/db"
	"github.com/railops/railsim_core/internal/models"
	"github.com/railops/railsim_core/internal/sim"
	"github.com/railops/railsim_core/internal/snapshot"
)

// SimulationRequest is the payload accepted by the start endpoint
type SimulationRequest struct {
	Name            string                 `json:"name"`
	SimulationType  models.SimulationType  `json:"simulation_type"`
	DurationHours   int                    `json:"duration_hours"`
	TimeStepSeconds float64                `json:"time_step_seconds"`
	Parameters      sim.Parameters         `json:"parameters"`
	IncludeTrainIDs []int64                `json:"include_train_ids,omitempty"`
	IncludeTrackIDs []int64                `json:"include_track_ids,omitempty"`
	ScenarioData    map[string]interface{} `json:"scenario_data,omitempty"`
	Seed            *int64                 `json:"seed,omitempty"`
}

// defaultSeed keeps unseeded runs reproducible
const defaultSeed int64 = 42

func (r *SimulationRequest) normalize() {
	if r.DurationHours == 0 {
		r.DurationHours = 24
	}
	if r.TimeStepSeconds == 0 {
		r.TimeStepSeconds = 60
	}
}

func (r *SimulationRequest) validate() error {
	if r.Name == "" || len(r.Name) > 100 {
		return fmt.Errorf("name must be between 1 and 100 characters")
	}
	if !r.SimulationType.Valid() {
		return fmt.Errorf("simulation_type must be one of schedule, incident, capacity, weather")
	}
	if r.DurationHours < sim.MinDurationHours || r.DurationHours > sim.MaxDurationHours {
		return fmt.Errorf("duration_hours must be between %d and %d", sim.MinDurationHours, sim.MaxDurationHours)
	}
	if r.TimeStepSeconds < sim.MinStepSeconds || r.TimeStepSeconds > sim.MaxStepSeconds {
		return fmt.Errorf("time_step_seconds must be between %.0f and %.0f", sim.MinStepSeconds, sim.MaxStepSeconds)
	}
	return nil
}

// StartSimulation handles POST /v2/simulations
func StartSimulation(c *fiber.Ctx) error {
	var req SimulationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
	}

	req.normalize()
	if err := req.validate(); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	ctx := c.Context()

	// Reject references to unknown entities before queueing anything
	pool, err := db.GetDB()
	if err != nil {
		log.Printf("Database error: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
	if ok, err := snapshot.TrainsExist(ctx, pool, req.IncludeTrainIDs); err != nil {
		log.Printf("Train lookup error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	} else if !ok {
		return c.Status(400).JSON(fiber.Map{
			"error": "some specified trains are not found",
		})
	}
	if ok, err := snapshot.TracksExist(ctx, pool, req.IncludeTrackIDs); err != nil {
		log.Printf("Track lookup error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	} else if !ok {
		return c.Status(400).JSON(fiber.Map{
			"error": "some specified tracks are not found",
		})
	}

	rec := &models.SimulationRecord{
		SimulationID:    uuid.New().String(),
		Name:            req.Name,
		SimulationType:  req.SimulationType,
		Status:          models.RunQueued,
		DurationHours:   req.DurationHours,
		TimeStepSeconds: req.TimeStepSeconds,
		CreatedAt:       time.Now().UTC(),
	}

	runTTL := cache.LoadConfigFromEnv().RunTTL
	if err := cache.SetSimulation(ctx, rec, runTTL); err != nil {
		log.Printf("Failed to publish simulation record: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	go runSimulation(rec.SimulationID, req)

	log.Printf("Started simulation %s (%s, %dh)", rec.SimulationID, req.SimulationType, req.DurationHours)
	return c.Status(202).JSON(rec)
}

// GetSimulationStatus handles GET /v2/simulations/:id
func GetSimulationStatus(c *fiber.Ctx) error {
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

	return c.JSON(rec)
}

// StopSimulation handles POST /v2/simulations/:id/stop
func StopSimulation(c *fiber.Ctx) error {
	ctx := c.Context()
	id := c.Params("id")

	rec, err := cache.GetSimulation(ctx, id)
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

	if rec.Status != models.RunQueued && rec.Status != models.RunRunning {
		return c.Status(400).JSON(fiber.Map{
			"error": "simulation is not running",
		})
	}

	cfg := cache.LoadConfigFromEnv()
	if err := cache.RequestStop(ctx, id, cfg.StopTTL); err != nil {
		log.Printf("Failed to set stop flag: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	log.Printf("Stop requested for simulation %s", id)
	return c.JSON(fiber.Map{
		"message": "simulation stop requested",
	})
}

// SimulationHistory handles GET /v2/simulations
func SimulationHistory(c *fiber.Ctx) error {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 100 {
				limit = 100
			}
		}
	}
	typeFilter := models.SimulationType(c.Query("type"))

	records, err := cache.ListSimulations(c.Context())
	if err != nil {
		log.Printf("Cache error: %v", err)
		return c.Status(500).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	filtered := make([]models.SimulationRecord, 0, len(records))
	for _, rec := range records {
		if typeFilter != "" && rec.SimulationType != typeFilter {
			continue
		}
		filtered = append(filtered, rec)
		if len(filtered) >= limit {
			break
		}
	}

	return c.JSON(fiber.Map{
		"simulations": filtered,
		"total":       len(filtered),
	})
}

// Health handles the /health endpoint
func Health(c *fiber.Ctx) error {
	ctx := c.Context()

	dbErr := db.HealthCheck(ctx)
	dbStatus := "ok"
	if dbErr != nil {
		dbStatus = dbErr.Error()
	}

	redisErr := cache.HealthCheck(ctx)
	redisStatus := "ok"
	if redisErr != nil {
		redisStatus = redisErr.Error()
	}

	status := "healthy"
	httpStatus := 200
	if dbErr != nil || redisErr != nil {
		status = "unhealthy"
		httpStatus = 503
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}
