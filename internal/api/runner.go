package api

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/railops/railsim_core/internal/cache"
	"github.com/railops/railsim_core/internal/db"
	"github.com/railops/railsim_core/internal/models"
	"github.com/railops/railsim_core/internal/sim"
	"github.com/railops/railsim_core/internal/snapshot"
)

// runSimulation executes one simulation run in the background, owning
// the record's queued -> running -> completed|failed|stopped transitions
// and publishing progress through the result cache for pollers.
func runSimulation(simulationID string, req SimulationRequest) {
	ctx := context.Background()
	cfg := cache.LoadConfigFromEnv()

	now := time.Now().UTC()
	rec := &models.SimulationRecord{
		SimulationID:    simulationID,
		Name:            req.Name,
		SimulationType:  req.SimulationType,
		Status:          models.RunRunning,
		DurationHours:   req.DurationHours,
		TimeStepSeconds: req.TimeStepSeconds,
		CreatedAt:       now,
		StartedAt:       &now,
	}
	publish := func() {
		if err := cache.SetSimulation(ctx, rec, cfg.RunTTL); err != nil {
			log.Printf("Simulation %s: failed to publish record: %v", simulationID, err)
		}
	}
	publish()

	fail := func(err error, result *sim.Result) {
		log.Printf("Simulation %s failed: %v", simulationID, err)
		done := time.Now().UTC()
		rec.Status = models.RunFailed
		rec.CompletedAt = &done
		rec.ErrorMessage = err.Error()
		if result != nil {
			// Keep whatever timeline accumulated before the failure
			rec.Results = resultToMap(result)
		}
		publish()
		cache.ClearStop(ctx, simulationID)
	}

	pool, err := db.GetDB()
	if err != nil {
		fail(err, nil)
		return
	}

	start := time.Now().UTC().Truncate(time.Second)
	windowEnd := start.Add(time.Duration(req.DurationHours) * time.Hour)

	snap, err := snapshot.Load(ctx, pool, start, windowEnd, req.IncludeTrainIDs, req.IncludeTrackIDs)
	if err != nil {
		fail(err, nil)
		return
	}

	seed := defaultSeed
	if req.Seed != nil {
		seed = *req.Seed
	}

	engine, err := sim.New(sim.Config{
		Type:          req.SimulationType,
		Start:         start,
		DurationHours: req.DurationHours,
		StepSeconds:   req.TimeStepSeconds,
		Parameters:    req.Parameters,
		Snapshot:      *snap,
		ScenarioData:  req.ScenarioData,
		Seed:          seed,
	})
	if err != nil {
		fail(err, nil)
		return
	}

	result, runErr := engine.Run(func(pct float64) bool {
		rec.ProgressPercentage = pct
		publish()

		stopped, err := cache.StopRequested(ctx, simulationID)
		if err != nil {
			log.Printf("Simulation %s: stop flag check failed: %v", simulationID, err)
			return true // degrade to running; the caller can retry the stop
		}
		return !stopped
	})
	if runErr != nil {
		fail(runErr, result)
		return
	}

	stopped, _ := cache.StopRequested(ctx, simulationID)

	done := time.Now().UTC()
	rec.CompletedAt = &done
	rec.Results = resultToMap(result)
	if stopped {
		rec.Status = models.RunStopped
	} else {
		rec.Status = models.RunCompleted
		rec.ProgressPercentage = 100
	}
	publish()
	cache.ClearStop(ctx, simulationID)

	log.Printf("Simulation %s finished with status %s (%d timeline entries)",
		simulationID, rec.Status, len(result.Timeline))
}

// resultToMap converts an engine result into the free-form results field
// of the cached record.
func resultToMap(result *sim.Result) map[string]interface{} {
	data, err := json.Marshal(result)
	if err != nil {
		log.Printf("Failed to marshal simulation result: %v", err)
		return nil
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		log.Printf("Failed to convert simulation result: %v", err)
		return nil
	}
	return m
}
