package models

import "time"

// SimulationType selects which dynamics drive a simulation run
type SimulationType string

const (
	SimSchedule SimulationType = "schedule"
	SimIncident SimulationType = "incident"
	SimCapacity SimulationType = "capacity"
	SimWeather  SimulationType = "weather"
)

// Valid reports whether t is a recognized simulation type
func (t SimulationType) Valid() bool {
	switch t {
	case SimSchedule, SimIncident, SimCapacity, SimWeather:
		return true
	}
	return false
}

// RunStatus represents the lifecycle state of a simulation run
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunStopped   RunStatus = "stopped"
)

// Train represents a train record from storage
type Train struct {
	ID              int64
	TrainNumber     string
	Name            string
	Capacity        int     // passengers
	MaxSpeed        float64 // km/h
	CurrentLocation string
	CreatedAt       time.Time
}

// Track represents a track record from storage
type Track struct {
	ID              int64
	TrackNumber     string
	Name            string
	Length          float64 // km
	MaxSpeed        float64 // km/h
	CapacityPerHour int     // trains per hour
	CreatedAt       time.Time
}

// Schedule represents a planned service record from storage
type Schedule struct {
	ID                 int64
	ScheduleNumber     string
	TrainID            int64
	TrackID            int64
	DepartureStationID int64
	ArrivalStationID   int64
	ScheduledDeparture time.Time
	ScheduledArrival   time.Time
	Distance           float64 // km
	EstimatedDuration  int     // minutes
	PassengerCapacity  int
	PassengerCount     int
	Priority           int // 1-10 scale
	CreatedAt          time.Time
}

// Snapshot is the immutable per-run copy of entity records that seeds
// a simulation run. It is never mutated after the world is initialized;
// the engine computes all deltas against this baseline.
type Snapshot struct {
	Schedules []Schedule
	Trains    []Train
	Tracks    []Track
}

// SimulationRecord is the run record published to the result cache for
// status polling. Results is nil until the run completes.
type SimulationRecord struct {
	SimulationID       string                 `json:"simulation_id"`
	Name               string                 `json:"name"`
	SimulationType     SimulationType         `json:"simulation_type"`
	Status             RunStatus              `json:"status"`
	DurationHours      int                    `json:"duration_hours"`
	TimeStepSeconds    float64                `json:"time_step_seconds"`
	CreatedAt          time.Time              `json:"created_at"`
	StartedAt          *time.Time             `json:"started_at,omitempty"`
	CompletedAt        *time.Time             `json:"completed_at,omitempty"`
	ProgressPercentage float64                `json:"progress_percentage"`
	Results            map[string]interface{} `json:"results,omitempty"`
	ErrorMessage       string                 `json:"error_message,omitempty"`
}
