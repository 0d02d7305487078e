package sim

import (
	"fmt"
	"sort"
	"time"

	"github.com/railops/railsim_core/internal/models"
)

// ScheduleStatus represents the runtime state of a simulated schedule
type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "scheduled"
	ScheduleInTransit ScheduleStatus = "in_transit"
	ScheduleCompleted ScheduleStatus = "completed"
)

// TrainStatus represents the runtime state of a simulated train
type TrainStatus string

const (
	TrainAvailable TrainStatus = "available"
	TrainInTransit TrainStatus = "in_transit"
	TrainIncident  TrainStatus = "incident"
)

// TrackStatus represents the runtime state of a simulated track
type TrackStatus string

const (
	TrackOperational TrackStatus = "operational"
	TrackDisrupted   TrackStatus = "disrupted"
)

// Defaults applied when snapshot records are missing operational fields,
// matching the values the scheduling platform assumes elsewhere.
const (
	defaultTrainCapacity     = 200
	defaultTrainMaxSpeed     = 120.0
	defaultScheduleDistance  = 100.0
	defaultScheduleDuration  = 60
	defaultTrackCapacityHour = 10
	fuelConsumptionRate      = 0.5 // liters per km
)

// SimSchedule is the mutable runtime projection of a schedule record
type SimSchedule struct {
	ID                 int64          `json:"id"`
	TrainID            int64          `json:"train_id"`
	TrackID            int64          `json:"track_id"`
	ScheduledDeparture time.Time      `json:"scheduled_departure"`
	ScheduledArrival   time.Time      `json:"scheduled_arrival"`
	ActualDeparture    *time.Time     `json:"actual_departure,omitempty"`
	ActualArrival      *time.Time     `json:"actual_arrival,omitempty"`
	Status             ScheduleStatus `json:"status"`
	DelayMinutes       float64        `json:"delay_minutes"`
	PassengerCount     int            `json:"passenger_count"`
	BasePassengers     int            `json:"-"`
	Distance           float64        `json:"distance"`
	EstimatedDuration  int            `json:"estimated_duration"` // minutes
}

// Transition moves the schedule to a new status, enforcing the monotone
// scheduled -> in_transit -> completed lifecycle. Illegal transitions are
// rejected, never silently overwritten.
func (s *SimSchedule) Transition(to ScheduleStatus) error {
	legal := (s.Status == ScheduleScheduled && to == ScheduleInTransit) ||
		(s.Status == ScheduleInTransit && to == ScheduleCompleted)
	if !legal {
		return fmt.Errorf("illegal schedule %d transition %s -> %s", s.ID, s.Status, to)
	}
	s.Status = to
	return nil
}

// AddDelay accumulates delay; delay never decreases within a run
func (s *SimSchedule) AddDelay(minutes float64) {
	if minutes <= 0 {
		return
	}
	s.DelayMinutes += minutes
}

// SimTrain is the mutable runtime projection of a train record
type SimTrain struct {
	ID                int64       `json:"id"`
	TrainNumber       string      `json:"train_number"`
	Capacity          int         `json:"capacity"`
	MaxSpeed          float64     `json:"max_speed"`
	FuelRate          float64     `json:"fuel_consumption_rate"` // liters per km
	Status            TrainStatus `json:"status"`
	FuelLevel         float64     `json:"fuel_level"` // 0-100
	CurrentPassengers int         `json:"current_passengers"`
}

// BurnFuel decrements the fuel level for a completed leg, floored at 0
func (t *SimTrain) BurnFuel(distanceKm float64) {
	t.FuelLevel -= distanceKm * t.FuelRate
	if t.FuelLevel < 0 {
		t.FuelLevel = 0
	}
}

// SimTrack is the mutable runtime projection of a track record
type SimTrack struct {
	ID              int64       `json:"id"`
	Name            string      `json:"name"`
	Length          float64     `json:"length"`
	MaxSpeed        float64     `json:"max_speed"`
	CapacityPerHour int         `json:"capacity_per_hour"`
	Status          TrackStatus `json:"status"`
	WeatherAffected bool        `json:"weather_affected"`
}

// LoggedEvent is one entry in the append-only event log
type LoggedEvent struct {
	Time       time.Time `json:"time"`
	Kind       EventKind `json:"type"`
	ScheduleID int64     `json:"schedule_id,omitempty"`
	TrainID    int64     `json:"train_id,omitempty"`
	TrackID    int64     `json:"track_id,omitempty"`
}

// Incident is an ephemeral dynamics-generated disruption, recorded into
// the run result but never persisted beyond the run.
type Incident struct {
	Kind            string    `json:"type"`
	Time            time.Time `json:"time"`
	Severity        string    `json:"severity"`
	DurationMinutes int       `json:"duration_minutes"`
	TrainID         int64     `json:"affected_train_id,omitempty"`
	TrackID         int64     `json:"affected_track_id,omitempty"`
	Description     string    `json:"description"`
}

// World is the full mutable simulated universe for one run. It is owned
// by a single engine and never shared across runs.
type World struct {
	Schedules map[int64]*SimSchedule
	Trains    map[int64]*SimTrain
	Tracks    map[int64]*SimTrack

	// Sorted identity slices. Go randomizes map iteration order, so every
	// pass over the world walks these instead to keep runs reproducible.
	scheduleIDs []int64
	trainIDs    []int64
	trackIDs    []int64

	EventLog  []LoggedEvent
	Incidents []Incident

	// Weather bookkeeping maintained by the weather dynamics
	ActiveWeather       int
	WeatherDelayMinutes float64
}

// NewWorld builds the mutable runtime projections from an immutable
// entity snapshot. The snapshot itself is never touched again.
func NewWorld(snap models.Snapshot) *World {
	w := &World{
		Schedules: make(map[int64]*SimSchedule, len(snap.Schedules)),
		Trains:    make(map[int64]*SimTrain, len(snap.Trains)),
		Tracks:    make(map[int64]*SimTrack, len(snap.Tracks)),
	}

	for _, t := range snap.Trains {
		capacity := t.Capacity
		if capacity <= 0 {
			capacity = defaultTrainCapacity
		}
		maxSpeed := t.MaxSpeed
		if maxSpeed <= 0 {
			maxSpeed = defaultTrainMaxSpeed
		}
		w.Trains[t.ID] = &SimTrain{
			ID:          t.ID,
			TrainNumber: t.TrainNumber,
			Capacity:    capacity,
			MaxSpeed:    maxSpeed,
			FuelRate:    fuelConsumptionRate,
			Status:      TrainAvailable,
			FuelLevel:   100.0,
		}
		w.trainIDs = append(w.trainIDs, t.ID)
	}

	for _, t := range snap.Tracks {
		perHour := t.CapacityPerHour
		if perHour <= 0 {
			perHour = defaultTrackCapacityHour
		}
		w.Tracks[t.ID] = &SimTrack{
			ID:              t.ID,
			Name:            t.Name,
			Length:          t.Length,
			MaxSpeed:        t.MaxSpeed,
			CapacityPerHour: perHour,
			Status:          TrackOperational,
		}
		w.trackIDs = append(w.trackIDs, t.ID)
	}

	for _, s := range snap.Schedules {
		distance := s.Distance
		if distance <= 0 {
			distance = defaultScheduleDistance
		}
		duration := s.EstimatedDuration
		if duration <= 0 {
			duration = defaultScheduleDuration
		}
		w.Schedules[s.ID] = &SimSchedule{
			ID:                 s.ID,
			TrainID:            s.TrainID,
			TrackID:            s.TrackID,
			ScheduledDeparture: s.ScheduledDeparture,
			ScheduledArrival:   s.ScheduledArrival,
			Status:             ScheduleScheduled,
			PassengerCount:     s.PassengerCount,
			BasePassengers:     s.PassengerCount,
			Distance:           distance,
			EstimatedDuration:  duration,
		}
		w.scheduleIDs = append(w.scheduleIDs, s.ID)
	}

	sort.Slice(w.scheduleIDs, func(i, j int) bool { return w.scheduleIDs[i] < w.scheduleIDs[j] })
	sort.Slice(w.trainIDs, func(i, j int) bool { return w.trainIDs[i] < w.trainIDs[j] })
	sort.Slice(w.trackIDs, func(i, j int) bool { return w.trackIDs[i] < w.trackIDs[j] })

	return w
}

// OrderedSchedules returns schedules in ascending identity order
func (w *World) OrderedSchedules() []*SimSchedule {
	out := make([]*SimSchedule, 0, len(w.scheduleIDs))
	for _, id := range w.scheduleIDs {
		out = append(out, w.Schedules[id])
	}
	return out
}

// OrderedTrains returns trains in ascending identity order
func (w *World) OrderedTrains() []*SimTrain {
	out := make([]*SimTrain, 0, len(w.trainIDs))
	for _, id := range w.trainIDs {
		out = append(out, w.Trains[id])
	}
	return out
}

// OrderedTracks returns tracks in ascending identity order
func (w *World) OrderedTracks() []*SimTrack {
	out := make([]*SimTrack, 0, len(w.trackIDs))
	for _, id := range w.trackIDs {
		out = append(out, w.Tracks[id])
	}
	return out
}

// TrainIDs returns the sorted train identity slice
func (w *World) TrainIDs() []int64 { return w.trainIDs }

// TrackIDs returns the sorted track identity slice
func (w *World) TrackIDs() []int64 { return w.trackIDs }

// AppendLog records a processed event into the append-only event log
func (w *World) AppendLog(now time.Time, kind EventKind, scheduleID, trainID, trackID int64) {
	w.EventLog = append(w.EventLog, LoggedEvent{
		Time:       now,
		Kind:       kind,
		ScheduleID: scheduleID,
		TrainID:    trainID,
		TrackID:    trackID,
	})
}
