package sim

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/railops/railsim_core/internal/models"
)

// Config describes one simulation run. All inputs are read-only: the
// engine copies the snapshot into its own world state and never mutates
// the originals.
type Config struct {
	Type          models.SimulationType
	Start         time.Time
	DurationHours int
	StepSeconds   float64
	Parameters    Parameters
	Snapshot      models.Snapshot
	ScenarioData  map[string]interface{}
	Seed          int64
}

// Duration/step bounds accepted by the engine
const (
	MinDurationHours = 1
	MaxDurationHours = 168
	MinStepSeconds   = 1.0
	MaxStepSeconds   = 3600.0
)

// ProgressFunc is invoked once per tick with the completion percentage.
// Returning false stops the run cooperatively after the current tick's
// snapshot has been recorded. The callback may block on I/O; the engine
// waits for it.
type ProgressFunc func(pct float64) bool

// TimelineEntry pairs a simulated instant with its metrics snapshot.
// Entries are appended strictly in tick order, so slice order is
// chronological by construction.
type TimelineEntry struct {
	Time    time.Time `json:"time"`
	Metrics Metrics   `json:"metrics"`
}

// CapacityAnalysis is the capacity-run extra section of a result
type CapacityAnalysis struct {
	PeakHours         []int              `json:"peak_hours"`
	UtilizationByHour map[string]float64 `json:"utilization_by_hour"`
}

// Result is the full output of a run: the per-tick timeline, the final
// summary and the type-specific extras.
type Result struct {
	SimulationType   models.SimulationType  `json:"simulation_type"`
	Timeline         []TimelineEntry        `json:"timeline"`
	Summary          Summary                `json:"summary"`
	Events           []LoggedEvent          `json:"events,omitempty"`
	Incidents        []Incident             `json:"incidents,omitempty"`
	CapacityAnalysis *CapacityAnalysis      `json:"capacity_analysis,omitempty"`
	WeatherEvents    []WeatherWindow        `json:"weather_events,omitempty"`
	ScenarioData     map[string]interface{} `json:"scenario_data,omitempty"`
}

// Engine advances a private world through simulated time. A single
// engine runs strictly sequentially; independent runs get independent
// engines and may execute concurrently without shared state.
type Engine struct {
	cfg       Config
	params    Parameters
	world     *World
	queue     *EventQueue
	strategy  Strategy
	collector Collector
}

// New validates the configuration and builds a ready-to-run engine.
// Validation failures happen before the loop starts; nothing is run and
// no partial timeline is produced.
func New(cfg Config) (*Engine, error) {
	if !cfg.Type.Valid() {
		return nil, fmt.Errorf("unknown simulation type: %q", cfg.Type)
	}
	if cfg.DurationHours < MinDurationHours || cfg.DurationHours > MaxDurationHours {
		return nil, fmt.Errorf("duration must be between %d and %d hours, got %d",
			MinDurationHours, MaxDurationHours, cfg.DurationHours)
	}
	if cfg.StepSeconds < MinStepSeconds || cfg.StepSeconds > MaxStepSeconds {
		return nil, fmt.Errorf("time step must be between %.0f and %.0f seconds, got %v",
			MinStepSeconds, MaxStepSeconds, cfg.StepSeconds)
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now().UTC().Truncate(time.Second)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	params := cfg.Parameters.withDefaults(cfg.Type)

	strategy, err := newStrategy(cfg.Type, params, rng, cfg.Start)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		params:    params,
		world:     NewWorld(cfg.Snapshot),
		queue:     NewEventQueue(),
		strategy:  strategy,
		collector: NewCollector(cfg.Type),
	}

	// Seed the queue with every scheduled departure
	for _, s := range cfg.Snapshot.Schedules {
		e.queue.Push(Event{
			Time:       s.ScheduledDeparture,
			Kind:       EventDeparture,
			ScheduleID: s.ID,
			TrainID:    s.TrainID,
			TrackID:    s.TrackID,
		})
	}

	return e, nil
}

// Run executes the tick loop from start to start+duration, or until the
// progress callback signals stop. On a dynamics failure the error is
// returned together with the timeline accumulated so far.
func (e *Engine) Run(progress ProgressFunc) (*Result, error) {
	step := time.Duration(e.cfg.StepSeconds * float64(time.Second))
	duration := time.Duration(e.cfg.DurationHours) * time.Hour
	end := e.cfg.Start.Add(duration)
	totalTicks := int(math.Ceil(float64(duration) / float64(step)))

	res := &Result{
		SimulationType: e.cfg.Type,
		Timeline:       make([]TimelineEntry, 0, totalTicks),
		ScenarioData:   e.cfg.ScenarioData,
	}

	tick := 0
	for current := e.cfg.Start; current.Before(end); current = current.Add(step) {
		for _, ev := range e.queue.DrainDue(current) {
			e.processEvent(ev, current)
		}

		if err := e.strategy.Apply(e.world, current, step); err != nil {
			e.finalize(res)
			return res, fmt.Errorf("%s dynamics failed at tick %d: %w", e.strategy.Name(), tick, err)
		}

		res.Timeline = append(res.Timeline, TimelineEntry{
			Time:    current,
			Metrics: e.collector.Snapshot(e.world),
		})

		tick++
		if progress != nil {
			pct := math.Min(100, float64(tick)/float64(totalTicks)*100)
			if !progress(pct) {
				break
			}
		}
	}

	e.finalize(res)
	return res, nil
}

// finalize computes the summary over whatever world state exists, full
// run or partial, and attaches the type-specific extras.
func (e *Engine) finalize(res *Result) {
	var windows []WeatherWindow
	if wd, ok := e.strategy.(*weatherDynamics); ok {
		windows = wd.Windows()
	}
	res.Summary = e.collector.Summary(e.world, res.Timeline, windows)

	switch e.cfg.Type {
	case models.SimSchedule:
		res.Events = e.world.EventLog
	case models.SimIncident:
		res.Incidents = e.world.Incidents
	case models.SimCapacity:
		res.CapacityAnalysis = e.capacityAnalysis(res.Timeline)
	case models.SimWeather:
		res.WeatherEvents = windows
	}
}

// capacityAnalysis aggregates timeline utilization by hour of day
func (e *Engine) capacityAnalysis(timeline []TimelineEntry) *CapacityAnalysis {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, entry := range timeline {
		if entry.Metrics.Capacity == nil {
			continue
		}
		h := entry.Time.Hour()
		sums[h] += entry.Metrics.Capacity.CapacityUtilization
		counts[h]++
	}

	byHour := make(map[string]float64, len(sums))
	for h, sum := range sums {
		byHour[strconv.Itoa(h)] = sum / float64(counts[h])
	}

	return &CapacityAnalysis{
		PeakHours:         e.params.PeakHours,
		UtilizationByHour: byHour,
	}
}

// processEvent applies a single drained event to the world. Events
// referencing unknown entities are logged and skipped; the run keeps
// going.
func (e *Engine) processEvent(ev Event, now time.Time) {
	switch ev.Kind {
	case EventDeparture:
		e.processDeparture(ev, now)
	case EventArrival:
		e.processArrival(ev, now)
	case EventIncident, EventMaintenance:
		e.processDisruption(ev, now)
	default:
		log.Printf("sim: skipping event with unknown kind %q", ev.Kind)
		return
	}
	e.world.AppendLog(now, ev.Kind, ev.ScheduleID, ev.TrainID, ev.TrackID)
}

func (e *Engine) processDeparture(ev Event, now time.Time) {
	s, ok := e.world.Schedules[ev.ScheduleID]
	if !ok {
		log.Printf("sim: skipping departure for unknown schedule %d", ev.ScheduleID)
		return
	}
	train, ok := e.world.Trains[s.TrainID]
	if !ok {
		log.Printf("sim: skipping departure for schedule %d: unknown train %d", s.ID, s.TrainID)
		return
	}
	if err := s.Transition(ScheduleInTransit); err != nil {
		log.Printf("sim: skipping departure: %v", err)
		return
	}

	departed := now
	s.ActualDeparture = &departed
	s.AddDelay(now.Sub(s.ScheduledDeparture).Minutes())

	train.Status = TrainInTransit
	train.CurrentPassengers = s.PassengerCount
	if train.CurrentPassengers > train.Capacity {
		train.CurrentPassengers = train.Capacity
	}

	// Duration may already carry dynamics-applied inflation
	e.queue.Push(Event{
		Time:       now.Add(time.Duration(s.EstimatedDuration) * time.Minute),
		Kind:       EventArrival,
		ScheduleID: s.ID,
		TrainID:    s.TrainID,
		TrackID:    s.TrackID,
	})
}

func (e *Engine) processArrival(ev Event, now time.Time) {
	s, ok := e.world.Schedules[ev.ScheduleID]
	if !ok {
		log.Printf("sim: skipping arrival for unknown schedule %d", ev.ScheduleID)
		return
	}
	train, ok := e.world.Trains[s.TrainID]
	if !ok {
		log.Printf("sim: skipping arrival for schedule %d: unknown train %d", s.ID, s.TrainID)
		return
	}
	if err := s.Transition(ScheduleCompleted); err != nil {
		log.Printf("sim: skipping arrival: %v", err)
		return
	}

	arrived := now
	s.ActualArrival = &arrived

	train.Status = TrainAvailable
	train.CurrentPassengers = 0
	train.BurnFuel(s.Distance)
}

func (e *Engine) processDisruption(ev Event, now time.Time) {
	if train, ok := e.world.Trains[ev.TrainID]; ok {
		train.Status = TrainIncident
	} else if ev.TrainID != 0 {
		log.Printf("sim: %s event references unknown train %d", ev.Kind, ev.TrainID)
	}
	if track, ok := e.world.Tracks[ev.TrackID]; ok {
		track.Status = TrackDisrupted
	} else if ev.TrackID != 0 {
		log.Printf("sim: %s event references unknown track %d", ev.Kind, ev.TrackID)
	}
}
