package sim

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/railops/railsim_core/internal/models"
)

// Parameters holds the recognized knobs for all simulation types. Only
// the fields matching the run's type are consulted. The probability
// fields are pointers so an explicit zero survives defaulting.
type Parameters struct {
	// schedule
	DelayProbability    *float64 `json:"delay_probability,omitempty"`
	AverageDelayMinutes float64  `json:"average_delay_minutes,omitempty"`
	MaxDelayMinutes     float64  `json:"max_delay_minutes,omitempty"`
	CascadeEffect       bool     `json:"cascade_effect,omitempty"`

	// incident
	IncidentProbability *float64 `json:"incident_probability,omitempty"`
	IncidentTypes       []string `json:"incident_types,omitempty"`
	RepairTimeHours     float64  `json:"repair_time_hours,omitempty"`

	// capacity
	DemandMultiplier  float64 `json:"demand_multiplier,omitempty"`
	PeakHours         []int   `json:"peak_hours,omitempty"`
	CapacityThreshold float64 `json:"capacity_threshold,omitempty"`

	// weather
	WeatherType              string  `json:"weather_type,omitempty"`
	Severity                 string  `json:"severity,omitempty"`
	WeatherDurationHours     float64 `json:"duration_hours,omitempty"`
	SpeedReductionPercentage float64 `json:"speed_reduction_percentage,omitempty"`
}

// Float is a convenience for building parameter literals
func Float(v float64) *float64 { return &v }

// withDefaults fills unset parameters with the platform defaults for the
// given simulation type.
func (p Parameters) withDefaults(simType models.SimulationType) Parameters {
	switch simType {
	case models.SimSchedule:
		if p.DelayProbability == nil {
			p.DelayProbability = Float(0.1)
		}
		if p.AverageDelayMinutes <= 0 {
			p.AverageDelayMinutes = 10
		}
		if p.MaxDelayMinutes <= 0 {
			p.MaxDelayMinutes = 60
		}
	case models.SimIncident:
		if p.IncidentProbability == nil {
			p.IncidentProbability = Float(0.1)
		}
		if len(p.IncidentTypes) == 0 {
			p.IncidentTypes = []string{"delay", "breakdown", "weather"}
		}
	case models.SimCapacity:
		if p.DemandMultiplier <= 0 {
			p.DemandMultiplier = 1.0
		}
		if len(p.PeakHours) == 0 {
			p.PeakHours = []int{7, 8, 17, 18}
		}
	case models.SimWeather:
		if p.WeatherType == "" {
			p.WeatherType = "rain"
		}
		if p.Severity == "" {
			p.Severity = "moderate"
		}
		if p.WeatherDurationHours <= 0 {
			p.WeatherDurationHours = 4
		}
	}
	return p
}

// Strategy applies one simulation type's per-tick perturbation logic.
// Exactly one strategy is active per run, chosen at engine construction.
type Strategy interface {
	Name() string
	Apply(w *World, now time.Time, step time.Duration) error
}

// newStrategy selects the strategy for a simulation type. The random
// source is per-run: concurrent runs sharing a seed value stay
// independently deterministic.
func newStrategy(simType models.SimulationType, p Parameters, rng *rand.Rand, start time.Time) (Strategy, error) {
	switch simType {
	case models.SimSchedule:
		return &scheduleDynamics{p: p, rng: rng}, nil
	case models.SimIncident:
		return &incidentDynamics{p: p, rng: rng}, nil
	case models.SimCapacity:
		return &capacityDynamics{p: p}, nil
	case models.SimWeather:
		return newWeatherDynamics(p, rng, start), nil
	default:
		return nil, fmt.Errorf("unknown simulation type: %s", simType)
	}
}

// scheduleDynamics injects stochastic departure delays. Each tick every
// still-scheduled service draws a Bernoulli trial; on success an
// exponentially distributed delay is added, capped at the configured
// maximum.
type scheduleDynamics struct {
	p   Parameters
	rng *rand.Rand
}

func (d *scheduleDynamics) Name() string { return "schedule" }

func (d *scheduleDynamics) Apply(w *World, now time.Time, step time.Duration) error {
	for _, s := range w.OrderedSchedules() {
		if s.Status != ScheduleScheduled {
			continue
		}
		if d.rng.Float64() >= *d.p.DelayProbability {
			continue
		}
		delay := d.rng.ExpFloat64() * d.p.AverageDelayMinutes
		if delay > d.p.MaxDelayMinutes {
			delay = d.p.MaxDelayMinutes
		}
		s.AddDelay(delay)

		// Advance the projected departure by the accumulated delay
		shifted := s.ScheduledDeparture.Add(time.Duration(s.DelayMinutes * float64(time.Minute)))
		s.ActualDeparture = &shifted

		if d.p.CascadeEffect {
			d.cascade(w, s, delay)
		}
	}
	return nil
}

// cascade propagates half of a fresh delay to later schedules sharing
// the same train, each contribution capped at the configured maximum.
func (d *scheduleDynamics) cascade(w *World, src *SimSchedule, delay float64) {
	propagated := delay / 2
	if propagated > d.p.MaxDelayMinutes {
		propagated = d.p.MaxDelayMinutes
	}
	if propagated <= 0 {
		return
	}
	for _, s := range w.OrderedSchedules() {
		if s.ID == src.ID || s.TrainID != src.TrainID {
			continue
		}
		if s.Status != ScheduleScheduled || !s.ScheduledDeparture.After(src.ScheduledDeparture) {
			continue
		}
		s.AddDelay(propagated)
	}
}

// incidentDynamics injects random disruptions at a per-hour rate scaled
// to the tick length, and resolves train incidents with a memoryless
// 10% per-tick probability.
type incidentDynamics struct {
	p   Parameters
	rng *rand.Rand
}

var incidentSeverities = []string{"low", "medium", "high"}

const incidentResolveProbability = 0.1

func (d *incidentDynamics) Name() string { return "incident" }

func (d *incidentDynamics) Apply(w *World, now time.Time, step time.Duration) error {
	if d.rng.Float64() < *d.p.IncidentProbability*step.Seconds()/3600 {
		d.inject(w, now)
	}

	for _, t := range w.OrderedTrains() {
		if t.Status == TrainIncident && d.rng.Float64() < incidentResolveProbability {
			t.Status = TrainAvailable
		}
	}
	return nil
}

func (d *incidentDynamics) inject(w *World, now time.Time) {
	kind := d.p.IncidentTypes[d.rng.Intn(len(d.p.IncidentTypes))]
	inc := Incident{
		Kind:            kind,
		Time:            now,
		Severity:        incidentSeverities[d.rng.Intn(len(incidentSeverities))],
		DurationMinutes: 15 + d.rng.Intn(106),
		Description:     fmt.Sprintf("Random %s incident", kind),
	}

	if ids := w.TrainIDs(); len(ids) > 0 {
		inc.TrainID = ids[d.rng.Intn(len(ids))]
		w.Trains[inc.TrainID].Status = TrainIncident
	}
	if ids := w.TrackIDs(); len(ids) > 0 {
		inc.TrackID = ids[d.rng.Intn(len(ids))]
		w.Tracks[inc.TrackID].Status = TrackDisrupted
	}

	w.Incidents = append(w.Incidents, inc)
	w.AppendLog(now, EventIncident, 0, inc.TrainID, inc.TrackID)
}

// capacityDynamics scales passenger demand, clamps loads to train
// capacity and converts overflow demand into boarding delay.
type capacityDynamics struct {
	p Parameters
}

const peakHourBoost = 1.5

func (d *capacityDynamics) Name() string { return "capacity" }

func (d *capacityDynamics) Apply(w *World, now time.Time, step time.Duration) error {
	mult := d.p.DemandMultiplier
	for _, h := range d.p.PeakHours {
		if now.Hour() == h {
			mult *= peakHourBoost
			break
		}
	}

	for _, s := range w.OrderedSchedules() {
		if s.Status != ScheduleScheduled {
			continue
		}
		train, ok := w.Trains[s.TrainID]
		if !ok || train.Capacity <= 0 {
			continue
		}
		demand := int(math.Round(float64(s.BasePassengers) * mult))
		if demand > train.Capacity {
			s.PassengerCount = train.Capacity
			overflow := float64(demand-train.Capacity) / float64(train.Capacity) * 10
			s.AddDelay(overflow)
		} else {
			s.PassengerCount = demand
		}
	}
	return nil
}

// WeatherWindow is a time interval during which weather-driven delay and
// speed effects are active. Windows are generated once per run and
// immutable afterwards.
type WeatherWindow struct {
	Kind           string    `json:"type"`
	Severity       string    `json:"severity"`
	Start          time.Time `json:"start_time"`
	End            time.Time `json:"end_time"`
	SpeedReduction float64   `json:"speed_reduction"`
	DelayFactor    float64   `json:"delay_factor"`
}

// Active reports whether the window covers the given instant
func (ww WeatherWindow) Active(now time.Time) bool {
	return !now.Before(ww.Start) && !now.After(ww.End)
}

// weatherDynamics inflates transit durations while a weather window is
// active and flags every track as weather-affected.
type weatherDynamics struct {
	p       Parameters
	windows []WeatherWindow
}

func newWeatherDynamics(p Parameters, rng *rand.Rand, start time.Time) *weatherDynamics {
	speedReduction := p.SpeedReductionPercentage
	if speedReduction <= 0 {
		speedReduction = 0.15
		if p.Severity == "severe" {
			speedReduction = 0.3
		}
	}
	delayFactor := 1.2
	if p.Severity == "severe" {
		delayFactor = 1.5
	}

	// Window onset is randomized within the first few simulated hours
	onset := start.Add(time.Duration(1+rng.Intn(6)) * time.Hour)
	windows := []WeatherWindow{{
		Kind:           p.WeatherType,
		Severity:       p.Severity,
		Start:          onset,
		End:            onset.Add(time.Duration(p.WeatherDurationHours * float64(time.Hour))),
		SpeedReduction: speedReduction,
		DelayFactor:    delayFactor,
	}}

	return &weatherDynamics{p: p, windows: windows}
}

func (d *weatherDynamics) Name() string { return "weather" }

// Windows returns the generated weather windows for the run result
func (d *weatherDynamics) Windows() []WeatherWindow { return d.windows }

func (d *weatherDynamics) Apply(w *World, now time.Time, step time.Duration) error {
	active := 0
	for _, win := range d.windows {
		if !win.Active(now) {
			continue
		}
		active++
		for _, s := range w.OrderedSchedules() {
			if s.Status != ScheduleScheduled && s.Status != ScheduleInTransit {
				continue
			}
			delay := float64(s.EstimatedDuration) * (win.DelayFactor - 1)
			s.AddDelay(delay)
			w.WeatherDelayMinutes += delay
		}
	}

	w.ActiveWeather = active
	if active > 0 {
		for _, t := range w.OrderedTracks() {
			t.WeatherAffected = true
		}
	}
	return nil
}
