package sim

import (
	"github.com/railops/railsim_core/internal/models"
)

// Metrics is one per-tick snapshot of aggregate world measurements. The
// generic fields are always present; the type-specific sections are only
// populated for the matching simulation type.
type Metrics struct {
	ActiveTrains      int     `json:"active_trains"`
	DelayedSchedules  int     `json:"delayed_schedules"`
	AverageDelay      float64 `json:"average_delay"`
	TotalPassengers   int     `json:"total_passengers"`
	FuelConsumption   float64 `json:"fuel_consumption"`
	OperationalTracks int     `json:"operational_tracks"`

	Capacity *CapacityMetrics `json:"capacity,omitempty"`
	Weather  *WeatherMetrics  `json:"weather,omitempty"`
}

// CapacityMetrics extends a snapshot for capacity runs
type CapacityMetrics struct {
	TotalCapacity         int     `json:"total_capacity"`
	UsedCapacity          int     `json:"used_capacity"`
	CapacityUtilization   float64 `json:"capacity_utilization"`
	OvercapacitySchedules int     `json:"overcapacity_schedules"`
}

// WeatherMetrics extends a snapshot for weather runs
type WeatherMetrics struct {
	EventsActive   int     `json:"weather_events_active"`
	AffectedTracks int     `json:"weather_affected_tracks"`
	WeatherDelays  float64 `json:"weather_delays"`
}

// delayedThresholdMinutes is the delay above which a schedule counts as
// delayed in metrics and summaries.
const delayedThresholdMinutes = 5.0

// Collector computes per-tick snapshots and the final summary from world
// state.
type Collector struct {
	simType models.SimulationType
}

// NewCollector returns a collector for the given simulation type
func NewCollector(simType models.SimulationType) Collector {
	return Collector{simType: simType}
}

// Snapshot computes the metrics for the current tick
func (c Collector) Snapshot(w *World) Metrics {
	m := Metrics{}

	var delaySum float64
	for _, s := range w.OrderedSchedules() {
		delaySum += s.DelayMinutes
		if s.DelayMinutes > delayedThresholdMinutes {
			m.DelayedSchedules++
		}
		if s.Status != ScheduleCompleted {
			m.TotalPassengers += s.PassengerCount
		}
	}
	if n := len(w.Schedules); n > 0 {
		m.AverageDelay = delaySum / float64(n)
	}

	for _, t := range w.OrderedTrains() {
		if t.Status == TrainInTransit {
			m.ActiveTrains++
		}
		m.FuelConsumption += 100 - t.FuelLevel
	}

	for _, t := range w.OrderedTracks() {
		if t.Status == TrackOperational {
			m.OperationalTracks++
		}
	}

	switch c.simType {
	case models.SimCapacity:
		m.Capacity = c.capacitySnapshot(w)
	case models.SimWeather:
		m.Weather = &WeatherMetrics{
			EventsActive:  w.ActiveWeather,
			WeatherDelays: w.WeatherDelayMinutes,
		}
		for _, t := range w.OrderedTracks() {
			if t.WeatherAffected {
				m.Weather.AffectedTracks++
			}
		}
	}

	return m
}

func (c Collector) capacitySnapshot(w *World) *CapacityMetrics {
	cm := &CapacityMetrics{}
	for _, t := range w.OrderedTrains() {
		cm.TotalCapacity += t.Capacity
	}
	for _, s := range w.OrderedSchedules() {
		if s.Status == ScheduleCompleted {
			continue
		}
		cm.UsedCapacity += s.PassengerCount
		if train, ok := w.Trains[s.TrainID]; ok && s.PassengerCount >= train.Capacity {
			cm.OvercapacitySchedules++
		}
	}
	if cm.TotalCapacity > 0 {
		cm.CapacityUtilization = float64(cm.UsedCapacity) / float64(cm.TotalCapacity) * 100
	}
	return cm
}

// Summary is the aggregate report computed once from the terminal world
// state. All ratios are guarded against empty worlds.
type Summary struct {
	TotalSchedules      int     `json:"total_schedules"`
	CompletedSchedules  int     `json:"completed_schedules"`
	DelayedSchedules    int     `json:"delayed_schedules"`
	AverageDelayMinutes float64 `json:"average_delay_minutes"`
	MaxDelayMinutes     float64 `json:"max_delay_minutes"`
	OnTimePerformance   float64 `json:"on_time_performance"`

	Incidents *IncidentSummary `json:"incidents,omitempty"`
	Capacity  *CapacitySummary `json:"capacity,omitempty"`
	Weather   *WeatherSummary  `json:"weather,omitempty"`
}

// IncidentSummary reports disruption totals for incident runs
type IncidentSummary struct {
	TotalIncidents         int     `json:"total_incidents"`
	TrainsAffected         int     `json:"trains_affected"`
	TracksDisrupted        int     `json:"tracks_disrupted"`
	AverageDurationMinutes float64 `json:"average_duration_minutes"`
}

// CapacitySummary reports utilization over the whole run for capacity runs
type CapacitySummary struct {
	PeakUtilization    float64 `json:"peak_utilization"`
	AverageUtilization float64 `json:"average_utilization"`
	OvercapacityTicks  int     `json:"overcapacity_ticks"`
}

// WeatherSummary reports weather impact totals for weather runs
type WeatherSummary struct {
	WeatherDurationHours  float64 `json:"weather_duration_hours"`
	TotalWeatherDelayMins float64 `json:"total_weather_delay_minutes"`
	AffectedSchedules     int     `json:"affected_schedules"`
}

// Summary computes the final aggregate report. The timeline is consulted
// only for utilization statistics that are inherently time-varying.
func (c Collector) Summary(w *World, timeline []TimelineEntry, windows []WeatherWindow) Summary {
	sum := Summary{TotalSchedules: len(w.Schedules)}

	var delaySum float64
	onTime := 0
	for _, s := range w.OrderedSchedules() {
		if s.Status == ScheduleCompleted {
			sum.CompletedSchedules++
		}
		if s.DelayMinutes > delayedThresholdMinutes {
			sum.DelayedSchedules++
		} else {
			onTime++
		}
		delaySum += s.DelayMinutes
		if s.DelayMinutes > sum.MaxDelayMinutes {
			sum.MaxDelayMinutes = s.DelayMinutes
		}
	}
	if sum.TotalSchedules > 0 {
		sum.AverageDelayMinutes = delaySum / float64(sum.TotalSchedules)
		sum.OnTimePerformance = float64(onTime) / float64(sum.TotalSchedules) * 100
	}

	switch c.simType {
	case models.SimIncident:
		sum.Incidents = c.incidentSummary(w)
	case models.SimCapacity:
		sum.Capacity = c.capacitySummary(timeline)
	case models.SimWeather:
		sum.Weather = c.weatherSummary(w, windows)
	}

	return sum
}

func (c Collector) incidentSummary(w *World) *IncidentSummary {
	is := &IncidentSummary{TotalIncidents: len(w.Incidents)}

	affected := make(map[int64]bool)
	var durationSum float64
	for _, inc := range w.Incidents {
		if inc.TrainID != 0 {
			affected[inc.TrainID] = true
		}
		durationSum += float64(inc.DurationMinutes)
	}
	is.TrainsAffected = len(affected)
	if len(w.Incidents) > 0 {
		is.AverageDurationMinutes = durationSum / float64(len(w.Incidents))
	}

	for _, t := range w.OrderedTracks() {
		if t.Status == TrackDisrupted {
			is.TracksDisrupted++
		}
	}
	return is
}

func (c Collector) capacitySummary(timeline []TimelineEntry) *CapacitySummary {
	cs := &CapacitySummary{}
	var utilSum float64
	samples := 0
	for _, entry := range timeline {
		if entry.Metrics.Capacity == nil {
			continue
		}
		util := entry.Metrics.Capacity.CapacityUtilization
		utilSum += util
		samples++
		if util > cs.PeakUtilization {
			cs.PeakUtilization = util
		}
		if entry.Metrics.Capacity.OvercapacitySchedules > 0 {
			cs.OvercapacityTicks++
		}
	}
	if samples > 0 {
		cs.AverageUtilization = utilSum / float64(samples)
	}
	return cs
}

func (c Collector) weatherSummary(w *World, windows []WeatherWindow) *WeatherSummary {
	ws := &WeatherSummary{TotalWeatherDelayMins: w.WeatherDelayMinutes}
	for _, win := range windows {
		ws.WeatherDurationHours += win.End.Sub(win.Start).Hours()
	}
	for _, s := range w.OrderedSchedules() {
		if s.DelayMinutes > 0 {
			ws.AffectedSchedules++
		}
	}
	return ws
}
