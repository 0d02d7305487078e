package sim

import (
	"math/rand"
	"testing"
	"time"

	"github.com/railops/railsim_core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dynamicsWorld(start time.Time) *World {
	return NewWorld(models.Snapshot{
		Trains: []models.Train{
			{ID: 1, TrainNumber: "TR001", Capacity: 100},
			{ID: 2, TrainNumber: "TR002", Capacity: 150},
		},
		Tracks: []models.Track{
			{ID: 1, Name: "Line 1-2", CapacityPerHour: 10},
		},
		Schedules: []models.Schedule{
			{
				ID: 1, TrainID: 1, TrackID: 1,
				ScheduledDeparture: start.Add(time.Hour),
				Distance:           50, EstimatedDuration: 30,
				PassengerCount: 80,
			},
			{
				ID: 2, TrainID: 1, TrackID: 1,
				ScheduledDeparture: start.Add(3 * time.Hour),
				Distance:           50, EstimatedDuration: 30,
				PassengerCount: 40,
			},
			{
				ID: 3, TrainID: 2, TrackID: 1,
				ScheduledDeparture: start.Add(3 * time.Hour),
				Distance:           50, EstimatedDuration: 30,
				PassengerCount: 60,
			},
		},
	})
}

func TestScheduleDynamics(t *testing.T) {
	start := time.Date(2025, 1, 6, 6, 0, 0, 0, time.UTC)

	t.Run("certain delay is capped at maximum", func(t *testing.T) {
		w := dynamicsWorld(start)
		d := &scheduleDynamics{
			p: Parameters{
				DelayProbability:    Float(1),
				AverageDelayMinutes: 10,
				MaxDelayMinutes:     15,
			},
			rng: rand.New(rand.NewSource(1)),
		}

		require.NoError(t, d.Apply(w, start, time.Minute))

		for _, s := range w.OrderedSchedules() {
			assert.Greater(t, s.DelayMinutes, 0.0)
			assert.LessOrEqual(t, s.DelayMinutes, 15.0)
			require.NotNil(t, s.ActualDeparture)
			expected := s.ScheduledDeparture.Add(time.Duration(s.DelayMinutes * float64(time.Minute)))
			assert.Equal(t, expected, *s.ActualDeparture)
		}
	})

	t.Run("zero probability is a no-op", func(t *testing.T) {
		w := dynamicsWorld(start)
		d := &scheduleDynamics{
			p:   Parameters{DelayProbability: Float(0), AverageDelayMinutes: 10, MaxDelayMinutes: 60},
			rng: rand.New(rand.NewSource(1)),
		}

		for i := 0; i < 50; i++ {
			require.NoError(t, d.Apply(w, start, time.Minute))
		}

		for _, s := range w.OrderedSchedules() {
			assert.Zero(t, s.DelayMinutes)
			assert.Nil(t, s.ActualDeparture)
		}
	})

	t.Run("ignores departed schedules", func(t *testing.T) {
		w := dynamicsWorld(start)
		require.NoError(t, w.Schedules[1].Transition(ScheduleInTransit))

		d := &scheduleDynamics{
			p:   Parameters{DelayProbability: Float(1), AverageDelayMinutes: 10, MaxDelayMinutes: 60},
			rng: rand.New(rand.NewSource(1)),
		}
		require.NoError(t, d.Apply(w, start, time.Minute))

		assert.Zero(t, w.Schedules[1].DelayMinutes)
		assert.Greater(t, w.Schedules[2].DelayMinutes, 0.0)
	})
}

func TestScheduleCascade(t *testing.T) {
	start := time.Date(2025, 1, 6, 6, 0, 0, 0, time.UTC)
	w := dynamicsWorld(start)
	d := &scheduleDynamics{
		p: Parameters{
			DelayProbability:    Float(0),
			AverageDelayMinutes: 10,
			MaxDelayMinutes:     60,
			CascadeEffect:       true,
		},
		rng: rand.New(rand.NewSource(1)),
	}

	d.cascade(w, w.Schedules[1], 10)

	// Half the delay reaches the later schedule on the same train only
	assert.Equal(t, 5.0, w.Schedules[2].DelayMinutes)
	assert.Zero(t, w.Schedules[3].DelayMinutes)
	assert.Zero(t, w.Schedules[1].DelayMinutes)
}

func TestIncidentDynamics(t *testing.T) {
	start := time.Date(2025, 1, 6, 6, 0, 0, 0, time.UTC)

	t.Run("inject marks train and track", func(t *testing.T) {
		w := dynamicsWorld(start)
		d := &incidentDynamics{
			p:   Parameters{IncidentProbability: Float(0), IncidentTypes: []string{"breakdown"}},
			rng: rand.New(rand.NewSource(1)),
		}

		d.inject(w, start)

		require.Len(t, w.Incidents, 1)
		inc := w.Incidents[0]
		assert.Equal(t, "breakdown", inc.Kind)
		assert.Contains(t, incidentSeverities, inc.Severity)
		assert.GreaterOrEqual(t, inc.DurationMinutes, 15)
		assert.LessOrEqual(t, inc.DurationMinutes, 120)
		assert.Equal(t, TrainIncident, w.Trains[inc.TrainID].Status)
		assert.Equal(t, TrackDisrupted, w.Tracks[inc.TrackID].Status)
		require.Len(t, w.EventLog, 1)
		assert.Equal(t, EventIncident, w.EventLog[0].Kind)
	})

	t.Run("zero probability never injects", func(t *testing.T) {
		w := dynamicsWorld(start)
		d := &incidentDynamics{
			p:   Parameters{IncidentProbability: Float(0), IncidentTypes: []string{"delay"}},
			rng: rand.New(rand.NewSource(1)),
		}

		now := start
		for i := 0; i < 500; i++ {
			require.NoError(t, d.Apply(w, now, time.Minute))
			now = now.Add(time.Minute)
		}
		assert.Empty(t, w.Incidents)
	})

	t.Run("incidents eventually resolve", func(t *testing.T) {
		w := dynamicsWorld(start)
		w.Trains[1].Status = TrainIncident
		d := &incidentDynamics{
			p:   Parameters{IncidentProbability: Float(0), IncidentTypes: []string{"delay"}},
			rng: rand.New(rand.NewSource(1)),
		}

		resolved := false
		now := start
		for i := 0; i < 1000 && !resolved; i++ {
			require.NoError(t, d.Apply(w, now, time.Minute))
			resolved = w.Trains[1].Status == TrainAvailable
			now = now.Add(time.Minute)
		}
		assert.True(t, resolved)
	})
}

func TestCapacityDynamics(t *testing.T) {
	start := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

	t.Run("overflow demand clamps and delays", func(t *testing.T) {
		w := dynamicsWorld(start)
		d := &capacityDynamics{p: Parameters{DemandMultiplier: 2.0, PeakHours: []int{7, 8}}}

		require.NoError(t, d.Apply(w, start, time.Minute))

		// 80 * 2.0 = 160 demand against capacity 100
		s := w.Schedules[1]
		assert.Equal(t, 100, s.PassengerCount)
		assert.InDelta(t, 6.0, s.DelayMinutes, 0.001)

		// 60 * 2.0 = 120 fits in capacity 150
		other := w.Schedules[3]
		assert.Equal(t, 120, other.PassengerCount)
		assert.Zero(t, other.DelayMinutes)
	})

	t.Run("peak hour boosts demand", func(t *testing.T) {
		peak := time.Date(2025, 1, 6, 7, 30, 0, 0, time.UTC)
		w := dynamicsWorld(peak)
		d := &capacityDynamics{p: Parameters{DemandMultiplier: 1.0, PeakHours: []int{7, 8}}}

		require.NoError(t, d.Apply(w, peak, time.Minute))

		// 80 * 1.0 * 1.5 = 120 against capacity 100
		s := w.Schedules[1]
		assert.Equal(t, 100, s.PassengerCount)
		assert.InDelta(t, 2.0, s.DelayMinutes, 0.001)

		// 60 * 1.5 = 90 fits in capacity 150
		assert.Equal(t, 90, w.Schedules[3].PassengerCount)
	})

	t.Run("load never exceeds train capacity", func(t *testing.T) {
		w := dynamicsWorld(start)
		d := &capacityDynamics{p: Parameters{DemandMultiplier: 10.0, PeakHours: []int{10}}}

		require.NoError(t, d.Apply(w, start, time.Minute))

		for _, s := range w.OrderedSchedules() {
			train := w.Trains[s.TrainID]
			assert.LessOrEqual(t, s.PassengerCount, train.Capacity)
		}
	})
}

func TestWeatherWindowActive(t *testing.T) {
	base := time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)
	win := WeatherWindow{Start: base, End: base.Add(4 * time.Hour)}

	assert.False(t, win.Active(base.Add(-time.Second)))
	assert.True(t, win.Active(base))
	assert.True(t, win.Active(base.Add(2*time.Hour)))
	assert.True(t, win.Active(base.Add(4*time.Hour)))
	assert.False(t, win.Active(base.Add(4*time.Hour+time.Second)))
}

func TestWeatherDynamics(t *testing.T) {
	start := time.Date(2025, 1, 6, 6, 0, 0, 0, time.UTC)

	t.Run("severe window inflates delay", func(t *testing.T) {
		w := dynamicsWorld(start)
		d := &weatherDynamics{
			p: Parameters{WeatherType: "storm", Severity: "severe"},
			windows: []WeatherWindow{{
				Kind: "storm", Severity: "severe",
				Start: start, End: start.Add(4 * time.Hour),
				DelayFactor: 1.5, SpeedReduction: 0.3,
			}},
		}

		require.NoError(t, d.Apply(w, start.Add(time.Hour), 5*time.Minute))

		assert.Equal(t, 1, w.ActiveWeather)
		// Each active schedule gains estimated_duration * 0.5
		for _, s := range w.OrderedSchedules() {
			assert.InDelta(t, 15.0, s.DelayMinutes, 0.001)
		}
		assert.InDelta(t, 45.0, w.WeatherDelayMinutes, 0.001)
		for _, track := range w.OrderedTracks() {
			assert.True(t, track.WeatherAffected)
		}
	})

	t.Run("outside the window nothing changes", func(t *testing.T) {
		w := dynamicsWorld(start)
		d := &weatherDynamics{
			p: Parameters{WeatherType: "rain", Severity: "moderate"},
			windows: []WeatherWindow{{
				Start: start.Add(10 * time.Hour), End: start.Add(14 * time.Hour),
				DelayFactor: 1.2,
			}},
		}

		require.NoError(t, d.Apply(w, start, 5*time.Minute))

		assert.Zero(t, w.ActiveWeather)
		assert.Zero(t, w.WeatherDelayMinutes)
		for _, s := range w.OrderedSchedules() {
			assert.Zero(t, s.DelayMinutes)
		}
	})

	t.Run("generated window respects severity and duration", func(t *testing.T) {
		p := Parameters{WeatherType: "snow", Severity: "severe", WeatherDurationHours: 6}
		d := newWeatherDynamics(p, rand.New(rand.NewSource(42)), start)

		wins := d.Windows()
		require.Len(t, wins, 1)
		win := wins[0]
		assert.Equal(t, "snow", win.Kind)
		assert.Equal(t, 1.5, win.DelayFactor)
		assert.Equal(t, 0.3, win.SpeedReduction)
		assert.Equal(t, 6*time.Hour, win.End.Sub(win.Start))
		assert.True(t, win.Start.After(start))
		assert.False(t, win.Start.After(start.Add(6*time.Hour)))
	})
}

func TestParametersWithDefaults(t *testing.T) {
	t.Run("fills schedule defaults", func(t *testing.T) {
		p := Parameters{}.withDefaults(models.SimSchedule)
		require.NotNil(t, p.DelayProbability)
		assert.Equal(t, 0.1, *p.DelayProbability)
		assert.Equal(t, 10.0, p.AverageDelayMinutes)
		assert.Equal(t, 60.0, p.MaxDelayMinutes)
	})

	t.Run("explicit zero probability survives", func(t *testing.T) {
		p := Parameters{DelayProbability: Float(0)}.withDefaults(models.SimSchedule)
		require.NotNil(t, p.DelayProbability)
		assert.Zero(t, *p.DelayProbability)
	})

	t.Run("fills weather defaults", func(t *testing.T) {
		p := Parameters{}.withDefaults(models.SimWeather)
		assert.Equal(t, "rain", p.WeatherType)
		assert.Equal(t, "moderate", p.Severity)
		assert.Equal(t, 4.0, p.WeatherDurationHours)
	})
}

func TestNewStrategySelection(t *testing.T) {
	start := time.Date(2025, 1, 6, 6, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(1))

	for _, simType := range []models.SimulationType{
		models.SimSchedule, models.SimIncident, models.SimCapacity, models.SimWeather,
	} {
		s, err := newStrategy(simType, Parameters{}.withDefaults(simType), rng, start)
		require.NoError(t, err)
		assert.Equal(t, string(simType), s.Name())
	}

	_, err := newStrategy("volcano", Parameters{}, rng, start)
	assert.Error(t, err)
}
