package snapshot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/railops/railsim_core/internal/models"
)

// Load reads trains, tracks and the schedules departing inside the given
// window into an immutable snapshot. Schedules can optionally be
// restricted to specific train or track identities. The snapshot is the
// engine's read-only baseline; nothing here is written back.
func Load(ctx context.Context, pool *pgxpool.Pool, from, to time.Time, trainIDs, trackIDs []int64) (*models.Snapshot, error) {
	startTime := time.Now()

	snap := &models.Snapshot{}

	trainRows, err := pool.Query(ctx, `
		SELECT id, train_number, name, capacity, max_speed, COALESCE(current_location, '')
		FROM train
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load trains: %w", err)
	}
	defer trainRows.Close()

	for trainRows.Next() {
		var t models.Train
		if err := trainRows.Scan(&t.ID, &t.TrainNumber, &t.Name, &t.Capacity, &t.MaxSpeed, &t.CurrentLocation); err != nil {
			log.Printf("Warning: failed to scan train: %v", err)
			continue
		}
		snap.Trains = append(snap.Trains, t)
	}

	trackRows, err := pool.Query(ctx, `
		SELECT id, track_number, name, length, max_speed, capacity_per_hour
		FROM track
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}
	defer trackRows.Close()

	for trackRows.Next() {
		var t models.Track
		if err := trackRows.Scan(&t.ID, &t.TrackNumber, &t.Name, &t.Length, &t.MaxSpeed, &t.CapacityPerHour); err != nil {
			log.Printf("Warning: failed to scan track: %v", err)
			continue
		}
		snap.Tracks = append(snap.Tracks, t)
	}

	query := `
		SELECT id, schedule_number, train_id, track_id,
		       departure_station_id, arrival_station_id,
		       scheduled_departure, scheduled_arrival,
		       distance, estimated_duration,
		       passenger_capacity, passenger_count, priority
		FROM schedule
		WHERE scheduled_departure >= $1 AND scheduled_departure <= $2
	`
	args := []interface{}{from, to}
	argCount := 2

	if len(trainIDs) > 0 {
		argCount++
		query += fmt.Sprintf(" AND train_id = ANY($%d)", argCount)
		args = append(args, trainIDs)
	}
	if len(trackIDs) > 0 {
		argCount++
		query += fmt.Sprintf(" AND track_id = ANY($%d)", argCount)
		args = append(args, trackIDs)
	}

	query += " ORDER BY scheduled_departure, id"

	schedRows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedules: %w", err)
	}
	defer schedRows.Close()

	for schedRows.Next() {
		var s models.Schedule
		if err := schedRows.Scan(&s.ID, &s.ScheduleNumber, &s.TrainID, &s.TrackID,
			&s.DepartureStationID, &s.ArrivalStationID,
			&s.ScheduledDeparture, &s.ScheduledArrival,
			&s.Distance, &s.EstimatedDuration,
			&s.PassengerCapacity, &s.PassengerCount, &s.Priority); err != nil {
			log.Printf("Warning: failed to scan schedule: %v", err)
			continue
		}
		snap.Schedules = append(snap.Schedules, s)
	}

	log.Printf("Snapshot loaded in %v (%d schedules, %d trains, %d tracks)",
		time.Since(startTime), len(snap.Schedules), len(snap.Trains), len(snap.Tracks))

	return snap, nil
}

// TrainsExist reports whether every id refers to a known train
func TrainsExist(ctx context.Context, pool *pgxpool.Pool, ids []int64) (bool, error) {
	return idsExist(ctx, pool, "train", ids)
}

// TracksExist reports whether every id refers to a known track
func TracksExist(ctx context.Context, pool *pgxpool.Pool, ids []int64) (bool, error) {
	return idsExist(ctx, pool, "track", ids)
}

func idsExist(ctx context.Context, pool *pgxpool.Pool, table string, ids []int64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}

	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ANY($1)", table)
	if err := pool.QueryRow(ctx, query, ids).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count %s ids: %w", table, err)
	}
	return count == len(ids), nil
}
