package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/railops/railsim_core/internal/db"
)

// Seeds a synthetic rail network into Postgres so the simulation API has
// entities to snapshot: stations, trains, tracks and a day of schedules.
func main() {
	trains := flag.Int("trains", 12, "Number of trains to create")
	tracks := flag.Int("tracks", 6, "Number of tracks to create")
	schedulesPerTrack := flag.Int("schedules-per-track", 8, "Schedules per track over the seeded day")
	seed := flag.Int64("seed", 1, "Random seed for the generated network")
	drop := flag.Bool("drop", false, "Drop and recreate tables before seeding")

	flag.Parse()

	if *trains <= 0 || *tracks <= 0 || *schedulesPerTrack <= 0 {
		fmt.Println("Usage: railsim-seed [--trains=12] [--tracks=6] [--schedules-per-track=8] [--seed=1] [--drop]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	log.Println("Seeding synthetic rail network...")
	log.Printf("Trains: %d, Tracks: %d, Schedules/track: %d", *trains, *tracks, *schedulesPerTrack)

	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if err := runSeed(ctx, pool, *trains, *tracks, *schedulesPerTrack, *seed, *drop); err != nil {
		log.Fatalf("Seed failed: %v", err)
	}

	log.Println("Seed completed successfully!")
}

func runSeed(ctx context.Context, pool *pgxpool.Pool, trains, tracks, schedulesPerTrack int, seed int64, drop bool) error {
	startTime := time.Now()
	rng := rand.New(rand.NewSource(seed))

	if drop {
		log.Println("Step 1/4: Dropping existing tables...")
		if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS schedule, track, train, station`); err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}
	}

	log.Println("Step 2/4: Creating tables...")
	if err := createTables(ctx, pool); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Step 3/4: Inserting stations, trains and tracks...")
	stationIDs, err := insertStations(ctx, tx, tracks+1)
	if err != nil {
		return fmt.Errorf("failed to insert stations: %w", err)
	}
	trainIDs, err := insertTrains(ctx, tx, trains, rng)
	if err != nil {
		return fmt.Errorf("failed to insert trains: %w", err)
	}
	trackIDs, err := insertTracks(ctx, tx, tracks, stationIDs, rng)
	if err != nil {
		return fmt.Errorf("failed to insert tracks: %w", err)
	}

	log.Println("Step 4/4: Inserting schedules...")
	count, err := insertSchedules(ctx, tx, trainIDs, trackIDs, stationIDs, schedulesPerTrack, rng)
	if err != nil {
		return fmt.Errorf("failed to insert schedules: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("Seeded %d trains, %d tracks, %d schedules in %v",
		len(trainIDs), len(trackIDs), count, time.Since(startTime))
	return nil
}

func createTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS station (
			id BIGSERIAL PRIMARY KEY,
			code TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS train (
			id BIGSERIAL PRIMARY KEY,
			train_number TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			capacity INT NOT NULL,
			max_speed DOUBLE PRECISION NOT NULL,
			current_location TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS track (
			id BIGSERIAL PRIMARY KEY,
			track_number TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			length DOUBLE PRECISION NOT NULL,
			max_speed DOUBLE PRECISION NOT NULL,
			capacity_per_hour INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS schedule (
			id BIGSERIAL PRIMARY KEY,
			schedule_number TEXT UNIQUE NOT NULL,
			train_id BIGINT NOT NULL REFERENCES train(id),
			track_id BIGINT NOT NULL REFERENCES track(id),
			departure_station_id BIGINT NOT NULL REFERENCES station(id),
			arrival_station_id BIGINT NOT NULL REFERENCES station(id),
			scheduled_departure TIMESTAMPTZ NOT NULL,
			scheduled_arrival TIMESTAMPTZ NOT NULL,
			distance DOUBLE PRECISION NOT NULL,
			estimated_duration INT NOT NULL,
			passenger_capacity INT NOT NULL,
			passenger_count INT NOT NULL,
			priority INT NOT NULL DEFAULT 5,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_schedule_departure ON schedule (scheduled_departure);
	`)
	return err
}

func insertStations(ctx context.Context, tx pgx.Tx, n int) ([]int64, error) {
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO station (code, name)
			VALUES ($1, $2)
			ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, fmt.Sprintf("ST%02d", i+1), fmt.Sprintf("Station %d", i+1)).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func insertTrains(ctx context.Context, tx pgx.Tx, n int, rng *rand.Rand) ([]int64, error) {
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		capacity := 150 + rng.Intn(5)*50 // 150..350
		maxSpeed := 100 + float64(rng.Intn(9))*10

		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO train (train_number, name, capacity, max_speed, current_location)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (train_number) DO UPDATE SET capacity = EXCLUDED.capacity
			RETURNING id
		`, fmt.Sprintf("TR%03d", i+1), fmt.Sprintf("Regional %d", i+1), capacity, maxSpeed, "depot").Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func insertTracks(ctx context.Context, tx pgx.Tx, n int, stationIDs []int64, rng *rand.Rand) ([]int64, error) {
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		length := 30 + float64(rng.Intn(12))*10 // 30..140 km

		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO track (track_number, name, length, max_speed, capacity_per_hour)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (track_number) DO UPDATE SET length = EXCLUDED.length
			RETURNING id
		`, fmt.Sprintf("TK%02d", i+1),
			fmt.Sprintf("Line %d-%d", i+1, i+2),
			length, 140.0, 8+rng.Intn(6)).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func insertSchedules(ctx context.Context, tx pgx.Tx, trainIDs, trackIDs, stationIDs []int64, perTrack int, rng *rand.Rand) (int, error) {
	dayStart := time.Now().UTC().Truncate(time.Hour)
	count := 0

	for ti, trackID := range trackIDs {
		for j := 0; j < perTrack; j++ {
			trainID := trainIDs[rng.Intn(len(trainIDs))]
			depStation := stationIDs[ti]
			arrStation := stationIDs[ti+1]

			departure := dayStart.Add(time.Duration(j*3+rng.Intn(2)) * time.Hour)
			duration := 45 + rng.Intn(75) // minutes
			distance := 40 + float64(rng.Intn(10))*10
			capacity := 200
			passengers := 60 + rng.Intn(120)

			_, err := tx.Exec(ctx, `
				INSERT INTO schedule (schedule_number, train_id, track_id,
					departure_station_id, arrival_station_id,
					scheduled_departure, scheduled_arrival,
					distance, estimated_duration,
					passenger_capacity, passenger_count, priority)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (schedule_number) DO NOTHING
			`, fmt.Sprintf("SC%02d%02d", ti+1, j+1), trainID, trackID,
				depStation, arrStation,
				departure, departure.Add(time.Duration(duration)*time.Minute),
				distance, duration,
				capacity, passengers, 1+rng.Intn(10))
			if err != nil {
				return count, err
			}
			count++
		}
	}

	return count, nil
}
