package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/railops/railsim_core/internal/models"
	"github.com/redis/go-redis/v9"
)

var (
	client     *redis.Client
	clientOnce sync.Once
	clientErr  error
)

// Config holds Redis configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	RunTTL   time.Duration
	StopTTL  time.Duration
}

// LoadConfigFromEnv loads Redis configuration from environment variables
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	runTTL, _ := time.ParseDuration(getEnv("SIMULATION_TTL", "2h"))
	stopTTL, _ := time.ParseDuration(getEnv("SIMULATION_STOP_TTL", "5m"))

	return &Config{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     port,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
		RunTTL:   runTTL,
		StopTTL:  stopTTL,
	}
}

// GetClient returns the global Redis client (singleton pattern)
func GetClient() (*redis.Client, error) {
	clientOnce.Do(func() {
		config := LoadConfigFromEnv()

		opts := &redis.Options{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			Password:     config.Password,
			DB:           config.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		}

		// Enable TLS if configured (required for managed Redis providers)
		if getEnv("REDIS_TLS_ENABLED", "false") == "true" {
			opts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}

		client = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			clientErr = fmt.Errorf("failed to connect to Redis: %w", err)
			return
		}
	})

	return client, clientErr
}

// Close closes the Redis client
func Close() {
	if client != nil {
		client.Close()
	}
}

// SimulationKey generates the cache key for a run record
func SimulationKey(simulationID string) string {
	return fmt.Sprintf("simulation:%s", simulationID)
}

// StopKey generates the cache key for a run's stop flag
func StopKey(simulationID string) string {
	return fmt.Sprintf("simulation:%s:stop", simulationID)
}

// GetSimulation retrieves a cached run record, nil on cache miss
func GetSimulation(ctx context.Context, simulationID string) (*models.SimulationRecord, error) {
	client, err := GetClient()
	if err != nil {
		return nil, err
	}

	data, err := client.Get(ctx, SimulationKey(simulationID)).Bytes()
	if err == redis.Nil {
		return nil, nil // expired or never existed
	}
	if err != nil {
		return nil, err
	}

	var rec models.SimulationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached simulation: %w", err)
	}

	return &rec, nil
}

// SetSimulation publishes a run record under the configured TTL
func SetSimulation(ctx context.Context, rec *models.SimulationRecord, ttl time.Duration) error {
	client, err := GetClient()
	if err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal simulation record: %w", err)
	}

	return client.Set(ctx, SimulationKey(rec.SimulationID), data, ttl).Err()
}

// RequestStop sets the stop flag a running simulation polls through its
// progress callback
func RequestStop(ctx context.Context, simulationID string, ttl time.Duration) error {
	client, err := GetClient()
	if err != nil {
		return err
	}
	return client.Set(ctx, StopKey(simulationID), "true", ttl).Err()
}

// StopRequested reports whether a stop flag is set for the run
func StopRequested(ctx context.Context, simulationID string) (bool, error) {
	client, err := GetClient()
	if err != nil {
		return false, err
	}

	exists, err := client.Exists(ctx, StopKey(simulationID)).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// ClearStop removes a run's stop flag
func ClearStop(ctx context.Context, simulationID string) error {
	client, err := GetClient()
	if err != nil {
		return err
	}
	return client.Del(ctx, StopKey(simulationID)).Err()
}

// ListSimulations scans all cached run records, newest first
func ListSimulations(ctx context.Context) ([]models.SimulationRecord, error) {
	client, err := GetClient()
	if err != nil {
		return nil, err
	}

	var records []models.SimulationRecord
	iter := client.Scan(ctx, 0, "simulation:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, ":stop") {
			continue
		}

		data, err := client.Get(ctx, key).Bytes()
		if err != nil {
			continue // expired between scan and get
		}

		var rec models.SimulationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// HealthCheck performs a health check on the Redis connection
func HealthCheck(ctx context.Context) error {
	client, err := GetClient()
	if err != nil {
		return fmt.Errorf("Redis client not initialized: %w", err)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
