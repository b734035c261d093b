package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	StoreDriver  string
	PostgresDSN  string
	SQLitePath   string
	KafkaBrokers []string

	CouncilRosterPath       string
	CouncilDefaultThreshold float64
	CouncilDefaultSize      int
	CouncilVotingWindow     time.Duration
	WorkerPollInterval      time.Duration

	EnableCouncilCutoffSweeper        bool
	EnableCouncilFinalizationConsumer bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "coai-council"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	driver := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER")))
	switch driver {
	case "":
		driver = StoreDriverMemory
		if os.Getenv("POSTGRES_DSN") != "" {
			driver = StoreDriverPostgres
		}
	case StoreDriverMemory, StoreDriverPostgres, StoreDriverSQLite:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER %q is not one of memory, postgres, sqlite", driver)
	}

	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if sqlitePath == "" {
		sqlitePath = "data/council.db"
	}

	threshold, err := envFloat("COUNCIL_DEFAULT_THRESHOLD", 0.67)
	if err != nil {
		return Config{}, err
	}
	size, err := envInt("COUNCIL_DEFAULT_SIZE", 0)
	if err != nil {
		return Config{}, err
	}
	window, err := envDuration("COUNCIL_VOTING_WINDOW", 0)
	if err != nil {
		return Config{}, err
	}
	poll, err := envDuration("WORKER_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	if poll <= 0 {
		poll = 2 * time.Second
	}

	cfg := Config{
		ServiceName:  service,
		HTTPPort:     port,
		StoreDriver:  driver,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		SQLitePath:   sqlitePath,
		KafkaBrokers: brokers,

		CouncilRosterPath:       strings.TrimSpace(os.Getenv("COUNCIL_ROSTER_PATH")),
		CouncilDefaultThreshold: threshold,
		CouncilDefaultSize:      size,
		CouncilVotingWindow:     window,
		WorkerPollInterval:      poll,

		EnableCouncilCutoffSweeper:        envBool("ENABLE_COUNCIL_CUTOFF_SWEEPER", true),
		EnableCouncilFinalizationConsumer: envBool("ENABLE_COUNCIL_FINALIZATION_CONSUMER", true),
	}
	if cfg.StoreDriver == StoreDriverPostgres && cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("STORE_DRIVER postgres requires POSTGRES_DSN")
	}
	return cfg, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envFloat(name string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}

func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return value, nil
}

// envDuration accepts Go duration strings ("90s") or a bare number of seconds.
func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return value, nil
}
