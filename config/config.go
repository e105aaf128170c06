package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// StoreDriver selects the relational backend: "sqlite" or "postgres".
	StoreDriver string
	SQLitePath  string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// ScrapeDelayMs is the politeness pause between retailers.
	ScrapeDelayMs int
	// PaceMs is the politeness pause between simulated UI interactions.
	PaceMs int
	// NavWaitTimeoutS bounds each readiness wait in script-driven navigation.
	NavWaitTimeoutS int
	// FetchTimeoutS bounds one static page request.
	FetchTimeoutS int
	MaxRetries    int

	// Default search geometry when none is given on the environment.
	TyreWidth   int
	AspectRatio int
	RimDiameter int

	CSVOutputPath string
	ChromeBin     string
	Verbose       bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		StoreDriver: getEnv("STORE_DRIVER", "sqlite"),
		SQLitePath:  getEnv("SQLITE_PATH", "./tyres.db"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "tyre_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		ScrapeDelayMs:   getEnvInt("SCRAPE_DELAY_MS", 5000),
		PaceMs:          getEnvInt("PACE_MS", 500),
		NavWaitTimeoutS: getEnvInt("NAV_WAIT_TIMEOUT_S", 60),
		FetchTimeoutS:   getEnvInt("FETCH_TIMEOUT_S", 10),
		MaxRetries:      getEnvInt("MAX_RETRIES", 3),

		TyreWidth:   getEnvInt("TYRE_WIDTH", 205),
		AspectRatio: getEnvInt("ASPECT_RATIO", 55),
		RimDiameter: getEnvInt("RIM_DIAMETER", 16),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/tyre_scrape.csv"),
		ChromeBin:     getEnv("CHROME_BIN", ""),
		Verbose:       getEnv("VERBOSE", "") != "",
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// ScrapeDelay returns the inter-retailer politeness delay.
func (c *Config) ScrapeDelay() time.Duration {
	return time.Duration(c.ScrapeDelayMs) * time.Millisecond
}

// Pace returns the inter-interaction politeness delay.
func (c *Config) Pace() time.Duration {
	return time.Duration(c.PaceMs) * time.Millisecond
}

// NavWaitTimeout returns the bound for one readiness wait.
func (c *Config) NavWaitTimeout() time.Duration {
	return time.Duration(c.NavWaitTimeoutS) * time.Second
}

// FetchTimeout returns the bound for one static page request.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutS) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
