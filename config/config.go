package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string `validate:"required"`
	PostgresPort     string `validate:"required,numeric"`
	PostgresUser     string `validate:"required"`
	PostgresPassword string
	PostgresDB       string `validate:"required"`
	PostgresSSLMode  string `validate:"oneof=disable require verify-ca verify-full"`
	UsePostgres      bool

	Scrape              bool
	MaxConcurrency      int `validate:"gte=1"`
	RateLimitMs         int `validate:"gte=0"`
	MaxRetries          int `validate:"gte=1"`
	ListingsPerLocality int `validate:"gte=1"`
	ChromeBin           string
	TargetsPath         string

	RawListingsGlob string `validate:"required"`
	MetricsCSVPath  string `validate:"required_without=UsePostgres"`
	CostSheetPath   string `validate:"required"`
	CostSheetName   string `validate:"required"`
	OutputCSVPath   string `validate:"required"`
	ChartDir        string
	ChartPNG        bool

	Clusters        int     `validate:"gte=1"`
	Seed            int64
	MaxIterations   int     `validate:"gte=1"`
	Workers         int     `validate:"gte=1"`
	DetectAnomalies bool
	Contamination   float64 `validate:"gt=0,lte=0.5"`
	MinOccupancy    float64 `validate:"gte=0,lte=100"`
	RemoveOutliers  bool

	LogLevel string `validate:"oneof=debug info warn error"`
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "pricing"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "pricing123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		UsePostgres:      getEnvBool("USE_POSTGRES", true),

		Scrape:              getEnvBool("SCRAPE", false),
		MaxConcurrency:      getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:         getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:          getEnvInt("MAX_RETRIES", 3),
		ListingsPerLocality: getEnvInt("LISTINGS_PER_LOCALITY", 10),
		ChromeBin:           getEnv("CHROME_BIN", ""),
		TargetsPath:         getEnv("TARGETS_PATH", "./targets.yaml"),

		RawListingsGlob: getEnv("RAW_LISTINGS_GLOB", "./output/raw_listings*.csv"),
		MetricsCSVPath:  getEnv("METRICS_CSV_PATH", ""),
		CostSheetPath:   getEnv("COST_SHEET_PATH", "./data/cost_price.xlsx"),
		CostSheetName:   getEnv("COST_SHEET_NAME", "Cost Price"),
		OutputCSVPath:   getEnv("OUTPUT_CSV_PATH", "./output/price_recommendations.csv"),
		ChartDir:        getEnv("CHART_DIR", "./output/charts"),
		ChartPNG:        getEnvBool("CHART_PNG", false),

		Clusters:        getEnvInt("CLUSTERS", 5),
		Seed:            int64(getEnvInt("SEED", 42)),
		MaxIterations:   getEnvInt("MAX_ITERATIONS", 300),
		Workers:         getEnvInt("WORKERS", runtime.GOMAXPROCS(0)),
		DetectAnomalies: getEnvBool("DETECT_ANOMALIES", true),
		Contamination:   getEnvFloat("CONTAMINATION", 0.1),
		MinOccupancy:    getEnvFloat("MIN_OCCUPANCY", 20),
		RemoveOutliers:  getEnvBool("REMOVE_OUTLIERS", true),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
}

// Validate checks every field against its constraints and reports all
// violations at once.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("config: validate: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
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

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
