package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the full agent configuration surface.
type Config struct {
	Server    ServerConfig
	Branch    BranchConfig
	Inventory InventoryConfig
	Scanner   ScannerConfig
	Reporting ReportingConfig
	MongoDB   MongoDBConfig
	Sheets    SheetsConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// BranchConfig identifies the branch this agent is deployed at. Unprivileged
// lookups are pinned to this branch.
type BranchConfig struct {
	Code string
	Name string
}

// InventoryConfig contains connection settings for the remote inventory and
// audit-store service.
type InventoryConfig struct {
	BaseURL  string
	APIToken string
}

// ScannerConfig selects and tunes the barcode decoder hardware profile.
type ScannerConfig struct {
	// Mode is the default hardware profile: "camera" or "hid".
	Mode string
	// SerialPort pins the hid profile to a specific port; empty means the
	// first enumerated port.
	SerialPort string
	BaudRate   int
	// CameraDecoderBin is the external continuous decoder executed for the
	// camera profile.
	CameraDecoderBin string
	// CameraDevice pins the camera profile to a device path; empty means
	// rear-facing heuristic selection.
	CameraDevice string
}

// ReportingConfig holds the report refresh poll and the daily summary job.
type ReportingConfig struct {
	RefreshSchedule  string
	SnapshotSchedule string
	Timezone         string
}

// MongoDBConfig holds settings for the local journal database.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// SheetsConfig contains configuration for the supervisors' summary
// spreadsheet. Publishing is skipped entirely when CredentialsPath is empty.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from
		// the environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Branch: BranchConfig{
			Code: os.Getenv("BRANCH_CODE"),
			Name: os.Getenv("BRANCH_NAME"),
		},
		Inventory: InventoryConfig{
			BaseURL:  os.Getenv("INVENTORY_BASE_URL"),
			APIToken: os.Getenv("INVENTORY_API_TOKEN"),
		},
		Scanner: ScannerConfig{
			Mode:             getenvWithDefault("SCANNER_MODE", "camera"),
			SerialPort:       os.Getenv("SCANNER_SERIAL_PORT"),
			BaudRate:         getenvIntWithDefault("SCANNER_BAUD_RATE", 9600),
			CameraDecoderBin: getenvWithDefault("CAMERA_DECODER_BIN", "zbarcam"),
			CameraDevice:     os.Getenv("CAMERA_DEVICE"),
		},
		Reporting: ReportingConfig{
			RefreshSchedule:  getenvWithDefault("REPORT_REFRESH_SCHEDULE", "@every 2m"),
			SnapshotSchedule: getenvWithDefault("SNAPSHOT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:         getenvWithDefault("TIMEZONE", "UTC"),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "stockaudit"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_SUMMARY_ID"),
		},
		Metrics: MetricsConfig{
			Enabled: getenvWithDefault("METRICS_ENABLED", "true") == "true",
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Branch.Code == "" {
		return errors.New("BRANCH_CODE must be provided")
	}

	switch {
	case c.Inventory.BaseURL == "":
		return errors.New("INVENTORY_BASE_URL must be provided")
	case c.Inventory.APIToken == "":
		return errors.New("INVENTORY_API_TOKEN must be provided")
	}

	switch c.Scanner.Mode {
	case "camera", "hid":
	default:
		return fmt.Errorf("SCANNER_MODE must be \"camera\" or \"hid\", got %q", c.Scanner.Mode)
	}

	if c.Reporting.RefreshSchedule == "" {
		return errors.New("REPORT_REFRESH_SCHEDULE must be provided")
	}

	if c.Reporting.SnapshotSchedule == "" {
		return errors.New("SNAPSHOT_CRON_SCHEDULE must be provided")
	}

	if c.Sheets.CredentialsPath != "" && c.Sheets.SpreadsheetID == "" {
		return errors.New("GOOGLE_SHEET_SUMMARY_ID must be provided when sheets credentials are set")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvIntWithDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
