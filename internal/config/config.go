// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/schedule"
)

type DatabaseConfig struct {
	Driver    string `yaml:"driver" validate:"required,oneof=sqlite turso"`
	Filename  string `yaml:"filename" validate:"required_if=Driver sqlite"`
	URL       string `yaml:"url,omitempty" validate:"required_if=Driver turso"`
	AuthToken string `yaml:"-"` // Loaded from environment
}

type ClubConfig struct {
	OpenTime        string         `yaml:"open_time" validate:"required"`
	CloseTime       string         `yaml:"close_time" validate:"required"`
	SlotMinutes     int            `yaml:"slot_minutes" validate:"gt=0,lte=1440"`
	Courts          []models.Court `yaml:"courts" validate:"required,min=1,dive"`
	MaxBookingSlots int            `yaml:"max_booking_slots" validate:"gte=1,lte=12"`
	PhoneRegion     string         `yaml:"phone_region" validate:"omitempty,len=2"`
}

// Schedule returns the YAML operating hours in the shape stored in club_config.
func (c ClubConfig) Schedule() models.ClubSchedule {
	return models.ClubSchedule{OpenTime: c.OpenTime, CloseTime: c.CloseTime, SlotMinutes: c.SlotMinutes}
}

type Config struct {
	App struct {
		Name        string `yaml:"name" validate:"required"`
		Environment string `yaml:"environment" validate:"omitempty,oneof=development staging production test"`
		Port        int    `yaml:"port" validate:"required,gt=0,lte=65535"`
		BaseURL     string `yaml:"base_url" validate:"omitempty,url"`
		Timezone    string `yaml:"timezone"`
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`

	Club ClubConfig `yaml:"club"`

	Payment struct {
		CheckoutURL string `yaml:"checkout_url" validate:"omitempty,url"`
		ReturnURL   string `yaml:"return_url" validate:"omitempty,url"`
	} `yaml:"payment"`

	Scheduler struct {
		PurgeCron              string `yaml:"purge_cron"`
		CancelledRetentionDays int    `yaml:"cancelled_retention_days" validate:"gte=0"`
	} `yaml:"scheduler"`

	RateLimit struct {
		MaxAttempts int           `yaml:"max_attempts" validate:"gte=0"`
		MaxPerIP    int           `yaml:"max_per_ip" validate:"gte=0"`
		Window      time.Duration `yaml:"window" validate:"gte=0"`
		TrustProxy  bool          `yaml:"trust_proxy"`
	} `yaml:"ratelimit"`

	Admin struct {
		TokenHash string `yaml:"-"` // Loaded from environment
	} `yaml:"-"`

	Features struct {
		EnableMetrics bool `yaml:"enable_metrics"`
		EnableDebug   bool `yaml:"enable_debug"`
	} `yaml:"features"`

	location *time.Location
}

// Defaults applied before the YAML file is decoded.
func defaults() Config {
	var cfg Config
	cfg.App.Environment = "development"
	cfg.App.Port = 8080
	cfg.App.Timezone = "Local"
	cfg.Database.Driver = "sqlite"
	cfg.Club.OpenTime = "14:00"
	cfg.Club.CloseTime = "00:00"
	cfg.Club.SlotMinutes = 60
	cfg.Club.MaxBookingSlots = 3
	cfg.Club.PhoneRegion = "US"
	cfg.Scheduler.PurgeCron = "0 4 * * *"
	cfg.Scheduler.CancelledRetentionDays = 30
	cfg.RateLimit.MaxAttempts = 10
	cfg.RateLimit.MaxPerIP = 30
	cfg.RateLimit.Window = 15 * time.Minute
	return cfg
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, pulls secrets from the environment and validates.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Load sensitive values from environment
	cfg.Database.AuthToken = os.Getenv("DATABASE_AUTH_TOKEN")
	cfg.Admin.TokenHash = os.Getenv("ADMIN_TOKEN_HASH")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}

	if c.Payment.CheckoutURL != "" && c.Payment.ReturnURL == "" {
		return fmt.Errorf("payment return_url is required when checkout_url is set")
	}

	if c.Database.Driver == "turso" && c.Database.AuthToken == "" {
		return fmt.Errorf("database auth token is required for turso")
	}

	if _, err := schedule.New(c.Club.OpenTime, c.Club.CloseTime, c.Club.SlotMinutes); err != nil {
		return err
	}

	seen := make(map[int64]struct{}, len(c.Club.Courts))
	for _, court := range c.Club.Courts {
		if _, dup := seen[court.ID]; dup {
			return fmt.Errorf("club courts: duplicate court id %d", court.ID)
		}
		seen[court.ID] = struct{}{}
	}

	if c.Scheduler.PurgeCron != "" {
		if _, err := cron.ParseStandard(c.Scheduler.PurgeCron); err != nil {
			return fmt.Errorf("scheduler purge_cron: %w", err)
		}
	}

	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return fmt.Errorf("app timezone: %w", err)
	}
	c.location = loc

	return nil
}

// Location is the club's timezone; "today" and slot instants are evaluated in it.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
