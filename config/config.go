// Package config defines the structures to configure a waypoint follower and the ability to read
// them from JSON or YAML files.
package config

import (
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/waypointfollower/follower"
	"go.viam.com/waypointfollower/logging"
	"go.viam.com/waypointfollower/waypoint"
)

// Defaults applied by Validate to unset fields.
const (
	DefaultStalenessThreshold = time.Second
	DefaultTickPeriod         = 100 * time.Millisecond
	DefaultBindAddress        = "localhost:8080"
	DefaultSimulationSpeed    = 2.0
	DefaultSimulationPeriod   = 50 * time.Millisecond
)

// A Config describes the configuration of a waypoint follower.
type Config struct {
	ConfigFilePath string `json:"-" yaml:"-"`

	Waypoints            *waypoint.Config `json:"waypoints" yaml:"waypoints"`
	ArrivalToleranceM    float64          `json:"arrival_tolerance_m" yaml:"arrival_tolerance_m"`
	HeadingToleranceRad  float64          `json:"heading_tolerance_rad,omitempty" yaml:"heading_tolerance_rad,omitempty"`
	StalenessThresholdMs int              `json:"staleness_threshold_ms,omitempty" yaml:"staleness_threshold_ms,omitempty"`
	TickPeriodMs         int              `json:"tick_period_ms,omitempty" yaml:"tick_period_ms,omitempty"`
	Loops                int              `json:"loops,omitempty" yaml:"loops,omitempty"`
	WarningIntervalMs    int              `json:"warning_interval_ms,omitempty" yaml:"warning_interval_ms,omitempty"`
	Debug                bool             `json:"debug,omitempty" yaml:"debug,omitempty"`
	// LogFile, if set, also writes logs to a rotated file.
	LogFile string `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	// Log sets the level of individual loggers by name pattern.
	Log []logging.LoggerPatternConfig `json:"log,omitempty" yaml:"log,omitempty"`

	Web        WebConfig         `json:"web" yaml:"web"`
	Telemetry  *TelemetryConfig  `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
	Simulation *SimulationConfig `json:"simulation,omitempty" yaml:"simulation,omitempty"`

	// Store is populated by Read once the waypoints are loaded.
	Store *waypoint.Store `json:"-" yaml:"-"`
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return fmt.Sprintf("%s.%s", path, field)
}

// Validate ensures all parts of the config are valid and fills in defaults.
func (c *Config) Validate(path string) error {
	if c.Waypoints == nil {
		return waypoint.NewMissingConfigError(utils.NewConfigValidationFieldRequiredError(path, "waypoints"))
	}
	if err := c.Waypoints.Validate(joinPath(path, "waypoints")); err != nil {
		return err
	}
	if c.ArrivalToleranceM == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "arrival_tolerance_m")
	}
	if c.ArrivalToleranceM < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("arrival_tolerance_m must be positive, got %v", c.ArrivalToleranceM))
	}
	if c.HeadingToleranceRad < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("heading_tolerance_rad must not be negative, got %v", c.HeadingToleranceRad))
	}
	for field, value := range map[string]int{
		"staleness_threshold_ms": c.StalenessThresholdMs,
		"tick_period_ms":         c.TickPeriodMs,
		"loops":                  c.Loops,
		"warning_interval_ms":    c.WarningIntervalMs,
	} {
		if value < 0 {
			return utils.NewConfigValidationError(path, errors.Errorf("%s must not be negative, got %d", field, value))
		}
	}
	if c.StalenessThresholdMs == 0 {
		c.StalenessThresholdMs = int(DefaultStalenessThreshold / time.Millisecond)
	}
	if c.TickPeriodMs == 0 {
		c.TickPeriodMs = int(DefaultTickPeriod / time.Millisecond)
	}

	for idx, lpc := range c.Log {
		logPath := joinPath(path, fmt.Sprintf("log.%d", idx))
		if !logging.ValidatePattern(lpc.Pattern) {
			return utils.NewConfigValidationError(logPath, errors.Errorf("invalid logger pattern %q", lpc.Pattern))
		}
		if _, err := logging.LevelFromString(lpc.Level); err != nil {
			return utils.NewConfigValidationError(logPath, err)
		}
	}

	if err := c.Web.Validate(joinPath(path, "web")); err != nil {
		return err
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(joinPath(path, "telemetry")); err != nil {
			return err
		}
	}
	if c.Simulation != nil {
		if err := c.Simulation.Validate(joinPath(path, "simulation")); err != nil {
			return err
		}
	}
	return nil
}

// StalenessThreshold is the age after which the vehicle pose feed is considered stale.
func (c *Config) StalenessThreshold() time.Duration {
	return time.Duration(c.StalenessThresholdMs) * time.Millisecond
}

// WarningInterval is the minimum interval between repeated stale input warnings. Zero means the
// monitor default.
func (c *Config) WarningInterval() time.Duration {
	return time.Duration(c.WarningIntervalMs) * time.Millisecond
}

// FollowerConfig returns the follower tunables.
func (c *Config) FollowerConfig() follower.Config {
	return follower.Config{
		ArrivalTolerance: c.ArrivalToleranceM,
		HeadingTolerance: c.HeadingToleranceRad,
		TickPeriod:       time.Duration(c.TickPeriodMs) * time.Millisecond,
		Loops:            c.Loops,
	}
}

// WebConfig configures the HTTP command and websocket endpoints.
type WebConfig struct {
	BindAddress string   `json:"bind_address,omitempty" yaml:"bind_address,omitempty"`
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (wc *WebConfig) Validate(path string) error {
	if wc.BindAddress == "" {
		wc.BindAddress = DefaultBindAddress
	}
	if _, _, err := net.SplitHostPort(wc.BindAddress); err != nil {
		return utils.NewConfigValidationError(path, errors.Wrap(err, "error validating bind_address"))
	}
	return nil
}

// TelemetryConfig describes an InfluxDB bucket that goals and poses are recorded to.
type TelemetryConfig struct {
	URL    string `json:"url" yaml:"url"`
	Token  string `json:"token" yaml:"token"`
	Org    string `json:"org" yaml:"org"`
	Bucket string `json:"bucket" yaml:"bucket"`
}

// Validate ensures all parts of the config are valid.
func (tc *TelemetryConfig) Validate(path string) error {
	if tc.URL == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "url")
	}
	if tc.Org == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "org")
	}
	if tc.Bucket == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "bucket")
	}
	return nil
}

// SimulationConfig enables the built in fake vehicle.
type SimulationConfig struct {
	Enabled        bool      `json:"enabled" yaml:"enabled"`
	SpeedMPS       float64   `json:"speed_mps,omitempty" yaml:"speed_mps,omitempty"`
	UpdatePeriodMs int       `json:"update_period_ms,omitempty" yaml:"update_period_ms,omitempty"`
	Start          []float64 `json:"start,omitempty" yaml:"start,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (sc *SimulationConfig) Validate(path string) error {
	if sc.SpeedMPS < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("speed_mps must not be negative, got %v", sc.SpeedMPS))
	}
	if sc.UpdatePeriodMs < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("update_period_ms must not be negative, got %d", sc.UpdatePeriodMs))
	}
	if len(sc.Start) != 0 && len(sc.Start) != 3 && len(sc.Start) != 4 {
		return utils.NewConfigValidationError(path, errors.Errorf("start must have 3 or 4 values, got %d", len(sc.Start)))
	}
	if sc.SpeedMPS == 0 {
		sc.SpeedMPS = DefaultSimulationSpeed
	}
	if sc.UpdatePeriodMs == 0 {
		sc.UpdatePeriodMs = int(DefaultSimulationPeriod / time.Millisecond)
	}
	return nil
}

// UpdatePeriod is how often the fake vehicle moves and reports its pose.
func (sc *SimulationConfig) UpdatePeriod() time.Duration {
	return time.Duration(sc.UpdatePeriodMs) * time.Millisecond
}
