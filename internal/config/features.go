package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/lanefeatures/internal/units"
)

// DefaultConfigPath is the path to the canonical feature defaults file.
const DefaultConfigPath = "config/features.defaults.json"

// FeatureConfig holds the tunables for feature extraction and the host
// plumbing around it. Every field is optional; the Get* accessors supply the
// default for anything left unset, so partial files are safe.
type FeatureConfig struct {
	// Smoothing
	MovingAverageWindow   *int    `json:"moving_average_window,omitempty"`
	SmoothLateralDistance *bool   `json:"smooth_lateral_distance,omitempty"`
	SmoothCurvature       *bool   `json:"smooth_curvature,omitempty"`
	ResetOnGap            *string `json:"reset_on_gap,omitempty"` // duration string like "1s"

	// Curvature frames with v_ego below this are skipped, not estimated.
	MinEgoSpeedMPS *float64 `json:"min_ego_speed_mps,omitempty"`

	// Reporting
	SpeedUnits    *string `json:"speed_units,omitempty"`
	StatsInterval *string `json:"stats_interval,omitempty"` // duration string like "10s"

	// Serial frame source
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty"`
	SerialDataBits *int    `json:"serial_data_bits,omitempty"`
	SerialStopBits *int    `json:"serial_stop_bits,omitempty"`
	SerialParity   *string `json:"serial_parity,omitempty"`

	// PCAP replay
	UDPPort *int `json:"udp_port,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyFeatureConfig returns a FeatureConfig with every field unset.
func EmptyFeatureConfig() *FeatureConfig {
	return &FeatureConfig{}
}

// DefaultFeatureConfig returns a FeatureConfig with every field populated
// from the built-in defaults.
func DefaultFeatureConfig() *FeatureConfig {
	return &FeatureConfig{
		MovingAverageWindow:   ptrInt(defaultMovingAverageWindow),
		SmoothLateralDistance: ptrBool(true),
		SmoothCurvature:       ptrBool(true),
		ResetOnGap:            ptrString(defaultResetOnGap.String()),
		MinEgoSpeedMPS:        ptrFloat64(defaultMinEgoSpeedMPS),
		SpeedUnits:            ptrString(units.MPS),
		StatsInterval:         ptrString(defaultStatsInterval.String()),
		SerialBaudRate:        ptrInt(defaultSerialBaudRate),
		SerialDataBits:        ptrInt(8),
		SerialStopBits:        ptrInt(1),
		SerialParity:          ptrString("N"),
		UDPPort:               ptrInt(defaultUDPPort),
	}
}

const (
	defaultMovingAverageWindow = 5
	defaultMinEgoSpeedMPS      = 0.1
	defaultResetOnGap          = time.Second
	defaultStatsInterval       = 10 * time.Second
	defaultSerialBaudRate      = 115200
	defaultUDPPort             = 7000
)

// LoadFeatureConfig loads a FeatureConfig from a JSON file. The path must
// have a .json extension and the file must be under 1MB.
func LoadFeatureConfig(path string) (*FeatureConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyFeatureConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// one of its parents. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *FeatureConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from cmd/<tool>/ nested one deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadFeatureConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that every set field is within range.
func (c *FeatureConfig) Validate() error {
	if c.MovingAverageWindow != nil && *c.MovingAverageWindow < 1 {
		return fmt.Errorf("moving_average_window must be at least 1, got %d", *c.MovingAverageWindow)
	}

	if c.MinEgoSpeedMPS != nil && *c.MinEgoSpeedMPS < 0 {
		return fmt.Errorf("min_ego_speed_mps must be non-negative, got %f", *c.MinEgoSpeedMPS)
	}

	for name, d := range map[string]*string{
		"reset_on_gap":   c.ResetOnGap,
		"stats_interval": c.StatsInterval,
	} {
		if d == nil || *d == "" {
			continue
		}
		v, err := time.ParseDuration(*d)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
		}
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *d)
		}
	}

	if c.SpeedUnits != nil && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("invalid speed_units %q, must be one of: %s", *c.SpeedUnits, units.GetValidUnitsString())
	}

	if c.SerialDataBits != nil && (*c.SerialDataBits < 5 || *c.SerialDataBits > 8) {
		return fmt.Errorf("serial_data_bits must be between 5 and 8, got %d", *c.SerialDataBits)
	}
	if c.SerialStopBits != nil && *c.SerialStopBits != 1 && *c.SerialStopBits != 2 {
		return fmt.Errorf("serial_stop_bits must be 1 or 2, got %d", *c.SerialStopBits)
	}
	if c.SerialParity != nil {
		switch strings.ToUpper(strings.TrimSpace(*c.SerialParity)) {
		case "", "N", "NONE", "E", "EVEN", "O", "ODD":
		default:
			return fmt.Errorf("unsupported serial_parity %q: expected N, E, or O", *c.SerialParity)
		}
	}

	if c.UDPPort != nil && (*c.UDPPort < 1 || *c.UDPPort > 65535) {
		return fmt.Errorf("udp_port must be between 1 and 65535, got %d", *c.UDPPort)
	}

	return nil
}

// GetMovingAverageWindow returns the moving_average_window value or the default.
func (c *FeatureConfig) GetMovingAverageWindow() int {
	if c.MovingAverageWindow == nil {
		return defaultMovingAverageWindow
	}
	return *c.MovingAverageWindow
}

// GetSmoothLateralDistance returns the smooth_lateral_distance value or the default.
func (c *FeatureConfig) GetSmoothLateralDistance() bool {
	if c.SmoothLateralDistance == nil {
		return true
	}
	return *c.SmoothLateralDistance
}

// GetSmoothCurvature returns the smooth_curvature value or the default.
func (c *FeatureConfig) GetSmoothCurvature() bool {
	if c.SmoothCurvature == nil {
		return true
	}
	return *c.SmoothCurvature
}

// GetResetOnGap parses ResetOnGap. Zero disables gap resets.
func (c *FeatureConfig) GetResetOnGap() time.Duration {
	return parseDurationOr(c.ResetOnGap, defaultResetOnGap)
}

// GetMinEgoSpeedMPS returns the min_ego_speed_mps value or the default.
func (c *FeatureConfig) GetMinEgoSpeedMPS() float64 {
	if c.MinEgoSpeedMPS == nil {
		return defaultMinEgoSpeedMPS
	}
	return *c.MinEgoSpeedMPS
}

// GetSpeedUnits returns the speed_units value or the default.
func (c *FeatureConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil || *c.SpeedUnits == "" {
		return units.MPS
	}
	return *c.SpeedUnits
}

// GetStatsInterval parses StatsInterval. Zero disables periodic stats logging.
func (c *FeatureConfig) GetStatsInterval() time.Duration {
	return parseDurationOr(c.StatsInterval, defaultStatsInterval)
}

// GetSerialBaudRate returns the serial_baud_rate value or the default.
func (c *FeatureConfig) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return defaultSerialBaudRate
	}
	return *c.SerialBaudRate
}

// GetSerialDataBits returns the serial_data_bits value or the default.
func (c *FeatureConfig) GetSerialDataBits() int {
	if c.SerialDataBits == nil {
		return 8
	}
	return *c.SerialDataBits
}

// GetSerialStopBits returns the serial_stop_bits value or the default.
func (c *FeatureConfig) GetSerialStopBits() int {
	if c.SerialStopBits == nil {
		return 1
	}
	return *c.SerialStopBits
}

// GetSerialParity returns the serial_parity value or the default.
func (c *FeatureConfig) GetSerialParity() string {
	if c.SerialParity == nil || *c.SerialParity == "" {
		return "N"
	}
	return *c.SerialParity
}

// GetUDPPort returns the udp_port value or the default.
func (c *FeatureConfig) GetUDPPort() int {
	if c.UDPPort == nil {
		return defaultUDPPort
	}
	return *c.UDPPort
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}
