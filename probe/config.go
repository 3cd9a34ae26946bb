package probe

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultAttempts     = 3
	DefaultPingTimeout  = 800 * time.Millisecond
	DefaultMinSuccesses = 2
)

// ErrInvalidConfig is wrapped by every error returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid probe config")

// Config holds the parameters of a single probe run. A zero ExpectBytes
// means that throughput is computed from the measured body sizes, and a zero
// MinThroughputKbps disables the throughput gate.
type Config struct {
	Attempts          int           `yaml:"attempts"`
	PingTimeout       time.Duration `yaml:"ping_timeout"`
	MinSuccesses      int           `yaml:"min_successes"`
	ExpectBytes       int64         `yaml:"expect_bytes"`
	MinThroughputKbps float64       `yaml:"min_throughput_kbps"`
}

// DefaultConfig returns the configuration used when the caller has no
// preference.
func DefaultConfig() Config {
	return Config{
		Attempts:     DefaultAttempts,
		PingTimeout:  DefaultPingTimeout,
		MinSuccesses: DefaultMinSuccesses,
	}
}

// Validate checks that the configuration can produce meaningful aggregates.
func (c Config) Validate() error {
	switch {
	case c.Attempts < 0:
		return fmt.Errorf("%w: attempts must not be negative, got %d", ErrInvalidConfig, c.Attempts)
	case c.PingTimeout <= 0:
		return fmt.Errorf("%w: ping timeout must be positive, got %v", ErrInvalidConfig, c.PingTimeout)
	case c.MinSuccesses < 0:
		return fmt.Errorf("%w: min successes must not be negative, got %d", ErrInvalidConfig, c.MinSuccesses)
	case c.MinSuccesses > c.Attempts:
		return fmt.Errorf("%w: min successes (%d) exceeds attempts (%d)", ErrInvalidConfig, c.MinSuccesses, c.Attempts)
	case c.ExpectBytes < 0:
		return fmt.Errorf("%w: expected bytes must not be negative, got %d", ErrInvalidConfig, c.ExpectBytes)
	case c.MinThroughputKbps < 0 || math.IsNaN(c.MinThroughputKbps) || math.IsInf(c.MinThroughputKbps, 0):
		return fmt.Errorf("%w: min throughput must be a non-negative number, got %v", ErrInvalidConfig, c.MinThroughputKbps)
	}
	return nil
}

// LoadConfig reads a YAML probe profile from path. Keys missing from the
// file keep their DefaultConfig value. The result is validated.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}
