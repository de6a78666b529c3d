package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Quidge/diffharness/internal/backend"
	"github.com/Quidge/diffharness/internal/harness"
)

// GlobalConfig represents the global configuration loaded from
// ~/.config/diffharness/config.yaml
type GlobalConfig struct {
	Version       int                 `yaml:"version"`
	Harness       HarnessConfig       `yaml:"harness"`
	Validator     ValidatorConfig     `yaml:"validator"`
	Reconditioner ReconditionerConfig `yaml:"reconditioner"`
	State         StateConfig         `yaml:"state"`
	Drivers       map[string]Driver   `yaml:"drivers"`
	Targets       []string            `yaml:"targets"`
}

// HarnessConfig controls local execution.
type HarnessConfig struct {
	// Path is the harness binary used for local targets. Empty means the
	// running executable.
	Path        string        `yaml:"path"`
	Timeout     time.Duration `yaml:"timeout"`
	Parallelism int           `yaml:"parallelism"`
}

// ValidatorConfig locates the reference validation service.
type ValidatorConfig struct {
	Address string `yaml:"address"`
}

// ReconditionerConfig names the external reconditioning command.
type ReconditionerConfig struct {
	Command []string `yaml:"command"`
}

// StateConfig locates the run history database.
type StateConfig struct {
	Path string `yaml:"path"`
}

// Driver configures the driver for one implementation. The map key in
// GlobalConfig.Drivers is the implementation name (wgpu, dawn).
type Driver struct {
	Type    string            `yaml:"type"`
	Command []string          `yaml:"command"`
	Env     map[string]EnvVar `yaml:"env"`
}

// ProjectConfig represents the project configuration loaded from
// .diffharness.yaml in a shader corpus directory.
type ProjectConfig struct {
	Version     int           `yaml:"version"`
	Configs     []string      `yaml:"configs"`
	Targets     []string      `yaml:"targets"`
	Timeout     time.Duration `yaml:"timeout"`
	Parallelism int           `yaml:"parallelism"`
}

// EnvVar represents an environment variable value.
// It can be either a literal string or a from_file reference.
type EnvVar struct {
	Value    string // Literal value (after expansion)
	FromFile string // Path to file containing value
}

// UnmarshalYAML implements custom unmarshaling for EnvVar to handle
// both string values and {from_file: path} objects.
func (e *EnvVar) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err == nil {
		e.Value = str
		return nil
	}

	var obj struct {
		FromFile string `yaml:"from_file"`
	}
	if err := value.Decode(&obj); err != nil {
		return err
	}
	e.FromFile = obj.FromFile
	return nil
}

// MarshalYAML writes the form UnmarshalYAML accepts.
func (e EnvVar) MarshalYAML() (any, error) {
	if e.FromFile != "" {
		return map[string]string{"from_file": e.FromFile}, nil
	}
	return e.Value, nil
}

// MergedConfig represents the final merged configuration
// after applying precedence rules (defaults → global → project → flags).
type MergedConfig struct {
	HarnessPath string        `yaml:"harness_path"`
	Timeout     time.Duration `yaml:"timeout"`
	Parallelism int           `yaml:"parallelism"`

	// Configs are the configurations to run; empty means defaults.
	Configs []harness.ConfigID `yaml:"configs"`

	Targets              []string `yaml:"targets"`
	ValidatorAddress     string   `yaml:"validator_address"`
	ReconditionerCommand []string `yaml:"reconditioner_command"`

	// StatePath is empty when the default database location applies.
	StatePath string `yaml:"state_path"`

	// Drivers are sorted by implementation, with environments expanded.
	Drivers []backend.DriverConfig `yaml:"drivers"`
}

// DefaultGlobalConfig returns a GlobalConfig with sensible defaults.
func DefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		Version: 1,
		Harness: HarnessConfig{
			Timeout: time.Minute,
		},
	}
}

// DefaultProjectConfig returns a ProjectConfig with sensible defaults.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
	}
}
