package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/Quidge/diffharness/internal/backend"
	"github.com/Quidge/diffharness/internal/harness"
)

// FlagOverrides contains CLI flag values that override configuration.
type FlagOverrides struct {
	HarnessPath string
	Timeout     time.Duration
	Parallelism int
	Configs     []string
	Targets     []string
	Validator   string
	StatePath   string
}

// Merge combines global config, project config, and CLI flag overrides
// following the precedence order: defaults → global → project → flags.
// Returns the merged configuration ready for use.
func Merge(global GlobalConfig, project ProjectConfig, flags FlagOverrides) (MergedConfig, error) {
	merged := MergedConfig{
		Timeout:          global.Harness.Timeout,
		Parallelism:      global.Harness.Parallelism,
		Targets:          global.Targets,
		ValidatorAddress: global.Validator.Address,
	}

	// Project config overrides global settings
	if project.Timeout != 0 {
		merged.Timeout = project.Timeout
	}
	if project.Parallelism != 0 {
		merged.Parallelism = project.Parallelism
	}
	if len(project.Targets) > 0 {
		merged.Targets = project.Targets
	}
	configs := project.Configs

	// CLI flags override everything
	if flags.Timeout != 0 {
		merged.Timeout = flags.Timeout
	}
	if flags.Parallelism != 0 {
		merged.Parallelism = flags.Parallelism
	}
	if len(flags.Configs) > 0 {
		configs = flags.Configs
	}
	if len(flags.Targets) > 0 {
		merged.Targets = flags.Targets
	}
	if flags.Validator != "" {
		merged.ValidatorAddress = flags.Validator
	}

	if merged.Parallelism < 0 {
		return MergedConfig{}, fmt.Errorf("parallelism must not be negative, got %d", merged.Parallelism)
	}
	if merged.Timeout < 0 {
		return MergedConfig{}, fmt.Errorf("timeout must not be negative, got %s", merged.Timeout)
	}

	var err error
	if merged.Configs, err = harness.ParseConfigIDs(configs); err != nil {
		return MergedConfig{}, err
	}

	harnessPath := global.Harness.Path
	if flags.HarnessPath != "" {
		harnessPath = flags.HarnessPath
	}
	if merged.HarnessPath, err = ExpandPathEnv(harnessPath); err != nil {
		return MergedConfig{}, fmt.Errorf("harness path: %w", err)
	}

	statePath := global.State.Path
	if flags.StatePath != "" {
		statePath = flags.StatePath
	}
	if merged.StatePath, err = ExpandPathEnv(statePath); err != nil {
		return MergedConfig{}, fmt.Errorf("state path: %w", err)
	}

	if merged.ReconditionerCommand, err = ExpandCommand(global.Reconditioner.Command); err != nil {
		return MergedConfig{}, fmt.Errorf("reconditioner command: %w", err)
	}

	if merged.Drivers, err = driverConfigs(global.Drivers); err != nil {
		return MergedConfig{}, err
	}

	return merged, nil
}

// driverConfigs converts the drivers section into backend driver
// configurations, sorted by implementation.
func driverConfigs(drivers map[string]Driver) ([]backend.DriverConfig, error) {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]backend.DriverConfig, 0, len(names))
	for _, name := range names {
		d := drivers[name]
		impl, err := harness.ParseImplementation(name)
		if err != nil {
			return nil, fmt.Errorf("drivers: %w", err)
		}
		command, err := ExpandCommand(d.Command)
		if err != nil {
			return nil, fmt.Errorf("driver %s command: %w", name, err)
		}
		env, err := ExpandEnvMap(d.Env)
		if err != nil {
			return nil, fmt.Errorf("driver %s: %w", name, err)
		}
		result = append(result, backend.DriverConfig{
			Implementation: impl,
			Type:           d.Type,
			Command:        command,
			Environment:    env,
		})
	}
	return result, nil
}

// Load loads both global and project configuration, then merges them
// with the provided flag overrides.
func Load(projectDir string, flags FlagOverrides) (MergedConfig, error) {
	global, err := LoadGlobalConfig()
	if err != nil {
		return MergedConfig{}, fmt.Errorf("failed to load global config: %w", err)
	}

	project, err := LoadProjectConfigFromDir(projectDir)
	if err != nil {
		return MergedConfig{}, fmt.Errorf("failed to load project config: %w", err)
	}

	return Merge(global, project, flags)
}

// LoadFromCwd loads configuration using the current working directory
// as the starting point of the project config search.
func LoadFromCwd(flags FlagOverrides) (MergedConfig, error) {
	global, err := LoadGlobalConfig()
	if err != nil {
		return MergedConfig{}, fmt.Errorf("failed to load global config: %w", err)
	}

	project, err := LoadProjectConfig("")
	if err != nil {
		return MergedConfig{}, fmt.Errorf("failed to load project config: %w", err)
	}

	return Merge(global, project, flags)
}
