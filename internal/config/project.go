package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfigFilename is the name of the project configuration file.
const ProjectConfigFilename = ".diffharness.yaml"

// FindProjectConfig searches for a .diffharness.yaml file starting from the
// given directory and walking up to parent directories until it finds one
// or reaches the filesystem root.
func FindProjectConfig(startDir string) (string, error) {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ProjectConfigFilename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// LoadProjectConfig loads the project configuration from .diffharness.yaml.
// If configPath is empty, searches from the current directory.
// If the file doesn't exist, returns default configuration (not an error).
// If the file exists but is invalid YAML, returns an error.
func LoadProjectConfig(configPath string) (ProjectConfig, error) {
	if configPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return DefaultProjectConfig(), nil
		}
		configPath, err = FindProjectConfig(cwd)
		if err != nil || configPath == "" {
			return DefaultProjectConfig(), nil
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultProjectConfig(), nil
		}
		return ProjectConfig{}, fmt.Errorf("failed to read project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ProjectConfig{}, fmt.Errorf("invalid YAML in %s: %w", configPath, err)
	}

	if cfg.Version == 0 {
		cfg.Version = DefaultProjectConfig().Version
	}
	return cfg, nil
}

// LoadProjectConfigFromDir loads the project configuration from a specific directory.
func LoadProjectConfigFromDir(dir string) (ProjectConfig, error) {
	return LoadProjectConfig(filepath.Join(dir, ProjectConfigFilename))
}

// ProjectConfigExists checks if a .diffharness.yaml file exists in the given directory.
func ProjectConfigExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ProjectConfigFilename))
	return err == nil
}

// WriteProjectConfigTemplate writes the commented project template into dir.
func WriteProjectConfigTemplate(dir string, minimal bool) (string, error) {
	content := ProjectConfigTemplate
	if minimal {
		content = ProjectConfigMinimalTemplate
	}
	configPath := filepath.Join(dir, ProjectConfigFilename)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return configPath, nil
}
