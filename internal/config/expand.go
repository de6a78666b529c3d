package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Quidge/diffharness/internal/pathutil"
)

// envVarPattern matches ${VAR} or ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	return pathutil.ExpandTilde(path)
}

// ExpandEnvVars expands ${VAR} patterns in a string using environment variables.
// If a variable is not set, it expands to an empty string.
func ExpandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]

		// ${VAR:-default}
		if idx := strings.Index(varName, ":-"); idx != -1 {
			name := varName[:idx]
			defaultVal := varName[idx+2:]
			if val, ok := os.LookupEnv(name); ok {
				return val
			}
			return defaultVal
		}

		return os.Getenv(varName)
	})
}

// ExpandPathEnv expands environment variables, then ~.
func ExpandPathEnv(path string) (string, error) {
	return ExpandPath(ExpandEnvVars(path))
}

// ReadFromFile reads the contents of a file and returns it as a string.
// The path is first expanded (~ expansion) before reading.
func ReadFromFile(path string) (string, error) {
	expandedPath, err := ExpandPath(path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}

	// Trim trailing newlines (common in secret files)
	return strings.TrimRight(string(data), "\n\r"), nil
}

// ExpandEnvMap processes a map of EnvVar values, expanding environment
// variables and reading from_file references. Returns a map of string values.
func ExpandEnvMap(envVars map[string]EnvVar) (map[string]string, error) {
	result := make(map[string]string, len(envVars))

	for key, envVar := range envVars {
		var value string
		var err error

		if envVar.FromFile != "" {
			value, err = ReadFromFile(ExpandEnvVars(envVar.FromFile))
			if err != nil {
				return nil, fmt.Errorf("failed to expand env var %s: %w", key, err)
			}
		} else {
			value = ExpandEnvVars(envVar.Value)
		}

		result[key] = value
	}

	return result, nil
}

// ExpandCommand expands environment variables and ~ in every element of
// a command line.
func ExpandCommand(command []string) ([]string, error) {
	if len(command) == 0 {
		return nil, nil
	}
	result := make([]string, len(command))
	for i, arg := range command {
		expanded, err := ExpandPathEnv(arg)
		if err != nil {
			return nil, err
		}
		result[i] = expanded
	}
	return result, nil
}
