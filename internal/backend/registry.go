package backend

import (
	"fmt"
	"sort"

	"github.com/Quidge/diffharness/internal/harness"
)

// DriverConfig contains configuration needed to initialize a driver.
type DriverConfig struct {
	// Implementation is the implementation the driver serves.
	Implementation harness.Implementation

	// Type is the driver type (e.g., "command").
	Type string

	// Command is the executable and leading arguments (command drivers only).
	Command []string

	// Environment contains extra environment variables for the driver.
	Environment map[string]string
}

// DriverFactory is a function that creates a new driver instance.
type DriverFactory func(cfg DriverConfig) (Driver, error)

// registry holds the registered driver factories.
var registry = make(map[string]DriverFactory)

// Register registers a driver factory for the given type.
// This should be called during package init.
func Register(driverType string, factory DriverFactory) {
	if _, ok := registry[driverType]; ok {
		panic(fmt.Sprintf("driver type %q already registered", driverType))
	}
	registry[driverType] = factory
}

// Get returns a new driver instance for the given configuration.
// Returns an error if the driver type is not registered.
func Get(cfg DriverConfig) (Driver, error) {
	factory, ok := registry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown driver type: %s", cfg.Type)
	}
	return factory(cfg)
}

// RegisteredTypes returns a sorted list of all registered driver types.
func RegisteredTypes() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
