package backend

import (
	"context"
	"fmt"
	"slices"

	"github.com/Quidge/diffharness/internal/harness"
	"github.com/Quidge/diffharness/internal/reflection"
)

// defaultTargets is the preference order used to pick default
// configurations: one adapter per (implementation, backend) pair.
var defaultTargets = []struct {
	Implementation harness.Implementation
	Backend        harness.BackendType
}{
	{harness.ImplementationDawn, harness.BackendDx12},
	{harness.ImplementationDawn, harness.BackendMetal},
	{harness.ImplementationDawn, harness.BackendVulkan},
	{harness.ImplementationWgpu, harness.BackendDx12},
	{harness.ImplementationWgpu, harness.BackendMetal},
	{harness.ImplementationWgpu, harness.BackendVulkan},
}

// Set holds the driver configured for each implementation.
type Set struct {
	drivers map[harness.Implementation]Driver
}

// NewSet creates a driver for every configuration.
func NewSet(cfgs []DriverConfig) (*Set, error) {
	s := &Set{drivers: make(map[harness.Implementation]Driver, len(cfgs))}
	for _, cfg := range cfgs {
		if _, ok := s.drivers[cfg.Implementation]; ok {
			return nil, fmt.Errorf("implementation %s configured twice", cfg.Implementation)
		}
		d, err := Get(cfg)
		if err != nil {
			return nil, fmt.Errorf("implementation %s: %w", cfg.Implementation, err)
		}
		s.drivers[cfg.Implementation] = d
	}
	return s, nil
}

// NewSetFromDrivers wraps already constructed drivers.
func NewSetFromDrivers(drivers map[harness.Implementation]Driver) *Set {
	return &Set{drivers: drivers}
}

// QueryConfigs returns every configuration available on this host, sorted
// by config id. Implementations whose driver fails to enumerate are
// skipped; their errors are returned alongside the partial result.
func (s *Set) QueryConfigs(ctx context.Context) ([]harness.Config, []error) {
	var (
		configs []harness.Config
		errs    []error
	)
	for _, impl := range harness.Implementations {
		d, ok := s.drivers[impl]
		if !ok {
			continue
		}
		adapters, err := d.Adapters(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", impl, err))
			continue
		}
		for _, a := range adapters {
			// Drivers only report adapters for their own implementation.
			a.ID.Implementation = impl
			configs = append(configs, a)
		}
	}
	slices.SortFunc(configs, func(a, b harness.Config) int {
		return a.ID.Compare(b.ID)
	})
	return configs, errs
}

// DefaultConfigs picks the first available adapter for every
// (implementation, backend) pair, in preference order.
func (s *Set) DefaultConfigs(ctx context.Context) []harness.ConfigID {
	available, _ := s.QueryConfigs(ctx)
	return SelectDefaults(available)
}

// SelectDefaults applies the default preference order to available.
func SelectDefaults(available []harness.Config) []harness.ConfigID {
	var configs []harness.ConfigID
	for _, target := range defaultTargets {
		for _, c := range available {
			if c.ID.Implementation == target.Implementation && c.ID.Backend == target.Backend {
				configs = append(configs, c.ID)
				break
			}
		}
	}
	return configs
}

// Run executes program on cfg using the driver for its implementation.
func (s *Set) Run(ctx context.Context, program string, pipeline reflection.PipelineDescription, cfg harness.ConfigID) ([][]byte, error) {
	d, ok := s.drivers[cfg.Implementation]
	if !ok {
		return nil, fmt.Errorf("no driver configured for implementation %s", cfg.Implementation)
	}
	return d.Run(ctx, program, pipeline, cfg)
}
