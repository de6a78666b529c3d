// Package harness defines the identifiers shared by every part of the
// differential harness: which implementation, backend and adapter a
// program is executed on.
package harness

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Implementation is the WebGPU implementation a configuration runs on.
type Implementation string

const (
	ImplementationWgpu Implementation = "wgpu"
	ImplementationDawn Implementation = "dawn"
)

// Implementations lists every known implementation in canonical order.
var Implementations = []Implementation{
	ImplementationWgpu,
	ImplementationDawn,
}

// BackendType is the native graphics API underneath an implementation.
type BackendType string

const (
	BackendDx12   BackendType = "dx12"
	BackendMetal  BackendType = "metal"
	BackendVulkan BackendType = "vulkan"
)

// BackendTypes lists every known backend in canonical order.
var BackendTypes = []BackendType{
	BackendDx12,
	BackendMetal,
	BackendVulkan,
}

// ParseImplementation returns the Implementation named by s.
func ParseImplementation(s string) (Implementation, error) {
	for _, impl := range Implementations {
		if string(impl) == s {
			return impl, nil
		}
	}
	return "", fmt.Errorf("unknown implementation: %q", s)
}

// ParseBackendType returns the BackendType named by s.
func ParseBackendType(s string) (BackendType, error) {
	for _, b := range BackendTypes {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown backend: %q", s)
}

func implementationRank(impl Implementation) int {
	for i, v := range Implementations {
		if v == impl {
			return i
		}
	}
	return len(Implementations)
}

func backendRank(b BackendType) int {
	for i, v := range BackendTypes {
		if v == b {
			return i
		}
	}
	return len(BackendTypes)
}

// ConfigID identifies one (implementation, backend, adapter) triple.
//
// The canonical string form is "<implementation>:<backend>:<device-id>",
// e.g. "wgpu:vulkan:7425". ParseConfigID is the exact inverse of String.
// ConfigID is comparable and can be used as a map key.
type ConfigID struct {
	Implementation Implementation
	Backend        BackendType
	DeviceID       uint32
}

// String returns the canonical form of the config id.
func (c ConfigID) String() string {
	return fmt.Sprintf("%s:%s:%d", c.Implementation, c.Backend, c.DeviceID)
}

// ParseConfigID parses the canonical form produced by ConfigID.String.
func ParseConfigID(s string) (ConfigID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return ConfigID{}, fmt.Errorf("invalid config id %q: expected <implementation>:<backend>:<device-id>", s)
	}

	impl, err := ParseImplementation(parts[0])
	if err != nil {
		return ConfigID{}, fmt.Errorf("invalid config id %q: %w", s, err)
	}

	backend, err := ParseBackendType(parts[1])
	if err != nil {
		return ConfigID{}, fmt.Errorf("invalid config id %q: %w", s, err)
	}

	// Reject signs and leading zeros so that String(Parse(s)) == s.
	if parts[2] == "" || parts[2][0] == '+' || (len(parts[2]) > 1 && parts[2][0] == '0') {
		return ConfigID{}, fmt.Errorf("invalid config id %q: malformed device id", s)
	}
	deviceID, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return ConfigID{}, fmt.Errorf("invalid config id %q: malformed device id: %w", s, err)
	}

	return ConfigID{
		Implementation: impl,
		Backend:        backend,
		DeviceID:       uint32(deviceID),
	}, nil
}

// Compare orders config ids by implementation, backend, then device id.
func (c ConfigID) Compare(other ConfigID) int {
	if r := cmp.Compare(implementationRank(c.Implementation), implementationRank(other.Implementation)); r != 0 {
		return r
	}
	if r := cmp.Compare(backendRank(c.Backend), backendRank(other.Backend)); r != 0 {
		return r
	}
	return cmp.Compare(c.DeviceID, other.DeviceID)
}

// MarshalText implements encoding.TextMarshaler using the canonical form.
func (c ConfigID) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ConfigID) UnmarshalText(text []byte) error {
	parsed, err := ParseConfigID(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseConfigIDs parses each string in ss.
func ParseConfigIDs(ss []string) ([]ConfigID, error) {
	ids := make([]ConfigID, 0, len(ss))
	for _, s := range ss {
		id, err := ParseConfigID(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Config describes a configuration that is available on this host.
type Config struct {
	ID ConfigID

	// AdapterName is the human readable adapter name reported by the driver.
	AdapterName string
}
