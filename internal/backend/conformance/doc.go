// Package conformance provides implementation-agnostic tests that verify
// drivers correctly implement the backend.Driver contract.
//
// The suite runs against the command driver in regular `go test` runs,
// using the test binary as a fake external executable. Real drivers are
// checked with the conformance build tag, which runs the suite against
// every driver in the global configuration:
//
//	go test -tags=conformance ./internal/backend/conformance
//
// # Adding a New Driver Type
//
// Register the driver type, then run the suite for it:
//
//	func TestMyDriverConformance(t *testing.T) {
//	    d, _ := backend.Get(backend.DriverConfig{Implementation: harness.ImplementationWgpu, Type: "my-driver"})
//	    suite := &Suite{Driver: d, Implementation: harness.ImplementationWgpu}
//	    suite.Run(t)
//	}
//
// # Test Categories
//
// The suite tests:
//   - Adapters: enumeration, implementation labels, uniqueness
//   - Execution: one buffer per storage buffer, buffer sizes, determinism
//   - Failures: unknown devices and cancelled contexts are errors
package conformance
