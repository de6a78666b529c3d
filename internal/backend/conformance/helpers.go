package conformance

import (
	"github.com/Quidge/diffharness/internal/harness"
	"github.com/Quidge/diffharness/internal/reflection"
)

// EchoProgram leaves its storage buffer unchanged, so a conforming driver
// returns the buffer's initial contents.
const EchoProgram = `@group(0) @binding(0) var<storage, read_write> data: array<u32, 4>;
@group(0) @binding(1) var<uniform> scale: u32;
@group(0) @binding(2) var<storage, read_write> flag: u32;

@compute @workgroup_size(1)
fn main() {
    data[0] = data[0];
    flag = flag;
}
`

// EchoInit is the initial content of EchoProgram's first storage buffer.
var EchoInit = []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0}

// EchoPipeline describes EchoProgram's resources. The uniform between the
// two storage buffers must not produce an output buffer.
func EchoPipeline() reflection.PipelineDescription {
	return reflection.PipelineDescription{
		Resources: []reflection.Resource{
			{Kind: reflection.ResourceStorageBuffer, Group: 0, Binding: 0, Size: 16, Init: EchoInit},
			{Kind: reflection.ResourceUniformBuffer, Group: 0, Binding: 1, Size: 4, Init: []byte{2, 0, 0, 0}},
			{Kind: reflection.ResourceStorageBuffer, Group: 0, Binding: 2, Size: 4},
		},
	}
}

// EchoTypes are the resource types of EchoPipeline.
func EchoTypes() []reflection.Type {
	return []reflection.Type{
		reflection.Array(reflection.Scalar(reflection.ScalarU32), 4),
		reflection.Scalar(reflection.ScalarU32),
		reflection.Scalar(reflection.ScalarU32),
	}
}

// MissingDevice returns a config on the same implementation and backend
// as cfg whose device id is not among adapters.
func MissingDevice(cfg harness.ConfigID, adapters []harness.Config) harness.ConfigID {
	used := make(map[uint32]bool, len(adapters))
	for _, a := range adapters {
		used[a.ID.DeviceID] = true
	}
	missing := cfg
	for missing.DeviceID = 0xfffffff0; used[missing.DeviceID]; missing.DeviceID++ {
	}
	return missing
}
