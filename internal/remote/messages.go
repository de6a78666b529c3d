// Package remote carries composite harness runs and validation requests
// over TCP. Each connection carries exactly one CBOR encoded Request
// followed by one Response.
package remote

// Request is sent by the client. Exactly one field is set.
type Request struct {
	Run      *RunRequest      `cbor:"1,keyasint,omitempty"`
	Validate *ValidateRequest `cbor:"2,keyasint,omitempty"`
}

// RunRequest asks the server to run the composite harness.
type RunRequest struct {
	Program string `cbor:"1,keyasint"`

	// Metadata is the content of the metadata document.
	Metadata []byte `cbor:"2,keyasint"`

	// Configs are canonical config ids; empty means the server's defaults.
	Configs []string `cbor:"3,keyasint"`
}

// ValidateRequest asks the server to check Source with the reference
// compiler for Backend.
type ValidateRequest struct {
	Backend string `cbor:"1,keyasint"`
	Source  string `cbor:"2,keyasint"`
}

// Response is the server's reply. Error is set when the server could not
// process the request at all.
type Response struct {
	Error    string            `cbor:"1,keyasint,omitempty"`
	Run      *RunResponse      `cbor:"2,keyasint,omitempty"`
	Validate *ValidateResponse `cbor:"3,keyasint,omitempty"`
}

// RunResponse carries the harness exit code and its output lines.
type RunResponse struct {
	ExitCode int      `cbor:"1,keyasint"`
	Lines    []string `cbor:"2,keyasint"`
}

// ValidateResponse reports a validation outcome.
type ValidateResponse struct {
	Failed     bool   `cbor:"1,keyasint"`
	Diagnostic string `cbor:"2,keyasint"`
}
