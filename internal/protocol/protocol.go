// Package protocol defines the messages exchanged with a worker process
// over its standard streams, and the worker exit code contract.
//
// The orchestrator writes one Input message to the worker's stdin. On a
// normal exit (code 0) the worker's stdout holds exactly one Output
// message. Exit code 101 means the execution itself failed and stderr
// holds a free-form diagnostic. Any other code is a protocol violation.
//
// Both messages are encoded as deterministic CBOR (RFC 8949 core
// deterministic encoding), so the same value always produces the same
// bytes and decoding never accepts truncated or trailing data.
package protocol

import (
	"errors"
	"fmt"
	"io"

	"github.com/Quidge/diffharness/internal/reflection"
	"github.com/fxamacker/cbor/v2"
)

// Input is written by the orchestrator to a freshly spawned worker.
type Input struct {
	Program  string                         `cbor:"1,keyasint"`
	Pipeline reflection.PipelineDescription `cbor:"2,keyasint"`
}

// Output is written by a worker after a successful execution. Buffers
// holds one entry per storage buffer, in declaration order.
type Output struct {
	Buffers [][]byte `cbor:"1,keyasint"`
}

// DecodeError reports a malformed or truncated message.
type DecodeError struct {
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s message: %v", e.Message, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: invalid cbor encoding options: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: invalid cbor decoding options: %v", err))
	}
}

// Marshal encodes v with the deterministic encoding shared by both ends.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes exactly one message from data into v. Trailing bytes
// are rejected.
func Unmarshal(message string, data []byte, v any) error {
	rest, err := decMode.UnmarshalFirst(data, v)
	if err != nil {
		return &DecodeError{Message: message, Err: err}
	}
	if len(rest) != 0 {
		return &DecodeError{Message: message, Err: fmt.Errorf("%d trailing bytes", len(rest))}
	}
	return nil
}

// NewEncoder returns a stream encoder for framed request/response traffic.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a stream decoder for framed request/response traffic.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// EncodeInput returns the wire form of in.
func EncodeInput(in Input) ([]byte, error) {
	return Marshal(in)
}

// WriteInput encodes in to w.
func WriteInput(w io.Writer, in Input) error {
	data, err := EncodeInput(in)
	if err != nil {
		return fmt.Errorf("failed to encode input: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write input: %w", err)
	}
	return nil
}

// DecodeInput decodes an Input message.
func DecodeInput(data []byte) (Input, error) {
	var in Input
	if err := Unmarshal("input", data, &in); err != nil {
		return Input{}, err
	}
	return in, nil
}

// ReadInput reads r to EOF and decodes an Input message.
func ReadInput(r io.Reader) (Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Input{}, fmt.Errorf("failed to read input: %w", err)
	}
	return DecodeInput(data)
}

// EncodeOutput returns the wire form of out.
func EncodeOutput(out Output) ([]byte, error) {
	return Marshal(out)
}

// WriteOutput encodes out to w.
func WriteOutput(w io.Writer, out Output) error {
	data, err := EncodeOutput(out)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// DecodeOutput decodes an Output message.
func DecodeOutput(data []byte) (Output, error) {
	var out Output
	if err := Unmarshal("output", data, &out); err != nil {
		return Output{}, err
	}
	return out, nil
}

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
