package execution

import "github.com/Quidge/diffharness/internal/harness"

// Event is one entry of the stream produced by Orchestrator.Execute.
//
// For a given configuration, Start is always delivered before its
// terminal event (Success, Failure or Timeout). Events of different
// configurations interleave in scheduling order.
type Event interface {
	isEvent()
}

// UsingDefaults is delivered first when the request named no
// configurations and the default list was substituted.
type UsingDefaults struct {
	Configs []harness.ConfigID
}

// Start is delivered just before a worker is spawned for Config.
type Start struct {
	Config harness.ConfigID
}

// Success carries the raw storage buffers reported by the worker.
type Success struct {
	Config  harness.ConfigID
	Buffers [][]byte
}

// Failure carries the diagnostic a failed worker wrote to stderr.
type Failure struct {
	Config harness.ConfigID
	Stderr []byte
}

// Timeout is delivered when the worker was killed after exceeding the
// request's timeout. Any partial output is discarded.
type Timeout struct {
	Config harness.ConfigID
}

func (UsingDefaults) isEvent() {}
func (Start) isEvent()         {}
func (Success) isEvent()       {}
func (Failure) isEvent()       {}
func (Timeout) isEvent()       {}

// Terminal reports whether e ends the execution of its configuration.
func Terminal(e Event) bool {
	switch e.(type) {
	case Success, Failure, Timeout:
		return true
	}
	return false
}
