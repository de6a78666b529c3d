package target

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Quidge/diffharness/internal/bufcheck"
	"github.com/Quidge/diffharness/internal/harness"
	"github.com/Quidge/diffharness/internal/protocol"
)

// Line prefixes printed by a composite run.
const (
	ConsensusPrefix = "output-consensus: "
	GroupPrefix     = "output-group: "
)

// Result is the outcome of one composite run: Success, Crash or Mismatch.
type Result interface {
	isResult()
	String() string
}

// Success means every configuration agreed. Output is the consensus
// canonical output; it is empty when no configuration produced one (for
// example because all of them timed out).
type Success struct {
	Output []byte
}

// Crash means at least one configuration failed. Diagnostic holds the
// harness output, excluding consensus and group lines.
type Crash struct {
	Diagnostic string
}

// Mismatch means the target's own configurations disagreed.
type Mismatch struct {
	Groups []bufcheck.ConsensusEntry
}

func (Success) isResult()  {}
func (Crash) isResult()    {}
func (Mismatch) isResult() {}

func (Success) String() string  { return "success" }
func (Crash) String() string    { return "crash" }
func (Mismatch) String() string { return "mismatch" }

// FormatBytes renders b as "[1, 2, 3]".
func FormatBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(int(v))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ParseBytes is the inverse of FormatBytes.
func ParseBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("invalid byte list %q", s)
	}
	s = strings.TrimSpace(s[1 : len(s)-1])
	if s == "" {
		return []byte{}, nil
	}

	fields := strings.Split(s, ",")
	out := make([]byte, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %q in byte list", strings.TrimSpace(f))
		}
		out[i] = byte(v)
	}
	return out, nil
}

// FormatConsensus renders the line printed for an agreeing run.
func FormatConsensus(output []byte) string {
	return ConsensusPrefix + FormatBytes(output)
}

// FormatGroup renders one consensus group as
// "output-group: <id>,<id> [b0, b1, ...]".
func FormatGroup(g bufcheck.ConsensusEntry) string {
	return GroupPrefix + strings.Join(g.Members, ",") + " " + FormatBytes(g.Output)
}

func parseGroup(s string) (bufcheck.ConsensusEntry, error) {
	members, bytesStr, ok := strings.Cut(s, " ")
	if !ok {
		return bufcheck.ConsensusEntry{}, fmt.Errorf("invalid group line %q", s)
	}
	output, err := ParseBytes(bytesStr)
	if err != nil {
		return bufcheck.ConsensusEntry{}, err
	}
	return bufcheck.ConsensusEntry{Output: output, Members: strings.Split(members, ",")}, nil
}

// Classify turns a composite run's exit code and output lines into a
// Result. Exit codes other than 0, 1 and 101 are errors.
func Classify(exitCode int, lines []string) (Result, error) {
	var (
		consensus  []byte
		groups     []bufcheck.ConsensusEntry
		diagnostic strings.Builder
	)

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, ConsensusPrefix):
			out, err := ParseBytes(strings.TrimPrefix(line, ConsensusPrefix))
			if err != nil {
				return nil, err
			}
			consensus = out
		case strings.HasPrefix(line, GroupPrefix):
			g, err := parseGroup(strings.TrimPrefix(line, GroupPrefix))
			if err != nil {
				return nil, err
			}
			groups = append(groups, g)
		default:
			diagnostic.WriteString(line)
			diagnostic.WriteByte('\n')
		}
	}

	kind, err := protocol.ClassifyHarnessExit("harness", exitCode)
	if err != nil {
		return nil, err
	}
	switch kind {
	case protocol.ExitKindMismatch:
		return Mismatch{Groups: groups}, nil
	case protocol.ExitKindFailure:
		return Crash{Diagnostic: diagnostic.String()}, nil
	}
	return Success{Output: consensus}, nil
}

// Invocation is one composite run request.
type Invocation struct {
	Program      string
	MetadataPath string
	Configs      []harness.ConfigID
}

// Args returns the harness arguments for inv; the program is read from
// stdin. Flags come first and "--" ends them, so a metadata path starting
// with "-" is never parsed as a flag.
func (inv Invocation) Args() []string {
	args := []string{"run"}
	for _, c := range inv.Configs {
		args = append(args, "-c", c.String())
	}
	return append(args, "--print-output-if-ok", "--", "-", inv.MetadataPath)
}
