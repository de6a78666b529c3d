package history

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Quidge/diffharness/internal/state"
)

// isolate points the config and state locations at a temporary directory
// and returns the state database path.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Chdir(dir)
	return filepath.Join(dir, "data", "diffharness", "state.db")
}

// seed records runs in the database at path.
func seed(t *testing.T, path string, runs ...*state.Run) {
	t.Helper()
	db, err := state.Open(path)
	if err != nil {
		t.Fatalf("failed to open state database: %v", err)
	}
	defer db.Close()
	for _, r := range runs {
		if err := db.CreateRun(r); err != nil {
			t.Fatalf("CreateRun(%s) failed: %v", r.ID, err)
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	Cmd.SetOut(&out)
	Cmd.SetErr(&out)
	Cmd.SetArgs(args)
	err := Cmd.Execute()
	return out.String(), err
}

func testRun(id string, outcome state.Outcome) *state.Run {
	return &state.Run{
		ID:          id,
		Kind:        state.KindRun,
		ProgramPath: "shader.wgsl",
		ProgramHash: state.HashProgram("fn main() {}"),
		CreatedAt:   time.Now().Add(-time.Hour),
		Outcome:     outcome,
	}
}

func TestFormatAmbiguousPrefixError(t *testing.T) {
	now := time.Now()

	err := &state.AmbiguousPrefixError{
		Prefix: "abc",
		Matches: []*state.Run{
			{ID: "abc123def456abc123def456abc12345", Kind: state.KindRun, Outcome: state.OutcomeSuccess, CreatedAt: now},
			{ID: "abc456def789abc456def789abc45678", Kind: state.KindTestCrash, Outcome: state.OutcomeInteresting, CreatedAt: now},
		},
	}

	msg := FormatAmbiguousPrefixError(err).Error()

	for _, want := range []string{
		`ambiguous run ID "abc"`,
		"matches 2 runs",
		"abc123def456",
		"abc456def789",
		"test-crash",
		"interesting",
		"use a longer prefix",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in message, got: %s", want, msg)
		}
	}
}

func TestFormatTimeAgo(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{2 * 24 * time.Hour, "2d ago"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatTimeAgo(time.Now().Add(-tt.ago)); got != tt.want {
				t.Errorf("formatTimeAgo(-%s) = %q, want %q", tt.ago, got, tt.want)
			}
		})
	}
}

func TestLookupRun(t *testing.T) {
	db, err := state.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for _, id := range []string{"aa11", "aa22", "bb33"} {
		if err := db.CreateRun(testRun(id, state.OutcomePending)); err != nil {
			t.Fatal(err)
		}
	}

	if run, err := lookupRun(db, "bb"); err != nil || run.ID != "bb33" {
		t.Errorf("lookupRun(bb) = %v, %v; want bb33", run, err)
	}

	tests := []struct {
		prefix string
		want   string
	}{
		{"cc", "not found"},
		{"aa", "matches 2 runs"},
		{"zz", "hexadecimal"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			_, err := lookupRun(db, tt.prefix)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("lookupRun(%q) error = %v, want it to contain %q", tt.prefix, err, tt.want)
			}
		})
	}
}

func TestListCommand(t *testing.T) {
	path := isolate(t)

	t.Run("empty", func(t *testing.T) {
		out, err := execute(t, "list")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(out, "No runs found.") {
			t.Errorf("unexpected output: %s", out)
		}
	})

	seed(t, path,
		testRun("aaaa1111", state.OutcomeSuccess),
		testRun("bbbb2222", state.OutcomeMismatch),
	)

	t.Run("all", func(t *testing.T) {
		out, err := execute(t, "list")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(out, "aaaa1111") || !strings.Contains(out, "bbbb2222") {
			t.Errorf("expected both runs, got: %s", out)
		}
	})

	t.Run("by outcome", func(t *testing.T) {
		out, err := execute(t, "list", "--outcome", "mismatch")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if strings.Contains(out, "aaaa1111") || !strings.Contains(out, "bbbb2222") {
			t.Errorf("expected only the mismatch run, got: %s", out)
		}
	})

	t.Run("invalid outcome", func(t *testing.T) {
		_, err := execute(t, "list", "--outcome", "bogus")
		if !errors.Is(err, state.ErrInvalidOutcome) {
			t.Errorf("expected ErrInvalidOutcome, got %v", err)
		}
	})
}

func TestShowAndRmCommands(t *testing.T) {
	path := isolate(t)
	seed(t, path, testRun("cccc3333", state.OutcomeCrash))

	db, err := state.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	err = db.AddExecution(&state.Execution{
		RunID:      "cccc3333",
		Config:     "wgpu:vulkan:1",
		Outcome:    state.ExecutionFailure,
		Diagnostic: "device lost",
	})
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "show", "ccc")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	for _, want := range []string{"cccc3333", "crash", "wgpu:vulkan:1", "device lost"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got: %s", want, out)
		}
	}

	if _, err := execute(t, "rm", "cccc"); err != nil {
		t.Fatalf("rm failed: %v", err)
	}
	if _, err := execute(t, "show", "cccc"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found after rm, got %v", err)
	}
}
