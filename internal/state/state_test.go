package state

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

// openTestDB creates an in-memory database for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newRun(id string, kind RunKind, created time.Time) *Run {
	return &Run{
		ID:          id,
		Kind:        kind,
		ProgramPath: "shader.wgsl",
		ProgramHash: HashProgram("fn main() {}"),
		CreatedAt:   created,
		Outcome:     OutcomePending,
	}
}

// createRun inserts a run and fails the test on error.
func createRun(t *testing.T, db *DB, run *Run) {
	t.Helper()
	if err := db.CreateRun(run); err != nil {
		t.Fatalf("CreateRun(%s) failed: %v", run.ID, err)
	}
}

func TestOpen(t *testing.T) {
	t.Run("in-memory database", func(t *testing.T) {
		db, err := Open(":memory:")
		if err != nil {
			t.Fatalf("Open(:memory:) failed: %v", err)
		}
		defer db.Close()

		if db.Path() != ":memory:" {
			t.Errorf("Path() = %q, want %q", db.Path(), ":memory:")
		}
	})

	t.Run("temp file database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.db")
		db, err := Open(path)
		if err != nil {
			t.Fatalf("Open(%q) failed: %v", path, err)
		}
		defer db.Close()

		if db.Path() != path {
			t.Errorf("Path() = %q, want %q", db.Path(), path)
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dirs", "test.db")
		db, err := Open(path)
		if err != nil {
			t.Fatalf("Open(%q) failed: %v", path, err)
		}
		defer db.Close()
	})

	t.Run("reopen keeps data", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.db")
		db, err := Open(path)
		if err != nil {
			t.Fatalf("Open(%q) failed: %v", path, err)
		}
		createRun(t, db, newRun("abc123", KindRun, time.Now()))
		db.Close()

		db, err = Open(path)
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		defer db.Close()
		if _, err := db.GetRun("abc123"); err != nil {
			t.Errorf("GetRun() after reopen failed: %v", err)
		}
	})
}

func TestRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations)+1)); err != nil {
		t.Fatalf("failed to bump user_version: %v", err)
	}
	db.Close()

	if db, err := Open(path); err == nil {
		db.Close()
		t.Fatal("expected error opening a database with a newer schema")
	}
}

func TestMigrations(t *testing.T) {
	db := openTestDB(t)

	version, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion() failed: %v", err)
	}

	expectedVersion := len(migrations)
	if version != expectedVersion {
		t.Errorf("SchemaVersion() = %d, want %d", version, expectedVersion)
	}

	_, err = db.Exec(`
		INSERT INTO runs (id, kind, program_path, program_hash, created_at, outcome)
		VALUES ('test', 'run', '-', 'hash', '2024-01-01T00:00:00Z', 'pending')
	`)
	if err != nil {
		t.Errorf("failed to insert into runs table: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO executions (run_id, config, outcome, output, duration_ms)
		VALUES ('test', 'wgpu:vulkan:1', 'success', x'01020304', 12)
	`)
	if err != nil {
		t.Errorf("failed to insert into executions table: %v", err)
	}
}

func TestCRUD(t *testing.T) {
	db := openTestDB(t)
	created := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	run := newRun("0123456789abcdef0123456789abcdef", KindTestCrash, created)
	run.MetadataPath = "/tmp/inputs.json"

	t.Run("create", func(t *testing.T) {
		createRun(t, db, run)
	})

	t.Run("create duplicate fails", func(t *testing.T) {
		if err := db.CreateRun(run); err == nil {
			t.Error("expected error creating a run with a duplicate ID")
		}
	})

	t.Run("get", func(t *testing.T) {
		got, err := db.GetRun(run.ID)
		if err != nil {
			t.Fatalf("GetRun() failed: %v", err)
		}

		if got.Kind != KindTestCrash {
			t.Errorf("Kind = %q, want %q", got.Kind, KindTestCrash)
		}
		if got.ProgramHash != run.ProgramHash {
			t.Errorf("ProgramHash = %q, want %q", got.ProgramHash, run.ProgramHash)
		}
		if got.MetadataPath != "/tmp/inputs.json" {
			t.Errorf("MetadataPath = %q, want %q", got.MetadataPath, "/tmp/inputs.json")
		}
		if !got.CreatedAt.Equal(created) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
		}
		if !got.FinishedAt.IsZero() {
			t.Errorf("FinishedAt = %v, want zero", got.FinishedAt)
		}
		if got.Outcome != OutcomePending {
			t.Errorf("Outcome = %q, want %q", got.Outcome, OutcomePending)
		}
	})

	t.Run("get not found", func(t *testing.T) {
		_, err := db.GetRun("nonexistent")
		if !errors.Is(err, ErrRunNotFound) {
			t.Errorf("GetRun(nonexistent) error = %v, want ErrRunNotFound", err)
		}
	})

	t.Run("finish", func(t *testing.T) {
		finished := created.Add(2 * time.Second)
		if err := db.FinishRun(run.ID, OutcomeInteresting, "matched segfault", finished); err != nil {
			t.Fatalf("FinishRun() failed: %v", err)
		}

		got, err := db.GetRun(run.ID)
		if err != nil {
			t.Fatalf("GetRun() failed: %v", err)
		}
		if got.Outcome != OutcomeInteresting {
			t.Errorf("Outcome = %q, want %q", got.Outcome, OutcomeInteresting)
		}
		if got.Detail != "matched segfault" {
			t.Errorf("Detail = %q, want %q", got.Detail, "matched segfault")
		}
		if !got.FinishedAt.Equal(finished) {
			t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, finished)
		}
	})

	t.Run("finish not found", func(t *testing.T) {
		err := db.FinishRun("nonexistent", OutcomeSuccess, "", time.Now())
		if !errors.Is(err, ErrRunNotFound) {
			t.Errorf("FinishRun(nonexistent) error = %v, want ErrRunNotFound", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := db.DeleteRun(run.ID); err != nil {
			t.Fatalf("DeleteRun() failed: %v", err)
		}
		if _, err := db.GetRun(run.ID); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("GetRun() after delete error = %v, want ErrRunNotFound", err)
		}
	})

	t.Run("delete not found", func(t *testing.T) {
		if err := db.DeleteRun(run.ID); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("DeleteRun() twice error = %v, want ErrRunNotFound", err)
		}
	})
}

func TestOutcomeValidation(t *testing.T) {
	db := openTestDB(t)

	for _, o := range ValidOutcomes {
		if !IsValidOutcome(o) {
			t.Errorf("IsValidOutcome(%q) = false", o)
		}
	}

	run := newRun("aaaa", KindRun, time.Now())
	run.Outcome = "bogus"
	if err := db.CreateRun(run); !errors.Is(err, ErrInvalidOutcome) {
		t.Errorf("CreateRun() with invalid outcome error = %v, want ErrInvalidOutcome", err)
	}

	run.Outcome = OutcomePending
	createRun(t, db, run)
	if err := db.FinishRun(run.ID, "bogus", "", time.Now()); !errors.Is(err, ErrInvalidOutcome) {
		t.Errorf("FinishRun() with invalid outcome error = %v, want ErrInvalidOutcome", err)
	}
}

func TestGetRunByPrefix(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	createRun(t, db, newRun("abc111", KindRun, now))
	createRun(t, db, newRun("abc222", KindRun, now))
	createRun(t, db, newRun("def333", KindRun, now))

	tests := []struct {
		name    string
		prefix  string
		wantID  string
		wantErr error
	}{
		{"unique", "def", "def333", nil},
		{"full id", "abc111", "abc111", nil},
		{"uppercase", "DEF3", "def333", nil},
		{"ambiguous", "abc", "", ErrAmbiguousPrefix},
		{"not found", "fff", "", ErrRunNotFound},
		{"empty", "", "", ErrInvalidPrefix},
		{"non-hex", "xyz", "", ErrInvalidPrefix},
		{"like wildcard", "%", "", ErrInvalidPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.GetRunByPrefix(tt.prefix)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("GetRunByPrefix(%q) error = %v, want %v", tt.prefix, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetRunByPrefix(%q) failed: %v", tt.prefix, err)
			}
			if got.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", got.ID, tt.wantID)
			}
		})
	}

	t.Run("ambiguous error lists matches", func(t *testing.T) {
		_, err := db.GetRunByPrefix("abc")
		var ambig *AmbiguousPrefixError
		if !errors.As(err, &ambig) {
			t.Fatalf("expected AmbiguousPrefixError, got %v", err)
		}
		if len(ambig.Matches) != 2 {
			t.Errorf("expected 2 matches, got %d", len(ambig.Matches))
		}
	})
}

func TestListRuns(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	runs := []*Run{
		newRun("01", KindRun, base),
		newRun("02", KindTestCrash, base.Add(time.Minute)),
		newRun("03", KindTestMismatch, base.Add(2*time.Minute)),
		newRun("04", KindRun, base.Add(3*time.Minute)),
	}
	runs[3].ProgramHash = HashProgram("other")
	for _, r := range runs {
		createRun(t, db, r)
	}
	if err := db.FinishRun("01", OutcomeSuccess, "", base.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun("04", OutcomeMismatch, "", base.Add(4*time.Minute)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"all newest first", ListOptions{}, []string{"04", "03", "02", "01"}},
		{"by kind", ListOptions{Kind: KindRun}, []string{"04", "01"}},
		{"by outcome", ListOptions{Outcomes: []Outcome{OutcomeSuccess, OutcomeMismatch}}, []string{"04", "01"}},
		{"pending", ListOptions{Outcomes: []Outcome{OutcomePending}}, []string{"03", "02"}},
		{"by program hash", ListOptions{ProgramHash: HashProgram("other")}, []string{"04"}},
		{"combined", ListOptions{Kind: KindRun, Outcomes: []Outcome{OutcomeSuccess}}, []string{"01"}},
		{"limit", ListOptions{Limit: 2}, []string{"04", "03"}},
		{"no match", ListOptions{Kind: KindTestCrash, Outcomes: []Outcome{OutcomeSuccess}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListRuns(tt.opts)
			if err != nil {
				t.Fatalf("ListRuns() failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListRuns() returned %d runs, want %d", len(got), len(tt.want))
			}
			for i, r := range got {
				if r.ID != tt.want[i] {
					t.Errorf("run %d = %q, want %q", i, r.ID, tt.want[i])
				}
			}

			count, err := db.CountRuns(ListOptions{Kind: tt.opts.Kind, Outcomes: tt.opts.Outcomes, ProgramHash: tt.opts.ProgramHash})
			if err != nil {
				t.Fatalf("CountRuns() failed: %v", err)
			}
			if tt.opts.Limit == 0 && count != len(tt.want) {
				t.Errorf("CountRuns() = %d, want %d", count, len(tt.want))
			}
		})
	}
}

func TestPruneRuns(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	createRun(t, db, newRun("01", KindRun, base))
	createRun(t, db, newRun("02", KindRun, base.Add(time.Hour)))
	createRun(t, db, newRun("03", KindRun, base.Add(2*time.Hour)))

	n, err := db.PruneRuns(base.Add(90 * time.Minute))
	if err != nil {
		t.Fatalf("PruneRuns() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("PruneRuns() = %d, want 2", n)
	}

	count, err := db.CountRuns(ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("CountRuns() after prune = %d, want 1", count)
	}
}

func TestExecutions(t *testing.T) {
	db := openTestDB(t)
	createRun(t, db, newRun("run1", KindRun, time.Now()))

	execs := []*Execution{
		{RunID: "run1", Config: "wgpu:vulkan:1", Outcome: ExecutionSuccess, Output: []byte{1, 2, 3, 4}, Duration: 150 * time.Millisecond},
		{RunID: "run1", Config: "dawn:metal:2", Outcome: ExecutionFailure, Diagnostic: "device lost"},
		{RunID: "run1", Config: "wgpu:dx12:3", Outcome: ExecutionTimeout, Duration: time.Minute},
	}
	for _, e := range execs {
		if err := db.AddExecution(e); err != nil {
			t.Fatalf("AddExecution(%s) failed: %v", e.Config, err)
		}
	}

	t.Run("list ordered by config", func(t *testing.T) {
		got, err := db.ListExecutions("run1")
		if err != nil {
			t.Fatalf("ListExecutions() failed: %v", err)
		}
		want := []string{"dawn:metal:2", "wgpu:dx12:3", "wgpu:vulkan:1"}
		if len(got) != len(want) {
			t.Fatalf("got %d executions, want %d", len(got), len(want))
		}
		for i, e := range got {
			if e.Config != want[i] {
				t.Errorf("execution %d config = %q, want %q", i, e.Config, want[i])
			}
		}
		if got[0].Diagnostic != "device lost" {
			t.Errorf("Diagnostic = %q, want %q", got[0].Diagnostic, "device lost")
		}
		if string(got[2].Output) != string([]byte{1, 2, 3, 4}) {
			t.Errorf("Output = %v, want [1 2 3 4]", got[2].Output)
		}
		if got[2].Duration != 150*time.Millisecond {
			t.Errorf("Duration = %v, want 150ms", got[2].Duration)
		}
	})

	t.Run("duplicate config fails", func(t *testing.T) {
		err := db.AddExecution(&Execution{RunID: "run1", Config: "wgpu:vulkan:1", Outcome: ExecutionSuccess})
		if err == nil {
			t.Error("expected error recording the same config twice")
		}
	})

	t.Run("invalid outcome", func(t *testing.T) {
		err := db.AddExecution(&Execution{RunID: "run1", Config: "x:y:9", Outcome: "bogus"})
		if !errors.Is(err, ErrInvalidOutcome) {
			t.Errorf("AddExecution() error = %v, want ErrInvalidOutcome", err)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		err := db.AddExecution(&Execution{RunID: "missing", Config: "x:y:9", Outcome: ExecutionSuccess})
		if err == nil {
			t.Error("expected foreign key error for unknown run")
		}
	})

	t.Run("cascade on delete", func(t *testing.T) {
		if err := db.DeleteRun("run1"); err != nil {
			t.Fatalf("DeleteRun() failed: %v", err)
		}
		got, err := db.ListExecutions("run1")
		if err != nil {
			t.Fatalf("ListExecutions() failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected executions to be deleted with run, got %d", len(got))
		}
	})
}

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := GenerateID()
		if err != nil {
			t.Fatalf("GenerateID() failed: %v", err)
		}
		if len(id) != 32 {
			t.Errorf("len(GenerateID()) = %d, want 32", len(id))
		}
		if !isHexString(id) {
			t.Errorf("GenerateID() = %q, not hex", id)
		}
		if seen[id] {
			t.Fatalf("GenerateID() returned duplicate %q", id)
		}
		seen[id] = true
	}

	if got := ShortID("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("ShortID() = %q, want %q", got, "0123456789ab")
	}
	if got := ShortID("abc"); got != "abc" {
		t.Errorf("ShortID(short) = %q, want %q", got, "abc")
	}
}

func TestConcurrentReads(t *testing.T) {
	db := openTestDB(t)
	createRun(t, db, newRun("concurrent", KindRun, time.Now()))

	// Perform concurrent reads, collecting errors via channel
	// (t.Errorf is not safe to call from goroutines)
	const numGoroutines = 10
	errs := make(chan error, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			_, err := db.GetRun("concurrent")
			errs <- err
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		if err := <-errs; err != nil {
			t.Errorf("concurrent GetRun() failed: %v", err)
		}
	}
}
