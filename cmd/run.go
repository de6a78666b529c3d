package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/Quidge/diffharness/internal/backend"
	"github.com/Quidge/diffharness/internal/bufcheck"
	"github.com/Quidge/diffharness/internal/config"
	"github.com/Quidge/diffharness/internal/execution"
	"github.com/Quidge/diffharness/internal/harness"
	"github.com/Quidge/diffharness/internal/protocol"
	"github.com/Quidge/diffharness/internal/reflection"
	"github.com/Quidge/diffharness/internal/state"
	"github.com/Quidge/diffharness/internal/target"
)

// exitRunError is the exit code of a composite run that could not be
// carried out. protocol.ExitMismatch (1) is reserved for disagreement.
const exitRunError = 2

var runCmd = &cobra.Command{
	Use:   "run PROGRAM METADATA",
	Short: "Execute a program across configurations and compare outputs",
	Long: `Execute PROGRAM (or stdin when PROGRAM is "-") once per configuration,
each in a separate worker process, and compare the storage buffer outputs.

Exit codes:
  0    every configuration that finished agrees
  1    outputs disagree; one output-group line is printed per distinct output
  101  at least one configuration failed
  2    the run itself could not be carried out

Without -c the configured or default configurations are used.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(2)(cmd, args); err != nil {
			return runFatal(cmd, err)
		}
		return nil
	},
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayP("config", "c", nil, "configuration to run (repeatable)")
	runCmd.Flags().Duration("timeout", 0, "per-configuration timeout (default from config)")
	runCmd.Flags().Int("parallelism", 0, "maximum concurrent workers (default from config)")
	runCmd.Flags().Bool("print-output-if-ok", false, "print the consensus output when all configurations agree")
	runCmd.Flags().BoolP("quiet", "q", false, "suppress progress output")

	// Exit code 1 means mismatch, so usage errors must not use it.
	runCmd.SetFlagErrorFunc(runFatal)
}

// runFatal reports an error that prevented the composite run.
func runFatal(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
	return &exitError{code: exitRunError}
}

func runRun(cmd *cobra.Command, args []string) error {
	configs, _ := cmd.Flags().GetStringArray("config")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	parallelism, _ := cmd.Flags().GetInt("parallelism")
	printOutput, _ := cmd.Flags().GetBool("print-output-if-ok")
	quiet, _ := cmd.Flags().GetBool("quiet")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	merged, err := config.LoadFromCwd(config.FlagOverrides{
		Configs:     configs,
		Timeout:     timeout,
		Parallelism: parallelism,
	})
	if err != nil {
		return runFatal(cmd, err)
	}

	program, err := readProgram(args[0], cmd.InOrStdin())
	if err != nil {
		return runFatal(cmd, err)
	}

	md, err := reflection.LoadMetadata(args[1])
	if err != nil {
		return runFatal(cmd, err)
	}

	drivers, err := backend.NewSet(merged.Drivers)
	if err != nil {
		return runFatal(cmd, err)
	}

	host, err := execution.SelfHost()
	if err != nil {
		return runFatal(cmd, fmt.Errorf("failed to locate worker executable: %w", err))
	}

	orch := &execution.Orchestrator{
		Host:     host,
		Defaults: drivers.DefaultConfigs,
		Logger:   newLogger("orchestrator: "),
	}

	rec := startRecording(merged.StatePath, &state.Run{
		Kind:         state.KindRun,
		ProgramPath:  args[0],
		ProgramHash:  state.HashProgram(program),
		MetadataPath: args[1],
	}, newLogger("history: "))

	out := cmd.OutOrStdout()
	p := &printer{w: out, quiet: quiet}

	var (
		started   = make(map[harness.ConfigID]time.Time)
		durations = make(map[harness.ConfigID]time.Duration)
		successes []execution.Success
		failures  int
	)
	req := execution.Request{
		Program:     program,
		Pipeline:    md.Pipeline,
		Configs:     merged.Configs,
		Timeout:     merged.Timeout,
		Parallelism: merged.Parallelism,
	}
	err = orch.Execute(ctx, req, func(e execution.Event) error {
		p.printEvent(e, md.Pipeline)

		switch e := e.(type) {
		case execution.Start:
			started[e.Config] = time.Now()
		case execution.Success:
			durations[e.Config] = time.Since(started[e.Config])
			successes = append(successes, e)
		case execution.Failure:
			failures++
			rec.execution(&state.Execution{
				Config:     e.Config.String(),
				Outcome:    state.ExecutionFailure,
				Diagnostic: string(e.Stderr),
				Duration:   time.Since(started[e.Config]),
			})
		case execution.Timeout:
			rec.execution(&state.Execution{
				Config:   e.Config.String(),
				Outcome:  state.ExecutionTimeout,
				Duration: time.Since(started[e.Config]),
			})
		}
		return nil
	})
	if err != nil {
		rec.finish(state.OutcomeError, err.Error())
		return runFatal(cmd, err)
	}

	// Group in config order so the output does not depend on scheduling.
	slices.SortFunc(successes, func(a, b execution.Success) int {
		return a.Config.Compare(b.Config)
	})

	outputs := make([]bufcheck.Output, 0, len(successes))
	for _, s := range successes {
		canonical, err := bufcheck.NormalizeChecked(s.Buffers, md.Pipeline, md.Types)
		if err != nil {
			rec.finish(state.OutcomeError, err.Error())
			return runFatal(cmd, fmt.Errorf("%s: %w", s.Config, err))
		}
		outputs = append(outputs, bufcheck.Output{ID: s.Config.String(), Canonical: canonical})
		rec.execution(&state.Execution{
			Config:   s.Config.String(),
			Outcome:  state.ExecutionSuccess,
			Output:   canonical,
			Duration: durations[s.Config],
		})
	}

	if failures > 0 {
		fmt.Fprintln(out, "crash")
		rec.finish(state.OutcomeCrash, fmt.Sprintf("%d configuration(s) failed", failures))
		return &exitError{code: protocol.ExitFailure}
	}

	groups := bufcheck.GroupOutputs(outputs)
	if len(groups) > 1 {
		fmt.Fprintln(out, "mismatch")
		for _, g := range groups {
			fmt.Fprintln(out, target.FormatGroup(g))
		}
		rec.finish(state.OutcomeMismatch, fmt.Sprintf("%d distinct outputs", len(groups)))
		return &exitError{code: protocol.ExitMismatch}
	}

	if !quiet {
		fmt.Fprintln(out, "ok")
	}
	if printOutput {
		var consensus []byte
		if len(groups) == 1 {
			consensus = groups[0].Output
		}
		fmt.Fprintln(out, target.FormatConsensus(consensus))
	}
	rec.finish(state.OutcomeSuccess, "")
	return nil
}
