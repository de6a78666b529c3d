package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Quidge/diffharness/internal/config"
	"github.com/Quidge/diffharness/internal/oracle"
	"github.com/Quidge/diffharness/internal/pathutil"
	"github.com/Quidge/diffharness/internal/remote"
	"github.com/Quidge/diffharness/internal/state"
	"github.com/Quidge/diffharness/internal/target"
)

// exitNotInteresting is what reducers see for a rejected candidate.
const exitNotInteresting = 1

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Interestingness tests for test case reducers",
	Long: `Decide whether a program is interesting to a test case reducer.

Each subcommand exits 0 if the program is interesting and 1 otherwise,
which is the contract expected by reducers such as creduce and picire.

Targets have the form "<config>,<config>...@<harness>", where harness is
"local" or the address of a harness server. Without --target a single
target is built from --config and --server.

When METADATA is omitted it is looked up next to PROGRAM as <stem>.json,
then inputs.json in the program's directory and in its parent.`,
}

var testCrashCmd = &cobra.Command{
	Use:   "crash PROGRAM [METADATA]",
	Short: "Succeed if the program crashes with a matching diagnostic",
	Long: `Succeed if, on any target, the program crashes and the crash
diagnostic matches --regex without matching --inverse-regex.

Besides harness targets, the naga compiler (--compiler naga) and the
reference validation service (--validate-backend) can be checked. When
only those are requested, no harness target is run.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runTestCrash,
}

var testMismatchCmd = &cobra.Command{
	Use:   "mismatch PROGRAM [METADATA]",
	Short: "Succeed if targets disagree on the program's output",
	Long: `Succeed if any target reports an internal mismatch or a crash, or two
targets produce different non-empty outputs.

Programs rejected by the naga front end are never interesting.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runTestMismatch,
}

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.AddCommand(testCrashCmd)
	testCmd.AddCommand(testMismatchCmd)

	flags := testCmd.PersistentFlags()
	flags.StringArrayP("target", "t", nil, "target to test (repeatable)")
	flags.String("server", "", "harness server for the default target")
	flags.StringArray("config", nil, "configuration for the default target (repeatable)")
	flags.Bool("no-recondition", false, "test the program as given")
	flags.BoolP("quiet", "q", false, "suppress harness output")

	testCrashCmd.Flags().String("regex", "", "pattern the crash diagnostic must match (required)")
	testCrashCmd.Flags().String("inverse-regex", "", "pattern the crash diagnostic must not match")
	testCrashCmd.Flags().String("compiler", "", `compile with an in-process compiler ("naga")`)
	testCrashCmd.Flags().StringArray("validate-backend", nil, "validate with the reference service for this backend (repeatable)")
	testCrashCmd.Flags().String("validator", "", "validation service address (default from config)")
	_ = testCrashCmd.MarkFlagRequired("regex")
}

// testSetup holds what both test subcommands need.
type testSetup struct {
	candidate     oracle.Candidate
	targets       []target.Target
	explicit      bool // --target or --config given
	merged        config.MergedConfig
	runner        *target.Runner
	reconditioner oracle.Reconditioner
	logger        *log.Logger
}

func newTestSetup(cmd *cobra.Command, args []string, validator string) (*testSetup, error) {
	targetFlags, _ := cmd.Flags().GetStringArray("target")
	server, _ := cmd.Flags().GetString("server")
	configs, _ := cmd.Flags().GetStringArray("config")
	noRecondition, _ := cmd.Flags().GetBool("no-recondition")
	quiet, _ := cmd.Flags().GetBool("quiet")

	merged, err := config.LoadFromCwd(config.FlagOverrides{
		Configs:   configs,
		Targets:   targetFlags,
		Validator: validator,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	programPath := args[0]
	program, err := readProgram(programPath, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}

	metadataPath := ""
	if len(args) > 1 {
		metadataPath = args[1]
	} else if metadataPath, err = pathutil.FindMetadata(programPath); err != nil {
		return nil, err
	}

	// --config and --server describe the default target and take
	// precedence over configured targets.
	var paths []target.TargetPath
	if len(targetFlags) == 0 && (len(configs) > 0 || server != "") {
		paths = target.Defaults(merged.Configs, server)
	} else {
		if paths, err = target.ParseTargetPaths(merged.Targets); err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			paths = target.Defaults(merged.Configs, server)
		}
	}

	targets := make([]target.Target, 0, len(paths))
	for _, p := range paths {
		t, err := target.Resolve(p, merged.HarnessPath)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	logger := log.New(cmd.OutOrStdout(), "", 0)
	if quiet {
		logger = log.New(io.Discard, "", 0)
	}

	var reconditioner oracle.Reconditioner = oracle.Identity{}
	if !noRecondition && len(merged.ReconditionerCommand) > 0 {
		reconditioner = oracle.CommandReconditioner{Command: merged.ReconditionerCommand}
	}

	return &testSetup{
		candidate: oracle.Candidate{Program: program, MetadataPath: metadataPath},
		targets:   targets,
		explicit:  len(targetFlags) > 0 || len(configs) > 0,
		merged:    merged,
		runner: &target.Runner{
			Remote: &remote.Client{},
			Logger: logger,
		},
		reconditioner: reconditioner,
		logger:        logger,
	}, nil
}

// verdict records and reports the result of an interestingness test.
func (s *testSetup) verdict(cmd *cobra.Command, kind state.RunKind, programPath string, test func(ctx context.Context) (bool, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	rec := startRecording(s.merged.StatePath, &state.Run{
		Kind:         kind,
		ProgramPath:  programPath,
		ProgramHash:  state.HashProgram(s.candidate.Program),
		MetadataPath: s.candidate.MetadataPath,
	}, newLogger("history: "))

	interesting, err := test(ctx)
	if err != nil {
		rec.finish(state.OutcomeError, err.Error())
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		return &exitError{code: exitNotInteresting}
	}

	out := cmd.OutOrStdout()
	if !interesting {
		rec.finish(state.OutcomeNotInteresting, "")
		fmt.Fprintln(out, "not interesting")
		return &exitError{code: exitNotInteresting}
	}
	rec.finish(state.OutcomeInteresting, "")
	fmt.Fprintln(out, "interesting")
	return nil
}

func runTestCrash(cmd *cobra.Command, args []string) error {
	regexFlag, _ := cmd.Flags().GetString("regex")
	inverseFlag, _ := cmd.Flags().GetString("inverse-regex")
	compiler, _ := cmd.Flags().GetString("compiler")
	validateBackends, _ := cmd.Flags().GetStringArray("validate-backend")
	validator, _ := cmd.Flags().GetString("validator")

	pattern, err := regexp.Compile(regexFlag)
	if err != nil {
		return fmt.Errorf("invalid --regex: %w", err)
	}
	var exclude *regexp.Regexp
	if inverseFlag != "" {
		if exclude, err = regexp.Compile(inverseFlag); err != nil {
			return fmt.Errorf("invalid --inverse-regex: %w", err)
		}
	}
	if compiler != "" && compiler != "naga" {
		return fmt.Errorf("unknown compiler %q (supported: naga)", compiler)
	}

	setup, err := newTestSetup(cmd, args, validator)
	if err != nil {
		return err
	}

	var targets []oracle.CrashTarget
	if setup.explicit || (compiler == "" && len(validateBackends) == 0) {
		for _, t := range setup.targets {
			targets = append(targets, oracle.ExecutionTarget{Target: t})
		}
	}
	if compiler != "" {
		targets = append(targets, oracle.CompilerTarget{})
	}
	for _, b := range validateBackends {
		targets = append(targets, oracle.ValidationTarget{Backend: b})
	}
	if len(targets) == 0 {
		return errors.New("nothing to test")
	}

	o := &oracle.CrashOracle{
		Runner:        setup.runner,
		Validator:     remote.ValidatorClient{Client: &remote.Client{}, Address: setup.merged.ValidatorAddress},
		Compiler:      oracle.Naga{},
		Reconditioner: setup.reconditioner,
		Pattern:       pattern,
		Exclude:       exclude,
		Logger:        newLogger("crash: "),
	}

	return setup.verdict(cmd, state.KindTestCrash, args[0], func(ctx context.Context) (bool, error) {
		return o.Interesting(ctx, setup.candidate, targets)
	})
}

func runTestMismatch(cmd *cobra.Command, args []string) error {
	setup, err := newTestSetup(cmd, args, "")
	if err != nil {
		return err
	}

	o := &oracle.MismatchOracle{
		Runner:        setup.runner,
		Reconditioner: setup.reconditioner,
		FrontEnd:      oracle.Naga{},
		Logger:        newLogger("mismatch: "),
	}

	return setup.verdict(cmd, state.KindTestMismatch, args[0], func(ctx context.Context) (bool, error) {
		return o.Interesting(ctx, setup.candidate, setup.targets)
	})
}
