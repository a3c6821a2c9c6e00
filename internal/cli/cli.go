package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vk/gridmapper/internal/app"
	"github.com/vk/gridmapper/internal/hclconfig"
	"github.com/vk/gridmapper/internal/mapperr"
)

// Exit codes.
const (
	ExitFailure    = 1
	ExitUsage      = 2
	ExitUnroutable = 3
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// options collects the flag values shared by the subcommands.
type options struct {
	logLevel  string
	logFormat string

	healthcheckPort   int
	progressURL       string
	progressNamespace string
	output            string
	saveState         string
	resume            string

	seed               uint64
	moveAttempts       int
	initialTemperature float64
	maxIterations      int
	batched            bool
}

// Execute runs the gridmapper command line with args. Any error is an
// *ExitError carrying the process exit code.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	ran := false
	root := NewRootCommand(outW, errW, &ran)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	code := exitCode(err)
	if !ran {
		code = ExitUsage
	}
	return &ExitError{Code: code, Message: err.Error(), Err: err}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, mapperr.ErrConfig), errors.Is(err, hclconfig.ErrInvalidInput):
		return ExitUsage
	case errors.Is(err, mapperr.ErrConvergence), errors.Is(err, mapperr.ErrConsistency):
		return ExitUnroutable
	}
	return ExitFailure
}

// NewRootCommand builds the command tree. ran is set once a subcommand's
// action starts, which separates usage errors from run failures.
func NewRootCommand(outW, errW io.Writer, ran *bool) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "gridmapper",
		Short:         "Place and route task graphs onto many-core grid architectures.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(outW)
	root.SetErr(errW)
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")

	mapCmd := &cobra.Command{
		Use:   "map PATH...",
		Short: "Place and route the problem described by the .hcl files under PATH.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			*ran = true
			cfg, err := opts.appConfig(cmd.Flags(), args)
			if err != nil {
				return err
			}
			return app.NewApp(outW, errW, cfg).Run(cmd.Context())
		},
	}
	addRunFlags(mapCmd.Flags(), opts)
	addOverrideFlags(mapCmd.Flags(), opts)

	checkCmd := &cobra.Command{
		Use:   "check PATH...",
		Short: "Load and validate the inputs without placing or routing.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			*ran = true
			cfg, err := opts.appConfig(cmd.Flags(), args)
			if err != nil {
				return err
			}
			_, err = app.NewApp(outW, errW, cfg).Check(cmd.Context())
			return err
		},
	}
	addOverrideFlags(checkCmd.Flags(), opts)

	root.AddCommand(mapCmd, checkCmd)
	return root
}

func addRunFlags(fs *pflag.FlagSet, o *options) {
	fs.IntVar(&o.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	fs.StringVar(&o.progressURL, "progress-url", "", "socket.io URL that receives live progress events.")
	fs.StringVar(&o.progressNamespace, "progress-namespace", "/", "socket.io namespace for progress events.")
	fs.StringVarP(&o.output, "output", "o", "", "Write the JSON report to this file instead of stdout.")
	fs.StringVar(&o.saveState, "save-state", "", "Write the final annealing state to this file.")
	fs.StringVar(&o.resume, "resume", "", "Resume annealing from a state file written by --save-state.")
}

func addOverrideFlags(fs *pflag.FlagSet, o *options) {
	fs.Uint64Var(&o.seed, "seed", 0, "Placement seed. Overrides the placement block.")
	fs.IntVar(&o.moveAttempts, "move-attempts", 0, "Move attempts per annealing tick.")
	fs.Float64Var(&o.initialTemperature, "initial-temperature", 0, "Starting annealing temperature.")
	fs.IntVar(&o.maxIterations, "max-iterations", 0, "Maximum routing passes.")
	fs.BoolVar(&o.batched, "batched", false, "Route each pass concurrently against a frozen cost snapshot.")
}

// appConfig turns the parsed flags into a validated app.Config. Override
// flags count only when given explicitly.
func (o *options) appConfig(fs *pflag.FlagSet, paths []string) (*app.Config, error) {
	cfg := app.Config{
		Paths:             paths,
		LogLevel:          o.logLevel,
		LogFormat:         o.logFormat,
		HealthcheckPort:   o.healthcheckPort,
		ProgressURL:       o.progressURL,
		ProgressNamespace: o.progressNamespace,
		OutputPath:        o.output,
		SaveStatePath:     o.saveState,
		ResumePath:        o.resume,
	}
	if fs.Changed("seed") {
		cfg.Seed = &o.seed
	}
	if fs.Changed("move-attempts") {
		cfg.MoveAttempts = &o.moveAttempts
	}
	if fs.Changed("initial-temperature") {
		cfg.InitialTemperature = &o.initialTemperature
	}
	if fs.Changed("max-iterations") {
		cfg.MaxIterations = &o.maxIterations
	}
	if fs.Changed("batched") {
		cfg.Batched = &o.batched
	}
	return app.NewConfig(cfg)
}
