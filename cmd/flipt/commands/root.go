package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flipt "github.com/TimurManjosov/goflipt"
	"github.com/TimurManjosov/goflipt/internal/cli"
	"github.com/TimurManjosov/goflipt/internal/config"
	"github.com/TimurManjosov/goflipt/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// globalOptions holds the persistent flags and the state built from them
// before a command runs.
type globalOptions struct {
	url       string
	token     string
	profile   string
	namespace string
	reference string
	format    string
	timeout   time.Duration
	quiet     bool
	verbose   bool

	env          *config.Config
	outputFormat cli.OutputFormat
	logger       zerolog.Logger
	shutdown     telemetry.Shutdown
}

// newRootCmd builds the flipt command tree and the options its commands share
func newRootCmd() (*cobra.Command, *globalOptions) {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "flipt",
		Short: "CLI tool for evaluating feature flags",
		Long: `Flipt is a command-line client for a remote feature-flag evaluation service.

It evaluates boolean and variant flags, runs batch evaluations from a file,
and lists or exports the flags of one or more namespaces.

Examples:
  flipt boolean flag_boolean --entity user-1 --context fizz=buzz
  flipt variant flag1 --entity user-1 --context fizz=buzz --format json
  flipt batch requests.yaml --entity user-1
  flipt flags default payments --enabled-only
  flipt export --namespace default --output snapshot.yaml`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.setup,
	}

	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&opts.url, "url", "", "URL of the evaluation service")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", "", "Client token for authentication")
	rootCmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "Profile from the config file")
	rootCmd.PersistentFlags().StringVar(&opts.namespace, "namespace", "", "Namespace key")
	rootCmd.PersistentFlags().StringVar(&opts.reference, "reference", "", "Reference (e.g. branch) to evaluate against")
	rootCmd.PersistentFlags().StringVar(&opts.format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "Per-call timeout (default from FLIPT_TIMEOUT)")
	rootCmd.PersistentFlags().BoolVar(&opts.quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Verbose output")

	rootCmd.AddCommand(
		newBooleanCmd(opts),
		newVariantCmd(opts),
		newBatchCmd(opts),
		newFlagsCmd(opts),
		newExportCmd(opts),
		newConfigCmd(),
	)

	return rootCmd, opts
}

// Execute runs the root command
func Execute() error {
	cmd, opts := newRootCmd()
	return execute(context.Background(), cmd, opts)
}

// execute runs cmd and then flushes tracing. Cobra skips post-run hooks when
// a command fails, so the flush happens here.
func execute(ctx context.Context, cmd *cobra.Command, opts *globalOptions) error {
	defer opts.teardown(ctx)
	return cmd.ExecuteContext(ctx)
}

func (o *globalOptions) setup(cmd *cobra.Command, args []string) error {
	env, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	o.env = env

	o.outputFormat, err = cli.ParseFormat(o.format)
	if err != nil {
		return err
	}

	level := env.Level()
	if o.verbose {
		level = zerolog.DebugLevel
	}
	o.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()

	if env.OTLPEndpoint != "" {
		o.shutdown, err = telemetry.InitTracing(cmd.Context(), env.OTLPEndpoint, "flipt-cli", flipt.Version, env.OTLPInsecure)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	return nil
}

func (o *globalOptions) teardown(ctx context.Context) {
	if o.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := o.shutdown(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("tracer shutdown failed")
	}
}

// client resolves the effective settings and builds an API client
func (o *globalOptions) client() (*flipt.Client, *cli.Profile, error) {
	if err := o.env.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	profile, err := cli.Resolve(cli.Overrides{
		Profile:   o.profile,
		URL:       o.url,
		Token:     o.token,
		Namespace: o.namespace,
	}, o.env)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}

	var auth flipt.AuthenticationStrategy = flipt.NoneAuthentication{}
	switch {
	case profile.JWT != "":
		auth = flipt.NewJWTAuthentication(profile.JWT)
	case profile.Token != "":
		auth = flipt.NewClientTokenAuthentication(profile.Token)
	}

	timeout := o.timeout
	if timeout <= 0 {
		timeout = o.env.Timeout
	}

	c, err := flipt.NewClient(flipt.Config{
		URL:            profile.URL,
		Authentication: auth,
		Timeout:        timeout,
		Logger:         o.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	o.logger.Debug().Str("url", profile.URL).Str("namespace", profile.Namespace).Msg("client ready")

	return c, profile, nil
}

// print renders a result unless --quiet is set
func (o *globalOptions) print(cmd *cobra.Command, render func(w io.Writer, format cli.OutputFormat) error) error {
	if o.quiet {
		return nil
	}
	return render(cmd.OutOrStdout(), o.outputFormat)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
