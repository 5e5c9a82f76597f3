package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/jamesmistry/breadlog/internal/cache"
	"github.com/jamesmistry/breadlog/internal/codegen"
	"github.com/jamesmistry/breadlog/internal/config"
)

// Exit codes. Setup failures (unreadable or invalid configuration) and run
// failures (missing references in check mode, files that could not be
// rewritten) are distinguishable by scripts.
const (
	exitSetupFailed = 1
	exitRunFailed   = 2
)

// runFailure marks an error as a check/generate failure rather than a setup
// failure.
type runFailure struct {
	err error
}

func (e runFailure) Error() string { return e.err.Error() }
func (e runFailure) Unwrap() error { return e.err }

// Execute runs the root command and returns the process exit code.
func Execute(version string) int {
	return exitCode(NewRootCommand(version).Execute())
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var rf runFailure
	if errors.As(err, &rf) {
		return exitRunFailed
	}
	return exitSetupFailed
}

func NewRootCommand(version string) *cobra.Command {
	var (
		configPath string
		checkMode  bool
	)

	rootCmd := &cobra.Command{
		Use:   "breadlog",
		Short: "Maintain unique references to log messages in source code",
		Long: `Breadlog keeps every log statement in a codebase tagged with a unique
numeric reference so a log line observed at runtime can be traced back to
the exact call site that emitted it, even after the message text changes.

By default it rewrites source files in place, inserting a reference at
every configured log call site that lacks one. With --check it only
reports call sites with missing references and exits non-zero when any
are found.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := setupContext(configPath, checkMode)
			if err != nil {
				return err
			}

			stopWatching := watchSignals(ctx)
			defer stopWatching()

			if ctx.CheckMode {
				log.Info("Running in check mode")
				if err := codegen.CheckReferences(ctx); err != nil {
					return runFailure{fmt.Errorf("check failed: %w", err)}
				}
				return nil
			}

			log.Info("Running in code generation mode")
			if err := codegen.GenerateCode(ctx); err != nil {
				return runFailure{fmt.Errorf("generate failed: %w", err)}
			}
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	_ = rootCmd.MarkFlagRequired("config")
	rootCmd.Flags().BoolVar(&checkMode, "check", false,
		"Check all log messages have valid references, but don't modify any code")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("breadlog %s\n", version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// setupContext reads and parses the configuration file and, for generate
// runs with caching enabled, seeds the context with the cached next
// reference id.
func setupContext(configPath string, checkMode bool) (*config.Context, error) {
	log.Info("Reading configuration file", "path", configPath)

	contents, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	configDir := filepath.Dir(configPath)
	ctx, err := config.Load(string(contents), configDir, checkMode)
	if err != nil {
		return nil, err
	}
	log.Info("Configuration loaded")

	if ctx.Config.UseCache && !checkMode {
		if id, ok := cache.Read(configDir); ok {
			ctx.CachedNextReferenceID = id
			ctx.HasCachedReferenceID = true
		}
	}

	return ctx, nil
}

// watchSignals sets the context's stop flag when SIGINT or SIGTERM arrives.
// The run finishes its current file and then stops. The returned function
// releases the signal handler.
func watchSignals(ctx *config.Context) func() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		for range signals {
			log.Warn("Stop requested, finishing current file")
			ctx.StopCommanded.Store(true)
		}
	}()

	return func() {
		signal.Stop(signals)
		close(signals)
	}
}
