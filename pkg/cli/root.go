// Package cli provides the command-line interface for ubb
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/ubbuilder/ubb/internal/engine"
	"github.com/ubbuilder/ubb/pkg/config"
	"github.com/ubbuilder/ubb/pkg/logger"
)

// CLI owns the command tree and the settings loaded for one invocation
type CLI struct {
	config    *Config
	rootCmd   *cobra.Command
	logger    logger.Logger
	provider  *config.Provider
	overrides engine.Options
	input     io.Reader
	output    io.Writer
	errorOut  io.Writer
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	c := &CLI{
		config:   cfg,
		input:    os.Stdin,
		output:   os.Stdout,
		errorOut: os.Stderr,
	}

	c.setupCommands()
	return c
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	c := NewCLI(cfg)
	c.output = output
	c.errorOut = errorOut
	c.rootCmd.SetOut(output)
	c.rootCmd.SetErr(errorOut)
	return c
}

// WithInput replaces the reader the console command reads from
func (c *CLI) WithInput(r io.Reader) *CLI {
	c.input = r
	return c
}

// WithOverrides replaces orchestrator collaborators, e.g. the process runner
func (c *CLI) WithOverrides(opts engine.Options) *CLI {
	c.overrides = opts
	return c
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "ubb",
		Short: "Build Unreal Engine from source and package plugins",
		Long: `ubb drives the Unreal Engine build tools from the command line.

It runs Setup, GenerateProjectFiles and the AutomationTool build for a source
engine, produces installed builds, and packages plugins against installed
engines one at a time.`,

		SilenceUsage:      true,
		PersistentPreRunE: c.initializeConfig,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("ubb v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newSetupCmd())
	c.rootCmd.AddCommand(c.newEngineCmd())
	c.rootCmd.AddCommand(c.newPluginCmd())
	c.rootCmd.AddCommand(c.newConsoleCmd())
	c.rootCmd.AddCommand(c.newConfigCmd())
	c.rootCmd.AddCommand(c.newLogsCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", "", "config file (default: ubb.yaml)")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&c.config.LogFile, "log-file", "", "also write diagnostics to this file")
}

// initializeConfig creates the logger and loads settings. "config init"
// must work without valid settings, so it skips loading.
func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	level := c.config.Verbosity
	logFile := c.config.LogFile

	if cmd.Annotations["settings"] == "skip" {
		c.logger = logger.CreateLoggerWithOutput(logFile, level, c.errorOut)
		return nil
	}

	s, err := config.Load(c.config.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cmd.Flags().Changed("verbosity") && s.Logging.Level != "" {
		level = s.Logging.Level
	}
	if logFile == "" {
		logFile = s.Logging.File
	}
	c.logger = logger.CreateLoggerWithOutput(logFile, level, c.errorOut)

	if path := c.config.settingsPath(); path != "" {
		c.logger.Debug("Using config file", logger.WithField("file", path))
	}

	c.provider = config.NewProvider(s)
	return nil
}

// Helper methods for structured output

func (c *CLI) printSuccess(message string) {
	fmt.Fprintf(c.output, "%s %s\n", color.GreenString("[ubb]"), message)
}

func (c *CLI) printError(message string) {
	fmt.Fprintf(c.errorOut, "%s %s\n", color.RedString("[ubb]"), message)
}

func (c *CLI) printInfo(message string) {
	fmt.Fprintf(c.output, "%s %s\n", color.CyanString("[ubb]"), message)
}

func (c *CLI) printWarning(message string) {
	fmt.Fprintf(c.output, "%s %s\n", color.YellowString("[ubb]"), message)
}

// Execute is the entry point used by cmd/ubb
func Execute(version string) error {
	cfg := NewConfig()
	cfg.Version = version
	return NewCLI(cfg).Execute(os.Args[1:])
}
