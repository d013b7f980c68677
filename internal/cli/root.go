package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	ConfigFile string
	NoColor    bool

	// Config is resolved before any subcommand runs.
	Config *Config

	viper *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the hyperplay CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: newViper()}

	cmd := &cobra.Command{
		Use:   "hyperplay",
		Short: "hyperplay - hypermedia document player",
		Long: `Plays declarative hypermedia documents: media, contexts and switches
synchronised by links, driven by time, keys and property changes.

Documents are written in CUE. Every accepted event transition can be
recorded in a SQLite trace store and verified by its content hash.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if err := bindFlags(opts.viper, cmd.Flags()); err != nil {
				return WrapExitError(ExitCommandError, "invalid flags", err)
			}
			if err := readConfig(opts.viper, opts.ConfigFile); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			cfg, err := resolveConfig(opts.viper)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = cfg
			if err := configureLogging(cmd.ErrOrStderr(), cfg.LogLevel, opts.Verbose); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./hyperplay.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")
	_ = opts.viper.BindPFlag(KeyLogLevel, cmd.PersistentFlags().Lookup("log-level"))

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// formatter builds the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting structured output
		Verbose:   o.Verbose,
		NoColor:   o.NoColor,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
