package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/scopeq/internal/config"
)

// RootOptions holds global flags for all commands. PersistentPreRunE
// replaces them with the resolved configuration, so commands only read
// these fields.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "json" | "text"
	Backend    string // "array" | "sqlite" | "postgres"
	DB         string // SQLite path or Postgres DSN
	Models     string // CUE models directory
	Fixture    string // optional YAML fixture
	LogLevel   string
}

// NewRootCommand creates the root command for the scopeq CLI.
func NewRootCommand() *cobra.Command {
	def := config.Default()
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "scopeq",
		Short: "scopeq - scoped queries over array and SQL backends",
		Long: `Build scope/condition trees over CUE-defined models and run them
against an in-memory array store, SQLite or Postgres.

Settings come from flags, SCOPEQ_* environment variables and an
optional YAML config file (--config), in that order of precedence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (YAML)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", def.Format, "output format (json|text)")
	pf.StringVar(&opts.Backend, "backend", def.Backend, "query backend (array|sqlite|postgres)")
	pf.StringVar(&opts.DB, "db", def.DB, "SQLite path or Postgres DSN")
	pf.StringVar(&opts.Models, "models", def.Models, "directory of CUE model definitions")
	pf.StringVar(&opts.Fixture, "fixture", def.Fixture, "YAML fixture loaded before the command runs")
	pf.StringVar(&opts.LogLevel, "log-level", def.LogLevel, "log level (debug|info|warn|error)")

	// Add subcommands
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewWordsCommand(opts))
	cmd.AddCommand(NewParityCommand(opts))

	return cmd
}

// resolve loads the configuration for cmd and installs the default logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigFile, cmd.Flags())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Verbose = cfg.Verbose
	o.Format = cfg.Format
	o.Backend = cfg.Backend
	o.DB = cfg.DB
	o.Models = cfg.Models
	o.Fixture = cfg.Fixture
	o.LogLevel = cfg.LogLevel

	level, err := cfg.Level()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
