package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scopeq/internal/arraydb"
	"github.com/roach88/scopeq/internal/parity"
	"github.com/roach88/scopeq/internal/query"
)

// WordsOptions holds flags for the words command.
type WordsOptions struct {
	*RootOptions
	ScopeOptions
}

// NewWordsCommand creates the words command.
func NewWordsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WordsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "words <model>",
		Short: "Describe a query's scope in words",
		Long: `Build a query from flags without running it and print its scope in
words together with the effective order and limit. The model's base
conditions, order and limit are included.

Examples:
  scopeq words invoice --where '[amount, ">", 10]' --negate
  scopeq words invoice --where '[[[paid, true], [amount, null]]]' --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWords(opts, args[0], cmd)
		},
	}

	opts.ScopeOptions.register(cmd)
	return cmd
}

func runWords(opts *WordsOptions, modelName string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	step, err := opts.ScopeOptions.step(modelName)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidQuery, err.Error(), nil)
	}

	loaded, err := LoadModels(opts.Models)
	if err != nil {
		return failLoad(formatter, err)
	}
	m, err := loaded.Model(modelName)
	if err != nil {
		return failLoad(formatter, err)
	}

	// Nothing runs, so any backend will do.
	q, err := query.New(arraydb.New(arraydb.NewStorage()), m)
	if err != nil {
		return formatter.Fail(ExitFailure, query.CodeOf(err), err.Error(), nil)
	}
	if err := parity.Build(q, step); err != nil {
		return formatter.Fail(ExitFailure, query.CodeOf(err), err.Error(), nil)
	}

	debug := q.Debug()
	if formatter.Format == "json" {
		return formatter.Success(debug)
	}

	w := formatter.Writer
	words := debug.Scope
	if words == "" {
		words = "(everything)"
	}
	order := strings.Join(debug.Order, ", ")
	if order == "" {
		order = "(none)"
	}
	fmt.Fprintf(w, "%s where %s\n", debug.Model, words)
	fmt.Fprintf(w, "  order: %s\n", order)
	fmt.Fprintf(w, "  limit: %s\n", debug.Limit)
	return nil
}
