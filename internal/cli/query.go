package cli

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/scopeq/internal/ir"
	"github.com/roach88/scopeq/internal/model"
	"github.com/roach88/scopeq/internal/parity"
)

// ScopeOptions holds the flags that shape a query's scope, order and
// limit. They are shared by the query and words commands.
type ScopeOptions struct {
	Where    []string // YAML shorthand items
	Junction string
	Negate   bool
	ID       string
	Order    []string // field or field:desc
	Limit    int
	Offset   int
}

func (o *ScopeOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&o.Where, "where", "w", nil, `scope item as YAML, e.g. '[amount, ">", 10]' (repeatable)`)
	cmd.Flags().StringVar(&o.Junction, "junction", "and", "junction joining --where items (and|or)")
	cmd.Flags().BoolVar(&o.Negate, "negate", false, "negate the --where scope")
	cmd.Flags().StringVar(&o.ID, "id", "", "restrict to the record with this identity")
	cmd.Flags().StringArrayVar(&o.Order, "order", nil, "ordering key field[:desc] (repeatable)")
	cmd.Flags().IntVar(&o.Limit, "limit", 0, "maximum number of rows (0 = unrestricted)")
	cmd.Flags().IntVar(&o.Offset, "offset", 0, "rows to skip")
}

// step builds the scope part of a step for modelName.
func (o *ScopeOptions) step(modelName string) (parity.Step, error) {
	step := parity.Step{Model: modelName, Junction: o.Junction, Negate: o.Negate}
	for i, raw := range o.Where {
		var item any
		if err := yaml.Unmarshal([]byte(raw), &item); err != nil {
			return step, fmt.Errorf("--where[%d]: %w", i, err)
		}
		step.Where = append(step.Where, item)
	}
	if o.ID != "" {
		step.ID = scalar(o.ID)
	}
	for _, key := range o.Order {
		field, dir, _ := strings.Cut(key, ":")
		switch strings.ToLower(dir) {
		case "", "asc":
			step.Order = append(step.Order, parity.OrderStep{Field: field})
		case "desc":
			step.Order = append(step.Order, parity.OrderStep{Field: field, Desc: true})
		default:
			return step, fmt.Errorf("--order %q: direction must be asc or desc", key)
		}
	}
	if o.Limit != 0 || o.Offset != 0 {
		step.Limit = &parity.LimitStep{Count: o.Limit, Offset: o.Offset}
	}
	return step, nil
}

// scalar decodes a flag value as a YAML scalar so "3" is an integer and
// "abc" a string.
func scalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	ScopeOptions
	Select    []string
	Count     bool
	Exists    bool
	Aggregate string // fn:field
	Coalesce  bool
	Group     []string
	Columns   []string // [alias=]fn[:field]
	Field     string
	Find      string
}

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Model  string          `json:"model"`
	Action string          `json:"action"`
	Rows   []ir.Row        `json:"rows,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <model>",
		Short: "Run a read query against the configured backend",
		Long: `Build a query from flags and run it against the configured backend.

Without an action flag every declared field of the matching rows is
selected. At most one of --select, --count, --exists, --aggregate,
--group, --field and --find may be given. --group takes the fields to
group by; each --column adds a computed column to every group.

Exit codes:
  0 - Query succeeded
  1 - Query failed (unknown field, record not found, etc.)
  2 - Command error (bad models directory, bad flags, etc.)

Examples:
  scopeq query invoice --where '[amount, ">", 10]' --order amount:desc
  scopeq query invoice --where '[[[paid, true], [amount, null]]]' --count
  scopeq query invoice --aggregate avg:amount --coalesce
  scopeq query invoice --group paid --column n=count --column total=sum:amount
  scopeq query invoice --find 3 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	opts.ScopeOptions.register(cmd)
	cmd.Flags().StringSliceVar(&opts.Select, "select", nil, "fields to select (comma separated)")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "count matching rows")
	cmd.Flags().BoolVar(&opts.Exists, "exists", false, "report whether any row matches")
	cmd.Flags().StringVar(&opts.Aggregate, "aggregate", "", "aggregate fn:field (sum|avg|min|max)")
	cmd.Flags().BoolVar(&opts.Coalesce, "coalesce", false, "treat null as 0 in --aggregate and --column, and 0 for empty sets")
	cmd.Flags().StringSliceVar(&opts.Group, "group", nil, "fields to group by (comma separated)")
	cmd.Flags().StringArrayVar(&opts.Columns, "column", nil, "group column [alias=]fn[:field], fn is count|sum|avg|min|max (repeatable)")
	cmd.Flags().StringVar(&opts.Field, "field", "", "return a single column")
	cmd.Flags().StringVar(&opts.Find, "find", "", "load the record with this identity")

	return cmd
}

// step translates the flags into a parity step so the CLI runs exactly
// the code path the parity scenarios check.
func (o *QueryOptions) step(modelName string) (parity.Step, error) {
	step, err := o.ScopeOptions.step(modelName)
	if err != nil {
		return step, err
	}
	step.Select = o.Select
	step.Count = o.Count
	step.Exists = o.Exists
	step.Field = o.Field
	if o.Aggregate != "" {
		fn, field, ok := strings.Cut(o.Aggregate, ":")
		if !ok {
			return step, fmt.Errorf("--aggregate %q: expected fn:field", o.Aggregate)
		}
		step.Aggregate = &parity.AggregateStep{Func: fn, Field: field, Coalesce: o.Coalesce}
	}
	if len(o.Columns) > 0 && len(o.Group) == 0 {
		return step, fmt.Errorf("--column requires --group")
	}
	if len(o.Group) > 0 {
		step.Group = &parity.GroupStep{Fields: o.Group}
		for _, raw := range o.Columns {
			alias, spec, ok := strings.Cut(raw, "=")
			if !ok {
				alias, spec = "", raw
			}
			fn, field, _ := strings.Cut(spec, ":")
			step.Group.Columns = append(step.Group.Columns, parity.GroupColumnStep{
				Alias: alias, Func: fn, Field: field, Coalesce: o.Coalesce,
			})
		}
	}
	if o.Find != "" {
		step.Find = scalar(o.Find)
	}
	if err := step.Validate("query"); err != nil {
		return step, err
	}
	return step, nil
}

func runQuery(opts *QueryOptions, modelName string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	step, err := opts.step(modelName)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidQuery, err.Error(), nil)
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	defer s.close()

	m, err := s.model(modelName)
	if err != nil {
		return failLoad(formatter, err)
	}

	out := parity.RunStep(ctx, s.p, m, step)
	if out.Error != "" {
		msg := out.Error
		if out.Cause != nil {
			msg = out.Cause.Error()
		}
		return formatter.Fail(ExitFailure, out.Error, msg, nil)
	}
	return outputQuery(formatter, m, step, out)
}

func outputQuery(f *OutputFormatter, m *model.Model, step parity.Step, out parity.Outcome) error {
	action := step.Action()
	if f.Format == "json" {
		result := QueryResult{Model: m.Name, Action: action, Rows: out.Rows}
		if out.Value != nil {
			raw, err := ir.MarshalValue(out.Value)
			if err != nil {
				return err
			}
			result.Value = raw
		}
		return f.Success(result)
	}

	if out.Value != nil {
		return f.Success(cell(out.Value))
	}
	return f.Rows(columns(m, step), out.Rows)
}

// columns lists the columns a row-returning step produces.
func columns(m *model.Model, step parity.Step) []string {
	switch {
	case step.Field != "":
		return []string{step.Field}
	case len(step.Select) > 0:
		return step.Select
	case step.Group != nil:
		cols := slices.Clone(step.Group.Fields)
		for _, c := range step.Group.Columns {
			if c.Alias == "" {
				cols = append(cols, strings.ToLower(c.Func))
			} else {
				cols = append(cols, c.Alias)
			}
		}
		return cols
	default:
		return m.FieldNames()
	}
}
