package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/tablemirror/internal/mirror"
	"github.com/roach88/tablemirror/internal/value"
)

// EditResult is the JSON payload of the set and remove commands.
type EditResult struct {
	Table string `json:"table"`
	Idx   int64  `json:"idx"`
	Field string `json:"field,omitempty"`
	Rows  int    `json:"rows"` // row count after the edit
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <table> <idx> <field> <json-value>",
		Short: "Set one field of one row and flush",
		Long: `Set a field of the row with the given identity. The value is JSON:
'"text"', '42', '{"nested":true}' or 'null'. The change is written when
the mirror closes.`,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(rootOpts, args, cmd)
		},
	}
	return cmd
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	var pruneTail bool
	cmd := &cobra.Command{
		Use:   "remove <table> <idx>",
		Short: "Splice one row out of the table and flush",
		Long: `Remove the row with the given identity. Every following row moves up
one position and is saved again under its new identity. With --prune-tail
(the default) the identity freed at the end of the table is deleted too.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(rootOpts, args, pruneTail, cmd)
		},
	}
	cmd.Flags().BoolVar(&pruneTail, "prune-tail", true, "Delete the identity freed at the end of the table")
	return cmd
}

func runSet(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := cmd.Context()

	idx, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return badArgument(f, "idx", args[1], err)
	}
	field := args[2]
	v, err := value.Parse([]byte(args[3]))
	if err != nil {
		return badArgument(f, "value", args[3], err)
	}

	e, err := openEnv(opts, f)
	if err != nil {
		return f.Fail("open", err)
	}
	defer e.Close()

	m, err := e.openMirror(ctx, args[0], false)
	if err != nil {
		return f.Fail("open mirror", err)
	}

	pos := position(m, idx)
	if pos < 0 {
		m.Close(ctx)
		return rowNotFound(f, m, idx)
	}
	m.At(pos).Set(field, v)
	f.VerboseLog("Set %s on row %d, %d operation(s) queued", field, idx, m.Pending())

	if err := m.Close(ctx); err != nil {
		return f.Fail("flush", err)
	}
	return f.Success(
		EditResult{Table: m.Table().String(), Idx: idx, Field: field, Rows: m.Len()},
		fmt.Sprintf("updated %s[%d].%s", m.Table(), idx, field),
	)
}

func runRemove(opts *RootOptions, args []string, pruneTail bool, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := cmd.Context()

	idx, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return badArgument(f, "idx", args[1], err)
	}

	e, err := openEnv(opts, f)
	if err != nil {
		return f.Fail("open", err)
	}
	defer e.Close()

	m, err := e.openMirror(ctx, args[0], pruneTail)
	if err != nil {
		return f.Fail("open mirror", err)
	}

	pos := position(m, idx)
	if pos < 0 {
		m.Close(ctx)
		return rowNotFound(f, m, idx)
	}
	m.Splice(pos, 1)
	f.VerboseLog("Removed row %d, %d operation(s) queued", idx, m.Pending())

	if err := m.Close(ctx); err != nil {
		return f.Fail("flush", err)
	}
	return f.Success(
		EditResult{Table: m.Table().String(), Idx: idx, Rows: m.Len()},
		fmt.Sprintf("removed %s[%d], %d row(s) left", m.Table(), idx, m.Len()),
	)
}

// position returns the index in m of the row with identity idx, or -1.
func position(m *mirror.Mirror, idx int64) int {
	for i, r := range m.All() {
		if r.Idx() == idx {
			return i
		}
	}
	return -1
}

func rowNotFound(f *OutputFormatter, m *mirror.Mirror, idx int64) error {
	msg := fmt.Sprintf("no row with idx %d in %s", idx, m.Table())
	_ = f.Error(ErrCodeNotFound, msg, nil)
	return NewExitError(ExitCommandError, msg)
}

func badArgument(f *OutputFormatter, name, raw string, err error) error {
	msg := fmt.Sprintf("invalid %s %q", name, raw)
	_ = f.Error(ErrCodeBadArgument, fmt.Sprintf("%s: %v", msg, err), nil)
	return WrapExitError(ExitCommandError, msg, err)
}
