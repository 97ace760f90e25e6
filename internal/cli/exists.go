package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tablemirror/internal/store"
)

// ExistsResult is the JSON payload of the exists command.
type ExistsResult struct {
	Table  string `json:"table"`
	Exists bool   `json:"exists"`
}

// NewExistsCommand creates the exists command.
func NewExistsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exists [table]",
		Short: "Report whether a table exists",
		Long: `Report whether a table exists. A bare name is looked up in the
"public" schema; use schema.table for any other.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExists(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runExists(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	e, err := openEnv(opts, f)
	if err != nil {
		return f.Fail("open", err)
	}
	defer e.Close()

	table, err := store.ParseTable(e.tableArg(args), store.DefaultReadSchema)
	if err != nil {
		return f.Fail("parse table", err)
	}

	ok, err := e.store.TableExists(cmd.Context(), table)
	if err != nil {
		return f.Fail("exists", err)
	}

	text := fmt.Sprintf("%s exists", table)
	if !ok {
		text = fmt.Sprintf("%s does not exist", table)
	}
	return f.Success(ExistsResult{Table: table.String(), Exists: ok}, text)
}
