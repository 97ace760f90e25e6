package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tablemirror/internal/value"
)

// DumpResult is the JSON payload of the dump command.
type DumpResult struct {
	Table string         `json:"table"`
	Rows  []value.Object `json:"rows"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [table]",
		Short: "Load a table through the mirror and print every row",
		Long: `Load the full table once, as the mirror does at startup, and print
each row with its positional identity. Without an argument the table
from the config file is used.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runDump(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := cmd.Context()

	e, err := openEnv(opts, f)
	if err != nil {
		return f.Fail("open", err)
	}
	defer e.Close()

	m, err := e.openMirror(ctx, e.tableArg(args), false)
	if err != nil {
		return f.Fail("open mirror", err)
	}
	defer m.Close(ctx)

	result := DumpResult{Table: m.Table().String(), Rows: []value.Object{}}
	lines := make([]string, 0, m.Len())
	for _, r := range m.All() {
		snap := r.Snapshot()
		result.Rows = append(result.Rows, snap)

		data, err := value.MarshalCanonical(snap)
		if err != nil {
			return f.Fail("encode row", err)
		}
		lines = append(lines, string(data))
	}
	f.VerboseLog("Loaded %d row(s) from %s", len(result.Rows), result.Table)

	return f.Success(result, strings.Join(lines, "\n"))
}
