package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iliyamo/ticket-autobuy/internal/seat"
)

// NewNormalizeCommand prints what the seat normalizers make of a value.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "normalize section|row <value>",
		Short:     "Show the normalized form of a section or row label",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"section", "row"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, raw := args[0], args[1]
			var (
				value string
				ok    bool
			)
			switch kind {
			case "section":
				value, ok = seat.NormalizeSection(raw)
			case "row":
				var n int
				n, ok = seat.NormalizeRow(raw)
				if ok {
					value = strconv.Itoa(n)
				}
			default:
				return fmt.Errorf("unknown kind %q: want section or row", kind)
			}
			text := value
			if !ok {
				text = "unrecognized"
			}
			return emit(cmd.OutOrStdout(), rootOpts.Format,
				map[string]any{"kind": kind, "input": raw, "value": value, "ok": ok}, text)
		},
	}
	return cmd
}
