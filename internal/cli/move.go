package cli

import (
	"fmt"

	"github.com/artpar/layertree/internal/drag"
	"github.com/artpar/layertree/internal/rows"
	"github.com/spf13/cobra"
)

// MoveOptions holds options for the move command.
type MoveOptions struct {
	Rows   string
	Before string
	Check  bool
}

// NewMoveCommand creates the move command.
func NewMoveCommand(global *GlobalOptions) *cobra.Command {
	opts := &MoveOptions{}

	cmd := &cobra.Command{
		Use:   "move",
		Short: "Drag rows of the tree to a new position",
		Long: `Move the selected rows so they land before row --before, as a drag
and drop in the layer tree would. The z-order follows the tree.

With --check the move is only validated.`,
		Example: `  layertree move --rows 3 --before 0
  layertree move --rows 1,2 --before 5 --check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Rows, "rows", "r", "", "Rows to move, e.g. 1,3-5")
	cmd.Flags().StringVarP(&opts.Before, "before", "b", "", "Row to insert before")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "Validate without moving")
	cmd.MarkFlagRequired("rows")
	cmd.MarkFlagRequired("before")
	return cmd
}

func runMove(cmd *cobra.Command, global *GlobalOptions, opts *MoveOptions) error {
	selected, err := rows.ParseSelection(opts.Rows)
	if err != nil {
		return err
	}
	before := drag.ParseIndex(opts.Before)

	a, err := openApp(cmd, global)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if opts.Check {
		if reason := a.CheckMove(selected, before); reason != drag.ReasonNone {
			fmt.Fprintf(out, "rejected: %s\n", reason)
			return fmt.Errorf("move not allowed: %s", reason)
		}
		fmt.Fprintln(out, "ok")
		return nil
	}

	outcome, err := a.Move(cmd.Context(), selected, before)
	fmt.Fprintln(out, outcome)
	if err != nil {
		return err
	}
	if !outcome.Applied {
		return fmt.Errorf("move not applied: %s", outcome.Reason)
	}
	return nil
}
