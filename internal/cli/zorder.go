package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewZOrderCommand creates the zorder command.
func NewZOrderCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "zorder",
		Aliases: []string{"z"},
		Short:   "Print the draw order, top-most first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, e := range a.ZOrder().Entries() {
				fmt.Fprintf(out, "%s %s %s\n",
					indexStyle.Render(fmt.Sprint(e.ZIndex)),
					layerStyle.Render(e.ID),
					ztypeStyle.Render("["+e.ZType+"]"))
			}
			return nil
		},
	}
}
