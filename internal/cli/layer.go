package cli

import (
	"fmt"
	"strings"

	"github.com/artpar/layertree/internal/layers"
	"github.com/spf13/cobra"
)

// LayerAddOptions holds options for the layer add command.
type LayerAddOptions struct {
	Name    string
	ZType   string
	Members []string
	Parent  string
}

// NewLayerCommand creates the layer command and its subcommands.
func NewLayerCommand(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layer",
		Short: "Add, remove and list layers",
	}

	cmd.AddCommand(newLayerAddCommand(global))
	cmd.AddCommand(newLayerRemoveCommand(global))
	cmd.AddCommand(newLayerListCommand(global))
	return cmd
}

func newLayerAddCommand(global *GlobalOptions) *cobra.Command {
	opts := &LayerAddOptions{}

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a layer at the top of its z-type",
		Long: `Add a layer to the map. It lands at the top of its z-type partition in
the draw order and at the top of its parent folder in the tree.

A layer given --members is a group: one row in the tree, several entries
in the z-order.`,
		Example: `  layertree layer add roads --ztype feature
  layertree layer add basemap --ztype tile --members tiles-a,tiles-b
  layertree layer add rivers --parent folder-1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayerAdd(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "Display name")
	cmd.Flags().StringVarP(&opts.ZType, "ztype", "z", "", "Z-type partition")
	cmd.Flags().StringSliceVarP(&opts.Members, "members", "m", nil, "Member layers of a group")
	cmd.Flags().StringVarP(&opts.Parent, "parent", "p", "", "Parent folder id")
	return cmd
}

func runLayerAdd(cmd *cobra.Command, global *GlobalOptions, opts *LayerAddOptions, id string) error {
	a, err := openApp(cmd, global)
	if err != nil {
		return err
	}
	defer a.Close()

	d := layers.Descriptor{
		ID:      id,
		Name:    opts.Name,
		ZType:   opts.ZType,
		Members: opts.Members,
	}
	if err := a.AddLayer(cmd.Context(), d, opts.Parent); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added layer %s\n", id)
	return nil
}

func newLayerRemoveCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a layer",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.RemoveLayer(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed layer %s\n", args[0])
			return nil
		},
	}
}

func newLayerListCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered layers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, d := range a.Layers().List() {
				line := d.ID
				if d.Name != "" {
					line += " " + fmt.Sprintf("%q", d.Name)
				}
				if d.ZType != "" {
					line += " [" + d.ZType + "]"
				}
				if d.IsGroup() {
					line += " members=" + strings.Join(d.Members, ",")
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
