package cli

import (
	"fmt"

	"github.com/artpar/layertree/internal/folder"
	"github.com/artpar/layertree/internal/rows"
	"github.com/spf13/cobra"
)

// FolderOptions holds options for the folder create and edit commands.
type FolderOptions struct {
	Name      string
	Parent    string
	Rows      string
	Children  []string
	Collapsed bool
}

// NewFolderCommand creates the folder command and its subcommands.
func NewFolderCommand(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Create, edit and remove folders",
	}

	cmd.AddCommand(newFolderCreateCommand(global))
	cmd.AddCommand(newFolderEditCommand(global))
	cmd.AddCommand(newFolderUnfolderCommand(global))
	cmd.AddCommand(newFolderRemoveCommand(global))
	return cmd
}

func newFolderCreateCommand(global *GlobalOptions) *cobra.Command {
	opts := &FolderOptions{}

	cmd := &cobra.Command{
		Use:   "create [child...]",
		Short: "Create a folder",
		Long: `Create a folder holding the given children. With --rows the children
are the layers at those tree rows and the folder joins the first row's
parent.`,
		Example: `  layertree folder create --name Hydrology rivers lakes
  layertree folder create --rows 2-4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFolderCreate(cmd, global, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "Folder name")
	cmd.Flags().StringVarP(&opts.Parent, "parent", "p", "", "Parent folder id")
	cmd.Flags().StringVarP(&opts.Rows, "rows", "r", "", "Tree rows to wrap, e.g. 1,3-5")
	return cmd
}

func runFolderCreate(cmd *cobra.Command, global *GlobalOptions, opts *FolderOptions, children []string) error {
	if opts.Rows != "" && len(children) > 0 {
		return fmt.Errorf("--rows cannot be combined with child ids")
	}

	a, err := openApp(cmd, global)
	if err != nil {
		return err
	}
	defer a.Close()

	var id string
	if opts.Rows != "" {
		selected, err := rows.ParseSelection(opts.Rows)
		if err != nil {
			return err
		}
		id, err = a.CreateFolder(cmd.Context(), opts.Name, selected)
		if err != nil {
			return err
		}
	} else {
		id, err = a.CreateOrEditFolder(cmd.Context(), folder.Spec{
			Name:     opts.Name,
			ParentID: opts.Parent,
			Children: children,
		})
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created folder %s\n", id)
	return nil
}

func newFolderEditCommand(global *GlobalOptions) *cobra.Command {
	opts := &FolderOptions{}

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Rename, collapse or change the children of a folder",
		Long: `Edit a folder in place. Flags that are not given keep their current
value. Children dropped from --children move up next to the folder.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFolderEdit(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "Folder name")
	cmd.Flags().BoolVar(&opts.Collapsed, "collapsed", false, "Collapse the folder")
	cmd.Flags().StringSliceVar(&opts.Children, "children", nil, "Complete child list")
	return cmd
}

func runFolderEdit(cmd *cobra.Command, global *GlobalOptions, opts *FolderOptions, id string) error {
	a, err := openApp(cmd, global)
	if err != nil {
		return err
	}
	defer a.Close()

	item, ok := a.Folders().Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", folder.ErrNotFound, id)
	}
	if !item.IsFolder() {
		return fmt.Errorf("%w: %s", folder.ErrNotFolder, id)
	}

	spec := folder.Spec{
		ID:        id,
		Name:      item.Name,
		ParentID:  item.ParentID,
		Collapsed: item.Collapsed,
		Children:  item.Children,
	}
	flags := cmd.Flags()
	if flags.Changed("name") {
		spec.Name = opts.Name
	}
	if flags.Changed("collapsed") {
		spec.Collapsed = opts.Collapsed
	}
	if flags.Changed("children") {
		spec.Children = opts.Children
	}

	if _, err := a.CreateOrEditFolder(cmd.Context(), spec); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated folder %s\n", id)
	return nil
}

func newFolderUnfolderCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unfolder <id>",
		Short: "Remove a folder and keep its children in its place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Unfolder(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unfoldered %s\n", args[0])
			return nil
		},
	}
}

func newFolderRemoveCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a folder and every layer under it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.RemoveFolderTree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed folder %s and %d layer(s)\n", args[0], len(removed))
			return nil
		},
	}
}
