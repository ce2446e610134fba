package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/artpar/layertree/internal/app"
	"github.com/artpar/layertree/internal/node"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	indexStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Width(4).Align(lipgloss.Right)
	folderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	layerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	groupStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	ztypeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// NewTreeCommand creates the tree command.
func NewTreeCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the layer tree with row indices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.Close()

			printTree(cmd.OutOrStdout(), a)
			return nil
		},
	}
}

func printTree(w io.Writer, a *app.App) {
	for i, n := range a.View().Rows() {
		indent := strings.Repeat("  ", n.Depth())
		fmt.Fprintf(w, "%s %s%s\n", indexStyle.Render(fmt.Sprint(i)), indent, renderNode(a, n))
	}
}

func renderNode(a *app.App, n node.Node) string {
	switch v := n.(type) {
	case *node.Folder:
		icon := "▾"
		if v.Collapsed() {
			icon = "▸"
		}
		return folderStyle.Render(fmt.Sprintf("%s %s", icon, v.Name())) + ztypeStyle.Render(" ("+v.ID()+")")
	case *node.Group:
		label := layerLabel(a, v.ID())
		return groupStyle.Render("◆ "+label) + ztypeStyle.Render(fmt.Sprintf(" [%s] %s", v.ZType(), strings.Join(v.Members(), ",")))
	case *node.Layer:
		label := layerLabel(a, v.ID())
		return layerStyle.Render("• "+label) + ztypeStyle.Render(" ["+v.ZType()+"]")
	case *node.Generic:
		return ztypeStyle.Render("· " + v.Label())
	default:
		return n.ID()
	}
}

func layerLabel(a *app.App, id string) string {
	if d, ok := a.Layers().Get(id); ok && d.Name != "" {
		return fmt.Sprintf("%s (%s)", d.Name, id)
	}
	return id
}
