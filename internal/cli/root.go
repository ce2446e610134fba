package cli

import (
	"fmt"
	"log/slog"

	"github.com/artpar/layertree/internal/app"
	"github.com/spf13/cobra"
)

// GlobalOptions holds flags shared by every subcommand.
type GlobalOptions struct {
	ConfigPath string
	DataDir    string
	Store      string
	Verbose    bool
}

// NewRootCommand creates the root command for layertree.
func NewRootCommand(version string) *cobra.Command {
	opts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:   "layertree",
		Short: "Manage a map's layer tree and z-order",
		Long: `layertree keeps a layer tree (folders, layers and grouped layers)
in sync with the global draw order of the map.

Rows are addressed by their index in the flattened tree, as printed by
"layertree tree". Moving rows reorders the tree and the z-order together.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "~/.layertree.yaml", "Config file")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "Data directory (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "Store backend: file, sqlite or memory (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log to stderr")

	cmd.AddCommand(NewLayerCommand(opts))
	cmd.AddCommand(NewFolderCommand(opts))
	cmd.AddCommand(NewTreeCommand(opts))
	cmd.AddCommand(NewZOrderCommand(opts))
	cmd.AddCommand(NewMoveCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// openApp builds and loads the application for one command invocation.
// Callers must Close the returned App.
func openApp(cmd *cobra.Command, opts *GlobalOptions) (*app.App, error) {
	cfg, err := app.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.Store != "" {
		cfg.Store = opts.Store
	}

	logger := slog.New(slog.DiscardHandler)
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	a, err := app.New(app.WithConfig(cfg), app.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := a.Load(cmd.Context()); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load layer tree: %w", err)
	}
	return a, nil
}
