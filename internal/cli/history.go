package cli

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/artpar/layertree/internal/history"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	appliedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	rejectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// ErrNoHistory is returned when the journal is turned off.
var ErrNoHistory = errors.New("move history is disabled")

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit    int
	Rejected bool
	Applied  bool
	Layer    string
}

// NewHistoryCommand creates the history command and its subcommands.
func NewHistoryCommand(global *GlobalOptions) *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded moves, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, global, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum entries to show (0 = all)")
	cmd.Flags().BoolVar(&opts.Rejected, "rejected", false, "Only refused moves")
	cmd.Flags().BoolVar(&opts.Applied, "applied", false, "Only applied moves")
	cmd.Flags().StringVar(&opts.Layer, "layer", "", "Only moves that dragged this id")
	cmd.MarkFlagsMutuallyExclusive("rejected", "applied")

	cmd.AddCommand(newHistoryStatsCommand(global))
	cmd.AddCommand(newHistoryPruneCommand(global))
	cmd.AddCommand(newHistoryClearCommand(global))
	return cmd
}

func runHistory(cmd *cobra.Command, global *GlobalOptions, opts *HistoryOptions) error {
	return withJournal(cmd, global, func(journal history.Store) error {
		entries, err := journal.List(cmd.Context(), history.QueryOptions{
			AppliedOnly:  opts.Applied,
			RejectedOnly: opts.Rejected,
			Moved:        opts.Layer,
			Limit:        opts.Limit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No moves recorded")
			return nil
		}
		for _, e := range entries {
			status := appliedStyle.Render("applied")
			if !e.Applied {
				status = rejectedStyle.Render("rejected: " + e.Reason)
			}
			fmt.Fprintf(out, "%s rows=%s before=%d %s %s\n",
				e.Timestamp.Local().Format(time.DateTime),
				joinInts(e.Rows), e.InsertBefore,
				strings.Join(e.Moved, ","), status)
		}
		return nil
	})
}

func newHistoryStatsCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize recorded moves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, global, func(journal history.Store) error {
				stats, err := journal.Stats(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total: %d\n", stats.TotalEntries)
				fmt.Fprintf(out, "Applied: %d\n", stats.Applied)
				fmt.Fprintf(out, "Rejected: %d\n", stats.Rejected)
				for _, reason := range slices.Sorted(maps.Keys(stats.ReasonCounts)) {
					fmt.Fprintf(out, "  %s: %d\n", reason, stats.ReasonCounts[reason])
				}
				return nil
			})
		},
	}
}

func newHistoryPruneCommand(global *GlobalOptions) *cobra.Command {
	var (
		keep      int
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old recorded moves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep <= 0 && olderThan <= 0 {
				return fmt.Errorf("one of --keep or --older-than is required")
			}
			return withJournal(cmd, global, func(journal history.Store) error {
				result, err := journal.Prune(cmd.Context(), history.PruneOptions{
					OlderThan: olderThan,
					KeepLast:  keep,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d move(s)\n", result.DeletedCount)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "Keep only the newest N moves")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Delete moves older than this, e.g. 720h")
	cmd.MarkFlagsMutuallyExclusive("keep", "older-than")
	return cmd
}

func newHistoryClearCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded move",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd, global, func(journal history.Store) error {
				if err := journal.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return nil
			})
		},
	}
}

func withJournal(cmd *cobra.Command, global *GlobalOptions, fn func(history.Store) error) error {
	a, err := openApp(cmd, global)
	if err != nil {
		return err
	}
	defer a.Close()

	journal := a.History()
	if journal == nil {
		return ErrNoHistory
	}
	return fn(journal)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}
