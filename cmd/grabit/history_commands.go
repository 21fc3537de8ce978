package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"grabit/internal/history"
	"grabit/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage the download archive",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived downloads, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.HistoryList(limit)
				if err != nil {
					return err
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "History is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Title", "Kind", "Quality", "Format", "Size", "Completed"},
					buildHistoryRows(resp.Entries),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of entries to show")
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all archived downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.HistoryClear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d history entries\n", resp.Removed)
				return nil
			})
		},
	}
}

func buildHistoryRows(entries []*history.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		title := entry.Title
		if title == "" {
			title = entry.URL
		}
		if len(title) > 48 {
			title = title[:45] + "..."
		}
		quality := ""
		if entry.Quality > 0 {
			quality = fmt.Sprintf("%dp", entry.Quality)
		}
		size := ""
		if entry.FileSize > 0 {
			size = formatSize(entry.FileSize)
		}
		completed := ""
		if !entry.CompletedAt.IsZero() {
			completed = entry.CompletedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			title,
			entry.Kind,
			quality,
			entry.Format,
			size,
			completed,
		})
	}
	return rows
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
