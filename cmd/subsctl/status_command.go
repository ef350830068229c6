package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/service"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status service.Status
			if err := ctx.client().get(cmd.Context(), "/api/status", &status); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if status.WatchDir != "" {
				fmt.Fprintf(out, "Watch folder: %s (%s)\n", status.WatchDir, status.ScanSchedule)
			} else {
				fmt.Fprintln(out, "Watch folder: not configured")
			}
			if status.NextScanAt != nil {
				fmt.Fprintf(out, "Next scan: %s\n", status.NextScanAt.Local().Format(time.RFC1123))
			}
			if status.LastScanAt != nil {
				fmt.Fprintf(out, "Last scan: %s (queued %d)\n", status.LastScanAt.Local().Format(time.RFC1123), status.LastScanQueued)
			}
			fmt.Fprintf(out, "Clipboard watch: %v\n", status.ClipboardWatch)
			fmt.Fprintln(out)

			rows := [][]string{
				{"pending", strconv.Itoa(status.Queue.Pending)},
				{"running", strconv.Itoa(status.Queue.Running)},
				{"success", strconv.Itoa(status.Queue.Success)},
				{"failed", strconv.Itoa(status.Queue.Failed)},
				{"skipped", strconv.Itoa(status.Queue.Skipped)},
			}
			fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, 1))
			return nil
		},
	}
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the watch folder for unsubtitled media now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Queued int `json:"queued"`
			}
			if err := ctx.client().post(cmd.Context(), "/api/scan", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %d file(s)\n", resp.Queued)
			return nil
		},
	}
}
