package main

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs [jobID]",
		Short: "List jobs, or show one job in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return showJob(cmd, ctx, args[0])
			}
			return listJobs(cmd, ctx)
		},
	}
}

func listJobs(cmd *cobra.Command, ctx *commandContext) error {
	var list []*jobs.TranscriptionJob
	if err := ctx.client().get(cmd.Context(), "/api/jobs", &list); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No jobs")
		return nil
	}

	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			job.ID,
			string(job.Status),
			job.Source,
			jobMedia(job),
			jobProgress(job),
			job.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Status", "Source", "Media", "Units", "Updated"}, rows))
	return nil
}

func showJob(cmd *cobra.Command, ctx *commandContext, id string) error {
	var job jobs.TranscriptionJob
	if err := ctx.client().get(cmd.Context(), "/api/jobs/"+url.PathEscape(id), &job); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:       %s\n", job.ID)
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	fmt.Fprintf(out, "Source:   %s\n", job.Source)
	if job.Payload.MediaFile != "" {
		fmt.Fprintf(out, "Media:    %s\n", job.Payload.MediaFile)
	}
	if job.Payload.SourceURL != "" {
		fmt.Fprintf(out, "URL:      %s\n", job.Payload.SourceURL)
	}
	if job.Payload.OutputFile != "" {
		fmt.Fprintf(out, "Output:   %s\n", job.Payload.OutputFile)
	}
	if job.Progress.Total > 0 {
		fmt.Fprintf(out, "Units:    %s\n", jobProgress(&job))
	}
	if job.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", job.Error)
	}
	fmt.Fprintf(out, "Created:  %s\n", job.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated:  %s\n", job.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

// jobMedia picks the one source a job carries.
func jobMedia(job *jobs.TranscriptionJob) string {
	if job.Payload.MediaFile != "" {
		return filepath.Base(job.Payload.MediaFile)
	}
	return job.Payload.SourceURL
}

func jobProgress(job *jobs.TranscriptionJob) string {
	if job.Progress.Total == 0 {
		return ""
	}
	progress := fmt.Sprintf("%d/%d", job.Progress.Done, job.Progress.Total)
	if job.Progress.Failed > 0 {
		progress += fmt.Sprintf(" (%d failed)", job.Progress.Failed)
	}
	return progress
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "submit <media-file-or-url>",
		Short: "Queue a transcription job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(args[0])

			req := struct {
				Source     string `json:"source"`
				MediaPath  string `json:"media_path,omitempty"`
				URL        string `json:"url,omitempty"`
				OutputFile string `json:"output_file,omitempty"`
			}{Source: "cli", OutputFile: outputFile}

			if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
				req.URL = target
			} else {
				abs, err := filepath.Abs(target)
				if err != nil {
					return err
				}
				req.MediaPath = abs
			}

			var resp struct {
				Created bool                   `json:"created"`
				Job     *jobs.TranscriptionJob `json:"job"`
			}
			if err := ctx.client().post(cmd.Context(), "/api/jobs", req, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.Created {
				fmt.Fprintf(out, "Queued %s\n", resp.Job.ID)
			} else {
				fmt.Fprintf(out, "Already queued as %s (%s)\n", resp.Job.ID, resp.Job.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write the subtitle here instead of next to the input")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <jobID>",
		Short: "Re-enqueue a finished job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Job *jobs.TranscriptionJob `json:"job"`
			}
			path := "/api/jobs/" + url.PathEscape(args[0]) + "/retry"
			if err := ctx.client().post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.Job.ID == args[0] {
				fmt.Fprintf(out, "Job %s is already %s\n", resp.Job.ID, resp.Job.Status)
			} else {
				fmt.Fprintf(out, "Queued retry %s\n", resp.Job.ID)
			}
			return nil
		},
	}
}
