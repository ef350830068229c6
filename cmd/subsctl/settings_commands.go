package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/config"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the daemon's runtime settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showSettings(cmd, ctx)
		},
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:     "show",
		Aliases: []string{"get"},
		Short:   "Show the current runtime settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showSettings(cmd, ctx)
		},
	})
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))

	return settingsCmd
}

func showSettings(cmd *cobra.Command, ctx *commandContext) error {
	var settings config.RuntimeSettings
	if err := ctx.client().get(cmd.Context(), "/api/settings", &settings); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Language:      %s\n", settings.Language)
	fmt.Fprintf(out, "Auto detect:   %v\n", settings.AutoDetect)
	fmt.Fprintf(out, "Granularity:   %s\n", settings.Granularity)
	fmt.Fprintf(out, "Model:         %s\n", settings.Model)
	fmt.Fprintf(out, "Prompt:        %s\n", settings.Prompt)
	fmt.Fprintf(out, "Deliver:       %v\n", settings.Deliver)
	fmt.Fprintf(out, "Scan schedule: %s\n", settings.ScanSchedule)
	return nil
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	var (
		language     string
		autoDetect   bool
		granularity  string
		model        string
		prompt       string
		deliver      bool
		scanSchedule string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update runtime settings (unset flags keep their current value)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.client()

			var settings config.RuntimeSettings
			if err := client.get(cmd.Context(), "/api/settings", &settings); err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("language") {
				settings.Language = language
			}
			if flags.Changed("auto-detect") {
				settings.AutoDetect = autoDetect
			}
			if flags.Changed("granularity") {
				settings.Granularity = granularity
			}
			if flags.Changed("model") {
				settings.Model = model
			}
			if flags.Changed("prompt") {
				settings.Prompt = prompt
			}
			if flags.Changed("deliver") {
				settings.Deliver = deliver
			}
			if flags.Changed("scan-schedule") {
				settings.ScanSchedule = scanSchedule
			}

			var saved config.RuntimeSettings
			if err := client.put(cmd.Context(), "/api/settings", settings, &saved); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "Transcription language code (e.g. ja)")
	cmd.Flags().BoolVar(&autoDetect, "auto-detect", false, "Detect the language from the transcript")
	cmd.Flags().StringVar(&granularity, "granularity", "", "Timestamp granularity: segment or word")
	cmd.Flags().StringVar(&model, "model", "", "Whisper model name")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Optional transcription prompt")
	cmd.Flags().BoolVar(&deliver, "deliver", false, "Push finished subtitles to asbplayer")
	cmd.Flags().StringVar(&scanSchedule, "scan-schedule", "", "Cron expression for library scans")
	return cmd
}

func newLanguagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the supported transcription languages",
		RunE: func(cmd *cobra.Command, args []string) error {
			var languages []struct {
				Code string `json:"code"`
				Name string `json:"name"`
			}
			if err := ctx.client().get(cmd.Context(), "/api/languages", &languages); err != nil {
				return err
			}

			rows := make([][]string, 0, len(languages))
			for _, lang := range languages {
				rows = append(rows, []string{lang.Code, lang.Name})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Code", "Language"}, rows))
			return nil
		},
	}
}
