package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var addrFlag string

	ctx := newCommandContext(&addrFlag)

	rootCmd := &cobra.Command{
		Use:           "subsctl",
		Short:         "Control the ASB Auto Subs daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "", "Base URL of the daemon API (default http://127.0.0.1:8765)")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newRetryCommand(ctx))
	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newSettingsCommand(ctx))
	rootCmd.AddCommand(newLanguagesCommand(ctx))

	return rootCmd
}

// commandContext resolves the daemon address for every command. The
// --addr flag wins over ASB_HTTP_ADDR, which wins over the default bind.
type commandContext struct {
	addrFlag *string
}

func newCommandContext(addrFlag *string) *commandContext {
	return &commandContext{addrFlag: addrFlag}
}

func (c *commandContext) client() *apiClient {
	addr := ""
	if c.addrFlag != nil {
		addr = strings.TrimSpace(*c.addrFlag)
	}
	if addr == "" {
		addr = strings.TrimSpace(os.Getenv("ASB_HTTP_ADDR"))
	}
	if addr == "" {
		addr = "127.0.0.1:8765"
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return newAPIClient(addr)
}
