package main

import (
	"errors"
	"fmt"
	"strings"

	"blog/internal/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	okFmt   = color.New(color.FgGreen).SprintFunc()
	warnFmt = color.New(color.FgYellow).SprintFunc()
	errFmt  = color.New(color.FgRed, color.Bold).SprintFunc()
	dimFmt  = color.New(color.Faint).SprintFunc()
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate configuration and exit",
	Long: `check-config loads configuration the same way serve does and reports
every problem at once. Production rules apply when APP_ENV=production.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		cfg, warnings, err := config.FromEnv()
		for _, w := range warnings {
			fmt.Fprintf(out, "%s %s\n", warnFmt("warning:"), w)
		}
		if err != nil {
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(out, "%s %s\n", errFmt("error:"), line)
			}
			return errors.New("configuration is invalid")
		}

		fmt.Fprintf(out, "%s configuration is valid\n", okFmt("ok:"))
		fmt.Fprintf(out, "  %s %s\n", dimFmt("environment:"), cfg.Env)
		fmt.Fprintf(out, "  %s %s\n", dimFmt("database:"), cfg.RedactedDatabaseURL())
		fmt.Fprintf(out, "  %s %s\n", dimFmt("listen:"), cfg.ListenAddr)
		backend := "sqlite"
		if cfg.RedisURL != "" {
			backend = "redis"
		}
		fmt.Fprintf(out, "  %s %s\n", dimFmt("sessions:"), backend)
		return nil
	},
}
