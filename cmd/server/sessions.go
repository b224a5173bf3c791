package main

import (
	"fmt"

	"blog/internal/config"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := config.FromEnv()
		if err != nil {
			return err
		}
		st, err := openStores(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.sessions.DeleteExpired(cmd.Context())
		if err != nil {
			return fmt.Errorf("pruning sessions: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s removed %d expired session(s) from %s\n", okFmt("ok:"), n, st.backend)
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsPruneCmd)
}
