package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ecoloop/ecoloop/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "ecoloop",
	Short: "Learn sustainability one short video at a time",
	Long: "EcoLoop is a terminal client for the EcoLoop learning platform: watch a level's video\n" +
		"in short segments, answer a question after each one, then prove the real-world task.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides ECOLOOP_DB env var)")
	rootCmd.PersistentFlags().String("api-url", "", "Backend base URL (overrides ECOLOOP_API_URL env var)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file to load")
	rootCmd.Flags().Bool("skip-welcome", false, "Start without the welcome animation")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(levelsCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(communityCmd)
	rootCmd.AddCommand(challengesCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then ECOLOOP_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command, configured string) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if configured != "" {
		return configured, store.EnsureDir(configured)
	}
	return store.DefaultDBPath()
}
