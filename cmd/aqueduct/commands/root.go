package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultRedisURL = "redis://localhost:6379"

var (
	redisURL string
	userID   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aqueduct",
	Short: "Aqueduct - operator console for running recipes",
	Long: `Aqueduct inspects and steers running lab recipes through the hub's Redis.

Every command works on one recipe session, selected with --user. The
session's setpoints, recordables and pending prompts live on the hub; this
CLI reads them, queues setpoint edits and answers prompts and inputs, which
the recipe picks up on its next update tick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute runs the root command. Errors are already printed by the printer
// package when they reach main.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	defaultURL := os.Getenv("REDIS_URL")
	if defaultURL == "" {
		defaultURL = defaultRedisURL
	}
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", defaultURL, "Hub Redis URL (env REDIS_URL)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("AQUEDUCT_USER_ID"), "Session user id (env AQUEDUCT_USER_ID)")
}
