package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "loader",
	Short:   "A self-tuning HTTP load generator",
	Version: version,
	Long: `Loader replays a scripted sequence of HTTP requests with a growing number
of concurrent workers and searches for the highest worker count whose mean
response time stays below a target.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print help
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func init() {
	// Add subcommands to root command
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(validateCmd)
}
