package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/loader/internal/config"
)

var validateCmd = newValidateCmd()

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a search configuration file",
		Long: `Check a configuration file against the schema and the field rules without
sending any request.

  loader validate --config checkout.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: runValidate,
	}
	cmd.Flags().StringP("config", "c", "", "Configuration file")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" && len(args) > 0 {
		configFile = args[0]
	}
	if configFile == "" {
		return fmt.Errorf("--config is required")
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}

	searchCfg := cfg.ToSearchConfig()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: ok\n", configFile)
	fmt.Fprintf(out, "  steps:               %d\n", len(cfg.Script))
	fmt.Fprintf(out, "  responseTimeTarget:  %s\n", searchCfg.ResponseTimeTarget)
	fmt.Fprintf(out, "  periodLength:        %s\n", searchCfg.PeriodLength)
	fmt.Fprintf(out, "  initialThroughput:   %d\n", searchCfg.InitialThroughput)
	return nil
}
