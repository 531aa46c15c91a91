package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sentry-mcp/gateway/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the redacted effective configuration",
	Long: `Load the configuration from file and environment, apply defaults,
and print the result as YAML with secrets redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if used := config.ConfigFileUsed(); used != "" {
			fmt.Printf("# config file: %s\n", used)
		} else {
			fmt.Println("# config file: none (environment only)")
		}
		dump, err := cfg.DumpYAML()
		if err != nil {
			return err
		}
		fmt.Print(dump)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
