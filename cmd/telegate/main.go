package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:          "telegate",
		Short:        "Webhook gateway between Telegram and backend processing services",
		SilenceUsage: true,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
	serveCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to the TOML config file (falls back to CONFIG_PATH)")
	root.AddCommand(serveCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("configuration ok (listen %s, webhook %s)\n", cfg.Server.Addr, cfg.Telegram.WebhookPath)
			return nil
		},
	}
	checkCmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to the TOML config file (falls back to CONFIG_PATH)")
	root.AddCommand(checkCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
