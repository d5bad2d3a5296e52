package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./config/config.yaml"

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "coursetrackerd",
		Short:        "Tracks course bookability and notifies on changes",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				log.Printf("failed to load .env file: %v", err)
			}
			if !cmd.Flags().Changed("config") {
				if env := os.Getenv("CONFIG_PATH"); env != "" {
					configPath = env
				}
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the YAML configuration file")
	root.AddCommand(newServeCmd(), newCheckCmd())
	return root
}
