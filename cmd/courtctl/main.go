// cmd/courtctl/main.go
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/codr1/courtbook/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "courtctl",
	Short: "Operator tasks for the court booking server",
	Long: `courtctl runs maintenance against the court booking database:
schema migrations, availability checks, purging cancelled reservations
and generating the admin token hash.`,
	SilenceUsage: true,
}

func init() {
	defaultPath := "config.yaml"
	if env, ok := os.LookupEnv("CONFIG_PATH"); ok {
		defaultPath = env
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "path to the YAML configuration file")

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", configPath, err)
	}
	return cfg, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "courtctl: %s\n", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
