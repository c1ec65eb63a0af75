package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/tokenrisk/internal/config"
)

const (
	appName = "tokenrisk"
	version = "v1.0.0"
)

var (
	configPath string
	logLevel   string
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Solana token risk scoring",
		Version: version,
		Long: `tokenrisk scores SPL tokens for rug-pull risk.

It combines on-chain authority, holder, liquidity and trading checks with
RugCheck, DexScreener, Birdeye, Solscan and Jupiter data into a single
0-100 score and risk level.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
	}
	addGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newServeCmd(), newAnalyzeCmd(), newHealthCmd(), newPruneCmd(), newRecentCmd())
	return rootCmd
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	fs.StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
}

func loadConfig() (*config.AppConfig, error) {
	return config.Load(configPath)
}
