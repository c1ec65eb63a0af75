package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/tokenrisk/internal/application"
)

func newPruneCmd() *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete durable scores older than --max-age",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxAge <= 0 {
				return fmt.Errorf("--max-age must be positive, got %v", maxAge)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, err := application.Build(cmd.Context(), cfg, application.WithRegisterer(prometheus.NewRegistry()))
			if err != nil {
				return fmt.Errorf("failed to build service: %w", err)
			}
			defer svc.Close()

			n, err := svc.Prune(cmd.Context(), maxAge)
			if err != nil {
				return err
			}
			log.Info().Int64("deleted", n).Dur("max_age", maxAge).Msg("Pruned durable scores")

			totals, err := svc.RiskLevelCounts(cmd.Context())
			if err != nil {
				return err
			}
			dict := zerolog.Dict()
			for _, level := range totalsOrder(totals) {
				dict.Int64(level, totals[level])
			}
			log.Info().Dict("remaining", dict).Msg("Durable scores by risk level")
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 30*24*time.Hour, "Delete entries analyzed before now minus this age")
	return cmd
}
