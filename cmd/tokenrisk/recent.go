package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sawpanic/tokenrisk/internal/application"
	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/persistence"
)

type recentReport struct {
	Scores []persistence.ScoreRecord `json:"scores"`
	Totals map[string]int64          `json:"totals"`
}

func newRecentCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the latest stored scores and totals per risk level",
		Long: `List tokens from the Postgres score store, newest analysis first, followed
by how many stored tokens fall in each risk level.

Examples:
  tokenrisk recent
  tokenrisk recent --limit 10 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
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

			var report recentReport
			if report.Scores, err = svc.Recent(cmd.Context(), limit); err != nil {
				return err
			}
			if report.Totals, err = svc.RiskLevelCounts(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(os.Stdout) {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			return renderRecent(out, report)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of tokens to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Always print JSON")
	return cmd
}

func renderRecent(w io.Writer, r recentReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tSCORE\tRISK\tANALYZED")
	for _, rec := range r.Scores {
		level := rec.GlobalRiskLevel
		if rec.LowConfidence {
			level += " (low confidence)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", rec.TokenAddress, rec.SuperScore, level, rec.AnalyzedAt.Format(time.RFC3339))
	}
	if len(r.Totals) > 0 {
		fmt.Fprintln(tw, "\nRISK LEVEL\tTOKENS\t\t")
		for _, level := range totalsOrder(r.Totals) {
			fmt.Fprintf(tw, "%s\t%d\t\t\n", level, r.Totals[level])
		}
	}
	return tw.Flush()
}

// totalsOrder lists known risk levels safest first, then any unknown labels.
func totalsOrder(totals map[string]int64) []string {
	known := []token.GlobalRiskLevel{token.UltraSafe, token.Safe, token.Moderate, token.Risky, token.VeryRisky, token.Scam}
	seen := make(map[string]bool, len(known))
	var out []string
	for _, l := range known {
		seen[string(l)] = true
		if _, ok := totals[string(l)]; ok {
			out = append(out, string(l))
		}
	}
	var rest []string
	for l := range totals {
		if !seen[l] {
			rest = append(rest, l)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
