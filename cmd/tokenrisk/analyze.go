package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/tokenrisk/internal/application"
	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/engine"
	progress "github.com/sawpanic/tokenrisk/internal/log"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		refresh bool
		asJSON  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "analyze <address>",
		Short: "Score one token and print the result",
		Long: `Run a single analysis. Phases are reported on stderr. The result is a
table when stdout is a terminal and JSON otherwise (or with --json).

Examples:
  tokenrisk analyze So11111111111111111111111111111111111111112
  tokenrisk analyze <mint> --refresh --json | jq .superScore`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := token.ParseAddress(args[0]); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, err := application.Build(cmd.Context(), cfg,
				application.WithRegisterer(prometheus.NewRegistry()),
				application.WithVersion(version))
			if err != nil {
				return fmt.Errorf("failed to build service: %w", err)
			}
			defer svc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			steps := progress.NewStepLogger(cmd.ErrOrStderr(), progress.PipelineSteps)
			result, err := svc.Engine.AnalyzeToken(ctx, args[0], engine.Options{ForceRefresh: refresh, Observer: steps})
			if err != nil {
				steps.Fail(err)
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(os.Stdout) {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			return renderScore(out, result)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass cached scores")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Always print JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Analysis timeout")
	return cmd
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func renderScore(w io.Writer, s *token.SuperTokenScore) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	name := s.TokenName
	if s.TokenSymbol != "" {
		name = fmt.Sprintf("%s (%s)", s.TokenName, s.TokenSymbol)
	}
	fmt.Fprintf(tw, "Token\t%s\n", s.TokenAddress)
	if strings.TrimSpace(name) != "" {
		fmt.Fprintf(tw, "Name\t%s\n", name)
	}
	fmt.Fprintf(tw, "Score\t%d / 100\n", s.SuperScore)
	fmt.Fprintf(tw, "Risk level\t%s\n", s.GlobalRiskLevel)
	fmt.Fprintf(tw, "Recommendation\t%s\n", s.Recommendation)
	fmt.Fprintf(tw, "Analyzed\t%s (%dms)\n", s.AnalyzedAt.Format(time.RFC3339), s.AnalysisTimeMs)
	if s.Cached {
		note := "yes"
		if s.Fallback {
			note = "yes, stale fallback"
		}
		fmt.Fprintf(tw, "Cached\t%s\n", note)
	}
	if s.LowConfidence {
		fmt.Fprintf(tw, "Confidence\tLOW\n")
	}

	fmt.Fprintln(tw, "\nBreakdown\t")
	for _, kv := range breakdownRows(s.ScoreBreakdown) {
		fmt.Fprintf(tw, "  %s\t%d\n", kv.name, kv.value)
	}

	writeFlags(tw, "Red flags", s.AllRedFlags)
	writeFlags(tw, "Green flags", s.GreenFlags)
	writeFlags(tw, "Info", s.InfoFlags)
	return tw.Flush()
}

type breakdownRow struct {
	name  string
	value int
}

// breakdownRows lists sub-scores by their JSON names, lowest first.
func breakdownRows(b token.ScoreBreakdown) []breakdownRow {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil
	}
	var m map[string]int
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	rows := make([]breakdownRow, 0, len(m))
	for k, v := range m {
		rows = append(rows, breakdownRow{name: k, value: v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].value != rows[j].value {
			return rows[i].value < rows[j].value
		}
		return rows[i].name < rows[j].name
	})
	return rows
}

func writeFlags(w io.Writer, title string, flags []token.Flag) {
	if len(flags) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\t\n", title)
	for _, f := range flags {
		sev := string(f.Severity)
		if sev == "" {
			sev = "-"
		}
		fmt.Fprintf(w, "  [%s] %s\t%s\n", sev, f.Category, f.Message)
	}
}
