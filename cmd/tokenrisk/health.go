package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sawpanic/tokenrisk/internal/application"
	httpapi "github.com/sawpanic/tokenrisk/internal/interfaces/http"
)

func newHealthCmd() *cobra.Command {
	var (
		url     string
		asJSON  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check circuit breaker and cache tier health",
		Long: `Check health either of a running server (--url) or of a freshly wired
local stack, which probes the configured Redis and Postgres tiers.

Examples:
  tokenrisk health
  tokenrisk health --url http://localhost:8080 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				resp httpapi.HealthResponse
				err  error
			)
			if url != "" {
				resp, err = remoteHealth(url, timeout)
			} else {
				resp, err = localHealth(cmd, timeout)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(os.Stdout) {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(resp); err != nil {
					return err
				}
			} else {
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "Status\t%s\n", strings.ToUpper(resp.Status))
				fmt.Fprintf(tw, "Version\t%s\n", resp.Version)
				names := make([]string, 0, len(resp.Checks))
				for name := range resp.Checks {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					c := resp.Checks[name]
					fmt.Fprintf(tw, "%s\t%s\t%s\n", name, c.Status, c.Message)
				}
				for _, b := range resp.Breakers {
					fmt.Fprintf(tw, "breaker %s\t%s\tfailures=%d\n", b.Name, b.State, b.ConsecutiveFailures)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			if resp.Status != "healthy" {
				return fmt.Errorf("service is %s", resp.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Base URL of a running tokenrisk server")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output health status as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Health check timeout")
	return cmd
}

func localHealth(cmd *cobra.Command, timeout time.Duration) (httpapi.HealthResponse, error) {
	cfg, err := loadConfig()
	if err != nil {
		return httpapi.HealthResponse{}, err
	}
	svc, err := application.Build(cmd.Context(), cfg,
		application.WithRegisterer(prometheus.NewRegistry()),
		application.WithVersion(version))
	if err != nil {
		return httpapi.HealthResponse{}, fmt.Errorf("failed to build service: %w", err)
	}
	defer svc.Close()
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	return svc.Health.Gather(ctx), nil
}

func remoteHealth(base string, timeout time.Duration) (httpapi.HealthResponse, error) {
	var out httpapi.HealthResponse
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(strings.TrimRight(base, "/") + "/health")
	if err != nil {
		return out, fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("health endpoint returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode health response: %w", err)
	}
	return out, nil
}
