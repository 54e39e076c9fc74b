package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/theinterneti/augment-adam-sub002/pkg/config"
	"github.com/theinterneti/augment-adam-sub002/pkg/metrics"
)

func newReportCmd(global *globalOptions) *cobra.Command {
	var prometheusURL string

	cmd := &cobra.Command{
		Use:   "report <request-id>",
		Short: "Show backend token usage for a past request from Prometheus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.LoadOrDefault(global.configPath)
			if err != nil {
				return err //nolint:wrapcheck // loader errors name the file
			}
			url := prometheusURL
			if url == "" {
				url = cfg.Metrics.PrometheusURL
			}
			if url == "" {
				return fmt.Errorf("no Prometheus URL: set metrics.prometheus_url or pass --prometheus-url")
			}

			svc, err := metrics.NewQueryService(url)
			if err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			m, err := svc.GetRequestMetrics(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("query request %s: %w", args[0], err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "request:  %s\n", m.RequestID)
			fmt.Fprintf(w, "calls:    %d (%d failed)\n", m.Calls, m.Failures)
			fmt.Fprintf(w, "tokens:   %d prompt, %d completion, %d total\n", m.PromptTokens, m.CompletionTokens, m.TotalTokens)
			if len(m.Models) > 0 {
				fmt.Fprintf(w, "models:   %v\n", m.Models)
			}
			fmt.Fprintln(w)

			stages := make([]string, 0, len(m.Stages))
			for name := range m.Stages {
				stages = append(stages, name)
			}
			sort.Strings(stages)

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STAGE\tCALLS\tFAILED\tPROMPT\tCOMPLETION")
			for _, name := range stages {
				s := m.Stages[name]
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", name, s.Calls, s.Failures, s.PromptTokens, s.CompletionTokens)
			}
			return tw.Flush() //nolint:wrapcheck // write errors go straight to the user
		},
	}
	cmd.Flags().StringVar(&prometheusURL, "prometheus-url", "", "Prometheus server (default from config)")
	return cmd
}
