package main

import (
	"fmt"
	"time"

	"github.com/FranksOps/serprank/internal/analyzer"
	"github.com/FranksOps/serprank/internal/report"
	"github.com/FranksOps/serprank/internal/storage"
	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		format string
		query  string
		domain string
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize stored results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateOutput(); err != nil {
				return err
			}

			backend, err := openBackend(cmd.Context(), cfg.Output)
			if err != nil {
				return err
			}
			defer backend.Close()

			filter := storage.Filter{Query: query, Domain: analyzer.NormalizeDomain(domain)}
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}

			records, err := backend.Query(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to query records: %w", err)
			}
			return report.Write(cmd.OutOrStdout(), format, report.GenerateSummary(records))
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or html")
	cmd.Flags().StringVar(&query, "query", "", "only include this query")
	cmd.Flags().StringVar(&domain, "domain", "", "only include this domain")
	cmd.Flags().DurationVar(&since, "since", 0, "only include records newer than this")
	return cmd
}
