package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/garyjia/approvals/internal/application/service"
)

func newStatusCmd(opts *rootOptions, open opener) *cobra.Command {
	var subjectType string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show approval statistics for subject types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			reader, closeFn, err := open(ctx, opts.configPath, opts.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			out := cmd.OutOrStdout()
			if subjectType != "" {
				return showTypeStatistics(cmd, out, reader, subjectType)
			}
			return showAllStatistics(cmd, out, reader)
		},
	}
	cmd.Flags().StringVarP(&subjectType, "type", "t", "", "show statistics for one subject type")
	return cmd
}

// showTypeStatistics prints one type's breakdown. An unconfigured type is
// reported but is not a failure.
func showTypeStatistics(cmd *cobra.Command, out io.Writer, reader StatisticsReader, subjectType string) error {
	configured, ok := lookupType(reader.SubjectTypes(), subjectType)
	if !ok {
		fmt.Fprintf(out, "Subject type '%s' is not configured.\n", subjectType)
		return nil
	}
	subjectType = configured

	stats, err := reader.GetStatistics(cmd.Context(), subjectType)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Approval Statistics for %s\n\n", subjectType)

	table := tablewriter.NewWriter(out)
	table.Header("Metric", "Count", "Percentage")
	rows := [][]string{
		{"Total", strconv.Itoa(stats.Total), "100%"},
		{"Approved", strconv.Itoa(stats.Approved), percent(stats.ApprovedPercentage)},
		{"Pending", strconv.Itoa(stats.Pending), percent(stats.PendingPercentage)},
		{"Rejected", strconv.Itoa(stats.Rejected), percent(stats.RejectedPercentage)},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	return table.Render()
}

func showAllStatistics(cmd *cobra.Command, out io.Writer, reader StatisticsReader) error {
	all, err := reader.GetAllStatistics(cmd.Context())
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(out, "No subject types configured for approval statistics.")
		return nil
	}

	fmt.Fprintf(out, "Approval Statistics for All Subject Types\n\n")

	types := make([]string, 0, len(all))
	for t := range all {
		types = append(types, t)
	}
	sort.Strings(types)

	table := tablewriter.NewWriter(out)
	table.Header("Type", "Total", "Approved", "Pending", "Rejected", "Approved %")
	for _, t := range types {
		if err := table.Append(summaryRow(t, all[t])); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	return table.Render()
}

func summaryRow(subjectType string, s *service.Statistics) []string {
	return []string{
		subjectType,
		strconv.Itoa(s.Total),
		strconv.Itoa(s.Approved),
		strconv.Itoa(s.Pending),
		strconv.Itoa(s.Rejected),
		percent(s.ApprovedPercentage),
	}
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// lookupType returns the configured spelling of want
func lookupType(configured []string, want string) (string, bool) {
	for _, v := range configured {
		if strings.EqualFold(v, want) {
			return v, true
		}
	}
	return "", false
}
