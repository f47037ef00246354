package cmd

import (
	"fmt"

	"github.com/ilhicas/openstack-usage-center/internal/cli"
	"github.com/ilhicas/openstack-usage-center/internal/reports"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	dateFrom   string
	dateTo     string
	period     string
	sortRows   bool
	outputFile string
)

func init() {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the daily usage report of every project",
		Long: `Generate per-project daily averages of every known meter, grouped by service.

The period is a number of days back from now, or "other" to use --date-from and --date-to
(YYYY-MM-DD, UTC). Upstream failures are reported as warnings next to the rows that could be built.`,
		Example: `  openstack-usage-center report --period 7
  openstack-usage-center report --period other --date-from 2024-03-01 --date-to 2024-03-15 -o csv --output-file usage_report.csv`,
		RunE: executeReport,
	}

	reportCmd.Flags().StringVar(&dateFrom, "date-from", "", "Start date for the report (YYYY-MM-DD), with --period other")
	reportCmd.Flags().StringVar(&dateTo, "date-to", "", "End date for the report (YYYY-MM-DD), with --period other; defaults to now")
	reportCmd.Flags().StringVar(&period, "period", reports.DefaultPeriod, `Number of days back from now, or "other"`)
	reportCmd.Flags().BoolVar(&sortRows, "sort", false, "Sort rows by day, meter and project")
	reportCmd.Flags().StringVar(&outputFile, "output-file", "", "Write the report to a file instead of stdout")

	rootCmd.AddCommand(reportCmd)
}

func executeReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	clients, err := cli.Connect(ctx, cfg, false)
	if err != nil {
		return err
	}

	generator, err := cli.NewGenerator(ctx, viper.GetViper(), cfg, clients)
	if err != nil {
		return err
	}

	report := generator.BuildReport(ctx, reports.DateRangeRequest{
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Period:   period,
	})
	if sortRows {
		reports.SortRows(report.Rows)
	}

	if err := cli.WriteReport(report, cmd.OutOrStdout(), outputFile, cfg.Output); err != nil {
		return err
	}
	if outputFile != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to: %s\n", outputFile)
	}
	return nil
}
