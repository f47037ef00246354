package cmd

import (
	"github.com/ilhicas/openstack-usage-center/internal/cli"
	"github.com/ilhicas/openstack-usage-center/internal/reports"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	processesCmd := &cobra.Command{
		Use:   "processes INSTANCE_ID",
		Short: "Show the latest process list reported for an instance",
		Long: `Decode the most recent instance.process.list sample of an instance and show
the processes it lists, along with the sample it was read from.`,
		Args: cobra.ExactArgs(1),
		RunE: executeProcesses,
	}

	processesCmd.Flags().StringVar(&outputFile, "output-file", "", "Write the process list to a file instead of stdout")

	rootCmd.AddCommand(processesCmd)
}

func executeProcesses(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	clients, err := cli.Connect(ctx, cfg, true)
	if err != nil {
		return err
	}

	instance, err := cli.NewCompute(clients).GetInstance(ctx, args[0])
	if err != nil {
		return err
	}

	generator, err := cli.NewGenerator(ctx, viper.GetViper(), cfg, clients)
	if err != nil {
		return err
	}

	report := generator.BuildProcessList(ctx, reports.InstanceRef{ID: instance.ID, Name: instance.Name})
	return cli.WriteReport(report, cmd.OutOrStdout(), outputFile, cfg.Output)
}
