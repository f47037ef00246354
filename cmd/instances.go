package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/ilhicas/openstack-usage-center/internal/cli"
	"github.com/ilhicas/openstack-usage-center/internal/openstack"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	instanceFilter openstack.InstanceFilter
	liveMigrate    openstack.LiveMigrateOptions
	logLength      int
	consoleType    string
)

func init() {
	instancesCmd := &cobra.Command{
		Use:   "instances",
		Short: "Inspect and manage instances of all projects",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List instances of all projects",
		Args:  cobra.NoArgs,
		RunE: withCompute(func(ctx context.Context, cmd *cobra.Command, compute *openstack.Compute, _ []string) error {
			instances, err := compute.ListInstances(ctx, instanceFilter)
			if err != nil {
				return err
			}
			return cli.WriteReport(cli.InstanceList(instances), cmd.OutOrStdout(), "", cfg.Output)
		}),
	}
	listCmd.Flags().StringVar(&instanceFilter.Project, "project", "", "Filter by project ID")
	listCmd.Flags().StringVar(&instanceFilter.Host, "host", "", "Filter by compute host")
	listCmd.Flags().StringVar(&instanceFilter.Name, "name", "", "Filter by instance name (regular expression)")
	listCmd.Flags().StringVar(&instanceFilter.IP, "ip", "", "Filter by IPv4 address")
	listCmd.Flags().StringVar(&instanceFilter.IP6, "ip6", "", "Filter by IPv6 address")
	listCmd.Flags().StringVar(&instanceFilter.Status, "status", "", "Filter by status")
	listCmd.Flags().StringVar(&instanceFilter.Image, "image", "", "Filter by image ID")
	listCmd.Flags().StringVar(&instanceFilter.Flavor, "flavor", "", "Filter by flavor ID")

	migrateCmd := &cobra.Command{
		Use:   "migrate INSTANCE_ID...",
		Short: "Schedule cold migration of instances",
		Args:  cobra.MinimumNArgs(1),
		RunE: withCompute(func(ctx context.Context, cmd *cobra.Command, compute *openstack.Compute, args []string) error {
			return forEach(ctx, cmd.OutOrStdout(), args, "Scheduled migration (pending confirmation) of instance", compute.Migrate)
		}),
	}

	liveMigrateCmd := &cobra.Command{
		Use:   "live-migrate INSTANCE_ID",
		Short: "Live migrate an instance to another host",
		Args:  cobra.ExactArgs(1),
		RunE: withCompute(func(ctx context.Context, cmd *cobra.Command, compute *openstack.Compute, args []string) error {
			if err := compute.LiveMigrate(ctx, args[0], liveMigrate); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully started live migration of instance %s\n", args[0])
			return nil
		}),
	}
	liveMigrateCmd.Flags().StringVar(&liveMigrate.Host, "host", "", "Target host; empty lets the scheduler choose")
	liveMigrateCmd.Flags().BoolVar(&liveMigrate.BlockMigration, "block-migration", false, "Copy disks to the target host")

	deleteCmd := &cobra.Command{
		Use:   "delete INSTANCE_ID...",
		Short: "Delete instances",
		Args:  cobra.MinimumNArgs(1),
		RunE: withCompute(func(ctx context.Context, cmd *cobra.Command, compute *openstack.Compute, args []string) error {
			return forEach(ctx, cmd.OutOrStdout(), args, "Scheduled deletion of instance", compute.Delete)
		}),
	}

	logCmd := &cobra.Command{
		Use:   "log INSTANCE_ID",
		Short: "Show the console log of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: withCompute(func(ctx context.Context, cmd *cobra.Command, compute *openstack.Compute, args []string) error {
			length := logLength
			if length <= 0 {
				length = cfg.OpenStack.LogLength
			}
			out, err := compute.ConsoleLog(ctx, args[0], length)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("instance", args[0]).Msg("unable to get console log")
				out = openstack.UnavailableLogMessage(args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		}),
	}
	logCmd.Flags().IntVar(&logLength, "length", 0, "Number of lines (default from openstack.log_length)")

	consoleCmd := &cobra.Command{
		Use:   "console INSTANCE_ID",
		Short: "Print the URL of a remote console",
		Args:  cobra.ExactArgs(1),
		RunE: withCompute(func(ctx context.Context, cmd *cobra.Command, compute *openstack.Compute, args []string) error {
			kind := consoleType
			if kind == "" {
				kind = cfg.OpenStack.ConsoleType
			}
			console, err := compute.Console(ctx, args[0], kind)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s console: %s\n", console.Type, console.URL)
			return nil
		}),
	}
	consoleCmd.Flags().StringVar(&consoleType, "type", "", "Console type: AUTO, VNC, SPICE, RDP, SERIAL or MKS (default from openstack.console_type)")

	actionsCmd := &cobra.Command{
		Use:   "actions INSTANCE_ID",
		Short: "Show the action log of an instance, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: withCompute(func(ctx context.Context, cmd *cobra.Command, compute *openstack.Compute, args []string) error {
			actions, err := compute.ActionLog(ctx, args[0])
			if err != nil {
				return err
			}
			return cli.WriteReport(cli.ActionList(actions), cmd.OutOrStdout(), "", cfg.Output)
		}),
	}

	instancesCmd.AddCommand(listCmd, migrateCmd, liveMigrateCmd, deleteCmd, logCmd, consoleCmd, actionsCmd)
	rootCmd.AddCommand(instancesCmd)
}

type computeRunFunc func(ctx context.Context, cmd *cobra.Command, compute *openstack.Compute, args []string) error

func withCompute(run computeRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		clients, err := cli.Connect(ctx, cfg, true)
		if err != nil {
			return err
		}
		return run(ctx, cmd, cli.NewCompute(clients), args)
	}
}

// forEach applies action to every instance and reports all failures
func forEach(ctx context.Context, out io.Writer, ids []string, done string, action func(context.Context, string) error) error {
	logger := zerolog.Ctx(ctx)
	failed := 0
	for _, id := range ids {
		if err := action(ctx, id); err != nil {
			logger.Error().Err(err).Str("instance", id).Msg("action failed")
			failed++
			continue
		}
		fmt.Fprintf(out, "%s %s\n", done, id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d instances failed", failed, len(ids))
	}
	return nil
}
