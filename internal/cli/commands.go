// Package cli assembles providers, resolvers and clients for the commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ilhicas/openstack-usage-center/internal/config"
	"github.com/ilhicas/openstack-usage-center/internal/openstack"
	"github.com/ilhicas/openstack-usage-center/internal/providers"
	"github.com/ilhicas/openstack-usage-center/internal/reports"
	"github.com/spf13/viper"

	// telemetry backends register themselves
	_ "github.com/ilhicas/openstack-usage-center/internal/providers/aws"
	_ "github.com/ilhicas/openstack-usage-center/internal/providers/ceilometer"
	_ "github.com/ilhicas/openstack-usage-center/internal/providers/newrelic"
)

// Project sources
const (
	ProjectsKeystone = "keystone"
	ProjectsStatic   = "static"
)

// NeedsOpenStack reports whether building reports requires a keystone login
func NeedsOpenStack(cfg *config.Config) bool {
	return strings.EqualFold(cfg.Provider, "ceilometer") || !strings.EqualFold(cfg.Projects.Source, ProjectsStatic)
}

// Connect logs in to OpenStack when the configuration needs it. It returns
// nil clients otherwise.
func Connect(ctx context.Context, cfg *config.Config, required bool) (*openstack.Clients, error) {
	if !required && !NeedsOpenStack(cfg) {
		return nil, nil
	}
	clients, err := openstack.NewClients(ctx, cfg.OpenStack)
	if err != nil {
		return nil, fmt.Errorf("error connecting to OpenStack: %w", err)
	}
	return clients, nil
}

// NewProjectResolver selects the project source named in the configuration
func NewProjectResolver(cfg *config.Config, clients *openstack.Clients) (providers.ProjectResolver, error) {
	switch strings.ToLower(cfg.Projects.Source) {
	case ProjectsStatic:
		return openstack.NewStaticResolver(cfg.Projects.Static), nil
	case ProjectsKeystone, "":
		if clients == nil {
			return nil, fmt.Errorf("keystone project source requires OpenStack credentials")
		}
		return openstack.NewKeystoneResolver(clients.Identity), nil
	default:
		return nil, fmt.Errorf("unsupported project source: %s", cfg.Projects.Source)
	}
}

// NewCompute builds the admin compute service with keystone tenant names
func NewCompute(clients *openstack.Clients) *openstack.Compute {
	return openstack.NewCompute(clients.Compute, openstack.NewKeystoneResolver(clients.Identity))
}

// NewGenerator builds a report generator over the configured provider
func NewGenerator(ctx context.Context, v *viper.Viper, cfg *config.Config, clients *openstack.Clients, opts ...reports.Option) (*reports.ReportGenerator, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("provider is required. Use --provider flag or set in config (one of: %s)", strings.Join(providers.ListProviders(), ", "))
	}

	provider, err := providers.GetProvider(ctx, cfg.Provider, v)
	if err != nil {
		return nil, fmt.Errorf("error initializing %s provider: %w", cfg.Provider, err)
	}

	resolver, err := NewProjectResolver(cfg, clients)
	if err != nil {
		return nil, err
	}

	return reports.NewReportGenerator(provider, resolver, opts...), nil
}

// Outputter renders a report in a named format
type Outputter interface {
	Output(w io.Writer, format string) error
}

// WriteReport writes report to outputPath, or to stdout when it is empty
func WriteReport(report Outputter, stdout io.Writer, outputPath, format string) error {
	if outputPath == "" {
		if err := report.Output(stdout, format); err != nil {
			return fmt.Errorf("error outputting report: %w", err)
		}
		return nil
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer file.Close()

	if err := report.Output(file, format); err != nil {
		return fmt.Errorf("error outputting report: %w", err)
	}
	return file.Close()
}
