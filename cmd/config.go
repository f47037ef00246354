package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var configPath string

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Manage configuration for the OpenStack usage center tool.`,
	}

	generateConfigCmd := &cobra.Command{
		Use:         "generate",
		Short:       "Generate a default configuration file",
		Long:        `Generate a default configuration file with placeholders for OpenStack credentials and the CloudWatch and NewRelic providers.`,
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := generateDefaultConfig(configPath)
			if err != nil {
				return fmt.Errorf("error generating config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file generated at: %s\n", path)
			return nil
		},
	}

	generateConfigCmd.Flags().StringVarP(&configPath, "path", "f", "", "Path to save the configuration file (default is $HOME/.openstack-usage-center.yaml)")

	configCmd.AddCommand(generateConfigCmd)
	rootCmd.AddCommand(configCmd)
}

const defaultConfig = `# OpenStack Usage Center Configuration

# Telemetry provider (ceilometer, cloudwatch or newrelic)
provider: ceilometer

# Output format (table, json, or csv)
output: table

log:
  # debug, info, warn or error
  level: info
  # console or json
  format: console

# OpenStack credentials. When auth_url is empty the OS_* environment
# variables of an openrc file are used instead.
openstack:
  auth_url: https://keystone.example.com:5000/v3
  username: admin
  # Recommended to be set via environment variable:
  # export OS_PASSWORD=your_password
  # password: YOUR_PASSWORD
  project_name: admin
  user_domain_name: Default
  project_domain_name: Default
  region: RegionOne
  # public, internal or admin
  interface: public
  # AUTO, VNC, SPICE, RDP, SERIAL, MKS, or false to disable consoles
  console_type: AUTO
  # Default number of console log lines
  log_length: 35

# Projects covered by usage reports
projects:
  # keystone lists enabled projects; static uses the list below
  source: keystone
  # static:
  #   - 0123456789abcdef0123456789abcdef

# AWS CloudWatch Provider Configuration
aws:
  # AWS Region (e.g., us-east-1, us-west-2)
  region: us-west-2
  # AWS Profile to use (optional)
  profile: default
  # Namespace the telemetry is published under, with a project_id dimension
  namespace: OpenStack/Telemetry
  # Alternatively, specify credentials directly (not recommended)
  # access_key_id: YOUR_ACCESS_KEY
  # secret_access_key: YOUR_SECRET_KEY

# NewRelic Provider Configuration
newrelic:
  # Your New Relic Account ID
  account_id: 0
  # US or EU
  region: US
  # New Relic API Key is recommended to be set via environment variable:
  # export NEW_RELIC_API_KEY=your_api_key
  # Alternatively, specify here (not recommended)
  # api_key: YOUR_API_KEY

# HTTP API
server:
  addr: ":8080"
`

func generateDefaultConfig(path string) (string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		path = filepath.Join(home, ".openstack-usage-center.yaml")
	}

	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("configuration file already exists at %s, use --path to specify a different location or delete the existing file", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("could not create directory %s: %w", dir, err)
	}

	// credentials may end up in this file
	if err := os.WriteFile(path, []byte(defaultConfig), 0600); err != nil {
		return "", fmt.Errorf("could not write configuration file: %w", err)
	}

	return path, nil
}
