package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Provider  string          `mapstructure:"provider"`
	Output    string          `mapstructure:"output"`
	Log       LogConfig       `mapstructure:"log"`
	OpenStack OpenStackConfig `mapstructure:"openstack"`
	Projects  ProjectsConfig  `mapstructure:"projects"`
	AWS       AWSConfig       `mapstructure:"aws"`
	NewRelic  NewRelicConfig  `mapstructure:"newrelic"`
	Server    ServerConfig    `mapstructure:"server"`
}

// LogConfig controls the zerolog output
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OpenStackConfig holds keystone credentials and endpoint selection
type OpenStackConfig struct {
	AuthURL           string `mapstructure:"auth_url"`
	Username          string `mapstructure:"username"`
	Password          string `mapstructure:"password"`
	ProjectName       string `mapstructure:"project_name"`
	UserDomainName    string `mapstructure:"user_domain_name"`
	ProjectDomainName string `mapstructure:"project_domain_name"`
	Region            string `mapstructure:"region"`
	Interface         string `mapstructure:"interface"`
	// ConsoleType is AUTO, VNC, SPICE, RDP, SERIAL, MKS or empty to disable
	ConsoleType string `mapstructure:"console_type"`
	LogLength   int    `mapstructure:"log_length"`
}

// ProjectsConfig selects how report projects are resolved
type ProjectsConfig struct {
	Source string   `mapstructure:"source"`
	Static []string `mapstructure:"static"`
}

// AWSConfig holds AWS-specific configuration
type AWSConfig struct {
	Region          string `mapstructure:"region"`
	Profile         string `mapstructure:"profile"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Namespace       string `mapstructure:"namespace"`
}

// NewRelicConfig holds New Relic-specific configuration
type NewRelicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	AccountID int    `mapstructure:"account_id"`
	Region    string `mapstructure:"region"`
}

// ServerConfig configures the JSON API
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers default values on v. Every key gets one so that
// OUC_* variables reach Unmarshal even when the file omits the key.
func SetDefaults(v *viper.Viper) {
	for _, key := range []string{
		"openstack.auth_url",
		"openstack.username",
		"openstack.password",
		"openstack.project_name",
		"openstack.region",
		"aws.region",
		"aws.profile",
		"aws.access_key_id",
		"aws.secret_access_key",
		"newrelic.api_key",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("projects.static", []string{})
	v.SetDefault("newrelic.account_id", 0)

	v.SetDefault("provider", "ceilometer")
	v.SetDefault("output", "table")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("openstack.user_domain_name", "Default")
	v.SetDefault("openstack.project_domain_name", "Default")
	v.SetDefault("openstack.interface", "public")
	v.SetDefault("openstack.console_type", "AUTO")
	v.SetDefault("openstack.log_length", 35)
	v.SetDefault("projects.source", "keystone")
	v.SetDefault("aws.namespace", "OpenStack/Telemetry")
	v.SetDefault("newrelic.region", "US")
	v.SetDefault("server.addr", ":8080")
}

// Load reads configuration from configFile (or the default search path),
// the environment, and defaults.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("error getting user home directory: %w", err)
		}

		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".openstack-usage-center")
	}

	// Read in environment variables that match, e.g. OUC_AWS_REGION
	v.SetEnvPrefix("OUC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider-specific environment variables
	if os.Getenv("AWS_ACCESS_KEY_ID") != "" {
		v.Set("aws.access_key_id", os.Getenv("AWS_ACCESS_KEY_ID"))
	}
	if os.Getenv("AWS_SECRET_ACCESS_KEY") != "" {
		v.Set("aws.secret_access_key", os.Getenv("AWS_SECRET_ACCESS_KEY"))
	}
	if os.Getenv("NEW_RELIC_API_KEY") != "" {
		v.Set("newrelic.api_key", os.Getenv("NEW_RELIC_API_KEY"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return Decode(v)
}

// Decode unmarshals an already loaded viper instance
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}
