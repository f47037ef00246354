package newrelic

import (
	"context"

	"github.com/ilhicas/openstack-usage-center/internal/providers"
	"github.com/spf13/viper"
)

func init() {
	// Register New Relic provider factory
	providers.RegisterProvider("newrelic", func(_ context.Context, config *viper.Viper) (providers.Provider, error) {
		return NewProvider(
			config.GetString("newrelic.api_key"),
			config.GetInt("newrelic.account_id"),
			config.GetString("newrelic.region"),
		)
	})
}
