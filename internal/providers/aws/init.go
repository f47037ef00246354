package aws

import (
	"context"

	"github.com/ilhicas/openstack-usage-center/internal/providers"
	"github.com/spf13/viper"
)

func init() {
	providers.RegisterProvider("cloudwatch", func(ctx context.Context, config *viper.Viper) (providers.Provider, error) {
		return NewCloudWatchProvider(ctx, config)
	})
}
