package ceilometer

import (
	"context"
	"fmt"

	"github.com/ilhicas/openstack-usage-center/internal/config"
	"github.com/ilhicas/openstack-usage-center/internal/openstack"
	"github.com/ilhicas/openstack-usage-center/internal/providers"
	"github.com/spf13/viper"
)

func init() {
	providers.RegisterProvider("ceilometer", func(ctx context.Context, v *viper.Viper) (providers.Provider, error) {
		cfg, err := config.Decode(v)
		if err != nil {
			return nil, err
		}

		provider, err := openstack.Authenticate(ctx, cfg.OpenStack)
		if err != nil {
			return nil, err
		}

		client, err := openstack.NewMeteringV2(provider, openstack.EndpointOpts(cfg.OpenStack))
		if err != nil {
			return nil, fmt.Errorf("error initializing Ceilometer provider: %w", err)
		}
		return NewProvider(client), nil
	})
}
