// Package openstack wires gophercloud clients for the identity, compute and
// metering services used by the usage center.
package openstack

import (
	"context"
	"fmt"
	"os"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/ilhicas/openstack-usage-center/internal/config"
	"github.com/rs/zerolog"
)

// MeteringServiceType is the keystone catalog type of the telemetry API
const MeteringServiceType = "metering"

// Clients bundles the service clients built from one authenticated session
type Clients struct {
	Provider *gophercloud.ProviderClient
	Compute  *gophercloud.ServiceClient
	Identity *gophercloud.ServiceClient
}

// Authenticate logs in to keystone. When auth_url is not configured the
// standard OS_* environment variables are used instead. Requests made with
// the returned client are bound to ctx.
func Authenticate(ctx context.Context, cfg config.OpenStackConfig) (*gophercloud.ProviderClient, error) {
	opts, err := authOptions(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := openstack.NewClient(opts.IdentityEndpoint)
	if err != nil {
		return nil, fmt.Errorf("error creating OpenStack client: %w", err)
	}
	provider.Context = ctx

	if err := openstack.Authenticate(provider, opts); err != nil {
		return nil, fmt.Errorf("error authenticating against %s: %w", opts.IdentityEndpoint, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("auth_url", opts.IdentityEndpoint).
		Str("region", cfg.Region).
		Msg("authenticated to keystone")

	return provider, nil
}

func authOptions(cfg config.OpenStackConfig) (gophercloud.AuthOptions, error) {
	if cfg.AuthURL == "" {
		opts, err := openstack.AuthOptionsFromEnv()
		if err != nil {
			return gophercloud.AuthOptions{}, fmt.Errorf("openstack.auth_url is not configured and OS_* variables are incomplete: %w", err)
		}
		opts.AllowReauth = true
		return opts, nil
	}

	password := cfg.Password
	if password == "" {
		password = os.Getenv("OS_PASSWORD")
	}

	return gophercloud.AuthOptions{
		IdentityEndpoint: cfg.AuthURL,
		Username:         cfg.Username,
		Password:         password,
		DomainName:       cfg.UserDomainName,
		AllowReauth:      true,
		Scope: &gophercloud.AuthScope{
			ProjectName: cfg.ProjectName,
			DomainName:  cfg.ProjectDomainName,
		},
	}, nil
}

// EndpointOpts selects endpoints from the keystone catalog
func EndpointOpts(cfg config.OpenStackConfig) gophercloud.EndpointOpts {
	availability := gophercloud.AvailabilityPublic
	switch cfg.Interface {
	case "internal":
		availability = gophercloud.AvailabilityInternal
	case "admin":
		availability = gophercloud.AvailabilityAdmin
	}
	return gophercloud.EndpointOpts{
		Region:       cfg.Region,
		Availability: availability,
	}
}

// NewClients authenticates and builds the compute and identity clients
func NewClients(ctx context.Context, cfg config.OpenStackConfig) (*Clients, error) {
	provider, err := Authenticate(ctx, cfg)
	if err != nil {
		return nil, err
	}

	eo := EndpointOpts(cfg)
	compute, err := openstack.NewComputeV2(provider, eo)
	if err != nil {
		return nil, fmt.Errorf("error locating compute endpoint: %w", err)
	}
	identity, err := openstack.NewIdentityV3(provider, eo)
	if err != nil {
		return nil, fmt.Errorf("error locating identity endpoint: %w", err)
	}

	return &Clients{
		Provider: provider,
		Compute:  compute,
		Identity: identity,
	}, nil
}

// NewMeteringV2 locates the telemetry endpoint, which gophercloud has no
// dedicated constructor for.
func NewMeteringV2(provider *gophercloud.ProviderClient, eo gophercloud.EndpointOpts) (*gophercloud.ServiceClient, error) {
	eo.ApplyDefaults(MeteringServiceType)
	url, err := provider.EndpointLocator(eo)
	if err != nil {
		return nil, fmt.Errorf("error locating metering endpoint: %w", err)
	}
	return &gophercloud.ServiceClient{
		ProviderClient: provider,
		Endpoint:       gophercloud.NormalizeURL(url),
		Type:           MeteringServiceType,
	}, nil
}
