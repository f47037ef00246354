package openstack

import (
	"context"
	"fmt"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack/identity/v3/projects"
	"github.com/ilhicas/openstack-usage-center/internal/providers"
)

// KeystoneResolver lists enabled keystone projects as the report scope
type KeystoneResolver struct {
	client *gophercloud.ServiceClient
}

// NewKeystoneResolver creates a resolver over an identity v3 client
func NewKeystoneResolver(client *gophercloud.ServiceClient) *KeystoneResolver {
	return &KeystoneResolver{client: client}
}

// ListActiveProjects returns the IDs of enabled projects. Keystone keeps no
// activity history, so the range does not narrow the result.
func (k *KeystoneResolver) ListActiveProjects(ctx context.Context, _ providers.DateRange) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enabled := true
	page, err := projects.List(k.client, projects.ListOpts{Enabled: &enabled}).AllPages()
	if err != nil {
		return nil, fmt.Errorf("error listing projects: %w", err)
	}
	all, err := projects.ExtractProjects(page)
	if err != nil {
		return nil, fmt.Errorf("error decoding projects: %w", err)
	}

	ids := make([]string, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// ProjectName returns the display name of a project
func (k *KeystoneResolver) ProjectName(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := projects.Get(k.client, id).Extract()
	if err != nil {
		return "", fmt.Errorf("error getting project %s: %w", id, err)
	}
	return p.Name, nil
}

// StaticResolver returns a fixed project list from configuration
type StaticResolver struct {
	projects []string
}

// NewStaticResolver copies ids into a resolver
func NewStaticResolver(ids []string) *StaticResolver {
	return &StaticResolver{projects: append([]string(nil), ids...)}
}

// ListActiveProjects returns the configured projects
func (s *StaticResolver) ListActiveProjects(context.Context, providers.DateRange) ([]string, error) {
	if len(s.projects) == 0 {
		return nil, fmt.Errorf("no projects configured under projects.static")
	}
	return append([]string(nil), s.projects...), nil
}
