package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Factory builds a provider from the loaded configuration. Clients created by
// the factory may stay bound to ctx.
type Factory func(ctx context.Context, config *viper.Viper) (Provider, error)

// Registry stores all registered providers
var registry = make(map[string]Factory)

// RegisterProvider registers a new provider factory function with the given name
func RegisterProvider(name string, factory Factory) {
	registry[strings.ToLower(name)] = factory
}

// GetProvider returns a provider instance by name
func GetProvider(ctx context.Context, name string, config *viper.Viper) (Provider, error) {
	factory, exists := registry[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("provider not found: %s", name)
	}

	return factory(ctx, config)
}

// ListProviders returns the sorted names of all registered providers
func ListProviders() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
