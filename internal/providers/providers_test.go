package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nullProvider struct {
	MeterCatalog
	SampleStore
	name string
}

func (n nullProvider) GetName() string { return n.name }

func TestRegistry(t *testing.T) {
	RegisterProvider("Test-Null", func(_ context.Context, v *viper.Viper) (Provider, error) {
		return nullProvider{name: v.GetString("name")}, nil
	})
	RegisterProvider("test-broken", func(context.Context, *viper.Viper) (Provider, error) {
		return nil, errors.New("no credentials")
	})
	t.Cleanup(func() {
		delete(registry, "test-null")
		delete(registry, "test-broken")
	})

	v := viper.New()
	v.Set("name", "null")

	p, err := GetProvider(context.Background(), "TEST-NULL", v)
	require.NoError(t, err)
	assert.Equal(t, "null", p.GetName())

	_, err = GetProvider(context.Background(), "test-broken", v)
	assert.EqualError(t, err, "no credentials")

	_, err = GetProvider(context.Background(), "missing", v)
	assert.EqualError(t, err, "provider not found: missing")

	assert.Subset(t, ListProviders(), []string{"test-broken", "test-null"})
}
