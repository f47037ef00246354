package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ilhicas/openstack-usage-center/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "usage.yaml")

	got, err := generateDefaultConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// the generated file must load cleanly
	cfg, err := config.Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "ceilometer", cfg.Provider)
	assert.Equal(t, "keystone", cfg.Projects.Source)
	assert.Equal(t, "AUTO", cfg.OpenStack.ConsoleType)
	assert.Equal(t, "OpenStack/Telemetry", cfg.AWS.Namespace)

	_, err = generateDefaultConfig(path)
	assert.ErrorContains(t, err, "already exists")
}

func TestForEach(t *testing.T) {
	var out bytes.Buffer
	err := forEach(context.Background(), &out, []string{"a", "b", "c"}, "Deleted", func(_ context.Context, id string) error {
		if id == "b" {
			return errors.New("boom")
		}
		return nil
	})

	assert.EqualError(t, err, "1 of 3 instances failed")
	assert.Equal(t, "Deleted a\nDeleted c\n", out.String())
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(config.LogConfig{Level: "debug", Format: "json"})
	assert.NoError(t, err)

	_, err = newLogger(config.LogConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)
}
