package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ilhicas/openstack-usage-center/internal/config"
	"github.com/ilhicas/openstack-usage-center/internal/openstack"
	"github.com/ilhicas/openstack-usage-center/internal/providers"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReport struct {
	err error
}

func (f fakeReport) Output(w io.Writer, format string) error {
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, "report as "+format)
	return err
}

func TestWriteReport_Stdout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(fakeReport{}, &buf, "", "csv"))
	assert.Equal(t, "report as csv", buf.String())

	err := WriteReport(fakeReport{err: errors.New("boom")}, &buf, "", "csv")
	assert.ErrorContains(t, err, "boom")
}

func TestWriteReport_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage_report.json")
	require.NoError(t, WriteReport(fakeReport{}, io.Discard, path, "json"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "report as json", string(data))
}

func TestNeedsOpenStack(t *testing.T) {
	assert.True(t, NeedsOpenStack(&config.Config{Provider: "ceilometer", Projects: config.ProjectsConfig{Source: "static"}}))
	assert.True(t, NeedsOpenStack(&config.Config{Provider: "cloudwatch", Projects: config.ProjectsConfig{Source: "keystone"}}))
	assert.False(t, NeedsOpenStack(&config.Config{Provider: "cloudwatch", Projects: config.ProjectsConfig{Source: "static"}}))
}

func TestConnectSkipsLoginWhenNotNeeded(t *testing.T) {
	clients, err := Connect(context.Background(), &config.Config{Provider: "newrelic", Projects: config.ProjectsConfig{Source: "static"}}, false)
	require.NoError(t, err)
	assert.Nil(t, clients)
}

func TestNewProjectResolver(t *testing.T) {
	r, err := NewProjectResolver(&config.Config{Projects: config.ProjectsConfig{Source: "static", Static: []string{"p1"}}}, nil)
	require.NoError(t, err)
	ids, err := r.ListActiveProjects(context.Background(), providers.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)

	_, err = NewProjectResolver(&config.Config{Projects: config.ProjectsConfig{Source: "keystone"}}, nil)
	assert.Error(t, err)

	r, err = NewProjectResolver(&config.Config{Projects: config.ProjectsConfig{Source: "keystone"}}, &openstack.Clients{})
	require.NoError(t, err)
	assert.IsType(t, &openstack.KeystoneResolver{}, r)

	_, err = NewProjectResolver(&config.Config{Projects: config.ProjectsConfig{Source: "ldap"}}, nil)
	assert.EqualError(t, err, "unsupported project source: ldap")
}

func TestNewGenerator(t *testing.T) {
	v := viper.New()
	v.Set("newrelic.api_key", "key")
	v.Set("newrelic.account_id", 42)
	v.Set("newrelic.region", "US")
	cfg := &config.Config{Provider: "newrelic", Projects: config.ProjectsConfig{Source: "static", Static: []string{"p1"}}}

	rg, err := NewGenerator(context.Background(), v, cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, rg)

	_, err = NewGenerator(context.Background(), v, &config.Config{}, nil)
	assert.ErrorContains(t, err, "provider is required")

	_, err = NewGenerator(context.Background(), v, &config.Config{Provider: "graphite"}, nil)
	assert.ErrorContains(t, err, "provider not found: graphite")
}

func TestBackendsRegistered(t *testing.T) {
	assert.Subset(t, providers.ListProviders(), []string{"ceilometer", "cloudwatch", "newrelic"})
}
