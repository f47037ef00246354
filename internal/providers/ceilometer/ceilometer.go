// Package ceilometer reads meters, statistics and samples from the Ceilometer
// v2 API.
package ceilometer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gophercloud/gophercloud"
	"github.com/ilhicas/openstack-usage-center/internal/meters"
	"github.com/ilhicas/openstack-usage-center/internal/providers"
	"github.com/rs/zerolog"
)

// timestamp layouts emitted by the v2 API, which omits the zone
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

const queryTimeLayout = "2006-01-02T15:04:05"

// CatalogTTL is how long a loaded meter catalog is reused before the meter
// listing is fetched again
const CatalogTTL = 15 * time.Minute

type meterEntry struct {
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	ResourceID string `json:"resource_id"`
	ProjectID  string `json:"project_id"`
}

type statistic struct {
	Avg       float64 `json:"avg"`
	PeriodEnd string  `json:"period_end"`
	Unit      string  `json:"unit"`
}

type oldSample struct {
	Timestamp     string          `json:"timestamp"`
	CounterVolume json.RawMessage `json:"counter_volume"`
}

// Provider implements providers.Provider over a metering service client
type Provider struct {
	client *gophercloud.ServiceClient

	mu       sync.Mutex
	catalog  *meters.StaticCatalog
	loadedAt time.Time
	now      func() time.Time
}

// NewProvider creates a provider. The meter catalog is loaded lazily and
// refreshed once it is older than CatalogTTL.
func NewProvider(client *gophercloud.ServiceClient) *Provider {
	return &Provider{client: client, now: time.Now}
}

// GetName returns the provider name
func (p *Provider) GetName() string {
	return "OpenStack Ceilometer"
}

// loadCatalog restricts the meter table to meters the service has seen
func (p *Provider) loadCatalog(ctx context.Context) (*meters.StaticCatalog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.catalog != nil && now.Sub(p.loadedAt) < CatalogTTL {
		return p.catalog, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []meterEntry
	if _, err := p.client.Get(p.client.ServiceURL("v2", "meters"), &entries, &gophercloud.RequestOpts{
		OkCodes: []int{200},
	}); err != nil {
		return nil, fmt.Errorf("error listing meters: %w", err)
	}

	seen := make(map[string]struct{}, len(entries))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		names = append(names, e.Name)
	}

	zerolog.Ctx(ctx).Debug().Int("meters", len(names)).Msg("loaded meter catalog")
	p.catalog = meters.NewFilteredCatalog(names)
	p.loadedAt = now
	return p.catalog, nil
}

// ListMeters returns the known meters of service present in the deployment
func (p *Provider) ListMeters(ctx context.Context, service providers.Service) ([]providers.Meter, error) {
	catalog, err := p.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.ListMeters(ctx, service)
}

// GetMeter returns one known meter present in the deployment
func (p *Provider) GetMeter(ctx context.Context, name string) (providers.Meter, error) {
	catalog, err := p.loadCatalog(ctx)
	if err != nil {
		return providers.Meter{}, err
	}
	return catalog.GetMeter(ctx, name)
}

// QueryAggregates runs one statistics query per project. Projects without
// statistics are omitted.
func (p *Provider) QueryAggregates(ctx context.Context, meter string, projects []string, r providers.DateRange) ([]providers.ProjectAggregate, error) {
	period := r.BucketSeconds
	if period <= 0 {
		period = providers.BucketSeconds
	}

	var result []providers.ProjectAggregate
	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		q := url.Values{}
		addQuery(q, "project_id", "eq", project)
		if !r.From.IsZero() {
			addQuery(q, "timestamp", "ge", r.From.UTC().Format(queryTimeLayout))
		}
		if !r.To.IsZero() {
			addQuery(q, "timestamp", "le", r.To.UTC().Format(queryTimeLayout))
		}
		q.Set("period", strconv.FormatInt(period, 10))

		var stats []statistic
		u := p.client.ServiceURL("v2", "meters", url.PathEscape(meter), "statistics") + "?" + q.Encode()
		if _, err := p.client.Get(u, &stats, &gophercloud.RequestOpts{OkCodes: []int{200}}); err != nil {
			return nil, fmt.Errorf("error querying statistics of %s for project %s: %w", meter, project, err)
		}
		if len(stats) == 0 {
			continue
		}

		agg, err := toAggregate(project, stats)
		if err != nil {
			return nil, fmt.Errorf("error decoding statistics of %s for project %s: %w", meter, project, err)
		}
		result = append(result, agg)
	}
	return result, nil
}

// ListSamples returns the most recent samples of meter
func (p *Provider) ListSamples(ctx context.Context, meter string, filter providers.SampleFilter, limit int) ([]providers.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := url.Values{}
	if filter.ResourceID != "" {
		addQuery(q, "resource_id", "eq", filter.ResourceID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	u := p.client.ServiceURL("v2", "meters", url.PathEscape(meter))
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var raw []oldSample
	if _, err := p.client.Get(u, &raw, &gophercloud.RequestOpts{OkCodes: []int{200}}); err != nil {
		return nil, fmt.Errorf("error listing samples of %s: %w", meter, err)
	}

	samples := make([]providers.Sample, 0, len(raw))
	for _, s := range raw {
		ts, err := parseTime(s.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("error decoding sample of %s: %w", meter, err)
		}
		samples = append(samples, providers.Sample{
			Timestamp:    ts,
			EncodedValue: volumeText(s.CounterVolume),
		})
	}
	return samples, nil
}

func addQuery(q url.Values, field, op, value string) {
	q.Add("q.field", field)
	q.Add("q.op", op)
	q.Add("q.value", value)
}

func toAggregate(project string, stats []statistic) (providers.ProjectAggregate, error) {
	agg := providers.ProjectAggregate{
		ProjectID: project,
		Series:    make([]providers.Bucket, 0, len(stats)),
	}
	for _, s := range stats {
		end, err := parseTime(s.PeriodEnd)
		if err != nil {
			return providers.ProjectAggregate{}, err
		}
		if agg.Unit == "" {
			agg.Unit = s.Unit
		}
		agg.Series = append(agg.Series, providers.Bucket{PeriodEnd: end, Avg: s.Avg})
	}
	return agg, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// volumeText returns a string volume unquoted and any other volume as its
// JSON text
func volumeText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
