package newrelic

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ilhicas/openstack-usage-center/internal/meters"
	"github.com/ilhicas/openstack-usage-center/internal/providers"
	"github.com/newrelic/newrelic-client-go/newrelic"
	"github.com/newrelic/newrelic-client-go/pkg/nrdb"
	"github.com/rs/zerolog"
)

// NRQLTimeLayout is accepted by SINCE and UNTIL clauses
const NRQLTimeLayout = "2006-01-02 15:04:05"

// the longest window NRDB retains metric data for
const maxLookback = 395 * 24 * time.Hour

// TIMESERIES returns at most this many buckets per query
const maxBuckets = 366

// Querier runs NRQL against an account
type Querier interface {
	Query(accountID int, query nrdb.NRQL) (*nrdb.NRDBResultContainer, error)
}

// NewRelicProvider reads OpenStack telemetry forwarded to New Relic as
// dimensional metrics
type NewRelicProvider struct {
	*meters.StaticCatalog

	client    Querier
	accountID int
}

// NewProvider creates a new New Relic provider
func NewProvider(apiKey string, accountID int, region string) (*NewRelicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("NEW_RELIC_API_KEY environment variable not set")
	}
	if accountID == 0 {
		return nil, fmt.Errorf("newrelic.account_id is not configured")
	}

	if region == "" {
		region = "US"
	}

	client, err := newrelic.New(newrelic.ConfigPersonalAPIKey(apiKey), newrelic.ConfigRegion(region))
	if err != nil {
		return nil, fmt.Errorf("error creating New Relic client: %w", err)
	}

	return NewWithQuerier(&client.Nrdb, accountID), nil
}

// NewWithQuerier creates a provider over an existing NRDB client
func NewWithQuerier(client Querier, accountID int) *NewRelicProvider {
	return &NewRelicProvider{
		StaticCatalog: meters.NewStaticCatalog(),
		client:        client,
		accountID:     accountID,
	}
}

// GetName returns the provider name
func (nr *NewRelicProvider) GetName() string {
	return "New Relic"
}

// QueryAggregates runs a single faceted timeseries query for all projects
func (nr *NewRelicProvider) QueryAggregates(ctx context.Context, meter string, projects []string, r providers.DateRange) ([]providers.ProjectAggregate, error) {
	if len(projects) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := AggregateQuery(meter, projects, r)
	zerolog.Ctx(ctx).Debug().Str("nrql", query).Msg("querying NRDB")

	res, err := nr.client.Query(nr.accountID, nrdb.NRQL(query))
	if err != nil {
		return nil, fmt.Errorf("error querying %s: %w", meter, err)
	}
	return ParseFacetSeries(res.Results, projects)
}

// ListSamples returns the latest value reported for the resource
func (nr *NewRelicProvider) ListSamples(ctx context.Context, meter string, filter providers.SampleFilter, limit int) ([]providers.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 1
	}
	query := fmt.Sprintf("SELECT value, timestamp FROM Metric WHERE metricName = %s", quote(meter))
	if filter.ResourceID != "" {
		query += fmt.Sprintf(" AND resource_id = %s", quote(filter.ResourceID))
	}
	query += fmt.Sprintf(" SINCE %d days ago LIMIT %d", int(maxLookback.Hours()/24), limit)

	res, err := nr.client.Query(nr.accountID, nrdb.NRQL(query))
	if err != nil {
		return nil, fmt.Errorf("error listing samples of %s: %w", meter, err)
	}

	samples := make([]providers.Sample, 0, len(res.Results))
	for _, row := range res.Results {
		ms, ok := number(row["timestamp"])
		if !ok {
			continue
		}
		samples = append(samples, providers.Sample{
			Timestamp:    time.UnixMilli(int64(ms)).UTC(),
			EncodedValue: text(row["value"]),
		})
	}
	return samples, nil
}

// AggregateQuery builds the daily average NRQL for meter
func AggregateQuery(meter string, projects []string, r providers.DateRange) string {
	quoted := make([]string, len(projects))
	for i, p := range projects {
		quoted[i] = quote(p)
	}

	period := r.BucketSeconds
	if period <= 0 {
		period = providers.BucketSeconds
	}

	to := r.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	from := r.From
	if from.IsZero() {
		from = to.Add(-time.Duration(maxBuckets*period) * time.Second)
	}

	return fmt.Sprintf(
		"SELECT average(value) FROM Metric WHERE metricName = %s AND project_id IN (%s) FACET project_id TIMESERIES %d seconds SINCE '%s' UNTIL '%s' LIMIT MAX",
		quote(meter),
		strings.Join(quoted, ", "),
		period,
		from.UTC().Format(NRQLTimeLayout),
		to.UTC().Format(NRQLTimeLayout),
	)
}

// ParseFacetSeries groups TIMESERIES FACET rows into per-project series,
// ordered like projects
func ParseFacetSeries(rows []nrdb.NRDBResult, projects []string) ([]providers.ProjectAggregate, error) {
	series := make(map[string][]providers.Bucket)
	for _, row := range rows {
		project := text(row["facet"])
		if project == "" {
			project = text(row["project_id"])
		}
		if project == "" {
			continue
		}

		end, ok := number(row["endTimeSeconds"])
		if !ok {
			return nil, fmt.Errorf("timeseries row for %s has no endTimeSeconds", project)
		}
		avg, ok := number(row["average.value"])
		if !ok {
			// empty buckets come back as null
			continue
		}
		series[project] = append(series[project], providers.Bucket{
			PeriodEnd: time.Unix(int64(end), 0).UTC(),
			Avg:       avg,
		})
	}

	var result []providers.ProjectAggregate
	for _, p := range projects {
		buckets, ok := series[p]
		if !ok {
			continue
		}
		sort.Slice(buckets, func(i, j int) bool {
			return buckets[i].PeriodEnd.Before(buckets[j].PeriodEnd)
		})
		result = append(result, providers.ProjectAggregate{ProjectID: p, Series: buckets})
	}
	return result, nil
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func text(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []interface{}:
		if len(s) == 1 {
			return text(s[0])
		}
	}
	return fmt.Sprint(v)
}
