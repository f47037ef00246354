package reports

import (
	"context"
	"sort"
	"time"

	"github.com/ilhicas/openstack-usage-center/internal/providers"
	"github.com/rs/zerolog"
)

// placeholderName fills ReportRow.Name, which the usage report never resolves
const placeholderName = "none"

// ReportGenerator builds usage and process-list reports from a telemetry provider
type ReportGenerator struct {
	provider providers.Provider
	projects providers.ProjectResolver
	now      func() time.Time
	metrics  *Metrics
}

// Option customizes a ReportGenerator
type Option func(*ReportGenerator)

// WithClock overrides the time source used to resolve relative periods
func WithClock(now func() time.Time) Option {
	return func(rg *ReportGenerator) {
		rg.now = now
	}
}

// WithMetrics records build outcomes on m
func WithMetrics(m *Metrics) Option {
	return func(rg *ReportGenerator) {
		rg.metrics = m
	}
}

// NewReportGenerator creates a new report generator
func NewReportGenerator(provider providers.Provider, projects providers.ProjectResolver, opts ...Option) *ReportGenerator {
	rg := &ReportGenerator{
		provider: provider,
		projects: projects,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(rg)
	}
	return rg
}

// ReportRow is one displayable usage value
type ReportRow struct {
	Name        string            `json:"name"`
	Project     string            `json:"project"`
	Meter       string            `json:"meter"`
	Description string            `json:"description"`
	Service     providers.Service `json:"service"`
	Time        time.Time         `json:"time"`
	Value       float64           `json:"value"`
	Unit        string            `json:"unit"`
}

// UsageReport is the result of one BuildReport call
type UsageReport struct {
	ProviderName string
	Range        providers.DateRange
	Rows         []ReportRow
	Warnings     []error
}

// catalogSnapshot fixes meter order and ownership for one report
type catalogSnapshot struct {
	meters []providers.Meter
	owner  map[string]providers.Service
}

// BuildReport aggregates per-project daily averages of every catalog meter.
// Failures never abort the call: they are returned as warnings alongside
// whatever rows could be built. Rows follow catalog, aggregate and series
// order; see SortRows for a display order.
func (rg *ReportGenerator) BuildReport(ctx context.Context, req DateRangeRequest) *UsageReport {
	started := time.Now()
	logger := zerolog.Ctx(ctx)
	report := &UsageReport{ProviderName: rg.provider.GetName()}
	defer func() {
		rg.metrics.observe("usage", started, len(report.Rows), report.Warnings)
	}()

	warn := func(err error) {
		logger.Warn().Err(err).Str("kind", WarningKind(err)).Msg("usage report warning")
		report.Warnings = append(report.Warnings, err)
	}

	dateRange, err := NormalizeDateRange(req, rg.now())
	if err != nil {
		warn(err)
		return report
	}
	report.Range = dateRange

	projects, err := rg.projects.ListActiveProjects(ctx, dateRange)
	if err != nil {
		warn(upstreamError("unable to retrieve project list", err))
		return report
	}
	logger.Debug().Int("projects", len(projects)).Msg("resolved project scope")

	snapshot := rg.snapshot(ctx, warn)
	for _, meter := range snapshot.meters {
		aggregates, err := rg.provider.QueryAggregates(ctx, meter.Name, projects, dateRange)
		if err != nil {
			warn(upstreamError("unable to retrieve statistics for "+meter.Name, err))
			continue
		}

		unit := meter.Unit
		for _, agg := range aggregates {
			if unit == "" {
				unit = agg.Unit
			}
			for _, bucket := range agg.Series {
				report.Rows = append(report.Rows, ReportRow{
					Name:        placeholderName,
					Project:     agg.ProjectID,
					Meter:       meter.Name,
					Description: meter.Description,
					Service:     snapshot.owner[meter.Name],
					Time:        bucket.PeriodEnd,
					Value:       bucket.Avg,
					Unit:        unit,
				})
			}
		}
	}

	logger.Info().
		Int("meters", len(snapshot.meters)).
		Int("rows", len(report.Rows)).
		Int("warnings", len(report.Warnings)).
		Msg("usage report built")

	return report
}

// snapshot lists every service once. A meter listed by several services
// belongs to the first one in providers.Services order.
func (rg *ReportGenerator) snapshot(ctx context.Context, warn func(error)) catalogSnapshot {
	snap := catalogSnapshot{owner: make(map[string]providers.Service)}
	for _, service := range providers.Services {
		meters, err := rg.provider.ListMeters(ctx, service)
		if err != nil {
			warn(upstreamError("unable to list "+string(service)+" meters", err))
			continue
		}
		for _, m := range meters {
			if _, seen := snap.owner[m.Name]; seen {
				continue
			}
			snap.owner[m.Name] = service
			snap.meters = append(snap.meters, m)
		}
	}
	return snap
}

// SortRows orders rows by time, then meter, then project. The sort is stable.
func SortRows(rows []ReportRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Time.Equal(rows[j].Time) {
			return rows[i].Time.Before(rows[j].Time)
		}
		if rows[i].Meter != rows[j].Meter {
			return rows[i].Meter < rows[j].Meter
		}
		return rows[i].Project < rows[j].Project
	})
}
