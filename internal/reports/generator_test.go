package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ilhicas/openstack-usage-center/internal/providers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider serves canned catalog and sample data
type stubProvider struct {
	meters     map[providers.Service][]providers.Meter
	listErr    map[providers.Service]error
	aggregates map[string][]providers.ProjectAggregate
	aggErr     map[string]error
	getMeter   providers.Meter
	getErr     error
	samples    []providers.Sample
	samplesErr error

	queried       []string
	queryProjects [][]string
	sampleFilter  providers.SampleFilter
	sampleLimit   int
}

func (s *stubProvider) GetName() string { return "stub" }

func (s *stubProvider) ListMeters(_ context.Context, service providers.Service) ([]providers.Meter, error) {
	if err := s.listErr[service]; err != nil {
		return nil, err
	}
	return s.meters[service], nil
}

func (s *stubProvider) GetMeter(_ context.Context, name string) (providers.Meter, error) {
	if s.getErr != nil {
		return providers.Meter{}, s.getErr
	}
	m := s.getMeter
	m.Name = name
	return m, nil
}

func (s *stubProvider) QueryAggregates(_ context.Context, meter string, projects []string, _ providers.DateRange) ([]providers.ProjectAggregate, error) {
	s.queried = append(s.queried, meter)
	s.queryProjects = append(s.queryProjects, projects)
	if err := s.aggErr[meter]; err != nil {
		return nil, err
	}
	return s.aggregates[meter], nil
}

func (s *stubProvider) ListSamples(_ context.Context, _ string, filter providers.SampleFilter, limit int) ([]providers.Sample, error) {
	s.sampleFilter = filter
	s.sampleLimit = limit
	return s.samples, s.samplesErr
}

type stubResolver struct {
	projects []string
	err      error
	calls    int
}

func (s *stubResolver) ListActiveProjects(context.Context, providers.DateRange) ([]string, error) {
	s.calls++
	return s.projects, s.err
}

func newTestGenerator(p *stubProvider, r *stubResolver, opts ...Option) *ReportGenerator {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewReportGenerator(p, r, opts...)
}

var (
	day1 = time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
)

func TestBuildReport_SingleMeterEndToEnd(t *testing.T) {
	p := &stubProvider{
		meters: map[providers.Service][]providers.Meter{
			providers.ServiceCompute: {{Name: "cpu_util", Description: "Average CPU utilization", Unit: "%", Service: providers.ServiceCompute}},
		},
		aggregates: map[string][]providers.ProjectAggregate{
			"cpu_util": {{ProjectID: "demo", Series: []providers.Bucket{{PeriodEnd: day1, Avg: 42.0}}}},
		},
	}
	r := &stubResolver{projects: []string{"demo"}}

	report := newTestGenerator(p, r).BuildReport(context.Background(), DateRangeRequest{Period: "7"})

	assert.Empty(t, report.Warnings)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, ReportRow{
		Name:        "none",
		Project:     "demo",
		Meter:       "cpu_util",
		Description: "Average CPU utilization",
		Service:     providers.ServiceCompute,
		Time:        day1,
		Value:       42.0,
		Unit:        "%",
	}, report.Rows[0])
	assert.Equal(t, int64(86400), report.Range.BucketSeconds)
	assert.Equal(t, [][]string{{"demo"}}, p.queryProjects)
}

func TestBuildReport_InvertedRange(t *testing.T) {
	p := &stubProvider{}
	r := &stubResolver{projects: []string{"demo"}}

	report := newTestGenerator(p, r).BuildReport(context.Background(), DateRangeRequest{
		DateFrom: "2024-03-10",
		DateTo:   "2024-03-01",
		Period:   "other",
	})

	assert.Empty(t, report.Rows)
	require.Len(t, report.Warnings, 1)
	assert.ErrorIs(t, report.Warnings[0], ErrInput)
	assert.Zero(t, r.calls)
	assert.Empty(t, p.queried)
}

func TestBuildReport_NoSamples(t *testing.T) {
	p := &stubProvider{
		meters: map[providers.Service][]providers.Meter{
			providers.ServiceCompute: {{Name: "cpu_util"}},
			providers.ServiceImage:   {{Name: "image.size"}},
		},
	}
	report := newTestGenerator(p, &stubResolver{projects: []string{"demo"}}).BuildReport(context.Background(), DateRangeRequest{})

	assert.Empty(t, report.Rows)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, []string{"cpu_util", "image.size"}, p.queried)
}

func TestBuildReport_ServiceOwnership(t *testing.T) {
	shared := providers.Meter{Name: "network.incoming.bytes", Unit: "B"}
	p := &stubProvider{
		meters: map[providers.Service][]providers.Meter{
			providers.ServiceCompute: {shared},
			providers.ServiceNetwork: {{Name: "port", Unit: "port"}, shared},
			providers.ServiceIPMI:    {{Name: "hardware.ipmi.fan", Unit: "RPM"}},
		},
		aggregates: map[string][]providers.ProjectAggregate{
			"network.incoming.bytes": {{ProjectID: "a", Series: []providers.Bucket{{PeriodEnd: day1, Avg: 1}, {PeriodEnd: day2, Avg: 2}}}},
			"port":                   {{ProjectID: "a", Series: []providers.Bucket{{PeriodEnd: day1, Avg: 3}}}},
			"hardware.ipmi.fan":      {{ProjectID: "b", Series: []providers.Bucket{{PeriodEnd: day2, Avg: 1200}}}},
		},
	}
	report := newTestGenerator(p, &stubResolver{projects: []string{"a", "b"}}).BuildReport(context.Background(), DateRangeRequest{})

	require.Len(t, report.Rows, 4)
	for _, row := range report.Rows {
		switch row.Meter {
		case "network.incoming.bytes":
			assert.Equal(t, providers.ServiceCompute, row.Service)
		case "port":
			assert.Equal(t, providers.ServiceNetwork, row.Service)
		case "hardware.ipmi.fan":
			assert.Equal(t, providers.ServiceIPMI, row.Service)
		}
	}
	// the shared meter is queried once
	assert.Equal(t, []string{"network.incoming.bytes", "port", "hardware.ipmi.fan"}, p.queried)
}

func TestBuildReport_PreservesUpstreamOrder(t *testing.T) {
	p := &stubProvider{
		meters: map[providers.Service][]providers.Meter{
			providers.ServiceCompute: {{Name: "vcpus"}, {Name: "cpu_util"}},
		},
		aggregates: map[string][]providers.ProjectAggregate{
			"vcpus": {
				{ProjectID: "z", Series: []providers.Bucket{{PeriodEnd: day2, Avg: 4}, {PeriodEnd: day1, Avg: 2}}},
				{ProjectID: "a", Series: []providers.Bucket{{PeriodEnd: day1, Avg: 1}}},
			},
			"cpu_util": {{ProjectID: "a", Series: []providers.Bucket{{PeriodEnd: day1, Avg: 10}}}},
		},
	}
	report := newTestGenerator(p, &stubResolver{projects: []string{"a", "z"}}).BuildReport(context.Background(), DateRangeRequest{})

	var got []string
	for _, row := range report.Rows {
		got = append(got, row.Meter+"/"+row.Project+"/"+row.Time.Format("02"))
	}
	assert.Equal(t, []string{"vcpus/z/15", "vcpus/z/14", "vcpus/a/14", "cpu_util/a/14"}, got)

	SortRows(report.Rows)
	got = got[:0]
	for _, row := range report.Rows {
		got = append(got, row.Meter+"/"+row.Project+"/"+row.Time.Format("02"))
	}
	assert.Equal(t, []string{"cpu_util/a/14", "vcpus/a/14", "vcpus/z/14", "vcpus/z/15"}, got)
}

func TestBuildReport_Idempotent(t *testing.T) {
	p := &stubProvider{
		meters: map[providers.Service][]providers.Meter{
			providers.ServiceCompute:      {{Name: "cpu_util"}, {Name: "memory"}},
			providers.ServiceBlockStorage: {{Name: "volume.size"}},
		},
		aggregates: map[string][]providers.ProjectAggregate{
			"cpu_util":    {{ProjectID: "a", Series: []providers.Bucket{{PeriodEnd: day1, Avg: 1}, {PeriodEnd: day2, Avg: 2}}}},
			"memory":      {{ProjectID: "b", Series: []providers.Bucket{{PeriodEnd: day1, Avg: 512}}}},
			"volume.size": {{ProjectID: "a", Series: []providers.Bucket{{PeriodEnd: day2, Avg: 20}}}},
		},
	}
	rg := newTestGenerator(p, &stubResolver{projects: []string{"a", "b"}})

	first := rg.BuildReport(context.Background(), DateRangeRequest{Period: "30"})
	second := rg.BuildReport(context.Background(), DateRangeRequest{Period: "30"})

	assert.Equal(t, first.Rows, second.Rows)
	assert.Len(t, first.Rows, 4)
}

func TestBuildReport_ProjectResolutionFails(t *testing.T) {
	p := &stubProvider{
		meters: map[providers.Service][]providers.Meter{providers.ServiceCompute: {{Name: "cpu_util"}}},
	}
	r := &stubResolver{err: errors.New("keystone unavailable")}

	report := newTestGenerator(p, r).BuildReport(context.Background(), DateRangeRequest{})

	assert.Empty(t, report.Rows)
	require.Len(t, report.Warnings, 1)
	assert.ErrorIs(t, report.Warnings[0], ErrUpstream)
	assert.Contains(t, report.Warnings[0].Error(), "keystone unavailable")
	assert.Empty(t, p.queried)
}

func TestBuildReport_PartialUpstreamFailures(t *testing.T) {
	p := &stubProvider{
		meters: map[providers.Service][]providers.Meter{
			providers.ServiceCompute: {{Name: "cpu_util"}, {Name: "memory"}},
			providers.ServiceImage:   {{Name: "image.size"}},
		},
		listErr: map[providers.Service]error{
			providers.ServiceImage: errors.New("catalog timeout"),
		},
		aggErr: map[string]error{
			"cpu_util": errors.New("statistics failed"),
		},
		aggregates: map[string][]providers.ProjectAggregate{
			"memory": {{ProjectID: "a", Series: []providers.Bucket{{PeriodEnd: day1, Avg: 256}}}},
		},
	}

	report := newTestGenerator(p, &stubResolver{projects: []string{"a"}}).BuildReport(context.Background(), DateRangeRequest{})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, "memory", report.Rows[0].Meter)
	require.Len(t, report.Warnings, 2)
	for _, w := range report.Warnings {
		assert.ErrorIs(t, w, ErrUpstream)
	}
}

func TestBuildReport_FallsBackToAggregateUnit(t *testing.T) {
	p := &stubProvider{
		meters: map[providers.Service][]providers.Meter{providers.ServicePower: {{Name: "power"}}},
		aggregates: map[string][]providers.ProjectAggregate{
			"power": {{ProjectID: "a", Unit: "W", Series: []providers.Bucket{{PeriodEnd: day1, Avg: 90}}}},
		},
	}
	report := newTestGenerator(p, &stubResolver{projects: []string{"a"}}).BuildReport(context.Background(), DateRangeRequest{})

	require.Len(t, report.Rows, 1)
	assert.Equal(t, "W", report.Rows[0].Unit)
	assert.Equal(t, providers.ServicePower, report.Rows[0].Service)
}

func TestBuildReport_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	p := &stubProvider{
		meters: map[providers.Service][]providers.Meter{providers.ServiceCompute: {{Name: "cpu_util"}}},
		aggregates: map[string][]providers.ProjectAggregate{
			"cpu_util": {{ProjectID: "a", Series: []providers.Bucket{{PeriodEnd: day1, Avg: 1}, {PeriodEnd: day2, Avg: 2}}}},
		},
	}
	rg := newTestGenerator(p, &stubResolver{projects: []string{"a"}}, WithMetrics(metrics))

	rg.BuildReport(context.Background(), DateRangeRequest{})
	rg.BuildReport(context.Background(), DateRangeRequest{Period: "bogus"})

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.rows.WithLabelValues("usage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.warnings.WithLabelValues("usage", "input")))
}
