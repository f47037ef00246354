package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/ilhicas/openstack-usage-center/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCloudWatch struct {
	mock.Mock
}

func (m *mockCloudWatch) GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*cloudwatch.GetMetricStatisticsOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func forProject(project string) interface{} {
	return mock.MatchedBy(func(in *cloudwatch.GetMetricStatisticsInput) bool {
		return len(in.Dimensions) == 1 && aws.ToString(in.Dimensions[0].Value) == project
	})
}

func TestCloudWatchProvider_QueryAggregates(t *testing.T) {
	from := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)

	cw := &mockCloudWatch{}
	cw.On("GetMetricStatistics", mock.Anything, forProject("p1")).Return(&cloudwatch.GetMetricStatisticsOutput{
		Datapoints: []types.Datapoint{
			{Timestamp: aws.Time(from.Add(24 * time.Hour)), Average: aws.Float64(40), Unit: types.StandardUnitPercent},
			{Timestamp: aws.Time(from), Average: aws.Float64(42), Unit: types.StandardUnitPercent},
		},
	}, nil).Once()
	cw.On("GetMetricStatistics", mock.Anything, forProject("p2")).Return(&cloudwatch.GetMetricStatisticsOutput{}, nil).Once()

	p := NewWithClient(cw, "OpenStack/Telemetry", "eu-west-1")
	aggs, err := p.QueryAggregates(context.Background(), "cpu_util", []string{"p1", "p2"}, providers.DateRange{
		From: from, To: to, BucketSeconds: providers.BucketSeconds,
	})
	require.NoError(t, err)
	require.Len(t, aggs, 1)

	assert.Equal(t, "p1", aggs[0].ProjectID)
	assert.Equal(t, "Percent", aggs[0].Unit)
	assert.Equal(t, []providers.Bucket{
		{PeriodEnd: from.Add(24 * time.Hour), Avg: 42},
		{PeriodEnd: from.Add(48 * time.Hour), Avg: 40},
	}, aggs[0].Series)

	cw.AssertExpectations(t)
	in := cw.Calls[0].Arguments.Get(1).(*cloudwatch.GetMetricStatisticsInput)
	assert.Equal(t, "OpenStack/Telemetry", aws.ToString(in.Namespace))
	assert.Equal(t, "cpu_util", aws.ToString(in.MetricName))
	assert.Equal(t, int32(86400), aws.ToInt32(in.Period))
	assert.Equal(t, []types.Statistic{types.StatisticAverage}, in.Statistics)
}

func TestCloudWatchProvider_UnboundedFromUsesRetention(t *testing.T) {
	to := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	cw := &mockCloudWatch{}
	cw.On("GetMetricStatistics", mock.Anything, mock.MatchedBy(func(in *cloudwatch.GetMetricStatisticsInput) bool {
		return in.StartTime.Equal(to.Add(-retention))
	})).Return(&cloudwatch.GetMetricStatisticsOutput{}, nil)

	p := NewWithClient(cw, "ns", "us-east-1")
	_, err := p.QueryAggregates(context.Background(), "cpu", []string{"p1"}, providers.DateRange{To: to})
	require.NoError(t, err)
	cw.AssertExpectations(t)
}

func TestCloudWatchProvider_Errors(t *testing.T) {
	cw := &mockCloudWatch{}
	cw.On("GetMetricStatistics", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	p := NewWithClient(cw, "ns", "us-east-1")
	_, err := p.QueryAggregates(context.Background(), "cpu", []string{"p1"}, providers.DateRange{})
	assert.ErrorContains(t, err, "throttled")

	_, err = p.ListSamples(context.Background(), "instance.process.list", providers.SampleFilter{ResourceID: "vm"}, 1)
	assert.Error(t, err)
}

func TestCloudWatchProvider_Catalog(t *testing.T) {
	p := NewWithClient(&mockCloudWatch{}, "ns", "us-east-1")

	m, err := p.GetMeter(context.Background(), "cpu_util")
	require.NoError(t, err)
	assert.Equal(t, providers.ServiceCompute, m.Service)
	assert.Equal(t, "AWS CloudWatch (us-east-1)", p.GetName())
}

func TestToAggregateSkipsIncompleteDatapoints(t *testing.T) {
	ts := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	agg := toAggregate("p1", []types.Datapoint{
		{Timestamp: aws.Time(ts), Unit: types.StandardUnitNone},
		{Timestamp: aws.Time(ts), Average: aws.Float64(1), Unit: types.StandardUnitNone},
	}, time.Hour)

	assert.Empty(t, agg.Unit)
	assert.Equal(t, []providers.Bucket{{PeriodEnd: ts.Add(time.Hour), Avg: 1}}, agg.Series)
}
