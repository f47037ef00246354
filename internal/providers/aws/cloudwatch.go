package aws

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/ilhicas/openstack-usage-center/internal/meters"
	"github.com/ilhicas/openstack-usage-center/internal/providers"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// ProjectDimension is the dimension telemetry is published under
const ProjectDimension = "project_id"

// CloudWatch keeps datapoints of daily period for 455 days
const retention = 455 * 24 * time.Hour

// MetricStatisticsAPI is the part of the CloudWatch client used here
type MetricStatisticsAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// CloudWatchProvider reads OpenStack telemetry republished to CloudWatch
type CloudWatchProvider struct {
	*meters.StaticCatalog

	client    MetricStatisticsAPI
	namespace string
	region    string
}

// NewCloudWatchProvider creates a new AWS CloudWatch provider
func NewCloudWatchProvider(ctx context.Context, config *viper.Viper) (*CloudWatchProvider, error) {
	region := config.GetString("aws.region")
	profile := config.GetString("aws.profile")

	zerolog.Ctx(ctx).Debug().Str("region", region).Str("profile", profile).Msg("initializing CloudWatch provider")

	var opts []func(*awsconfig.LoadOptions) error

	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	} else {
		return nil, fmt.Errorf("AWS region is not configured in the config file")
	}

	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	if key, secret := config.GetString("aws.access_key_id"), config.GetString("aws.secret_access_key"); key != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.Region == "" {
		return nil, fmt.Errorf("AWS region is still empty after loading config")
	}

	return NewWithClient(cloudwatch.NewFromConfig(cfg), config.GetString("aws.namespace"), cfg.Region), nil
}

// NewWithClient creates a provider over an existing client
func NewWithClient(client MetricStatisticsAPI, namespace, region string) *CloudWatchProvider {
	return &CloudWatchProvider{
		StaticCatalog: meters.NewStaticCatalog(),
		client:        client,
		namespace:     namespace,
		region:        region,
	}
}

// GetName returns the provider name
func (c *CloudWatchProvider) GetName() string {
	return "AWS CloudWatch (" + c.region + ")"
}

// QueryAggregates fetches the daily Average of meter for each project
func (c *CloudWatchProvider) QueryAggregates(ctx context.Context, meter string, projects []string, r providers.DateRange) ([]providers.ProjectAggregate, error) {
	period := r.BucketSeconds
	if period <= 0 {
		period = providers.BucketSeconds
	}
	end := r.To
	if end.IsZero() {
		end = time.Now().UTC()
	}
	start := r.From
	if start.IsZero() {
		start = end.Add(-retention)
	}

	var result []providers.ProjectAggregate
	for _, project := range projects {
		input := &cloudwatch.GetMetricStatisticsInput{
			Namespace:  stringPtr(c.namespace),
			MetricName: stringPtr(meter),
			Dimensions: []types.Dimension{
				{Name: stringPtr(ProjectDimension), Value: stringPtr(project)},
			},
			StartTime:  &start,
			EndTime:    &end,
			Period:     int32Ptr(int32(period)),
			Statistics: []types.Statistic{types.StatisticAverage},
		}

		resp, err := c.client.GetMetricStatistics(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("error getting metrics for %s: %w", meter, err)
		}
		if len(resp.Datapoints) == 0 {
			continue
		}
		result = append(result, toAggregate(project, resp.Datapoints, time.Duration(period)*time.Second))
	}

	return result, nil
}

// ListSamples is not available: CloudWatch only stores numeric datapoints
func (c *CloudWatchProvider) ListSamples(context.Context, string, providers.SampleFilter, int) ([]providers.Sample, error) {
	return nil, fmt.Errorf("raw samples are not supported by %s", c.GetName())
}

// toAggregate orders datapoints by time. CloudWatch stamps the start of a
// period, buckets carry its end.
func toAggregate(project string, datapoints []types.Datapoint, period time.Duration) providers.ProjectAggregate {
	agg := providers.ProjectAggregate{ProjectID: project}
	for _, dp := range datapoints {
		if dp.Timestamp == nil || dp.Average == nil {
			continue
		}
		if agg.Unit == "" && dp.Unit != types.StandardUnitNone {
			agg.Unit = string(dp.Unit)
		}
		agg.Series = append(agg.Series, providers.Bucket{
			PeriodEnd: dp.Timestamp.UTC().Add(period),
			Avg:       *dp.Average,
		})
	}
	sort.Slice(agg.Series, func(i, j int) bool {
		return agg.Series[i].PeriodEnd.Before(agg.Series[j].PeriodEnd)
	})
	return agg
}

// Helper functions
func stringPtr(s string) *string {
	return aws.String(s)
}

func int32Ptr(i int32) *int32 {
	return &i
}
