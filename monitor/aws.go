package monitor

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	trailtypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/configservice"
	configtypes "github.com/aws/aws-sdk-go-v2/service/configservice/types"

	"github.com/chaossec-io/chaossec/log"
	"github.com/chaossec-io/chaossec/types"
)

// Bucket request metrics sampled from CloudWatch.
var bucketMetrics = []string{"AllRequests", "4xxErrors"}

// metricsAPI is the CloudWatch surface the collector uses.
type metricsAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// complianceAPI is the Config surface the collector uses.
type complianceAPI interface {
	DescribeComplianceByResource(ctx context.Context, params *configservice.DescribeComplianceByResourceInput, optFns ...func(*configservice.Options)) (*configservice.DescribeComplianceByResourceOutput, error)
}

// auditAPI is the CloudTrail surface the collector uses.
type auditAPI interface {
	LookupEvents(ctx context.Context, params *cloudtrail.LookupEventsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error)
}

// AWSCollector gathers observations from CloudWatch, Config and
// CloudTrail. Source failures degrade the observation instead of
// failing the collection.
type AWSCollector struct {
	metrics    metricsAPI
	compliance complianceAPI
	audit      auditAPI
	logger     *log.Logger

	// now is injected for tests; defaults to time.Now.
	now func() time.Time
}

// NewAWSCollector creates a collector using the default credential chain.
func NewAWSCollector(ctx context.Context, region string, logger *log.Logger) (*AWSCollector, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, types.NewFault(types.ErrAdapterUnavailable, "monitor_init", err)
	}
	return &AWSCollector{
		metrics:    cloudwatch.NewFromConfig(cfg),
		compliance: configservice.NewFromConfig(cfg),
		audit:      cloudtrail.NewFromConfig(cfg),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// newAWSCollectorWithClients wires pre-built clients, for tests.
func newAWSCollectorWithClients(m metricsAPI, c complianceAPI, a auditAPI, logger *log.Logger) *AWSCollector {
	return &AWSCollector{metrics: m, compliance: c, audit: a, logger: logger, now: time.Now}
}

// Collect implements Collector. Each source is queried independently;
// a failed source lands in Observation.Degraded and collection continues.
func (c *AWSCollector) Collect(ctx context.Context, window time.Duration, resource string) (*Observation, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	end := c.now().UTC()
	start := end.Add(-window)

	obs := &Observation{
		Resource:   resource,
		Window:     window,
		Compliance: ComplianceUnknown,
	}

	if points, err := c.collectMetrics(ctx, start, end, resource); err != nil {
		c.logger.Warn("metrics source failed", map[string]any{"error": err.Error()})
		obs.Degraded = append(obs.Degraded, "cloudwatch")
	} else {
		obs.Metrics = points
	}

	if state, err := c.collectCompliance(ctx, resource); err != nil {
		c.logger.Warn("compliance source failed", map[string]any{"error": err.Error()})
		obs.Degraded = append(obs.Degraded, "config")
	} else {
		obs.Compliance = state
	}

	if events, err := c.collectAudit(ctx, start, end, resource); err != nil {
		c.logger.Warn("audit source failed", map[string]any{"error": err.Error()})
		obs.Degraded = append(obs.Degraded, "cloudtrail")
	} else {
		obs.AuditEvents = events
	}

	return obs, nil
}

func (c *AWSCollector) collectMetrics(ctx context.Context, start, end time.Time, resource string) ([]MetricPoint, error) {
	var points []MetricPoint
	for _, name := range bucketMetrics {
		out, err := c.metrics.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
			Namespace:  aws.String("AWS/S3"),
			MetricName: aws.String(name),
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String("BucketName"), Value: aws.String(resource)},
			},
			StartTime:  aws.Time(start),
			EndTime:    aws.Time(end),
			Period:     aws.Int32(60),
			Statistics: []cwtypes.Statistic{cwtypes.StatisticSum},
		})
		if err != nil {
			return nil, err
		}
		for _, dp := range out.Datapoints {
			points = append(points, MetricPoint{
				Name:      name,
				Value:     aws.ToFloat64(dp.Sum),
				Unit:      string(dp.Unit),
				Timestamp: aws.ToTime(dp.Timestamp),
			})
		}
	}
	return points, nil
}

func (c *AWSCollector) collectCompliance(ctx context.Context, resource string) (ComplianceState, error) {
	out, err := c.compliance.DescribeComplianceByResource(ctx, &configservice.DescribeComplianceByResourceInput{
		ResourceType: aws.String("AWS::S3::Bucket"),
		ResourceId:   aws.String(resource),
	})
	if err != nil {
		return ComplianceUnknown, err
	}

	// Any non-compliant evaluation wins; compliant only when every
	// evaluation agrees.
	state := ComplianceUnknown
	for _, item := range out.ComplianceByResources {
		if item.Compliance == nil {
			continue
		}
		switch item.Compliance.ComplianceType {
		case configtypes.ComplianceTypeNonCompliant:
			return ComplianceNonCompliant, nil
		case configtypes.ComplianceTypeCompliant:
			state = ComplianceCompliant
		}
	}
	return state, nil
}

func (c *AWSCollector) collectAudit(ctx context.Context, start, end time.Time, resource string) ([]AuditEvent, error) {
	out, err := c.audit.LookupEvents(ctx, &cloudtrail.LookupEventsInput{
		LookupAttributes: []trailtypes.LookupAttribute{
			{
				AttributeKey:   trailtypes.LookupAttributeKeyResourceName,
				AttributeValue: aws.String(resource),
			},
		},
		StartTime: aws.Time(start),
		EndTime:   aws.Time(end),
	})
	if err != nil {
		return nil, err
	}

	var events []AuditEvent
	for _, e := range out.Events {
		readOnly, _ := strconv.ParseBool(aws.ToString(e.ReadOnly))
		events = append(events, AuditEvent{
			Name:      aws.ToString(e.EventName),
			Source:    aws.ToString(e.EventSource),
			Username:  aws.ToString(e.Username),
			Timestamp: aws.ToTime(e.EventTime),
			ReadOnly:  readOnly,
		})
	}
	return events, nil
}

// Verify AWSCollector implements Collector.
var _ Collector = (*AWSCollector)(nil)
