package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	trailtypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/configservice"
	configtypes "github.com/aws/aws-sdk-go-v2/service/configservice/types"

	"github.com/chaossec-io/chaossec/log"
)

type fakeMetrics struct {
	err error
}

func (f *fakeMetrics) GetMetricStatistics(context.Context, *cloudwatch.GetMetricStatisticsInput, ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &cloudwatch.GetMetricStatisticsOutput{
		Datapoints: []cwtypes.Datapoint{
			{Sum: aws.Float64(12), Unit: cwtypes.StandardUnitCount, Timestamp: aws.Time(time.Now())},
		},
	}, nil
}

type fakeCompliance struct {
	state configtypes.ComplianceType
	err   error
}

func (f *fakeCompliance) DescribeComplianceByResource(context.Context, *configservice.DescribeComplianceByResourceInput, ...func(*configservice.Options)) (*configservice.DescribeComplianceByResourceOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &configservice.DescribeComplianceByResourceOutput{
		ComplianceByResources: []configtypes.ComplianceByResource{
			{Compliance: &configtypes.Compliance{ComplianceType: f.state}},
		},
	}, nil
}

type fakeAudit struct {
	err error
}

func (f *fakeAudit) LookupEvents(context.Context, *cloudtrail.LookupEventsInput, ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &cloudtrail.LookupEventsOutput{
		Events: []trailtypes.Event{
			{
				EventName:   aws.String("DeletePublicAccessBlock"),
				EventSource: aws.String("s3.amazonaws.com"),
				Username:    aws.String("chaossec"),
				EventTime:   aws.Time(time.Now()),
				ReadOnly:    aws.String("false"),
			},
			{
				EventName: aws.String("GetBucketAcl"),
				EventTime: aws.Time(time.Now()),
				ReadOnly:  aws.String("true"),
			},
		},
	}, nil
}

func TestCollectAllSources(t *testing.T) {
	c := newAWSCollectorWithClients(
		&fakeMetrics{},
		&fakeCompliance{state: configtypes.ComplianceTypeNonCompliant},
		&fakeAudit{},
		log.NewNop(),
	)

	obs, err := c.Collect(context.Background(), 5*time.Minute, "staging-bucket")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	// One datapoint per sampled metric name.
	if len(obs.Metrics) != len(bucketMetrics) {
		t.Errorf("got %d metric points, want %d", len(obs.Metrics), len(bucketMetrics))
	}
	if obs.Compliance != ComplianceNonCompliant {
		t.Errorf("Compliance = %s", obs.Compliance)
	}
	if len(obs.AuditEvents) != 2 {
		t.Fatalf("got %d audit events, want 2", len(obs.AuditEvents))
	}
	if mutations := obs.MutationEvents(); len(mutations) != 1 || mutations[0].Name != "DeletePublicAccessBlock" {
		t.Errorf("MutationEvents = %+v", mutations)
	}
	if len(obs.Degraded) != 0 {
		t.Errorf("Degraded = %v", obs.Degraded)
	}
	if obs.Empty() {
		t.Error("observation with signal must not be empty")
	}
}

func TestCollectToleratesPartialFailure(t *testing.T) {
	c := newAWSCollectorWithClients(
		&fakeMetrics{err: errors.New("throttled")},
		&fakeCompliance{state: configtypes.ComplianceTypeCompliant},
		&fakeAudit{err: errors.New("access denied")},
		log.NewNop(),
	)

	obs, err := c.Collect(context.Background(), 5*time.Minute, "staging-bucket")
	if err != nil {
		t.Fatalf("partial failure must not fail collection: %v", err)
	}
	if obs.Compliance != ComplianceCompliant {
		t.Errorf("Compliance = %s", obs.Compliance)
	}
	if len(obs.Degraded) != 2 {
		t.Errorf("Degraded = %v", obs.Degraded)
	}
}

func TestCollectAllSourcesFailed(t *testing.T) {
	boom := errors.New("region down")
	c := newAWSCollectorWithClients(
		&fakeMetrics{err: boom},
		&fakeCompliance{err: boom},
		&fakeAudit{err: boom},
		log.NewNop(),
	)

	obs, err := c.Collect(context.Background(), 0, "staging-bucket")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !obs.Empty() {
		t.Error("fully failed collection must read as empty")
	}
	if obs.Window != DefaultWindow {
		t.Errorf("Window = %v, want default", obs.Window)
	}
}

func TestObservationEmpty(t *testing.T) {
	if !(&Observation{Compliance: ComplianceUnknown}).Empty() {
		t.Error("unknown-only observation should be empty")
	}
	if (&Observation{Compliance: ComplianceCompliant}).Empty() {
		t.Error("compliance verdict is signal")
	}
	if (&Observation{Metrics: []MetricPoint{{Name: "AllRequests"}}, Compliance: ComplianceUnknown}).Empty() {
		t.Error("metric datapoints are signal")
	}
}
