package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/imrishuroy/go-order-fulfillment/internal/aws"
)

// AnomalyMetricName is the CloudWatch metric alarms are defined on.
const AnomalyMetricName = "OrderAnomaly"

// AlarmPublisher emits one CloudWatch data point per flagged order so an
// alarm can page whoever reconciles orphaned headers.
type AlarmPublisher struct {
	client    aws.CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewAlarmPublisher creates a publisher writing into namespace.
func NewAlarmPublisher(client aws.CloudWatchAPI, namespace string) *AlarmPublisher {
	return &AlarmPublisher{client: client, namespace: namespace, nowFunc: time.Now}
}

// Anomaly records an anomaly for an order. The Prometheus counter is bumped
// even when CloudWatch is unreachable.
func (p *AlarmPublisher) Anomaly(ctx context.Context, anomaly, orderID string) error {
	AnomaliesTotal.WithLabelValues(anomaly).Inc()

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &p.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: awsString(AnomalyMetricName),
				Dimensions: []cwtypes.Dimension{
					{Name: awsString("Anomaly"), Value: awsString(anomaly)},
				},
				Timestamp: awsTime(p.nowFunc()),
				Unit:      cwtypes.StandardUnitCount,
				Value:     awsFloat(1),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put anomaly metric for order %s: %w", orderID, err)
	}
	return nil
}

func awsString(s string) *string { return &s }

func awsFloat(f float64) *float64 { return &f }

func awsTime(t time.Time) *time.Time { return &t }
