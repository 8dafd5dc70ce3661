package observability

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// maxDatumsPerPut is the PutMetricData limit per call
const maxDatumsPerPut = 1000

// CloudWatchAPI is the subset of the CloudWatch client used here
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics buffers business metrics and ships them with
// PutMetricData. Used in Lambda, where nothing scrapes /metrics.
type CloudWatchMetrics struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger

	mu     sync.Mutex
	buffer []types.MetricDatum
}

var _ Recorder = (*CloudWatchMetrics)(nil)

// NewCloudWatchMetrics creates a CloudWatch recorder
func NewCloudWatchMetrics(namespace string, client CloudWatchAPI, logger *zap.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

// RecordOperation buffers a latency and a count datum
func (m *CloudWatchMetrics) RecordOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	now := time.Now()
	dims := []types.Dimension{
		{Name: aws.String("Operation"), Value: aws.String(operation)},
		{Name: aws.String("Status"), Value: aws.String(statusLabel(err))},
	}

	m.append(
		types.MetricDatum{
			MetricName: aws.String("OperationLatency"),
			Dimensions: dims,
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(now),
		},
		types.MetricDatum{
			MetricName: aws.String("OperationCount"),
			Dimensions: dims,
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		},
	)
}

// RecordFallback buffers a fallback count datum
func (m *CloudWatchMetrics) RecordFallback(ctx context.Context, operation, policy string) {
	m.append(types.MetricDatum{
		MetricName: aws.String("PersistenceFallback"),
		Dimensions: []types.Dimension{
			{Name: aws.String("Operation"), Value: aws.String(operation)},
			{Name: aws.String("Policy"), Value: aws.String(policy)},
		},
		Value:     aws.Float64(1),
		Unit:      types.StandardUnitCount,
		Timestamp: aws.Time(time.Now()),
	})
}

func (m *CloudWatchMetrics) append(datums ...types.MetricDatum) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer = append(m.buffer, datums...)
}

// Flush sends every buffered datum. Call it at the end of each invocation.
func (m *CloudWatchMetrics) Flush(ctx context.Context) error {
	m.mu.Lock()
	pending := m.buffer
	m.buffer = nil
	m.mu.Unlock()

	if m.client == nil || len(pending) == 0 {
		return nil
	}

	for start := 0; start < len(pending); start += maxDatumsPerPut {
		end := start + maxDatumsPerPut
		if end > len(pending) {
			end = len(pending)
		}
		_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(m.namespace),
			MetricData: pending[start:end],
		})
		if err != nil {
			m.logger.Warn("Failed to send metrics", zap.Int("datums", end-start), zap.Error(err))
			return err
		}
	}
	return nil
}

// Pending returns the number of buffered datums
func (m *CloudWatchMetrics) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffer)
}
