package eventbridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAPI struct {
	calls    [][]types.PutEventsRequestEntry
	failures []error
}

func (f *fakeAPI) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	f.calls = append(f.calls, in.Entries)
	return &eventbridge.PutEventsOutput{}, nil
}

func scoreEvents(n int) []events.DomainEvent {
	out := make([]events.DomainEvent, 0, n)
	id := valueobjects.NewIdentityID()
	for i := 0; i < n; i++ {
		out = append(out, events.NewIdentityScoreIncremented(id, i+1, time.Now()))
	}
	return out
}

func TestPublisher_Batches(t *testing.T) {
	tests := []struct {
		name   string
		events int
		calls  []int
	}{
		{"empty", 0, nil},
		{"single", 1, []int{1}},
		{"exactly ten", 10, []int{10}},
		{"spills over", 23, []int{10, 10, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			pub := NewPublisher(api, "relation-bus", zap.NewNop())

			require.NoError(t, pub.PublishBatch(context.Background(), scoreEvents(tt.events)))

			sizes := make([]int, 0, len(api.calls))
			for _, call := range api.calls {
				sizes = append(sizes, len(call))
			}
			if tt.calls == nil {
				assert.Empty(t, sizes)
			} else {
				assert.Equal(t, tt.calls, sizes)
			}
		})
	}
}

func TestPublisher_EntryShape(t *testing.T) {
	api := &fakeAPI{}
	pub := NewPublisher(api, "relation-bus", zap.NewNop())
	evt := scoreEvents(1)[0]

	require.NoError(t, pub.Publish(context.Background(), evt))

	require.Len(t, api.calls, 1)
	entry := api.calls[0][0]
	assert.Equal(t, "relation-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, events.SourceBackend, aws.ToString(entry.Source))
	assert.Equal(t, events.TypeIdentityScoreIncremented, aws.ToString(entry.DetailType))

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, evt.GetAggregateID(), detail["aggregate_id"])
}

func TestPublisher_RetriesThrottling(t *testing.T) {
	throttled := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}

	t.Run("recovers", func(t *testing.T) {
		api := &fakeAPI{failures: []error{throttled}}
		pub := NewPublisher(api, "relation-bus", zap.NewNop())

		require.NoError(t, pub.PublishBatch(context.Background(), scoreEvents(2)))
		assert.Len(t, api.calls, 1)
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		denied := &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no", Fault: smithy.FaultClient}
		api := &fakeAPI{failures: []error{denied, denied}}
		pub := NewPublisher(api, "relation-bus", zap.NewNop())

		err := pub.PublishBatch(context.Background(), scoreEvents(1))
		assert.Error(t, err)
		assert.Len(t, api.failures, 1, "only one attempt")
	})
}
