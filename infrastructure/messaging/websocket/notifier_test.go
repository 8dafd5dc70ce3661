package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/domain/events"
	"github.com/LoadingLlama/relation/infrastructure/persistence/memory"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwTypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRegistry struct {
	mu          sync.Mutex
	connections map[string][]string
	forgotten   []string
}

func (r *fakeRegistry) ConnectionsFor(ctx context.Context, identityID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.connections[identityID]...), nil
}

func (r *fakeRegistry) Forget(ctx context.Context, identityID, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgotten = append(r.forgotten, connectionID)
	return nil
}

type fakeGateway struct {
	mu    sync.Mutex
	gone  map[string]bool
	fail  map[string]bool
	posts map[string][][]byte
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{gone: map[string]bool{}, fail: map[string]bool{}, posts: map[string][][]byte{}}
}

func (g *fakeGateway) PostToConnection(ctx context.Context, in *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := aws.ToString(in.ConnectionId)
	if g.gone[id] {
		return nil, &apigwTypes.GoneException{Message: aws.String("gone")}
	}
	if g.fail[id] {
		return nil, errors.New("throttled")
	}
	g.posts[id] = append(g.posts[id], in.Data)
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

func (g *fakeGateway) connectionsPosted() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.posts))
	for id := range g.posts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func TestNotifier_RelationshipEventsReachBothEndpoints(t *testing.T) {
	alice, bob := valueobjects.NewIdentityID(), valueobjects.NewIdentityID()
	registry := &fakeRegistry{connections: map[string][]string{
		alice.String(): {"a-1", "a-2"},
		bob.String():   {"b-1"},
	}}
	gateway := newFakeGateway()
	notifier := NewNotifier(gateway, registry, nil, zap.NewNop())

	evt := events.NewRelationshipCreated("rel-1", alice, bob, "Friend", time.Now())
	require.NoError(t, notifier.Publish(context.Background(), evt))

	assert.Equal(t, []string{"a-1", "a-2", "b-1"}, gateway.connectionsPosted())

	var msg Message
	require.NoError(t, json.Unmarshal(gateway.posts["b-1"][0], &msg))
	assert.Equal(t, events.TypeRelationshipCreated, msg.Type)
	assert.Equal(t, "rel-1", msg.AggregateID)
}

func TestNotifier_RequestCreatedResolvesRecipient(t *testing.T) {
	ctx := context.Background()
	identities := memory.NewIdentityRepository()
	carol, err := entities.NewIdentity("Carol", "5550000003")
	require.NoError(t, err)
	require.NoError(t, identities.Save(ctx, carol))

	sender := valueobjects.NewIdentityID()
	registry := &fakeRegistry{connections: map[string][]string{
		sender.String():     {"s-1"},
		carol.ID().String(): {"c-1"},
	}}
	gateway := newFakeGateway()
	notifier := NewNotifier(gateway, registry, identities, zap.NewNop())

	evt := events.NewRequestCreated("req-1", sender, carol.IdentifierHash(), "", time.Now())
	require.NoError(t, notifier.Publish(ctx, evt))

	assert.Equal(t, []string{"c-1", "s-1"}, gateway.connectionsPosted())
}

func TestNotifier_StaleAndFailingConnections(t *testing.T) {
	id := valueobjects.NewIdentityID()
	registry := &fakeRegistry{connections: map[string][]string{id.String(): {"old", "live"}}}
	gateway := newFakeGateway()
	gateway.gone["old"] = true
	notifier := NewNotifier(gateway, registry, nil, zap.NewNop())

	evt := events.NewIdentityScoreIncremented(id, 3, time.Now())
	require.NoError(t, notifier.Publish(context.Background(), evt))
	assert.Equal(t, []string{"old"}, registry.forgotten)
	assert.Equal(t, []string{"live"}, gateway.connectionsPosted())

	gateway.fail["live"] = true
	assert.Error(t, notifier.Publish(context.Background(), evt))
}
