package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idN(n int) valueobjects.IdentityID {
	return valueobjects.MustIdentityID(fmt.Sprintf("00000000-0000-4000-8000-%012d", n))
}

func rel(t *testing.T, a, b valueobjects.IdentityID) *entities.Relationship {
	t.Helper()
	r, err := entities.NewRelationship(a, b, "Friend", false, nil)
	require.NoError(t, err)
	return r
}

func TestNetworkDepth_Thresholds(t *testing.T) {
	engine := NewInsightsEngine(nil)

	tests := []struct {
		count    int
		expected int
	}{
		{0, 1}, {1, 1}, {2, 2}, {3, 2}, {4, 2}, {5, 3}, {6, 3}, {100, 3},
	}

	previous := 0
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d relationships", tt.count), func(t *testing.T) {
			depth := engine.NetworkDepth(tt.count)

			assert.Equal(t, tt.expected, depth)
			assert.GreaterOrEqual(t, depth, previous)
			previous = depth
		})
	}
}

func TestCompute_DisclosureByTier(t *testing.T) {
	engine := NewInsightsEngine(nil)
	now := time.Now().UTC()
	viewer := idN(0)

	build := func(n int) []*entities.Relationship {
		rels := make([]*entities.Relationship, 0, n)
		for i := 1; i <= n; i++ {
			rels = append(rels, rel(t, viewer, idN(i)))
		}
		return rels
	}

	t.Run("tier one exposes nothing", func(t *testing.T) {
		insights := engine.Compute(build(1), now)

		assert.Equal(t, DepthTierOne, insights.NetworkDepth)
		assert.Nil(t, insights.TotalConnections)
		assert.Nil(t, insights.FadingRelationships)
		assert.Nil(t, insights.CentralNodeIDs)
	})

	t.Run("tier two exposes total and fading", func(t *testing.T) {
		insights := engine.Compute(build(3), now)

		assert.Equal(t, DepthTierTwo, insights.NetworkDepth)
		require.NotNil(t, insights.TotalConnections)
		assert.Equal(t, 3, *insights.TotalConnections)
		assert.Len(t, insights.FadingRelationships, 3)
		assert.Nil(t, insights.CentralNodeIDs)
	})

	t.Run("six relationships reach tier three", func(t *testing.T) {
		insights := engine.Compute(build(6), now)

		assert.Equal(t, DepthTierThree, insights.NetworkDepth)
		assert.NotEmpty(t, insights.CentralNodeIDs)
		assert.LessOrEqual(t, len(insights.CentralNodeIDs), 3)
		assert.True(t, insights.CentralNodeIDs[0].Equals(viewer))
	})
}

func TestFading(t *testing.T) {
	engine := NewInsightsEngine(nil)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	never := rel(t, idN(0), idN(1))
	recent := rel(t, idN(0), idN(2))
	require.NoError(t, recent.RecordInteraction(now.Add(-24*time.Hour)))
	stale := rel(t, idN(0), idN(3))
	require.NoError(t, stale.RecordInteraction(now.Add(-100*24*time.Hour)))

	fading := engine.Fading([]*entities.Relationship{never, recent, stale}, now)

	require.Len(t, fading, 2)
	assert.Equal(t, never.ID(), fading[0].ID())
	assert.Equal(t, stale.ID(), fading[1].ID())
}

func TestCentralNodes_TieBreakByFirstAppearance(t *testing.T) {
	engine := NewInsightsEngine(nil)

	// degrees: 5 -> 2, 3 -> 2, 9 -> 1, 1 -> 1; 5 appears before 3
	rels := []*entities.Relationship{
		rel(t, idN(5), idN(9)),
		rel(t, idN(3), idN(1)),
		rel(t, idN(5), idN(3)),
	}

	central := engine.CentralNodes(rels)

	require.Len(t, central, 3)
	// canonical order puts the smaller id first inside each relationship,
	// so first appearance is 5, 9, 1, 3
	assert.True(t, central[0].Equals(idN(5)))
	assert.True(t, central[1].Equals(idN(3)))
	assert.True(t, central[2].Equals(idN(9)))
}

func TestCentralNodes_Empty(t *testing.T) {
	assert.Empty(t, NewInsightsEngine(nil).CentralNodes(nil))
}
