package services

import (
	"sort"
	"time"

	"github.com/LoadingLlama/relation/domain/config"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"

	"gonum.org/v1/gonum/graph/simple"
)

// Network depth tiers
const (
	DepthTierOne   = 1
	DepthTierTwo   = 2
	DepthTierThree = 3
)

// Insights is the analytics view of a relationship set. Fields above the
// caller's depth tier are nil.
type Insights struct {
	NetworkDepth        int                       `json:"network_depth"`
	TotalConnections    *int                      `json:"total_connections,omitempty"`
	FadingRelationships []*entities.Relationship  `json:"-"`
	CentralNodeIDs      []valueobjects.IdentityID `json:"central_node_ids,omitempty"`
}

// InsightsEngine computes degree centrality, fading ties and network depth.
// It holds no state between calls.
type InsightsEngine struct {
	config *config.DomainConfig
}

// NewInsightsEngine creates an insights engine
func NewInsightsEngine(cfg *config.DomainConfig) *InsightsEngine {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &InsightsEngine{config: cfg}
}

// Compute derives insights from relationships as of now and applies the
// disclosure policy of the resulting depth tier.
func (e *InsightsEngine) Compute(relationships []*entities.Relationship, now time.Time) *Insights {
	depth := e.NetworkDepth(len(relationships))
	insights := &Insights{NetworkDepth: depth}

	if depth >= DepthTierTwo {
		total := len(relationships)
		insights.TotalConnections = &total
		insights.FadingRelationships = e.Fading(relationships, now)
	}
	if depth >= DepthTierThree {
		insights.CentralNodeIDs = e.CentralNodes(relationships)
	}

	return insights
}

// NetworkDepth maps a relationship count to its tier
func (e *InsightsEngine) NetworkDepth(count int) int {
	switch {
	case count < e.config.DepthTierTwoAt:
		return DepthTierOne
	case count < e.config.DepthTierThreeAt:
		return DepthTierTwo
	default:
		return DepthTierThree
	}
}

// Fading returns relationships with no interaction inside the fading
// threshold, keeping input order. Never-interacted ties are always fading.
func (e *InsightsEngine) Fading(relationships []*entities.Relationship, now time.Time) []*entities.Relationship {
	fading := make([]*entities.Relationship, 0)
	for _, rel := range relationships {
		if rel.IsFading(now, e.config.FadingThreshold) {
			fading = append(fading, rel)
		}
	}
	return fading
}

// CentralNodes returns up to CentralNodeCount identity ids ranked by degree.
// Ties keep the order in which ids first appear in relationships.
func (e *InsightsEngine) CentralNodes(relationships []*entities.Relationship) []valueobjects.IdentityID {
	g := simple.NewUndirectedGraph()

	// gonum node ids are assigned in first-appearance order
	nodeIDs := make(map[string]int64)
	var order []valueobjects.IdentityID
	nodeFor := func(id valueobjects.IdentityID) simple.Node {
		key := id.String()
		n, ok := nodeIDs[key]
		if !ok {
			n = int64(len(order))
			nodeIDs[key] = n
			order = append(order, id)
			g.AddNode(simple.Node(n))
		}
		return simple.Node(n)
	}

	for _, rel := range relationships {
		a := nodeFor(rel.UserA())
		b := nodeFor(rel.UserB())
		g.SetEdge(g.NewEdge(a, b))
	}

	ranked := make([]int64, len(order))
	for i := range ranked {
		ranked[i] = int64(i)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return g.From(ranked[i]).Len() > g.From(ranked[j]).Len()
	})

	limit := e.config.CentralNodeCount
	if limit > len(ranked) {
		limit = len(ranked)
	}
	central := make([]valueobjects.IdentityID, 0, limit)
	for _, n := range ranked[:limit] {
		central = append(central, order[n])
	}
	return central
}
