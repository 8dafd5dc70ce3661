package services

import (
	"hash/fnv"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/LoadingLlama/relation/domain/config"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"
)

// RevealAll disables the reveal budget
const RevealAll = -1

// Node id prefixes for nodes that are not identities. Identity ids are
// UUIDs, so prefixed ids can never collide with them.
const (
	PendingNodePrefix = "request:"
	FoFNodePrefix     = "fof:"
)

// Node palette
const (
	ColorSelf     = "#f59e0b"
	ColorVerified = "#3b82f6"
	ColorPending  = "#9ca3af"
	ColorMutual   = "#2563eb"
)

// NodeKind is the semantic role of a projected node
type NodeKind string

const (
	NodeKindSelf           NodeKind = "self"
	NodeKindPeer           NodeKind = "peer"
	NodeKindPending        NodeKind = "pending"
	NodeKindFriendOfFriend NodeKind = "friend_of_friend"
)

const (
	originSize  = 40
	peerSize    = 24
	pendingSize = 18
	fofSize     = 14

	verifiedEdgeWidth = 3
	pendingEdgeWidth  = 1
	fofEdgeWidth      = 1
)

// GraphNode is one renderable node. Fixed nodes are pinned at the origin
// and excluded from force-directed movement.
type GraphNode struct {
	ID            string   `json:"id"`
	Label         string   `json:"label"`
	Kind          NodeKind `json:"kind"`
	Size          int      `json:"size"`
	Color         string   `json:"color"`
	Fixed         bool     `json:"fixed"`
	IsCurrentUser bool     `json:"is_current_user"`
	Mutual        bool     `json:"mutual,omitempty"`
	Hidden        bool     `json:"hidden,omitempty"`
}

// GraphEdge is one renderable edge
type GraphEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	Width        int    `json:"width"`
	Dashed       bool   `json:"dashed"`
	Color        string `json:"color"`
	RelationType string `json:"relation_type,omitempty"`
}

// GraphSnapshot is a full node/edge model for one projection cycle.
// TotalCandidates is the number of counterpart nodes the view would show
// with an unlimited reveal budget.
type GraphSnapshot struct {
	Viewpoint       string      `json:"viewpoint"`
	Expanded        bool        `json:"expanded"`
	Nodes           []GraphNode `json:"nodes"`
	Edges           []GraphEdge `json:"edges"`
	TotalCandidates int         `json:"total_candidates"`
}

// NodeIndex returns the position of the node with id, or -1
func (s *GraphSnapshot) NodeIndex(id string) int {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// IdentityLookup resolves identity ids to identities. Relationships carry ids
// only; names are looked up at projection time.
type IdentityLookup interface {
	Lookup(id valueobjects.IdentityID) (*entities.Identity, bool)
}

// Filter gates which default-view candidates are considered
type Filter struct {
	Search     string
	ShowHidden bool
}

// Matches applies the hidden toggle and a case-insensitive substring search
func (f Filter) Matches(label string, hidden bool) bool {
	if hidden && !f.ShowHidden {
		return false
	}
	search := strings.TrimSpace(f.Search)
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(label), strings.ToLower(search))
}

// ProjectionInput is everything the projector needs for one cycle
type ProjectionInput struct {
	Viewer        *entities.Identity
	Viewpoint     valueobjects.IdentityID
	Identities    IdentityLookup
	Relationships []*entities.Relationship
	Requests      []*entities.ConnectionRequest
	Filter        Filter
	RevealBudget  int
}

// GraphProjector derives the ego-network view model from relationship and
// request records.
type GraphProjector struct {
	config *config.DomainConfig
}

// NewGraphProjector creates a projector
func NewGraphProjector(cfg *config.DomainConfig) *GraphProjector {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &GraphProjector{config: cfg}
}

// Project produces a snapshot centered on the viewer, or on the selected
// peer when Viewpoint names someone other than the viewer.
func (p *GraphProjector) Project(in ProjectionInput) (*GraphSnapshot, error) {
	if in.Viewer == nil {
		return nil, pkgerrors.NewValidationError("viewer is required")
	}
	if in.Viewpoint.IsZero() || in.Viewpoint.Equals(in.Viewer.ID()) {
		return p.projectDefault(in), nil
	}
	return p.projectExpanded(in)
}

func (p *GraphProjector) projectDefault(in ProjectionInput) *GraphSnapshot {
	viewer := in.Viewer
	selfID := viewer.ID().String()

	snapshot := &GraphSnapshot{
		Viewpoint: selfID,
		Nodes: []GraphNode{{
			ID:            selfID,
			Label:         viewer.DisplayName(),
			Kind:          NodeKindSelf,
			Size:          originSize,
			Color:         ColorSelf,
			Fixed:         true,
			IsCurrentUser: true,
		}},
		Edges: []GraphEdge{},
	}

	type candidate struct {
		node GraphNode
		edge GraphEdge
	}
	var candidates []candidate
	seen := map[string]bool{selfID: true}

	for _, rel := range in.Relationships {
		if !rel.Involves(viewer.ID()) {
			continue
		}
		peer := rel.Counterpart(viewer.ID())
		peerID := peer.String()
		if seen[peerID] {
			continue
		}
		label := p.displayName(in.Identities, peer)
		if !in.Filter.Matches(label, rel.Hidden()) {
			continue
		}
		seen[peerID] = true

		candidates = append(candidates, candidate{
			node: GraphNode{
				ID:     peerID,
				Label:  label,
				Kind:   NodeKindPeer,
				Size:   peerSize,
				Color:  ColorVerified,
				Hidden: rel.Hidden(),
			},
			edge: GraphEdge{
				ID:           rel.ID(),
				Source:       selfID,
				Target:       peerID,
				Width:        verifiedEdgeWidth,
				Color:        ColorVerified,
				RelationType: rel.RelationType().String(),
			},
		})
	}

	for _, req := range in.Requests {
		if req.Status() != entities.StatusPending || req.Direction(viewer.ID()) != entities.DirectionOutgoing {
			continue
		}
		if !in.Filter.Matches(req.ToName(), req.Hidden()) {
			continue
		}
		nodeID := PendingNodePrefix + req.ID()

		candidates = append(candidates, candidate{
			node: GraphNode{
				ID:     nodeID,
				Label:  req.ToName(),
				Kind:   NodeKindPending,
				Size:   pendingSize,
				Color:  ColorPending,
				Hidden: req.Hidden(),
			},
			edge: GraphEdge{
				ID:           "edge:" + nodeID,
				Source:       selfID,
				Target:       nodeID,
				Width:        pendingEdgeWidth,
				Dashed:       true,
				Color:        ColorPending,
				RelationType: req.RelationType().String(),
			},
		})
	}

	snapshot.TotalCandidates = len(candidates)

	limit := len(candidates)
	if in.RevealBudget >= 0 && in.RevealBudget < limit {
		limit = in.RevealBudget
	}
	for _, c := range candidates[:limit] {
		snapshot.Nodes = append(snapshot.Nodes, c.node)
		snapshot.Edges = append(snapshot.Edges, c.edge)
	}

	return snapshot
}

func (p *GraphProjector) projectExpanded(in ProjectionInput) (*GraphSnapshot, error) {
	viewer := in.Viewer
	peer := in.Viewpoint

	var link *entities.Relationship
	knownNames := make(map[string]bool)
	for _, rel := range in.Relationships {
		if !rel.Involves(viewer.ID()) {
			continue
		}
		counterpart := rel.Counterpart(viewer.ID())
		if counterpart.Equals(peer) && link == nil {
			link = rel
		}
		knownNames[strings.ToLower(p.displayName(in.Identities, counterpart))] = true
	}
	if link == nil {
		return nil, pkgerrors.NewNotFoundError("verified peer")
	}

	peerID := peer.String()
	selfID := viewer.ID().String()

	snapshot := &GraphSnapshot{
		Viewpoint: peerID,
		Expanded:  true,
		Nodes: []GraphNode{
			{
				ID:    peerID,
				Label: p.displayName(in.Identities, peer),
				Kind:  NodeKindPeer,
				Size:  originSize,
				Color: ColorVerified,
				Fixed: true,
			},
			{
				ID:            selfID,
				Label:         viewer.DisplayName(),
				Kind:          NodeKindSelf,
				Size:          peerSize,
				Color:         ColorSelf,
				IsCurrentUser: true,
			},
		},
		Edges: []GraphEdge{{
			ID:           link.ID(),
			Source:       peerID,
			Target:       selfID,
			Width:        verifiedEdgeWidth,
			Color:        ColorVerified,
			RelationType: link.RelationType().String(),
		}},
	}

	for i, name := range p.SyntheticNeighbors(peer) {
		// Mutuality is decided by display name, not identity. Two different
		// people with the same name are reported as mutual.
		mutual := knownNames[strings.ToLower(name)]
		color := ColorPending
		if mutual {
			color = ColorMutual
		}
		nodeID := FoFNodePrefix + peerID + ":" + strconv.Itoa(i)

		snapshot.Nodes = append(snapshot.Nodes, GraphNode{
			ID:     nodeID,
			Label:  name,
			Kind:   NodeKindFriendOfFriend,
			Size:   fofSize,
			Color:  color,
			Mutual: mutual,
		})
		snapshot.Edges = append(snapshot.Edges, GraphEdge{
			ID:     "edge:" + nodeID,
			Source: peerID,
			Target: nodeID,
			Width:  fofEdgeWidth,
			Color:  color,
		})
	}
	snapshot.TotalCandidates = len(snapshot.Nodes) - 1

	return snapshot, nil
}

// SyntheticNeighbors returns the deterministic friend-of-friend names for a
// peer. The same peer id always yields the same names in the same order.
func (p *GraphProjector) SyntheticNeighbors(peer valueobjects.IdentityID) []string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(peer.String()))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	lo, hi := p.config.MinSyntheticNeighbors, p.config.MaxSyntheticNeighbors
	if hi > len(syntheticNamePool) {
		hi = len(syntheticNamePool)
	}
	if lo > hi {
		lo = hi
	}
	count := lo + rng.IntN(hi-lo+1)

	order := rng.Perm(len(syntheticNamePool))
	names := make([]string, count)
	for i := range names {
		names[i] = syntheticNamePool[order[i]]
	}
	return names
}

func (p *GraphProjector) displayName(lookup IdentityLookup, id valueobjects.IdentityID) string {
	if lookup != nil {
		if identity, ok := lookup.Lookup(id); ok && identity != nil {
			return identity.DisplayName()
		}
	}
	return "Unknown"
}

var syntheticNamePool = []string{
	"Alex", "Jordan", "Taylor", "Morgan", "Casey",
	"Riley", "Jamie", "Avery", "Quinn", "Parker",
	"Sam", "Drew", "Charlie", "Emerson", "Harper",
	"Rowan", "Sage", "Skyler", "Reese", "Finley",
	"Dakota", "Hayden", "Logan", "Peyton",
}
