package config

import (
	"fmt"
	"sync/atomic"
	"time"
)

// RequestKindMode selects, once per deployment, whether connection requests
// carry a relation type.
type RequestKindMode string

const (
	RequestKindTyped   RequestKindMode = "typed"
	RequestKindUntyped RequestKindMode = "untyped"
)

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Identifier policy
	MinIdentifierDigits int `yaml:"min_identifier_digits"`

	// Relation type policy
	RequestKind           RequestKindMode `yaml:"request_kind"`
	MaxRelationTypeWords  int             `yaml:"max_relation_type_words"`
	MaxRelationTypeLength int             `yaml:"max_relation_type_length"`

	// Relationship defaults
	DefaultStrength int `yaml:"default_strength"`
	MinStrength     int `yaml:"min_strength"`
	MaxStrength     int `yaml:"max_strength"`

	// Insights
	FadingThreshold  time.Duration `yaml:"fading_threshold"`
	DepthTierTwoAt   int           `yaml:"depth_tier_two_at"`
	DepthTierThreeAt int           `yaml:"depth_tier_three_at"`
	CentralNodeCount int           `yaml:"central_node_count"`

	// Friend-of-friend synthesis
	MinSyntheticNeighbors int `yaml:"min_synthetic_neighbors"`
	MaxSyntheticNeighbors int `yaml:"max_synthetic_neighbors"`

	// Staggered reveal
	RevealInitialDelay time.Duration `yaml:"reveal_initial_delay"`
	RevealPeriod       time.Duration `yaml:"reveal_period"`
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MinIdentifierDigits: 10,

		RequestKind:           RequestKindTyped,
		MaxRelationTypeWords:  2,
		MaxRelationTypeLength: 30,

		DefaultStrength: 5,
		MinStrength:     1,
		MaxStrength:     10,

		FadingThreshold:  90 * 24 * time.Hour,
		DepthTierTwoAt:   2,
		DepthTierThreeAt: 5,
		CentralNodeCount: 3,

		MinSyntheticNeighbors: 3,
		MaxSyntheticNeighbors: 8,

		RevealInitialDelay: 300 * time.Millisecond,
		RevealPeriod:       120 * time.Millisecond,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	return DefaultDomainConfig()
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Faster reveal while iterating on the renderer
	config.RevealInitialDelay = 100 * time.Millisecond
	config.RevealPeriod = 50 * time.Millisecond

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.RequestKind != RequestKindTyped && c.RequestKind != RequestKindUntyped {
		return fmt.Errorf("request_kind must be %q or %q, got %q", RequestKindTyped, RequestKindUntyped, c.RequestKind)
	}
	if c.MinIdentifierDigits <= 0 {
		return fmt.Errorf("min_identifier_digits must be positive")
	}
	if c.MaxRelationTypeWords <= 0 || c.MaxRelationTypeLength <= 0 {
		return fmt.Errorf("relation type limits must be positive")
	}
	if c.MinStrength > c.MaxStrength || c.DefaultStrength < c.MinStrength || c.DefaultStrength > c.MaxStrength {
		return fmt.Errorf("default_strength %d outside [%d, %d]", c.DefaultStrength, c.MinStrength, c.MaxStrength)
	}
	if c.DepthTierTwoAt >= c.DepthTierThreeAt {
		return fmt.Errorf("depth tiers must be increasing")
	}
	if c.MinSyntheticNeighbors < 0 || c.MinSyntheticNeighbors > c.MaxSyntheticNeighbors {
		return fmt.Errorf("synthetic neighbor bounds invalid: [%d, %d]", c.MinSyntheticNeighbors, c.MaxSyntheticNeighbors)
	}
	if c.RevealPeriod <= 0 {
		return fmt.Errorf("reveal_period must be positive")
	}
	return nil
}

// Clone returns a copy that can be modified independently
func (c *DomainConfig) Clone() *DomainConfig {
	clone := *c
	return &clone
}

// Holder publishes the current domain configuration to readers while a
// watcher swaps it on reload.
type Holder struct {
	current atomic.Pointer[DomainConfig]
}

// NewHolder creates a holder seeded with cfg
func NewHolder(cfg *DomainConfig) *Holder {
	h := &Holder{}
	h.current.Store(cfg)
	return h
}

// Get returns the active configuration
func (h *Holder) Get() *DomainConfig {
	return h.current.Load()
}

// Set replaces the active configuration
func (h *Holder) Set(cfg *DomainConfig) {
	h.current.Store(cfg)
}
