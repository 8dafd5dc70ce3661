package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/LoadingLlama/relation/domain/config"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"
)

// RelationType is the label a party gives a tie ("Friend", "Coworker").
// The empty RelationType means untyped.
type RelationType string

// String returns the label
func (t RelationType) String() string {
	return string(t)
}

// IsEmpty reports whether no type was supplied
func (t RelationType) IsEmpty() bool {
	return strings.TrimSpace(string(t)) == ""
}

// ParseRelationType trims s and checks it against the word and length policy.
func ParseRelationType(s string, cfg *config.DomainConfig) (RelationType, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	trimmed := strings.Join(strings.Fields(s), " ")
	if trimmed == "" {
		return "", nil
	}
	if utf8.RuneCountInString(trimmed) > cfg.MaxRelationTypeLength {
		return "", pkgerrors.NewValidationError(
			fmt.Sprintf("relation type must be at most %d characters", cfg.MaxRelationTypeLength))
	}
	if words := len(strings.Fields(trimmed)); words > cfg.MaxRelationTypeWords {
		return "", pkgerrors.NewValidationError(
			fmt.Sprintf("relation type must be at most %d words", cfg.MaxRelationTypeWords))
	}
	return RelationType(trimmed), nil
}

// RequestKind is the tagged variant carried by a request: either Typed with
// a relation type or Untyped.
type RequestKind struct {
	typed        bool
	relationType RelationType
}

// Typed returns a typed request kind
func Typed(relationType RelationType) RequestKind {
	return RequestKind{typed: true, relationType: relationType}
}

// Untyped returns an untyped request kind
func Untyped() RequestKind {
	return RequestKind{}
}

// IsTyped reports whether the kind carries a relation type
func (k RequestKind) IsTyped() bool {
	return k.typed
}

// RelationType returns the relation type, empty for untyped kinds
func (k RequestKind) RelationType() RelationType {
	return k.relationType
}

// NewRequestKind builds the variant allowed by the deployment mode.
// Typed deployments require a relation type; untyped deployments reject one.
func NewRequestKind(relationType string, cfg *config.DomainConfig) (RequestKind, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	switch cfg.RequestKind {
	case config.RequestKindUntyped:
		if strings.TrimSpace(relationType) != "" {
			return RequestKind{}, pkgerrors.NewValidationError("relation types are not supported in this deployment")
		}
		return Untyped(), nil
	default:
		rt, err := ParseRelationType(relationType, cfg)
		if err != nil {
			return RequestKind{}, err
		}
		if rt.IsEmpty() {
			return RequestKind{}, pkgerrors.NewValidationError("relation type is required")
		}
		return Typed(rt), nil
	}
}

// RestoreRequestKind rebuilds a kind from storage without applying policy.
func RestoreRequestKind(relationType string) RequestKind {
	if relationType == "" {
		return Untyped()
	}
	return Typed(RelationType(relationType))
}
