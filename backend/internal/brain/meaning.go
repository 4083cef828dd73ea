package brain

import (
	"slices"

	apperrors "brainport/backend/pkg/errors"
)

// MeaningDescriptor is the structural description of one link Meaning
type MeaningDescriptor struct {
	Kind      Kind
	Relations []Relation
	Reverse   bool
	// Label is empty for NORMAL links, whose label comes from their link type
	Label            string
	DefaultDirection Direction
}

// Fixed relationship labels
const (
	LabelProto   = "_PROTO"
	LabelMember  = "_TYPE"
	LabelSubtype = "_SUPER"
	LabelTag     = "_TAG"
	LabelPin     = "_PIN"
)

var meanings = map[Meaning]MeaningDescriptor{
	MeaningProto: {
		Kind:      KindType,
		Relations: []Relation{RelationProto},
		Label:     LabelProto,
	},
	MeaningNormal: {
		Kind:      KindNode,
		Relations: []Relation{RelationHierarchy, RelationJump},
	},
	MeaningMember: {
		Kind:             KindType,
		Relations:        []Relation{RelationHierarchy},
		Reverse:          true,
		Label:            LabelMember,
		DefaultDirection: DirectionDirectional,
	},
	MeaningSubtype: {
		Kind:             KindType,
		Relations:        []Relation{RelationHierarchy},
		Reverse:          true,
		Label:            LabelSubtype,
		DefaultDirection: DirectionDirectional,
	},
	MeaningTag: {
		Kind:             KindTag,
		Relations:        []Relation{RelationJump},
		Reverse:          true,
		Label:            LabelTag,
		DefaultDirection: DirectionDirectional,
	},
	MeaningPin: {
		Kind:      KindSpecial,
		Relations: []Relation{RelationJump},
		Reverse:   true,
		Label:     LabelPin,
	},
}

// Describe returns the descriptor for meaning
func Describe(meaning Meaning) (MeaningDescriptor, error) {
	d, ok := meanings[meaning]
	if !ok {
		return MeaningDescriptor{}, apperrors.NewUnknownMeaning(int(meaning))
	}
	d.Relations = slices.Clone(d.Relations)
	return d, nil
}

// Label returns the fixed label of meaning; ok is false for NORMAL and
// unknown meanings.
func Label(meaning Meaning) (string, bool) {
	d, ok := meanings[meaning]
	if !ok || d.Label == "" {
		return "", false
	}
	return d.Label, true
}
