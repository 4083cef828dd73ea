package brain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "brainport/backend/pkg/errors"
)

type linkTypeTable map[string]string

func (t linkTypeTable) LinkTypeName(id string) (string, bool) {
	name, ok := t[id]
	return name, ok
}

func strPtr(s string) *string { return &s }

func TestDecodeNode_Buckets(t *testing.T) {
	tests := []struct {
		kind   Kind
		bucket string
	}{
		{KindNode, BucketNode},
		{KindType, BucketType},
		{KindTag, BucketTag},
		{KindSpecial, BucketSpecial},
	}
	for _, tt := range tests {
		intent, err := DecodeNode(RawNode{Id: "n1", Kind: tt.kind, Name: "x"})
		require.NoError(t, err)
		assert.Equal(t, tt.bucket, intent.Bucket)
		assert.False(t, intent.IsEdge())
	}
}

func TestDecodeNode_Properties(t *testing.T) {
	raw := RawNode{
		Id:                   "n1",
		Kind:                 KindNode,
		Name:                 "Go",
		TypeId:               strPtr("t1"),
		ACType:               0,
		BackgroundColor:      strPtr("#ffffff"),
		TagIds:               []string{},
		BrainId:              "b1",
		CreationDateTime:     "2019-03-20T14:21:38.123Z",
		ModificationDateTime: "2019-03-21T08:00:00",
	}

	intent, err := DecodeNode(raw)
	require.NoError(t, err)

	p := intent.Properties
	assert.Equal(t, "n1", p["id"])
	assert.Equal(t, "Go", p["name"])
	assert.Equal(t, "Go", p["label"], "label falls back to Name")
	assert.Equal(t, time.Date(2019, 3, 20, 14, 21, 38, 123000000, time.UTC), p["created_at"])
	assert.Equal(t, time.Date(2019, 3, 21, 8, 0, 0, 0, time.UTC), p["modified_at"])
	assert.Equal(t, int64(1), p["brain_Kind"])
	assert.Equal(t, int64(0), p["brain_ACType"])
	assert.Equal(t, "t1", p["brain_TypeId"])
	assert.Equal(t, "b1", p["brain_BrainId"])
	assert.Equal(t, "#ffffff", p["brain_BackgroundColor"])
	assert.Equal(t, []string{}, p["brain_TagIds"])

	for _, key := range []string{"brain_Name", "brain_Label", "brain_Id", "brain_CreationDateTime", "brain_ForegroundColor"} {
		assert.NotContains(t, p, key)
	}
}

func TestDecodeNode_LabelOverridesName(t *testing.T) {
	intent, err := DecodeNode(RawNode{Id: "n1", Kind: KindNode, Name: "Go", Label: strPtr("golang")})
	require.NoError(t, err)
	assert.Equal(t, "golang", intent.Properties["label"])
	assert.Equal(t, "Go", intent.Properties["name"])
}

func TestDecodeNode_UnknownKind(t *testing.T) {
	_, err := DecodeNode(RawNode{Id: "bad", Kind: 99})
	var unknown *apperrors.ErrUnknownKind
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, 99, unknown.Kind)
	assert.False(t, apperrors.IsRecoverable(err))
}

func TestDecodeNode_Validation(t *testing.T) {
	_, err := DecodeNode(RawNode{Id: "n1", Kind: KindNode, TagIds: []string{"t"}})
	assert.True(t, apperrors.IsRecoverable(err), "non-empty TagIds is a record-level failure")

	_, err = DecodeNode(RawNode{Id: "n1", Kind: KindNode, CreationDateTime: "yesterday"})
	var validation *apperrors.ErrDecodeValidation
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "CreationDateTime", validation.Field)

	_, err = DecodeNode(RawNode{Kind: KindNode})
	assert.True(t, apperrors.IsRecoverable(err))
}

func TestDecodeLink_Pure(t *testing.T) {
	raw := RawLink{
		Id: "l1", ThoughtIdA: "a", ThoughtIdB: "b",
		Meaning: MeaningNormal, Relation: RelationJump, Direction: 3,
		TypeId: strPtr("p1"), CreationDateTime: "2020-01-01T00:00:00Z",
	}
	types := linkTypeTable{"p1": "works with"}

	first, err := DecodeLink(raw, types)
	require.NoError(t, err)
	second, err := DecodeLink(raw, types)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	b1, _ := json.Marshal(first)
	b2, _ := json.Marshal(second)
	assert.Equal(t, b1, b2)
}

func TestDecodeLink_Orientation(t *testing.T) {
	tests := []struct {
		name      string
		meaning   Meaning
		relation  Relation
		direction Direction
		from, to  string
	}{
		{"normal hierarchy unspecified", MeaningNormal, RelationHierarchy, DirectionUnspecified, "A", "B"},
		{"normal hierarchy reversed bit", MeaningNormal, RelationHierarchy, DirectionReversed, "A", "B"},
		{"normal jump reversed bit", MeaningNormal, RelationJump, DirectionReversed, "B", "A"},
		{"normal jump plain", MeaningNormal, RelationJump, DirectionDirectional, "A", "B"},
		{"member unspecified", MeaningMember, RelationHierarchy, DirectionUnspecified, "B", "A"},
		{"subtype unspecified", MeaningSubtype, RelationHierarchy, DirectionUnspecified, "B", "A"},
		{"tag unspecified", MeaningTag, RelationJump, DirectionUnspecified, "B", "A"},
		{"pin zero", MeaningPin, RelationJump, 0, "B", "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, err := DecodeLink(RawLink{
				Id: "l", ThoughtIdA: "A", ThoughtIdB: "B",
				Meaning: tt.meaning, Relation: tt.relation, Direction: tt.direction,
			}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.from, intent.FromID)
			assert.Equal(t, tt.to, intent.ToID)
		})
	}
}

func TestDecodeLink_Flags(t *testing.T) {
	intent, err := DecodeLink(RawLink{
		Id: "l", ThoughtIdA: "A", ThoughtIdB: "B",
		Meaning: MeaningNormal, Relation: RelationJump, Direction: 15,
	}, nil)
	require.NoError(t, err)

	p := intent.Properties
	assert.Equal(t, true, p["shown"])
	assert.Equal(t, true, p["reversed"])
	assert.Equal(t, true, p["one_way"])
	assert.Equal(t, true, p["specified"])
	assert.Equal(t, false, p["hierarchy"])
	assert.Equal(t, int64(15), p["direction"])
}

func TestDecodeLink_UnspecifiedDirection(t *testing.T) {
	intent, err := DecodeLink(RawLink{
		Id: "l", ThoughtIdA: "A", ThoughtIdB: "B",
		Meaning: MeaningMember, Relation: RelationHierarchy, Direction: DirectionUnspecified,
	}, nil)
	require.NoError(t, err)

	p := intent.Properties
	assert.Equal(t, false, p["shown"])
	assert.Equal(t, false, p["one_way"])
	assert.Equal(t, false, p["specified"])
	assert.Equal(t, true, p["reversed"], "descriptor reversal applies with no bits set")
	assert.Equal(t, int64(DirectionDirectional), p["direction"], "default direction derived from meaning")
	assert.Equal(t, int64(-1), p["brain_Direction"])
}

func TestDecodeLink_Labels(t *testing.T) {
	types := linkTypeTable{"p1": "works with", "p2": ""}

	intent, err := DecodeLink(RawLink{Id: "l", ThoughtIdA: "A", ThoughtIdB: "B", Meaning: MeaningTag}, types)
	require.NoError(t, err)
	assert.Equal(t, "_TAG", intent.Bucket)

	intent, err = DecodeLink(RawLink{Id: "l", ThoughtIdA: "A", ThoughtIdB: "B", Meaning: MeaningNormal, TypeId: strPtr("p1")}, types)
	require.NoError(t, err)
	assert.Equal(t, "works_with", intent.Bucket)

	intent, err = DecodeLink(RawLink{Id: "l", ThoughtIdA: "A", ThoughtIdB: "B", Meaning: MeaningNormal, TypeId: strPtr("p2")}, types)
	require.NoError(t, err)
	assert.Equal(t, "Link", intent.Bucket)

	intent, err = DecodeLink(RawLink{Id: "l", ThoughtIdA: "A", ThoughtIdB: "B", Meaning: MeaningNormal}, types)
	require.NoError(t, err)
	assert.Equal(t, "Link", intent.Bucket)

	_, err = DecodeLink(RawLink{Id: "l", ThoughtIdA: "A", ThoughtIdB: "B", Meaning: MeaningNormal, TypeId: strPtr("nope")}, types)
	var missing *apperrors.ErrMissingTypeDefinition
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "nope", missing.TypeID)
}

func TestDecodeLink_Errors(t *testing.T) {
	_, err := DecodeLink(RawLink{Id: "l", ThoughtIdA: "A", ThoughtIdB: "B", Meaning: 4}, nil)
	var unknown *apperrors.ErrUnknownMeaning
	assert.ErrorAs(t, err, &unknown)

	_, err = DecodeLink(RawLink{Id: "l", ThoughtIdB: "B", Meaning: MeaningNormal}, nil)
	assert.True(t, apperrors.IsRecoverable(err))
}

func TestDecodeLinkType(t *testing.T) {
	intent, err := DecodeLinkType(RawLink{Id: "p1", Meaning: MeaningProto, Name: strPtr("works with")})
	require.NoError(t, err)
	assert.Equal(t, BucketLinkType, intent.Bucket)
	assert.Equal(t, "works with", intent.Properties["name"])
	assert.False(t, intent.IsEdge())

	_, err = DecodeLinkType(RawLink{Id: "l1", Meaning: MeaningNormal})
	assert.True(t, apperrors.IsRecoverable(err))
}

func TestTagAsymmetry(t *testing.T) {
	// Tag membership shows up only as a reversed _TAG link, never on the node
	node, err := DecodeNode(RawNode{Id: "n", Kind: KindNode, TagIds: []string{}})
	require.NoError(t, err)
	assert.Empty(t, node.Properties["brain_TagIds"])

	link, err := DecodeLink(RawLink{Id: "l", ThoughtIdA: "n", ThoughtIdB: "tag", Meaning: MeaningTag, Relation: RelationJump, Direction: DirectionUnspecified}, nil)
	require.NoError(t, err)
	assert.Equal(t, "tag", link.FromID)
	assert.Equal(t, "n", link.ToID)
}
