package brain

import (
	"time"

	apperrors "brainport/backend/pkg/errors"
)

// Field names a known column of the export records
type Field string

const (
	FieldId                   Field = "Id"
	FieldKind                 Field = "Kind"
	FieldName                 Field = "Name"
	FieldLabel                Field = "Label"
	FieldTypeId               Field = "TypeId"
	FieldACType               Field = "ACType"
	FieldForegroundColor      Field = "ForegroundColor"
	FieldBackgroundColor      Field = "BackgroundColor"
	FieldTagIds               Field = "TagIds"
	FieldBrainId              Field = "BrainId"
	FieldCreationDateTime     Field = "CreationDateTime"
	FieldModificationDateTime Field = "ModificationDateTime"
	FieldThoughtIdA           Field = "ThoughtIdA"
	FieldThoughtIdB           Field = "ThoughtIdB"
	FieldMeaning              Field = "Meaning"
	FieldRelation             Field = "Relation"
	FieldDirection            Field = "Direction"
	FieldColor                Field = "Color"
	FieldThickness            Field = "Thickness"
)

// PropertyPrefix namespaces copied export fields
const PropertyPrefix = "brain_"

// omitted fields are mapped explicitly or carried on the intent itself
var omitted = map[Field]bool{
	FieldName:                 true,
	FieldLabel:                true,
	FieldCreationDateTime:     true,
	FieldModificationDateTime: true,
	FieldThoughtIdA:           true,
	FieldThoughtIdB:           true,
	FieldId:                   true,
}

type fieldValue struct {
	field Field
	value any
}

// Property returns the namespaced property key for f
func (f Field) Property() string {
	return PropertyPrefix + string(f)
}

var nodeBuckets = map[Kind]string{
	KindNode:    BucketNode,
	KindType:    BucketType,
	KindTag:     BucketTag,
	KindSpecial: BucketSpecial,
}

// BucketForKind maps a thought kind to its structural bucket
func BucketForKind(id string, kind Kind) (string, error) {
	bucket, ok := nodeBuckets[kind]
	if !ok {
		return "", apperrors.NewUnknownKind(id, int(kind))
	}
	return bucket, nil
}

// DecodeNode turns one thought into a write intent
func DecodeNode(raw RawNode) (WriteIntent, error) {
	if raw.Id == "" {
		return WriteIntent{}, apperrors.NewDecodeValidation(raw.Id, string(FieldId), "is empty", nil)
	}
	bucket, err := BucketForKind(raw.Id, raw.Kind)
	if err != nil {
		return WriteIntent{}, err
	}
	// Tag membership lives on links only
	if len(raw.TagIds) > 0 {
		return WriteIntent{}, apperrors.NewDecodeValidation(raw.Id, string(FieldTagIds), "must be empty", nil)
	}

	props, err := baseProperties(raw.Id, raw.Name, raw.Label, raw.CreationDateTime, raw.ModificationDateTime)
	if err != nil {
		return WriteIntent{}, err
	}
	copyFields(props, nodeFields(raw))

	return WriteIntent{
		ID:         raw.Id,
		Bucket:     bucket,
		Kind:       raw.Kind,
		Properties: props,
	}, nil
}

// DecodeLinkType turns a PROTO link into a link-type node intent
func DecodeLinkType(raw RawLink) (WriteIntent, error) {
	if raw.Id == "" {
		return WriteIntent{}, apperrors.NewDecodeValidation(raw.Id, string(FieldId), "is empty", nil)
	}
	if raw.Meaning != MeaningProto {
		return WriteIntent{}, apperrors.NewDecodeValidation(raw.Id, string(FieldMeaning), "is not a prototype link", nil)
	}
	props, err := baseProperties(raw.Id, deref(raw.Name), nil, raw.CreationDateTime, raw.ModificationDateTime)
	if err != nil {
		return WriteIntent{}, err
	}
	copyFields(props, linkFields(raw))

	return WriteIntent{
		ID:         raw.Id,
		Bucket:     BucketLinkType,
		Meaning:    raw.Meaning,
		Properties: props,
	}, nil
}

// DecodeLink turns one link into a relationship intent with canonical
// orientation and a resolved label.
func DecodeLink(raw RawLink, linkTypes LinkTypeNames) (WriteIntent, error) {
	if raw.Id == "" {
		return WriteIntent{}, apperrors.NewDecodeValidation(raw.Id, string(FieldId), "is empty", nil)
	}
	desc, err := Describe(raw.Meaning)
	if err != nil {
		return WriteIntent{}, err
	}
	if raw.ThoughtIdA == "" {
		return WriteIntent{}, apperrors.NewDecodeValidation(raw.Id, string(FieldThoughtIdA), "is empty", nil)
	}
	if raw.ThoughtIdB == "" {
		return WriteIntent{}, apperrors.NewDecodeValidation(raw.Id, string(FieldThoughtIdB), "is empty", nil)
	}

	label, err := LinkLabel(raw, linkTypes)
	if err != nil {
		return WriteIntent{}, err
	}

	props, err := baseProperties(raw.Id, deref(raw.Name), nil, raw.CreationDateTime, raw.ModificationDateTime)
	if err != nil {
		return WriteIntent{}, err
	}
	copyFields(props, linkFields(raw))

	hierarchy := raw.Relation == RelationHierarchy && raw.Meaning == MeaningNormal
	reversed := raw.Direction.Has(DirectionReversed) || desc.Reverse
	props["hierarchy"] = hierarchy
	props["reversed"] = reversed
	props["shown"] = raw.Direction.Has(DirectionDirectional)
	props["one_way"] = raw.Direction.Has(DirectionOneWay)
	props["specified"] = raw.Direction.Has(DirectionSpecified)

	direction := raw.Direction
	if direction < 0 && desc.DefaultDirection != 0 {
		direction = desc.DefaultDirection
	}
	props["direction"] = int64(direction)

	from, to := raw.ThoughtIdA, raw.ThoughtIdB
	// Hierarchical normal links already run parent to child
	if reversed && !(raw.Meaning == MeaningNormal && hierarchy) {
		from, to = to, from
	}

	return WriteIntent{
		ID:         raw.Id,
		Bucket:     label,
		Meaning:    raw.Meaning,
		Properties: props,
		FromID:     from,
		ToID:       to,
	}, nil
}

// LinkLabel resolves the relationship label of a link: the meaning's fixed
// label, else its link type's name, else DefaultLinkLabel.
func LinkLabel(raw RawLink, linkTypes LinkTypeNames) (string, error) {
	if label, ok := Label(raw.Meaning); ok {
		return label, nil
	}
	if _, err := Describe(raw.Meaning); err != nil {
		return "", err
	}
	typeID := raw.TypeID()
	if typeID == "" {
		return DefaultLinkLabel, nil
	}
	if linkTypes == nil {
		return "", apperrors.NewMissingTypeDefinition(raw.Id, typeID)
	}
	name, ok := linkTypes.LinkTypeName(typeID)
	if !ok {
		return "", apperrors.NewMissingTypeDefinition(raw.Id, typeID)
	}
	return SanitizeRelationshipType(name), nil
}

func baseProperties(id, name string, label *string, created, modified string) (map[string]any, error) {
	props := map[string]any{
		"id":    id,
		"name":  name,
		"label": name,
	}
	if l := deref(label); l != "" {
		props["label"] = l
	}
	if created != "" {
		ts, err := ParseTimestamp(created)
		if err != nil {
			return nil, apperrors.NewDecodeValidation(id, string(FieldCreationDateTime), "is not a timestamp", err)
		}
		props["created_at"] = ts
	}
	if modified != "" {
		ts, err := ParseTimestamp(modified)
		if err != nil {
			return nil, apperrors.NewDecodeValidation(id, string(FieldModificationDateTime), "is not a timestamp", err)
		}
		props["modified_at"] = ts
	}
	return props, nil
}

func nodeFields(raw RawNode) []fieldValue {
	fields := []fieldValue{
		{FieldKind, int64(raw.Kind)},
		{FieldACType, int64(raw.ACType)},
		{FieldTagIds, append([]string{}, raw.TagIds...)},
	}
	if raw.BrainId != "" {
		fields = append(fields, fieldValue{FieldBrainId, raw.BrainId})
	}
	if raw.TypeId != nil {
		fields = append(fields, fieldValue{FieldTypeId, *raw.TypeId})
	}
	if raw.ForegroundColor != nil {
		fields = append(fields, fieldValue{FieldForegroundColor, *raw.ForegroundColor})
	}
	if raw.BackgroundColor != nil {
		fields = append(fields, fieldValue{FieldBackgroundColor, *raw.BackgroundColor})
	}
	return fields
}

func linkFields(raw RawLink) []fieldValue {
	fields := []fieldValue{
		{FieldKind, int64(raw.Kind)},
		{FieldMeaning, int64(raw.Meaning)},
		{FieldRelation, int64(raw.Relation)},
		{FieldDirection, int64(raw.Direction)},
		{FieldThickness, int64(raw.Thickness)},
	}
	if raw.Color != nil {
		fields = append(fields, fieldValue{FieldColor, *raw.Color})
	}
	if raw.TypeId != nil {
		fields = append(fields, fieldValue{FieldTypeId, *raw.TypeId})
	}
	if raw.BrainId != nil {
		fields = append(fields, fieldValue{FieldBrainId, *raw.BrainId})
	}
	return fields
}

func copyFields(props map[string]any, fields []fieldValue) {
	for _, fv := range fields {
		if omitted[fv.field] {
			continue
		}
		props[fv.field.Property()] = fv.value
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp reads an export timestamp. Values without a zone are UTC.
func ParseTimestamp(value string) (time.Time, error) {
	var firstErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, value)
		if err == nil {
			return ts.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
