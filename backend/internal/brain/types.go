package brain

// ============================================================================
// Export Record Types
// ============================================================================

// Kind discriminates thoughts in the export
type Kind int

const (
	KindNode    Kind = 1
	KindType    Kind = 2
	KindTag     Kind = 4
	KindSpecial Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "NODE"
	case KindType:
		return "TYPE"
	case KindTag:
		return "TAG"
	case KindSpecial:
		return "SPECIAL"
	}
	return "UNKNOWN"
}

// Meaning is the role of a link
type Meaning int

const (
	MeaningProto   Meaning = 0
	MeaningNormal  Meaning = 1
	MeaningMember  Meaning = 2
	MeaningSubtype Meaning = 3
	MeaningTag     Meaning = 5
	MeaningPin     Meaning = 6
)

// Relation is the coarse structural category of a link
type Relation int

const (
	RelationProto     Relation = 0
	RelationHierarchy Relation = 1
	RelationJump      Relation = 3
)

// Direction is a bitmask describing how a link arrow is rendered.
// DirectionUnspecified means the direction derives from the Meaning.
type Direction int

const (
	DirectionDirectional Direction = 1
	DirectionReversed    Direction = 2
	DirectionOneWay      Direction = 4
	DirectionSpecified   Direction = 8

	DirectionUnspecified Direction = -1
)

// Has reports whether flag is set. Negative values carry no flags.
func (d Direction) Has(flag Direction) bool {
	return d > 0 && d&flag != 0
}

// RawNode is one line of the thoughts export
type RawNode struct {
	Id                   string   `json:"Id"`
	Kind                 Kind     `json:"Kind"`
	Name                 string   `json:"Name"`
	Label                *string  `json:"Label,omitempty"`
	TypeId               *string  `json:"TypeId,omitempty"`
	ACType               int      `json:"ACType"`
	ForegroundColor      *string  `json:"ForegroundColor,omitempty"`
	BackgroundColor      *string  `json:"BackgroundColor,omitempty"`
	TagIds               []string `json:"TagIds"`
	BrainId              string   `json:"BrainId"`
	CreationDateTime     string   `json:"CreationDateTime"`
	ModificationDateTime string   `json:"ModificationDateTime"`
}

// TypeID returns the referenced type id, or "" when absent
func (n RawNode) TypeID() string {
	return deref(n.TypeId)
}

// RawLink is one line of the links export
type RawLink struct {
	Id                   string    `json:"Id"`
	ThoughtIdA           string    `json:"ThoughtIdA"`
	ThoughtIdB           string    `json:"ThoughtIdB"`
	Kind                 int       `json:"Kind"`
	Meaning              Meaning   `json:"Meaning"`
	Relation             Relation  `json:"Relation"`
	Direction            Direction `json:"Direction"`
	Name                 *string   `json:"Name,omitempty"`
	Color                *int64    `json:"Color,omitempty"`
	Thickness            int       `json:"Thickness"`
	TypeId               *string   `json:"TypeId,omitempty"`
	BrainId              *string   `json:"BrainId,omitempty"`
	CreationDateTime     string    `json:"CreationDateTime"`
	ModificationDateTime string    `json:"ModificationDateTime"`
}

// TypeID returns the referenced link type id, or "" when absent
func (l RawLink) TypeID() string {
	return deref(l.TypeId)
}

// ============================================================================
// Write Intents
// ============================================================================

// Node buckets
const (
	BucketNode     = "Node"
	BucketType     = "Type"
	BucketTag      = "Tag"
	BucketSpecial  = "Special"
	BucketLinkType = "LinkType"
)

// DefaultLinkLabel is used when neither the meaning nor a link type names a link
const DefaultLinkLabel = "Link"

// WriteIntent is the store-agnostic description of one upsert
type WriteIntent struct {
	ID         string
	Bucket     string
	Kind       Kind
	Meaning    Meaning
	Properties map[string]any
	FromID     string
	ToID       string
}

// IsEdge reports whether the intent describes a relationship
func (w WriteIntent) IsEdge() bool {
	return w.FromID != "" || w.ToID != ""
}

// LinkTypeNames resolves the Name of a prototype link by id
type LinkTypeNames interface {
	LinkTypeName(id string) (name string, ok bool)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
