package importer

import (
	"slices"
	"sort"

	"brainport/backend/internal/brain"
	"brainport/backend/internal/graph"
)

// Synthetic category roots. Every type, tag, special and link type without a
// declared supertype hangs off one of these.
const (
	RootType     = "_ROOT_TYPE"
	RootTag      = "_ROOT_TAG"
	RootSpecial  = "_ROOT_SPECIAL"
	RootLinkType = "_ROOT_LINKTYPE"
)

// MaxSupertypeDepth bounds the chain query used for label projection
const MaxSupertypeDepth = 10

// TypeRecord accumulates what the pipeline learns about one type
type TypeRecord struct {
	Name   string
	TypeID string
	// HasSuper is set once a SUBTYPE link names a parent for this type
	HasSuper bool
	Labels   string
}

// ThoughtRecord is a tag or special seen during NodeMetadata
type ThoughtRecord struct {
	Name   string
	TypeID string
}

// LinkTypeRecord accumulates what the pipeline learns about one prototype link
type LinkTypeRecord struct {
	Name      string
	TypeID    string
	LinkLabel string
}

// ImportContext holds the side tables of one import run. Stages run one at a
// time and only chain sinks mutate it, so it carries no lock.
type ImportContext struct {
	Types     map[string]*TypeRecord
	LinkTypes map[string]*LinkTypeRecord
	Tags      map[string]*ThoughtRecord
	Specials  map[string]*ThoughtRecord

	statements map[string]graph.Statement
}

// NewImportContext returns empty tables with the link-type root seeded
func NewImportContext() *ImportContext {
	return &ImportContext{
		Types: map[string]*TypeRecord{},
		LinkTypes: map[string]*LinkTypeRecord{
			RootLinkType: {Name: brain.DefaultLinkLabel, LinkLabel: brain.DefaultLinkLabel},
		},
		Tags:       map[string]*ThoughtRecord{},
		Specials:   map[string]*ThoughtRecord{},
		statements: map[string]graph.Statement{},
	}
}

// LinkTypeName implements brain.LinkTypeNames. Once LabelLoading has run
// it returns the cached LinkLabel.
func (c *ImportContext) LinkTypeName(id string) (string, bool) {
	rec, ok := c.LinkTypes[id]
	if !ok {
		return "", false
	}
	if rec.LinkLabel != "" {
		return rec.LinkLabel, true
	}
	return rec.Name, true
}

// Known reports whether id is a type, tag or special seen so far
func (c *ImportContext) Known(id string) bool {
	if _, ok := c.Types[id]; ok {
		return true
	}
	if _, ok := c.Tags[id]; ok {
		return true
	}
	_, ok := c.Specials[id]
	return ok
}

// NodeLabels returns the labels a plain node of typeID is written with,
// bucket first.
func (c *ImportContext) NodeLabels(recordID, typeID string) ([]string, error) {
	labels := []string{brain.BucketNode}
	if typeID == "" {
		return labels, nil
	}
	rec, ok := c.Types[typeID]
	if !ok {
		return nil, missingType(recordID, typeID)
	}
	for _, l := range brain.SplitLabels(rec.Labels) {
		if !slices.Contains(labels, l) {
			labels = append(labels, l)
		}
	}
	return labels, nil
}

// Statement memoizes statements by key for the life of the run
func (c *ImportContext) Statement(key string, build func() graph.Statement) graph.Statement {
	if stmt, ok := c.statements[key]; ok {
		return stmt
	}
	stmt := build()
	c.statements[key] = stmt
	return stmt
}

// Release drops the statement cache
func (c *ImportContext) Release() {
	c.statements = map[string]graph.Statement{}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
