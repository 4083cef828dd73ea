package graph

import (
	"fmt"
	"strings"
)

// Statement is one entry of the fixed statement set. Labels carries the
// node labels (bucket first) or the relationship type the text writes.
type Statement struct {
	Name   string
	Text   string
	Labels []string
}

// Statement names
const (
	NameSchema          = "schema"
	NameUpsertNode      = "upsert_node"
	NameUpsertRoot      = "upsert_root"
	NameLinkSuper       = "link_super"
	NameUpsertLink      = "upsert_link"
	NameSupertypeChains = "supertype_chains"
)

// Labels shared by every imported thought and by the synthetic roots
const (
	LabelThought = "Thought"
	LabelRoot    = "Root"
	RelSuper     = "_SUPER"
)

// SchemaStatements are idempotent and may run in any order
var SchemaStatements = []Statement{
	schema("CREATE CONSTRAINT thought_id_unique IF NOT EXISTS FOR (t:Thought) REQUIRE t.id IS UNIQUE"),
	schema("CREATE INDEX thought_name IF NOT EXISTS FOR (t:Thought) ON (t.name)"),
	schema("CREATE INDEX thought_brain_id IF NOT EXISTS FOR (t:Thought) ON (t.brain_BrainId)"),
	schema("CREATE INDEX node_type_id IF NOT EXISTS FOR (n:Node) ON (n.brain_TypeId)"),
	schema("CREATE INDEX type_name IF NOT EXISTS FOR (t:Type) ON (t.name)"),
	schema("CREATE INDEX link_type_name IF NOT EXISTS FOR (l:LinkType) ON (l.name)"),
}

func schema(text string) Statement {
	return Statement{Name: NameSchema, Text: text}
}

// UpsertNode merges a thought by id and adds labels. labels[0] is the bucket.
func UpsertNode(labels ...string) Statement {
	text := "MERGE (n:Thought {id: $id}) SET n += $props"
	if clause := labelClause(labels); clause != "" {
		text += " SET n" + clause
	}
	return Statement{
		Name:   NameUpsertNode,
		Text:   text,
		Labels: labels,
	}
}

// UpsertRoot merges a synthetic category root
var UpsertRoot = Statement{
	Name:   NameUpsertRoot,
	Text:   "MERGE (n:Thought {id: $id}) SET n += $props SET n:Root",
	Labels: []string{LabelRoot},
}

// LinkSuper points a child at its supertype; both ends must exist
var LinkSuper = Statement{
	Name: NameLinkSuper,
	Text: `MATCH (child:Thought {id: $child})
MATCH (parent:Thought {id: $parent})
MERGE (child)-[r:_SUPER]->(parent)
SET r += $props`,
	Labels: []string{RelSuper},
}

// UpsertLink merges a relationship of type relType keyed by link id
func UpsertLink(relType string) Statement {
	return Statement{
		Name: NameUpsertLink,
		Text: fmt.Sprintf(`MATCH (a:Thought {id: $from})
MATCH (b:Thought {id: $to})
MERGE (a)-[r:%s {id: $id}]->(b)
SET r += $props`, quote(relType)),
		Labels: []string{relType},
	}
}

// SupertypeChains reads type chains up to maxDepth hops. Cypher needs the
// bound as a literal.
func SupertypeChains(maxDepth int) Statement {
	return Statement{
		Name: NameSupertypeChains,
		Text: fmt.Sprintf(`MATCH p = (t:Type)-[:_SUPER*1..%d]->(root:Thought {id: $root})
RETURN [n IN nodes(p) | n.id] AS chain
ORDER BY length(p) ASC`, maxDepth),
	}
}

func labelClause(labels []string) string {
	var b strings.Builder
	for _, l := range labels {
		if l == "" {
			continue
		}
		b.WriteString(":")
		b.WriteString(quote(l))
	}
	return b.String()
}

// quote backticks an identifier; sanitized labels never contain backticks
func quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "") + "`"
}
