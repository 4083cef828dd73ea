package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainport/backend/internal/graph"
)

func TestProject_FoldsRootToLeaf(t *testing.T) {
	types := map[string]*TypeRecord{
		"root": {Name: "Root"},
		"mid":  {Name: "Mid", TypeID: "root"},
		"leaf": {Name: "Leaf", TypeID: "mid"},
	}
	chains := [][]string{
		{"root", RootType},
		{"mid", "root", RootType},
		{"leaf", "mid", "root", RootType},
	}

	p := Project(types, chains, RootType)
	assert.Equal(t, "Root", p.Labels["root"])
	assert.Equal(t, "Root:Mid", p.Labels["mid"])
	assert.Equal(t, "Root:Mid:Leaf", p.Labels["leaf"])
	assert.Empty(t, p.Unreachable)
}

func TestProject_ShortestChainWins(t *testing.T) {
	types := map[string]*TypeRecord{
		"a": {Name: "A"},
		"b": {Name: "B"},
		"c": {Name: "C"},
	}
	chains := [][]string{
		{"c", "b", "a", RootType},
		{"c", "a", RootType},
	}

	p := Project(types, chains, RootType)
	assert.Equal(t, "A:C", p.Labels["c"])
}

func TestProject_Sanitizes(t *testing.T) {
	types := map[string]*TypeRecord{
		"x": {Name: "Machine Learning"},
		"y": {Name: "C++ / Rust"},
	}
	chains := [][]string{
		{"x", RootType},
		{"y", "x", RootType},
	}

	p := Project(types, chains, RootType)
	assert.Equal(t, "Machine_Learning:C_____Rust", p.Labels["y"])
}

func TestProject_UnreachableAndDepthBound(t *testing.T) {
	types := map[string]*TypeRecord{}
	var chain []string
	for i := 0; i <= MaxSupertypeDepth; i++ {
		id := string(rune('a' + i))
		types[id] = &TypeRecord{Name: id}
	}
	// a chain of MaxSupertypeDepth+1 hops is beyond the bound
	for i := MaxSupertypeDepth; i >= 0; i-- {
		chain = append(chain, string(rune('a'+i)))
	}
	chain = append(chain, RootType)
	types["orphan"] = &TypeRecord{Name: "Orphan"}

	p := Project(types, [][]string{chain, {"a", RootType}}, RootType)
	require.Contains(t, p.Labels, "a")
	assert.NotContains(t, p.Labels, "k")
	assert.Contains(t, p.Unreachable, "k")
	assert.Contains(t, p.Unreachable, "orphan")
}

func TestImportContext_LinkTypeNames(t *testing.T) {
	ictx := NewImportContext()
	name, ok := ictx.LinkTypeName(RootLinkType)
	require.True(t, ok)
	assert.Equal(t, "Link", name)

	_, ok = ictx.LinkTypeName("missing")
	assert.False(t, ok)
}

func TestImportContext_LinkTypeNameUsesCachedLabel(t *testing.T) {
	ictx := NewImportContext()
	ictx.LinkTypes["lt1"] = &LinkTypeRecord{Name: "relates to"}

	name, ok := ictx.LinkTypeName("lt1")
	require.True(t, ok)
	assert.Equal(t, "relates to", name)

	ictx.LinkTypes["lt1"].LinkLabel = "relates_to"
	name, ok = ictx.LinkTypeName("lt1")
	require.True(t, ok)
	assert.Equal(t, "relates_to", name)
}

func TestImportContext_StatementCache(t *testing.T) {
	ictx := NewImportContext()
	builds := 0
	build := func() graph.Statement {
		builds++
		return graph.UpsertNode("Node", "A")
	}

	first := ictx.Statement("node:a", build)
	second := ictx.Statement("node:a", build)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, builds)

	ictx.Release()
	ictx.Statement("node:a", build)
	assert.Equal(t, 2, builds)
}

func TestImportContext_NodeLabels(t *testing.T) {
	ictx := NewImportContext()
	ictx.Types["t1"] = &TypeRecord{Name: "Intelligence", Labels: "Node:Intelligence"}

	labels, err := ictx.NodeLabels("n1", "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Node", "Intelligence"}, labels)

	labels, err = ictx.NodeLabels("n2", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Node"}, labels)

	_, err = ictx.NodeLabels("n3", "ghost")
	assert.Error(t, err)
}
