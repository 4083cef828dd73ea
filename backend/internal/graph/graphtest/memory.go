// Package graphtest provides an in-memory graph.Store for tests.
package graphtest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"brainport/backend/internal/graph"
)

// Node is a stored thought
type Node struct {
	ID     string
	Labels map[string]bool
	Props  map[string]any
}

// HasLabels reports whether every label is present
func (n Node) HasLabels(labels ...string) bool {
	for _, l := range labels {
		if !n.Labels[l] {
			return false
		}
	}
	return true
}

// Edge is a stored relationship
type Edge struct {
	Type  string
	ID    string
	From  string
	To    string
	Props map[string]any
}

func (e Edge) key() string {
	return strings.Join([]string{e.Type, e.From, e.To, e.ID}, "\x1f")
}

// Call is one statement execution
type Call struct {
	Statement graph.Statement
	Params    map[string]any
}

// Store keeps committed state in maps. Each transaction stages its writes
// and applies them on Commit.
type Store struct {
	mu        sync.Mutex
	nodes     map[string]*Node
	edges     map[string]*Edge
	committed []Call
	attempted []Call
	commits   int
	rollbacks int

	// FailOn, when set, is consulted before each statement; a non-nil
	// error is returned from Run.
	FailOn func(stmt graph.Statement, params map[string]any) error
}

// New returns an empty store
func New() *Store {
	return &Store{
		nodes: map[string]*Node{},
		edges: map[string]*Edge{},
	}
}

// Begin starts a staged transaction
func (s *Store) Begin(ctx context.Context) (graph.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{store: s, nodes: map[string]*Node{}, edges: map[string]*Edge{}}, nil
}

// Close is a no-op
func (s *Store) Close(ctx context.Context) error {
	return nil
}

// SupertypeChains enumerates simple _SUPER paths from Type nodes up to rootID
func (s *Store) SupertypeChains(ctx context.Context, rootID string, maxDepth int) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	children := map[string][]string{}
	for _, e := range s.edges {
		if e.Type == graph.RelSuper {
			children[e.To] = append(children[e.To], e.From)
		}
	}

	var chains [][]string
	var walk func(path []string)
	walk = func(path []string) {
		head := path[len(path)-1]
		depth := len(path) - 1
		if depth > 0 {
			if n, ok := s.nodes[head]; ok && n.Labels["Type"] {
				chain := make([]string, len(path))
				for i, id := range path {
					chain[len(path)-1-i] = id
				}
				chains = append(chains, chain)
			}
		}
		if depth == maxDepth {
			return
		}
		for _, child := range children[head] {
			if contains(path, child) {
				continue
			}
			walk(append(append([]string{}, path...), child))
		}
	}
	walk([]string{rootID})

	sort.SliceStable(chains, func(i, j int) bool {
		if len(chains[i]) != len(chains[j]) {
			return len(chains[i]) < len(chains[j])
		}
		return strings.Join(chains[i], "/") < strings.Join(chains[j], "/")
	})
	return chains, nil
}

// Node returns a committed node
func (s *Store) Node(id string) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// NodeCount returns the number of committed nodes
func (s *Store) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// Edges returns committed relationships of the given type, sorted by id
func (s *Store) Edges(relType string) []Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Edge
	for _, e := range s.edges {
		if e.Type == relType {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key() < out[j].key() })
	return out
}

// Committed returns the statements of committed transactions in order
func (s *Store) Committed() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call{}, s.committed...)
}

// Attempted returns every statement run, committed or not
func (s *Store) Attempted() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call{}, s.attempted...)
}

// Commits returns the number of committed transactions
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Rollbacks returns the number of rolled back transactions
func (s *Store) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

var errTxDone = errors.New("graphtest: transaction already finished")

type tx struct {
	store *Store
	nodes map[string]*Node
	edges map[string]*Edge
	calls []Call
	done  bool
}

func (t *tx) Run(ctx context.Context, stmt graph.Statement, params map[string]any) (graph.Result, error) {
	if t.done {
		return graph.Result{}, errTxDone
	}
	if err := ctx.Err(); err != nil {
		return graph.Result{}, err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	call := Call{Statement: stmt, Params: params}
	s.attempted = append(s.attempted, call)
	if s.FailOn != nil {
		if err := s.FailOn(stmt, params); err != nil {
			return graph.Result{}, err
		}
	}
	t.calls = append(t.calls, call)

	switch stmt.Name {
	case graph.NameUpsertNode, graph.NameUpsertRoot:
		id, _ := params["id"].(string)
		return t.upsertNode(id, stmt.Labels, props(params)), nil
	case graph.NameLinkSuper:
		child, _ := params["child"].(string)
		parent, _ := params["parent"].(string)
		return t.upsertEdge(Edge{Type: graph.RelSuper, From: child, To: parent, Props: props(params)}), nil
	case graph.NameUpsertLink:
		from, _ := params["from"].(string)
		to, _ := params["to"].(string)
		id, _ := params["id"].(string)
		relType := ""
		if len(stmt.Labels) > 0 {
			relType = stmt.Labels[0]
		}
		return t.upsertEdge(Edge{Type: relType, ID: id, From: from, To: to, Props: props(params)}), nil
	}
	return graph.Result{}, nil
}

func (t *tx) lookupNode(id string) *Node {
	if n, ok := t.nodes[id]; ok {
		return n
	}
	if n, ok := t.store.nodes[id]; ok {
		staged := &Node{ID: n.ID, Labels: copyLabels(n.Labels), Props: copyProps(n.Props)}
		t.nodes[id] = staged
		return staged
	}
	return nil
}

func (t *tx) upsertNode(id string, labels []string, props map[string]any) graph.Result {
	var res graph.Result
	n := t.lookupNode(id)
	if n == nil {
		n = &Node{ID: id, Labels: map[string]bool{graph.LabelThought: true}, Props: map[string]any{"id": id}}
		t.nodes[id] = n
		res.NodesCreated = 1
		res.LabelsAdded = 1
	}
	for k, v := range props {
		n.Props[k] = v
		res.PropertiesSet++
	}
	for _, l := range labels {
		if l != "" && !n.Labels[l] {
			n.Labels[l] = true
			res.LabelsAdded++
		}
	}
	return res
}

func (t *tx) upsertEdge(e Edge) graph.Result {
	// MATCH on both ends: a missing endpoint writes nothing
	if t.lookupNode(e.From) == nil || t.lookupNode(e.To) == nil {
		return graph.Result{}
	}
	var res graph.Result
	key := e.key()
	existing, ok := t.edges[key]
	if !ok {
		if committed, found := t.store.edges[key]; found {
			existing = &Edge{Type: committed.Type, ID: committed.ID, From: committed.From, To: committed.To, Props: copyProps(committed.Props)}
			t.edges[key] = existing
			ok = true
		}
	}
	if !ok {
		existing = &Edge{Type: e.Type, ID: e.ID, From: e.From, To: e.To, Props: map[string]any{}}
		if e.ID != "" {
			existing.Props["id"] = e.ID
		}
		t.edges[key] = existing
		res.RelationshipsCreated = 1
	}
	for k, v := range e.Props {
		existing.Props[k] = v
		res.PropertiesSet++
	}
	return res
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range t.nodes {
		s.nodes[id] = n
	}
	for key, e := range t.edges {
		s.edges[key] = e
	}
	s.committed = append(s.committed, t.calls...)
	s.commits++
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true

	t.store.mu.Lock()
	t.store.rollbacks++
	t.store.mu.Unlock()
	return nil
}

func props(params map[string]any) map[string]any {
	p, _ := params["props"].(map[string]any)
	return p
}

func copyLabels(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
