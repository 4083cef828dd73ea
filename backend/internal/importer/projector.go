package importer

import (
	"brainport/backend/internal/brain"
)

// Projection is the outcome of folding supertype chains into labels
type Projection struct {
	// Labels maps type id to its sanitized composite label string
	Labels map[string]string
	// Unreachable lists types with no chain within the depth bound, sorted
	Unreachable []string
}

// Project picks the shortest chain per type and folds ancestor names from
// the root side down to the type. rootID itself contributes no name.
func Project(types map[string]*TypeRecord, chains [][]string, rootID string) Projection {
	shortest := map[string][]string{}
	for _, chain := range chains {
		if len(chain) == 0 || len(chain)-1 > MaxSupertypeDepth {
			continue
		}
		head := chain[0]
		if best, ok := shortest[head]; !ok || len(chain) < len(best) {
			shortest[head] = chain
		}
	}

	out := Projection{Labels: map[string]string{}}
	for _, id := range sortedKeys(types) {
		chain, ok := shortest[id]
		if !ok {
			out.Unreachable = append(out.Unreachable, id)
			continue
		}
		names := make([]string, 0, len(chain))
		for i := len(chain) - 1; i >= 0; i-- {
			if chain[i] == rootID {
				continue
			}
			names = append(names, nameOf(types, chain[i]))
		}
		out.Labels[id] = brain.JoinLabels(names)
	}
	return out
}

func nameOf(types map[string]*TypeRecord, id string) string {
	if rec, ok := types[id]; ok && rec.Name != "" {
		return rec.Name
	}
	return id
}
