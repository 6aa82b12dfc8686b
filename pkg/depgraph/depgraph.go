// SPDX-License-Identifier: Apache-2.0

// Package depgraph orders declarative tables for creation, following their
// foreign-key edges.
package depgraph

import (
	"sort"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwerrors"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwschema"
)

// Order returns tables in creation order: an edge runs from T to U when T
// references U, and U must be created first. Tables with no outgoing edges
// come first; ties are broken by name for determinism. A cycle in the
// foreign-key graph fails with CyclicSchema.
func Order(tables []gwschema.Table) ([]gwschema.Table, error) {
	byName := make(map[string]gwschema.Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	// inDegree[T] counts edges T -> U still unresolved, i.e. how many
	// not-yet-placed tables T references.
	inDegree := make(map[string]int, len(tables))
	dependents := make(map[string][]string, len(tables))
	for name := range byName {
		inDegree[name] = 0
	}
	for _, t := range tables {
		for ref := range t.FKRefs {
			if _, ok := byName[ref]; !ok {
				continue // reference to a table outside this bundle: not our cycle to detect
			}
			inDegree[t.Name]++
			dependents[ref] = append(dependents[ref], t.Name)
		}
	}

	var ready []string
	for name, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var ordered []string
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, next)

		var newlyReady []string
		for _, dep := range dependents[next] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				newlyReady = append(newlyReady, dep)
			}
		}
		sort.Strings(newlyReady)
		ready = append(ready, newlyReady...)
	}

	if len(ordered) != len(tables) {
		return nil, gwerrors.CyclicSchema{Cycle: remaining(inDegree)}
	}

	out := make([]gwschema.Table, 0, len(ordered))
	for _, name := range ordered {
		out = append(out, byName[name])
	}
	return out, nil
}

func remaining(inDegree map[string]int) []string {
	var names []string
	for name, deg := range inDegree {
		if deg > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
