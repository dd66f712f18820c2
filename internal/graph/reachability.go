package graph

import (
	"fmt"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// connectedComponentsRules is the fixed Datalog program for the transitive,
// symmetric closure BuildCommunities needs: given a similarity edge set, find
// the groups of mutually-reachable memories. Modeled on the teacher's
// ancestor-from-parent recursive-closure idiom.
const connectedComponentsRules = `
Decl edge(From.Type<n>, To.Type<n>).
Decl connected(From.Type<n>, To.Type<n>).
connected(X, Y) :- edge(X, Y).
connected(X, Y) :- edge(X, Z), connected(Z, Y).
`

// connectedComponents groups memory IDs into components under the
// reflexive-symmetric-transitive closure of the given similarity edges.
// IDs absent from edges appear in no group.
func connectedComponents(edges [][2]int64) ([][]int64, error) {
	if len(edges) == 0 {
		return nil, nil
	}

	unit, err := parse.Unit(strings.NewReader(connectedComponentsRules))
	if err != nil {
		return nil, fmt.Errorf("graph: parse reachability program: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: analyze reachability program: %w", err)
	}

	store := factstore.NewSimpleInMemoryStore()
	for _, e := range edges {
		store.Add(ast.NewAtom("edge", ast.Number(e[0]), ast.Number(e[1])))
		store.Add(ast.NewAtom("edge", ast.Number(e[1]), ast.Number(e[0])))
	}

	if _, err := engine.EvalProgramWithStats(programInfo, store); err != nil {
		return nil, fmt.Errorf("graph: evaluate reachability program: %w", err)
	}

	pairs, err := queryConnected(store)
	if err != nil {
		return nil, err
	}
	return groupPairs(pairs), nil
}

func queryConnected(store factstore.FactStore) ([][2]int64, error) {
	pred := ast.PredicateSym{Symbol: "connected", Arity: 2}
	query := ast.NewQuery(pred)

	var pairs [][2]int64
	err := store.GetFacts(query, func(atom ast.Atom) error {
		if len(atom.Args) != 2 {
			return nil
		}
		from, err := numberArg(atom.Args[0])
		if err != nil {
			return nil
		}
		to, err := numberArg(atom.Args[1])
		if err != nil {
			return nil
		}
		pairs = append(pairs, [2]int64{from, to})
		return nil
	})
	return pairs, err
}

func numberArg(term ast.BaseTerm) (int64, error) {
	c, ok := term.(ast.Constant)
	if !ok || c.Type != ast.NumberType {
		return 0, fmt.Errorf("graph: expected a number term, got %v", term)
	}
	return c.NumValue, nil
}

// groupPairs collapses a "connected" relation (already transitively closed
// by the engine) into disjoint membership groups via a union-find over the
// pairs themselves, since the engine hands back edges, not partitions.
func groupPairs(pairs [][2]int64) [][]int64 {
	parent := make(map[int64]int64)
	var find func(int64) int64
	find = func(x int64) int64 {
		if p, ok := parent[x]; ok && p != x {
			root := find(p)
			parent[x] = root
			return root
		}
		parent[x] = x
		return x
	}
	union := func(a, b int64) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for _, p := range pairs {
		find(p[0])
		find(p[1])
		union(p[0], p[1])
	}

	groups := make(map[int64][]int64)
	for id := range parent {
		root := find(id)
		groups[root] = append(groups[root], id)
	}

	out := make([][]int64, 0, len(groups))
	for _, members := range groups {
		out = append(out, members)
	}
	return out
}
