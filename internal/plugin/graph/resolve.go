// Package graph orders extension records so that every dependency precedes
// its dependents.
package graph

import (
	"slices"

	"github.com/dshills/quiver/internal/plugin"
)

type color uint8

const (
	white color = iota // unvisited
	gray               // in progress
	black              // done
)

// frame is one entry of the explicit traversal stack.
type frame struct {
	name string
	deps []string
	next int
}

// Resolve returns a topological order of the record names.
//
// Names are visited in sorted order and dependencies in sorted order, so the
// result depends only on the set of records, not on their input order.
// A dependency that names no record fails with *MissingError; a back edge
// fails with *CycleError naming the node reached twice.
func Resolve(records []plugin.Record) ([]string, error) {
	deps := make(map[string][]string, len(records))
	for i := range records {
		d := slices.Clone(records[i].Depends)
		slices.Sort(d)
		deps[records[i].Name] = slices.Compact(d)
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	slices.Sort(names)

	colors := make(map[string]color, len(names))
	order := make([]string, 0, len(names))
	var stack []frame

	for _, root := range names {
		if colors[root] != white {
			continue
		}
		colors[root] = gray
		stack = append(stack[:0], frame{name: root, deps: deps[root]})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next == len(top.deps) {
				colors[top.name] = black
				order = append(order, top.name)
				stack = stack[:len(stack)-1]
				continue
			}

			dep := top.deps[top.next]
			top.next++

			depDeps, ok := deps[dep]
			if !ok {
				return nil, &MissingError{Name: dep, RequiredBy: top.name}
			}
			switch colors[dep] {
			case gray:
				return nil, &CycleError{Node: dep}
			case white:
				colors[dep] = gray
				stack = append(stack, frame{name: dep, deps: depDeps})
			}
		}
	}
	return order, nil
}

// Dependents returns the reverse edges of the graph: for every name, the
// sorted names of the records that depend on it directly.
func Dependents(records []plugin.Record) map[string][]string {
	out := make(map[string][]string, len(records))
	for i := range records {
		for _, dep := range records[i].Depends {
			if !slices.Contains(out[dep], records[i].Name) {
				out[dep] = append(out[dep], records[i].Name)
			}
		}
	}
	for _, names := range out {
		slices.Sort(names)
	}
	return out
}
