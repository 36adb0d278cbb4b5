package usecase

import (
	"fmt"
	"sort"

	"github.com/trebuchet-org/treb-plan/internal/domain"
)

// DependencyGraph is the directed graph of references between the steps of a plan
type DependencyGraph struct {
	plan  *domain.Plan
	nodes map[string]*domain.Step
	deps  map[string][]string // step -> steps it references
	edges map[string][]string // step -> steps that reference it
}

// NewDependencyGraph builds the reference graph of a plan.
// It fails with MalformedPlanError when a reference names no step.
func NewDependencyGraph(plan *domain.Plan) (*DependencyGraph, error) {
	g := &DependencyGraph{
		plan:  plan,
		nodes: make(map[string]*domain.Step, len(plan.Steps)),
		deps:  make(map[string][]string, len(plan.Steps)),
		edges: make(map[string][]string, len(plan.Steps)),
	}

	for _, step := range plan.Steps {
		if _, exists := g.nodes[step.ID]; exists {
			return nil, &domain.MalformedPlanError{Plan: plan.Name, StepID: step.ID, Reason: fmt.Sprintf("duplicate step id %q", step.ID)}
		}
		g.nodes[step.ID] = step
	}

	for _, step := range plan.Steps {
		for _, ref := range step.References() {
			if _, exists := g.nodes[ref]; !exists {
				return nil, &domain.MalformedPlanError{Plan: plan.Name, StepID: step.ID, Reason: fmt.Sprintf("references unknown step %q", ref)}
			}
			g.deps[step.ID] = append(g.deps[step.ID], ref)
			g.edges[ref] = append(g.edges[ref], step.ID)
		}
	}

	return g, nil
}

// ResolveOrder returns the steps of a plan in execution order
func ResolveOrder(plan *domain.Plan) ([]*domain.Step, error) {
	g, err := NewDependencyGraph(plan)
	if err != nil {
		return nil, err
	}
	return g.TopologicalSort()
}

// TopologicalSort orders the steps so every step follows the steps it references.
// Among steps that are ready at the same time the one declared first goes first,
// so a plan that is already ordered keeps its declaration order.
func (g *DependencyGraph) TopologicalSort() ([]*domain.Step, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = len(g.deps[id])
	}

	var ready []*domain.Step
	for _, step := range g.plan.Steps {
		if inDegree[step.ID] == 0 {
			ready = append(ready, step)
		}
	}

	result := make([]*domain.Step, 0, len(g.nodes))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		result = append(result, current)

		for _, dependent := range g.edges[current.ID] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, g.nodes[dependent])
				sort.SliceStable(ready, func(i, j int) bool {
					return ready[i].Index < ready[j].Index
				})
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, &domain.CyclicReferenceError{Cycle: g.findCycle(inDegree)}
	}

	return result, nil
}

// findCycle walks references among the unsorted steps until one repeats.
// Every unsorted step still references another unsorted step, so the walk
// always closes a cycle.
func (g *DependencyGraph) findCycle(inDegree map[string]int) []string {
	remaining := func(id string) bool { return inDegree[id] > 0 }

	var start string
	for _, step := range g.plan.Steps {
		if remaining(step.ID) {
			start = step.ID
			break
		}
	}

	visiting := make(map[string]int)
	var path []string
	current := start
	for {
		if pos, seen := visiting[current]; seen {
			return path[pos:]
		}
		visiting[current] = len(path)
		path = append(path, current)

		next := ""
		for _, dep := range g.deps[current] {
			if remaining(dep) {
				next = dep
				break
			}
		}
		if next == "" {
			return path
		}
		current = next
	}
}

// Partition splits an ordered list of steps into independent subgraphs: steps in
// different groups never reference each other, directly or transitively. Groups
// keep the relative order of the input and are ordered by their first step.
func (g *DependencyGraph) Partition(order []*domain.Step) [][]*domain.Step {
	parent := make(map[string]string, len(order))
	var find func(id string) string
	find = func(id string) string {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}

	for _, step := range order {
		parent[step.ID] = step.ID
	}
	for _, step := range order {
		for _, dep := range g.deps[step.ID] {
			if _, ok := parent[dep]; !ok {
				continue
			}
			a, b := find(step.ID), find(dep)
			if a != b {
				parent[a] = b
			}
		}
	}

	groupIndex := make(map[string]int)
	var groups [][]*domain.Step
	for _, step := range order {
		root := find(step.ID)
		idx, ok := groupIndex[root]
		if !ok {
			idx = len(groups)
			groupIndex[root] = idx
			groups = append(groups, nil)
		}
		groups[idx] = append(groups[idx], step)
	}
	return groups
}
