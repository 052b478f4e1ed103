// Package graph is the Task Graph Engine: it builds a DAG from a
// mission's tasks, detects cycles, computes readiness, and orders tasks
// for execution. Grounded on the teacher's internal/tasks/queue.go
// (ID-indexed, mutex-free here since the caller — internal/statestore —
// already serializes mutation) generalized from a flat priority queue to
// a dependency graph.
package graph

import (
	"fmt"
	"sort"

	"github.com/missioncontrol/missioncontrol/internal/domain"
)

// color marks a node's state during the three-color DFS cycle check.
type color int

const (
	white color = iota // unvisited
	gray               // on the current DFS stack
	black              // fully processed
)

// Graph is a read-only view of one mission's task dependency structure,
// built fresh from a task slice whenever the caller needs one (it holds
// no lock and must not outlive the slice it was built from).
type Graph struct {
	tasks map[string]*domain.Task
	order []string // insertion order, for deterministic iteration
}

// Build constructs a Graph from tasks, validating that every dep
// resolves within the set and that there is no cycle.
func Build(tasks []*domain.Task) (*Graph, error) {
	g := &Graph{tasks: make(map[string]*domain.Task, len(tasks))}
	for _, t := range tasks {
		g.tasks[t.ID] = t
		g.order = append(g.order, t.ID)
	}
	for _, t := range tasks {
		for _, dep := range t.Deps {
			if _, ok := g.tasks[dep]; !ok {
				return nil, fmt.Errorf("task %s depends on %s, which is not in the graph", t.ID, dep)
			}
		}
	}
	if cyc := g.findCycle(); cyc != nil {
		return nil, fmt.Errorf("dependency cycle detected: %v", cyc)
	}
	if err := g.checkTaskTypeInvariants(); err != nil {
		return nil, err
	}
	return g, nil
}

// findCycle runs a three-color DFS over every task, returning the first
// cycle found as a slice of task IDs, or nil if the graph is acyclic.
func (g *Graph) findCycle() []string {
	colors := make(map[string]color, len(g.tasks))
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = gray
		path = append(path, id)

		for _, dep := range g.tasks[id].Deps {
			switch colors[dep] {
			case white:
				if visit(dep) {
					return true
				}
			case gray:
				cycle = append(append([]string{}, path...), dep)
				return true
			case black:
				// already fully explored, no cycle through here
			}
		}

		path = path[:len(path)-1]
		colors[id] = black
		return false
	}

	for _, id := range g.order {
		if colors[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// checkTaskTypeInvariants enforces spec.md §3's Task invariant: a
// verification task has no dependents, and finalization tasks are
// terminal (nothing depends on a non-finalization task that comes after
// a finalization task — in practice: no task may depend on a
// finalization task unless it is itself finalization).
func (g *Graph) checkTaskTypeInvariants() error {
	dependents := make(map[string][]string)
	for _, t := range g.tasks {
		for _, dep := range t.Deps {
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	for id, t := range g.tasks {
		switch t.TaskType {
		case domain.TaskVerification:
			if len(dependents[id]) > 0 {
				return fmt.Errorf("verification task %s has dependents, which is not allowed", id)
			}
		case domain.TaskFinalization:
			for _, depID := range dependents[id] {
				if g.tasks[depID].TaskType != domain.TaskFinalization {
					return fmt.Errorf("finalization task %s has non-finalization dependent %s", id, depID)
				}
			}
		}
	}
	return nil
}

// Ready returns tasks whose status is pending or ready and whose every dep is
// complete, ordered for execution (spec.md §4.F tie-break: taskType
// priority, then creation time, then id lexical).
func (g *Graph) Ready() []*domain.Task {
	var ready []*domain.Task
	for _, id := range g.order {
		t := g.tasks[id]
		if t.Status != domain.TaskPending && t.Status != domain.TaskReady {
			continue
		}
		if g.depsComplete(t) {
			ready = append(ready, t)
		}
	}
	sortExecutionOrder(ready)
	return ready
}

func (g *Graph) depsComplete(t *domain.Task) bool {
	for _, dep := range t.Deps {
		if g.tasks[dep].Status != domain.TaskComplete {
			return false
		}
	}
	return true
}

// taskTypePriority orders work before verification before finalization,
// per spec.md §4.F's execution-order tie-break.
var taskTypePriority = map[domain.TaskType]int{
	domain.TaskWork:         0,
	domain.TaskVerification: 1,
	domain.TaskFinalization: 2,
}

func sortExecutionOrder(tasks []*domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if taskTypePriority[a.TaskType] != taskTypePriority[b.TaskType] {
			return taskTypePriority[a.TaskType] < taskTypePriority[b.TaskType]
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// ExecutionOrder returns every task in the graph in full topological
// execution order (not just the currently-ready set), the ordering
// internal/graph's ASCII visualizer and dry-run planning use.
func (g *Graph) ExecutionOrder() ([]*domain.Task, error) {
	colors := make(map[string]color, len(g.tasks))
	var out []*domain.Task

	var visit func(id string) error
	visit = func(id string) error {
		colors[id] = gray
		t := g.tasks[id]
		for _, dep := range t.Deps {
			if colors[dep] == white {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		colors[id] = black
		out = append(out, t)
		return nil
	}

	ids := append([]string{}, g.order...)
	sort.Strings(ids)
	for _, id := range ids {
		if colors[id] == white {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}
	sortStableByLayer(out)
	return out, nil
}

// sortStableByLayer is a light touch-up pass: within groups that have no
// ordering constraint between them (same deps-satisfied "layer"), prefer
// the taskType/createdAt/id tie-break used elsewhere. A full topological
// sort already guarantees dependency order; this only refines ties.
func sortStableByLayer(tasks []*domain.Task) {
	depth := make(map[string]int, len(tasks))
	byID := make(map[string]*domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		t := byID[id]
		max := -1
		for _, dep := range t.Deps {
			if d := depthOf(dep); d > max {
				max = d
			}
		}
		depth[id] = max + 1
		return depth[id]
	}
	for _, t := range tasks {
		depthOf(t.ID)
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if depth[a.ID] != depth[b.ID] {
			return depth[a.ID] < depth[b.ID]
		}
		if taskTypePriority[a.TaskType] != taskTypePriority[b.TaskType] {
			return taskTypePriority[a.TaskType] < taskTypePriority[b.TaskType]
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// FinalizationComplete reports whether every finalization task in the
// graph has status complete — the precondition for a mission to
// transition to complete (spec.md §3 invariant 4 and the Task invariant
// on finalization tasks).
func (g *Graph) FinalizationComplete() bool {
	for _, t := range g.tasks {
		if t.TaskType == domain.TaskFinalization && t.Status != domain.TaskComplete {
			return false
		}
	}
	return true
}

// Visualize renders an ASCII representation of the graph, one line per
// task, indented by dependency depth and annotated with status and type.
func (g *Graph) Visualize() string {
	ordered, err := g.ExecutionOrder()
	if err != nil {
		return fmt.Sprintf("(cannot visualize: %v)", err)
	}

	depth := make(map[string]int, len(ordered))
	for _, t := range ordered {
		max := -1
		for _, dep := range t.Deps {
			if d := depth[dep]; d > max {
				max = d
			}
		}
		depth[t.ID] = max + 1
	}

	out := ""
	for _, t := range ordered {
		indent := ""
		for i := 0; i < depth[t.ID]; i++ {
			indent += "  "
		}
		marker := "-"
		switch t.TaskType {
		case domain.TaskVerification:
			marker = "v"
		case domain.TaskFinalization:
			marker = "f"
		}
		out += fmt.Sprintf("%s%s [%s] %s (%s)\n", indent, marker, t.Status, t.Title, t.ID)
	}
	return out
}
