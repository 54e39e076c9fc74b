package plan

import (
	"sort"
)

type color uint8

const (
	white color = iota // unvisited
	gray               // on the DFS stack
	black              // finished
)

// RepairReport summarizes what Repair changed.
type RepairReport struct {
	// Cleared lists subtasks whose dependency list was emptied to break a cycle.
	Cleared []string
	// DanglingDropped counts dependency ids that referenced no subtask.
	DanglingDropped int
	// DuplicatesDropped counts repeated dependency ids within one subtask.
	DuplicatesDropped int
}

// Changed reports whether Repair modified anything.
func (r RepairReport) Changed() bool {
	return len(r.Cleared) > 0 || r.DanglingDropped > 0 || r.DuplicatesDropped > 0
}

// Repair makes the dependency graph a DAG in place.
//
// Dangling and duplicate dependency ids are dropped first. A three-color DFS
// then walks the graph with an explicit stack, starting from subtasks in input
// order; whenever an edge leads back to a node that is still on the stack, the
// subtask whose edge closed the cycle has its whole dependency list cleared.
func Repair(subtasks []Subtask) RepairReport {
	var report RepairReport
	idx := Index(subtasks)

	for i := range subtasks {
		st := &subtasks[i]
		if len(st.Dependencies) == 0 {
			continue
		}
		seen := make(map[string]bool, len(st.Dependencies))
		kept := make([]string, 0, len(st.Dependencies))
		for _, dep := range st.Dependencies {
			switch {
			case idx[dep] == nil:
				report.DanglingDropped++
			case seen[dep]:
				report.DuplicatesDropped++
			default:
				seen[dep] = true
				kept = append(kept, dep)
			}
		}
		st.Dependencies = kept
	}

	type frame struct {
		id   string
		next int
	}

	colors := make(map[string]color, len(subtasks))
	for i := range subtasks {
		root := subtasks[i].ID
		if colors[root] != white {
			continue
		}

		stack := []frame{{id: root}}
		colors[root] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			node := idx[top.id]
			if top.next >= len(node.Dependencies) {
				colors[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}

			dep := node.Dependencies[top.next]
			top.next++
			switch colors[dep] {
			case gray:
				node.Dependencies = []string{}
				report.Cleared = append(report.Cleared, node.ID)
			case white:
				colors[dep] = gray
				stack = append(stack, frame{id: dep})
			case black:
			}
		}
	}

	return report
}

// HasCycle reports whether the dependency graph contains a cycle. Unknown
// dependency ids are ignored.
func HasCycle(subtasks []Subtask) bool {
	probe := Clone(subtasks)
	return len(Repair(probe).Cleared) > 0
}

// SortByDependencyCount stably sorts subtasks by ascending dependency count,
// keeping input order among equal counts.
func SortByDependencyCount(subtasks []Subtask) {
	sort.SliceStable(subtasks, func(i, j int) bool {
		return len(subtasks[i].Dependencies) < len(subtasks[j].Dependencies)
	})
}

// OrderByDependencyCount returns subtask ids by ascending dependency count,
// ties broken by id.
func OrderByDependencyCount(subtasks []Subtask) []string {
	sorted := Clone(subtasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		ni, nj := len(sorted[i].Dependencies), len(sorted[j].Dependencies)
		if ni != nj {
			return ni < nj
		}
		return sorted[i].ID < sorted[j].ID
	})

	ids := make([]string, len(sorted))
	for i := range sorted {
		ids[i] = sorted[i].ID
	}
	return ids
}

// TopologicalOrder returns ids so that every subtask follows all of its
// dependencies. Roots are visited in input order and dependencies in id order,
// so identical graphs always produce the same order. Unknown ids are skipped
// and a remaining cycle is cut where it is first re-entered.
func TopologicalOrder(subtasks []Subtask) []string {
	idx := Index(subtasks)

	type frame struct {
		id   string
		deps []string
		next int
	}

	sortedDeps := func(id string) []string {
		deps := make([]string, 0, len(idx[id].Dependencies))
		for _, dep := range idx[id].Dependencies {
			if idx[dep] != nil {
				deps = append(deps, dep)
			}
		}
		sort.Strings(deps)
		return deps
	}

	colors := make(map[string]color, len(subtasks))
	order := make([]string, 0, len(subtasks))
	for i := range subtasks {
		root := subtasks[i].ID
		if colors[root] != white {
			continue
		}

		stack := []frame{{id: root, deps: sortedDeps(root)}}
		colors[root] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next >= len(top.deps) {
				colors[top.id] = black
				order = append(order, top.id)
				stack = stack[:len(stack)-1]
				continue
			}
			dep := top.deps[top.next]
			top.next++
			if colors[dep] == white {
				colors[dep] = gray
				stack = append(stack, frame{id: dep, deps: sortedDeps(dep)})
			}
		}
	}
	return order
}

// Levels groups subtask ids into waves: every subtask in a level depends only
// on subtasks from earlier levels. Within a level ids keep input order.
// Subtasks caught in a cycle are placed together in a final level.
func Levels(subtasks []Subtask) [][]string {
	idx := Index(subtasks)
	inDegree := make(map[string]int, len(subtasks))
	dependents := make(map[string][]string, len(subtasks))
	for i := range subtasks {
		st := &subtasks[i]
		for _, dep := range st.Dependencies {
			if idx[dep] == nil {
				continue
			}
			inDegree[st.ID]++
			dependents[dep] = append(dependents[dep], st.ID)
		}
	}

	position := make(map[string]int, len(subtasks))
	for i := range subtasks {
		position[subtasks[i].ID] = i
	}

	var levels [][]string
	placed := 0
	var current []string
	for i := range subtasks {
		if inDegree[subtasks[i].ID] == 0 {
			current = append(current, subtasks[i].ID)
		}
	}

	for len(current) > 0 {
		levels = append(levels, current)
		placed += len(current)

		var next []string
		for _, id := range current {
			for _, dependent := range dependents[id] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool { return position[next[i]] < position[next[j]] })
		current = next
	}

	if placed < len(subtasks) {
		var rest []string
		for i := range subtasks {
			if inDegree[subtasks[i].ID] > 0 {
				rest = append(rest, subtasks[i].ID)
			}
		}
		levels = append(levels, rest)
	}
	return levels
}
