package plan

import (
	"github.com/planweave/planweave/internal/object"
)

// wouldCycle reports whether replacing taskID's dependency list with deps
// makes the dependency graph cyclic. Adding the edges taskID -> dep creates
// a cycle exactly when taskID is already reachable from one of the deps, so
// a depth-first walk from each dep suffices.
func wouldCycle(tasks []Task, taskID object.ID, deps []object.ID) bool {
	adjacent := make(map[object.ID][]object.ID, len(tasks))
	for i := range tasks {
		if tasks[i].ID == taskID {
			adjacent[tasks[i].ID] = deps
		} else {
			adjacent[tasks[i].ID] = tasks[i].BlockedBy
		}
	}
	visited := make(map[object.ID]bool, len(tasks))
	var reaches func(from object.ID) bool
	reaches = func(from object.ID) bool {
		if from == taskID {
			return true
		}
		if visited[from] {
			return false
		}
		visited[from] = true
		for _, next := range adjacent[from] {
			if reaches(next) {
				return true
			}
		}
		return false
	}
	for _, dep := range deps {
		if reaches(dep) {
			return true
		}
	}
	return false
}
