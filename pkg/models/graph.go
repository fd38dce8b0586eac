package models

import (
	"errors"
	"fmt"
)

// Structural graph violations. GraphError wraps one of these and names the
// offending step.
var (
	ErrNoSteps            = errors.New("workflow has no steps")
	ErrDuplicateStepID    = errors.New("duplicate step id")
	ErrDanglingDependency = errors.New("dependency references unknown step")
	ErrCircularDependency = errors.New("circular dependency")
)

// GraphError describes a structural violation in a workflow's step graph.
type GraphError struct {
	StepID       string // step where the violation was detected
	DependencyID string // missing dependency id, for dangling dependencies
	Err          error
}

func (e *GraphError) Error() string {
	if e.DependencyID != "" {
		return fmt.Sprintf("step %s: %v: %s", e.StepID, e.Err, e.DependencyID)
	}

	return fmt.Sprintf("step %s: %v", e.StepID, e.Err)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

func (e *GraphError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// ValidateGraph checks the structural invariants of the step graph: a
// non-empty step list, unique step ids, dependencies that resolve within the
// workflow, and an acyclic dependency relation.
func ValidateGraph(w *Workflow) error {
	if len(w.Steps) == 0 {
		return &GraphError{Err: ErrNoSteps}
	}

	index := make(map[string]int, len(w.Steps))

	for i, step := range w.Steps {
		if _, seen := index[step.ID]; seen {
			return &GraphError{StepID: step.ID, Err: ErrDuplicateStepID}
		}

		index[step.ID] = i
	}

	for _, step := range w.Steps {
		for _, dep := range step.Dependencies {
			if _, ok := index[dep]; !ok {
				return &GraphError{StepID: step.ID, DependencyID: dep, Err: ErrDanglingDependency}
			}
		}
	}

	return detectCycle(w.Steps, index)
}

// Vertex colors for the iterative depth-first traversal.
const (
	colorWhite = iota // unvisited
	colorGray         // on the current traversal stack
	colorBlack        // fully explored
)

// detectCycle runs an iterative depth-first traversal over the dependency
// edges with an explicit stack, so deep graphs cannot exhaust goroutine stack
// space. A gray vertex reached again is on the current path, which proves a
// cycle through it.
func detectCycle(steps []*Step, index map[string]int) error {
	color := make([]int, len(steps))

	type frame struct {
		step int
		next int // next dependency index to visit
	}

	for start := range steps {
		if color[start] != colorWhite {
			continue
		}

		stack := []frame{{step: start}}
		color[start] = colorGray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := steps[top.step].Dependencies

			if top.next >= len(deps) {
				color[top.step] = colorBlack
				stack = stack[:len(stack)-1]

				continue
			}

			dep := index[deps[top.next]]
			top.next++

			switch color[dep] {
			case colorGray:
				return &GraphError{StepID: steps[dep].ID, Err: ErrCircularDependency}
			case colorWhite:
				color[dep] = colorGray
				stack = append(stack, frame{step: dep})
			}
		}
	}

	return nil
}

// TopologicalOrder returns the workflow's steps linearized so that every step
// appears after all of its dependencies. When several steps are eligible at
// once, the one declared first wins, so the order is deterministic: the same
// workflow always yields the identical sequence.
func TopologicalOrder(w *Workflow) ([]*Step, error) {
	if err := ValidateGraph(w); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(w.Steps))
	for i, step := range w.Steps {
		index[step.ID] = i
	}

	indegree := make([]int, len(w.Steps))
	dependents := make([][]int, len(w.Steps))

	for i, step := range w.Steps {
		indegree[i] = len(step.Dependencies)
		for _, dep := range step.Dependencies {
			d := index[dep]
			dependents[d] = append(dependents[d], i)
		}
	}

	ordered := make([]*Step, 0, len(w.Steps))
	placed := make([]bool, len(w.Steps))

	// Kahn's algorithm with a declaration-order scan instead of a queue:
	// the lowest-index eligible step is always taken next.
	for len(ordered) < len(w.Steps) {
		next := -1

		for i := range w.Steps {
			if !placed[i] && indegree[i] == 0 {
				next = i

				break
			}
		}

		if next < 0 {
			// Unreachable after ValidateGraph, kept as a guard.
			return nil, &GraphError{Err: ErrCircularDependency}
		}

		placed[next] = true
		ordered = append(ordered, w.Steps[next])

		for _, dep := range dependents[next] {
			indegree[dep]--
		}
	}

	return ordered, nil
}
