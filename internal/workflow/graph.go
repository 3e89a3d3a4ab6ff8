package workflow

import (
	"fmt"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/cerr"
)

// validateRoles checks the constraints every workflow must satisfy at
// creation time: non-empty agent roles, unique within the task list.
// Unknown dependencies and cycles are allowed here; how they play out is
// the scheduler's business.
func validateRoles(tasks []Task) error {
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.AgentRole == "" {
			return cerr.NewError(cerr.InvalidArgument, "task agent_type cannot be empty", nil)
		}
		if seen[t.AgentRole] {
			return cerr.NewError(cerr.InvalidArgument,
				fmt.Sprintf("duplicate agent_type in task list: %s", t.AgentRole), nil)
		}
		seen[t.AgentRole] = true
	}
	return nil
}

// validateGraph applies the stricter rules used for curated workflow
// definitions: on top of validateRoles, the task list must be non-empty,
// every dependency must name a role in the list, and the dependency graph
// must be acyclic.
func validateGraph(tasks []Task) error {
	if len(tasks) == 0 {
		return cerr.NewError(cerr.InvalidArgument, "no tasks defined", nil)
	}
	if err := validateRoles(tasks); err != nil {
		return err
	}

	roles := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		roles[t.AgentRole] = true
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if !roles[dep] {
				return cerr.NewError(cerr.InvalidArgument,
					fmt.Sprintf("task %s depends on unknown agent_type: %s", t.AgentRole, dep), nil)
			}
		}
	}

	return detectCycles(tasks)
}

// detectCycles detects circular dependencies using DFS.
func detectCycles(tasks []Task) error {
	deps := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		deps[t.AgentRole] = t.Dependencies
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var visit func(role string) error
	visit = func(role string) error {
		visited[role] = true
		recStack[role] = true

		for _, dep := range deps[role] {
			if !visited[dep] {
				if err := visit(dep); err != nil {
					return err
				}
			} else if recStack[dep] {
				return cerr.NewError(cerr.InvalidArgument,
					fmt.Sprintf("circular dependency detected: %s -> %s", role, dep), nil)
			}
		}

		recStack[role] = false
		return nil
	}

	for _, t := range tasks {
		if !visited[t.AgentRole] {
			if err := visit(t.AgentRole); err != nil {
				return err
			}
		}
	}

	return nil
}
