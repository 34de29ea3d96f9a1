package board

import (
	"strings"

	"managehub/pkg/task"
)

// Search renders the tasks whose title, description or assignee name
// contains query, case-insensitively. The task collection is not changed.
func (b *Board) Search(query string) View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Render(Filter(b.tasks, query), b.dragging)
}

// Filter returns the tasks matching query in their original order.
// An empty query matches every task.
func Filter(tasks []task.Task, query string) []task.Task {
	q := strings.ToLower(query)
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if matches(t, q) {
			out = append(out, t)
		}
	}
	return out
}

func matches(t task.Task, q string) bool {
	return strings.Contains(strings.ToLower(t.Title), q) ||
		(t.Description != "" && strings.Contains(strings.ToLower(t.Description), q)) ||
		(t.AssigneeName != "" && strings.Contains(strings.ToLower(t.AssigneeName), q))
}
