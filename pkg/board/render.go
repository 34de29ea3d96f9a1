package board

import (
	"fmt"

	"managehub/pkg/task"
)

// View is the rendered board: one column per status, in fixed order.
type View struct {
	Columns []Column `json:"columns"`
	Total   int      `json:"total"`
}

// Column is one status partition of the board.
type Column struct {
	Status task.Status `json:"status"`
	Key    string      `json:"key"`   // status without spaces
	Label  string      `json:"label"` // "To Do (3)"
	Cards  []Card      `json:"cards"`
}

// Card carries what a drop target needs to recover the task without a lookup.
type Card struct {
	ID          string        `json:"id"`
	Status      task.Status   `json:"status"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Priority    task.Priority `json:"priority"`
	DueDate     string        `json:"due_date"`
	Assignee    string        `json:"assignee"`
	WorkOrder   string        `json:"work_order"`
	InTransit   bool          `json:"in_transit,omitempty"`
}

// Render partitions tasks by status into the four columns, keeping input
// order within each column. Every column is present even when empty.
// inTransit marks the card being dragged; pass "" for none.
func Render(tasks []task.Task, inTransit string) View {
	v := View{Columns: make([]Column, len(task.Statuses))}
	index := make(map[task.Status]int, len(task.Statuses))
	for i, s := range task.Statuses {
		v.Columns[i] = Column{Status: s, Key: s.Key(), Cards: []Card{}}
		index[s] = i
	}

	for _, t := range tasks {
		i, ok := index[t.Status]
		if !ok {
			continue
		}
		v.Columns[i].Cards = append(v.Columns[i].Cards, newCard(t, inTransit))
		v.Total++
	}
	for i := range v.Columns {
		c := &v.Columns[i]
		c.Label = fmt.Sprintf("%s (%d)", c.Status, len(c.Cards))
	}
	return v
}

func newCard(t task.Task, inTransit string) Card {
	c := Card{
		ID:          t.ID,
		Status:      t.Status,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		DueDate:     t.DueString(),
		Assignee:    t.AssigneeName,
		WorkOrder:   t.WorkOrderTitle,
		InTransit:   inTransit != "" && t.ID == inTransit,
	}
	if c.DueDate == "" {
		c.DueDate = "N/A"
	}
	if c.Assignee == "" {
		c.Assignee = "Unassigned"
	}
	if c.WorkOrder == "" {
		c.WorkOrder = "None"
	}
	return c
}

// Column returns the column for status s.
func (v View) Column(s task.Status) (Column, bool) {
	for _, c := range v.Columns {
		if c.Status == s {
			return c, true
		}
	}
	return Column{}, false
}

// Find returns the status of the column holding card id.
func (v View) Find(id string) (task.Status, bool) {
	for _, c := range v.Columns {
		for _, card := range c.Cards {
			if card.ID == id {
				return c.Status, true
			}
		}
	}
	return "", false
}
