package domain

import (
	"sort"
)

// Field names carrying group linkage on a task record. They are denormalized
// lookups maintained by the external store and are stripped from task fields
// before a board is returned.
const (
	FieldGroup      = "Group"
	FieldGroupName  = "Group Name"
	FieldGroupOrder = "Group Order"
	FieldOrder      = "Order"
)

// UnnamedGroup is the display name used when a group link carries no name.
const UnnamedGroup = "Unnamed Group"

// Group is a named bucket of tasks on a board, ordered by GroupOrder.
type Group struct {
	ID    string           `json:"groupId"`
	Name  string           `json:"groupName"`
	Order float64          `json:"groupOrder"`
	Tasks []map[string]any `json:"tasks"`
}

// Board is the derived grouped/ungrouped view over one project's task
// records. It is built fresh per request and never persisted.
type Board struct {
	Groups    []Group          `json:"groups"`
	Ungrouped []map[string]any `json:"ungrouped"`
}

// BuildBoard regroups a flat record list into the board shape. Tasks with a
// group link land in that group, the rest in the ungrouped bucket. Within
// each bucket tasks are sorted by their Order field (missing treated as 0,
// stable for ties) and Order is rewritten to the dense 0-based rank, so gaps
// and duplicates left behind by prior edits do not survive the transform.
func BuildBoard(records []Record) Board {
	board := Board{Groups: []Group{}, Ungrouped: []map[string]any{}}
	index := map[string]int{}

	for _, rec := range records {
		groupID := LinkedID(rec.Fields, FieldGroup)
		task := taskFields(rec)
		if groupID == "" {
			board.Ungrouped = append(board.Ungrouped, task)
			continue
		}
		i, ok := index[groupID]
		if !ok {
			name := StringField(rec.Fields, FieldGroupName)
			if name == "" {
				name = UnnamedGroup
			}
			board.Groups = append(board.Groups, Group{
				ID:    groupID,
				Name:  name,
				Order: NumberField(rec.Fields, FieldGroupOrder, 0),
			})
			i = len(board.Groups) - 1
			index[groupID] = i
		}
		board.Groups[i].Tasks = append(board.Groups[i].Tasks, task)
	}

	for i := range board.Groups {
		normalizeOrder(board.Groups[i].Tasks)
	}
	normalizeOrder(board.Ungrouped)

	sort.SliceStable(board.Groups, func(i, j int) bool {
		return board.Groups[i].Order < board.Groups[j].Order
	})
	return board
}

// taskFields copies a record's fields, strips group linkage, and keeps the
// record id under "id" so clients can address the task.
func taskFields(rec Record) map[string]any {
	task := make(map[string]any, len(rec.Fields)+1)
	for k, v := range rec.Fields {
		switch k {
		case FieldGroup, FieldGroupName, FieldGroupOrder:
			continue
		}
		task[k] = v
	}
	task["id"] = rec.ID
	return task
}

func normalizeOrder(tasks []map[string]any) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return NumberField(tasks[i], FieldOrder, 0) < NumberField(tasks[j], FieldOrder, 0)
	})
	for i := range tasks {
		tasks[i][FieldOrder] = float64(i)
	}
}
