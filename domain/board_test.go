package domain

import (
	"testing"
)

func taskRecord(id string, fields map[string]any) Record {
	return Record{ID: id, Fields: fields}
}

func TestBuildBoardNoGroups(t *testing.T) {
	records := []Record{
		taskRecord("r1", map[string]any{"Name": "b", "Order": 7.0}),
		taskRecord("r2", map[string]any{"Name": "a", "Order": 3.0}),
		taskRecord("r3", map[string]any{"Name": "c"}),
	}
	board := BuildBoard(records)
	if len(board.Groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(board.Groups))
	}
	if len(board.Ungrouped) != 3 {
		t.Fatalf("expected 3 ungrouped tasks, got %d", len(board.Ungrouped))
	}
	// r3 has no order (0), then r2 (3), then r1 (7); ranks rewritten densely.
	wantNames := []string{"c", "a", "b"}
	for i, task := range board.Ungrouped {
		if task["Name"] != wantNames[i] {
			t.Fatalf("task %d: expected %q, got %v", i, wantNames[i], task["Name"])
		}
		if task["Order"] != float64(i) {
			t.Fatalf("task %d: expected dense order %d, got %v", i, i, task["Order"])
		}
	}
}

func TestBuildBoardGroupOrdering(t *testing.T) {
	records := []Record{
		taskRecord("r1", map[string]any{
			"Name": "in five", "Group": []any{"g5"}, "Group Name": []any{"Five"}, "Group Order": []any{"5"},
		}),
		taskRecord("r2", map[string]any{
			"Name": "in two", "Group": []any{"g2"}, "Group Name": []any{"Two"}, "Group Order": []any{"2"},
		}),
	}
	board := BuildBoard(records)
	if len(board.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(board.Groups))
	}
	if board.Groups[0].ID != "g2" || board.Groups[1].ID != "g5" {
		t.Fatalf("groups not sorted by order: %q, %q", board.Groups[0].ID, board.Groups[1].ID)
	}
	if board.Groups[0].Order != 2 || board.Groups[1].Order != 5 {
		t.Fatalf("unexpected group orders: %v, %v", board.Groups[0].Order, board.Groups[1].Order)
	}
}

func TestBuildBoardStripsGroupMetadata(t *testing.T) {
	records := []Record{
		taskRecord("r1", map[string]any{
			"Name": "x", "Group": []any{"g1"}, "Group Name": []any{"One"}, "Group Order": 1.0,
		}),
	}
	board := BuildBoard(records)
	task := board.Groups[0].Tasks[0]
	for _, field := range []string{FieldGroup, FieldGroupName, FieldGroupOrder} {
		if _, ok := task[field]; ok {
			t.Fatalf("group metadata %q leaked into task fields", field)
		}
	}
	if task["id"] != "r1" {
		t.Fatalf("expected record id on task, got %v", task["id"])
	}
}

func TestBuildBoardGroupDefaults(t *testing.T) {
	records := []Record{
		taskRecord("r1", map[string]any{"Group": []any{"g1"}}),
	}
	board := BuildBoard(records)
	if len(board.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(board.Groups))
	}
	g := board.Groups[0]
	if g.Name != UnnamedGroup {
		t.Fatalf("expected default group name, got %q", g.Name)
	}
	if g.Order != 0 {
		t.Fatalf("expected default group order 0, got %v", g.Order)
	}
}

func TestBuildBoardDenseOrderWithinGroups(t *testing.T) {
	records := []Record{
		taskRecord("r1", map[string]any{"Name": "second", "Order": 40.0, "Group": []any{"g1"}}),
		taskRecord("r2", map[string]any{"Name": "first", "Order": 10.0, "Group": []any{"g1"}}),
		taskRecord("r3", map[string]any{"Name": "third", "Order": 40.0, "Group": []any{"g1"}}),
	}
	board := BuildBoard(records)
	tasks := board.Groups[0].Tasks
	wantNames := []string{"first", "second", "third"} // stable sort keeps r1 before r3
	for i, task := range tasks {
		if task["Name"] != wantNames[i] {
			t.Fatalf("task %d: expected %q, got %v", i, wantNames[i], task["Name"])
		}
		if task["Order"] != float64(i) {
			t.Fatalf("task %d: expected order %d, got %v", i, i, task["Order"])
		}
	}
}

func TestBuildBoardMixedGroupedAndUngrouped(t *testing.T) {
	records := []Record{
		taskRecord("r1", map[string]any{"Name": "loose"}),
		taskRecord("r2", map[string]any{"Name": "bound", "Group": []any{"g1"}}),
	}
	board := BuildBoard(records)
	if len(board.Groups) != 1 || len(board.Ungrouped) != 1 {
		t.Fatalf("expected 1 group and 1 ungrouped, got %d/%d", len(board.Groups), len(board.Ungrouped))
	}
	if board.Ungrouped[0]["Name"] != "loose" {
		t.Fatalf("unexpected ungrouped task: %v", board.Ungrouped[0])
	}
}
