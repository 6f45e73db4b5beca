package storage

import (
	"fmt"
	"strings"
)

// filterFormula builds the server-side filter expression tying records in a
// table to an anchor. The knowledge of how each table relates to the anchor
// is deliberately local: this is a closed set of per-table strategies, not a
// general query API.
type filterFormula func(anchor string) string

var filterFormulas = map[string]filterFormula{
	TableTasks:    taskFilter,
	TableProjects: projectFilter,
	TableGroups:   linkedProjectFilter,
	TableEvents:   linkedProjectFilter,
}

// taskFilter matches tasks either by assignee (when the anchor looks like an
// email address) or by project linkage.
func taskFilter(anchor string) string {
	if strings.Contains(anchor, "@") {
		return fmt.Sprintf("{Assignee} = '%s'", escapeFormula(anchor))
	}
	return linkedFieldFilter("Project", anchor)
}

// projectFilter matches projects a member belongs to.
func projectFilter(anchor string) string {
	return linkedFieldFilter("Members", anchor)
}

// linkedProjectFilter matches records linked to the anchor project.
func linkedProjectFilter(anchor string) string {
	return linkedFieldFilter("Project", anchor)
}

// linkedFieldFilter matches when the anchor appears in a linked-record field.
// Linked fields render as comma-joined lists in formulas, hence FIND over
// ARRAYJOIN rather than equality.
func linkedFieldFilter(field, anchor string) string {
	return fmt.Sprintf("FIND('%s', ARRAYJOIN({%s})) > 0", escapeFormula(anchor), field)
}

func escapeFormula(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
