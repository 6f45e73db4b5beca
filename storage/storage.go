package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"basegate/domain"
)

// Logical table names used by callers. They are stable even when the
// external store's own identifiers change.
const (
	TableTasks    = "tasks"
	TableProjects = "projects"
	TableGroups   = "groups"
	TableEvents   = "events"
	TableCounter  = "counter"
)

// batchLimit is the external store's hard cap on records per bulk write.
const batchLimit = 10

// counterRecordID is the single well-known record acting as the shared
// counter. The counter table is not addressable by arbitrary id.
const counterRecordID = "recCounterSingleton"

// counterField holds the counter value on the singleton record.
const counterField = "Value"

// displayIDField is the human-facing task identifier assigned by the
// external store, distinct from the opaque record id.
const displayIDField = "Task ID"

// numericTaskFields are the main-table fields coerced to numbers before a
// create. Clients send them as strings when they come out of form inputs.
var numericTaskFields = map[string]bool{
	"Order":    true,
	"Estimate": true,
}

// Tables maps logical table names to the external store's opaque table ids.
type Tables struct {
	Tasks    string
	Projects string
	Groups   string
	Events   string
	Counter  string
}

// Adapter translates logical record operations into external store calls,
// adding table-name indirection, field coercion, and bulk chunking. It holds
// no record state of its own.
type Adapter struct {
	client *Client
	tables map[string]string
}

// NewAdapter creates an Adapter over the given client and table mapping.
func NewAdapter(client *Client, tables Tables) *Adapter {
	return &Adapter{
		client: client,
		tables: map[string]string{
			TableTasks:    tables.Tasks,
			TableProjects: tables.Projects,
			TableGroups:   tables.Groups,
			TableEvents:   tables.Events,
			TableCounter:  tables.Counter,
		},
	}
}

// ResolveTable maps a logical table name to the external table id. Unknown
// names fall back to the main tasks table, so the mapping is total.
func (a *Adapter) ResolveTable(logicalName string) string {
	if id, ok := a.tables[logicalName]; ok && id != "" {
		return id
	}
	return a.tables[TableTasks]
}

// GetAll fetches every record in a table, draining the store's paging.
func (a *Adapter) GetAll(ctx context.Context, logicalName string) ([]domain.Record, error) {
	return a.client.List(ctx, a.ResolveTable(logicalName), "")
}

// GetOne fetches a single record. For the counter table the caller-supplied
// id is ignored: the counter is a singleton record.
func (a *Adapter) GetOne(ctx context.Context, logicalName, recordID string) (domain.Record, error) {
	if logicalName == TableCounter {
		recordID = counterRecordID
	}
	return a.client.Get(ctx, a.ResolveTable(logicalName), recordID)
}

// GetFiltered fetches the records in a table related to the anchor, using
// the table's own filter strategy. Filter semantics are table-specific.
func (a *Adapter) GetFiltered(ctx context.Context, anchor, logicalName string) ([]domain.Record, error) {
	formula, ok := filterFormulas[logicalName]
	if !ok {
		formula = taskFilter
	}
	return a.client.List(ctx, a.ResolveTable(logicalName), formula(anchor))
}

// CreateMany creates records in pages of at most batchLimit, preserving
// request order in the concatenated result. Main-table numeric fields are
// coerced before sending. A failing page aborts the rest; earlier pages are
// not rolled back.
func (a *Adapter) CreateMany(ctx context.Context, records []domain.Record, logicalName string) ([]domain.Record, error) {
	if logicalName == TableTasks {
		coerced := make([]domain.Record, len(records))
		for i, rec := range records {
			coerced[i] = coerceNumericFields(rec)
		}
		records = coerced
	}
	tableID := a.ResolveTable(logicalName)
	return chunkApply(records, batchLimit, func(page []domain.Record) ([]domain.Record, error) {
		return a.client.CreateBatch(ctx, tableID, page)
	})
}

// UpdateMany patches records with the same chunking and partial-failure
// exposure as CreateMany.
func (a *Adapter) UpdateMany(ctx context.Context, records []domain.Record, logicalName string) ([]domain.Record, error) {
	tableID := a.ResolveTable(logicalName)
	return chunkApply(records, batchLimit, func(page []domain.Record) ([]domain.Record, error) {
		return a.client.UpdateBatch(ctx, tableID, page)
	})
}

// DeleteMany removes records by id, chunked like the other bulk operations.
func (a *Adapter) DeleteMany(ctx context.Context, recordIDs []string, logicalName string) ([]string, error) {
	tableID := a.ResolveTable(logicalName)
	return chunkApply(recordIDs, batchLimit, func(page []string) ([]string, error) {
		return a.client.DeleteBatch(ctx, tableID, page)
	})
}

// UpdateOne patches a single record. The counter singleton id special case
// mirrors GetOne.
func (a *Adapter) UpdateOne(ctx context.Context, recordID string, fields map[string]any, logicalName string) (domain.Record, error) {
	if logicalName == TableCounter {
		recordID = counterRecordID
	}
	updated, err := a.client.UpdateBatch(ctx, a.ResolveTable(logicalName), []domain.Record{{ID: recordID, Fields: fields}})
	if err != nil {
		return domain.Record{}, err
	}
	if len(updated) == 0 {
		return domain.Record{}, fmt.Errorf("update %s/%s: empty response", logicalName, recordID)
	}
	return updated[0], nil
}

// IncrementCounter reads the singleton counter, adds one, and writes it
// back. The read-modify-write is not synchronized: two concurrent
// increments can produce a lost update. That limitation is inherited from
// the external store, which has no atomic increment.
func (a *Adapter) IncrementCounter(ctx context.Context) (int64, error) {
	rec, err := a.GetOne(ctx, TableCounter, "")
	if err != nil {
		return 0, err
	}
	next := int64(domain.NumberField(rec.Fields, counterField, 0)) + 1
	if _, err := a.UpdateOne(ctx, rec.ID, map[string]any{counterField: next}, TableCounter); err != nil {
		return 0, err
	}
	return next, nil
}

// FindTaskByDisplayID looks a task up by its human-facing display id.
// Returns nil when no task matches, which callers must check before use.
func (a *Adapter) FindTaskByDisplayID(ctx context.Context, displayID string) (*domain.Record, error) {
	records, err := a.GetAll(ctx, TableTasks)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if domain.StringField(records[i].Fields, displayIDField) == displayID {
			return &records[i], nil
		}
	}
	return nil, nil
}

// coerceNumericFields normalizes the main table's numeric fields: empty
// strings become 0, other strings are parsed as numbers when possible.
func coerceNumericFields(rec domain.Record) domain.Record {
	out := rec.Clone()
	for name := range numericTaskFields {
		raw, ok := out.Fields[name]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			out.Fields[name] = float64(0)
			continue
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			out.Fields[name] = n
		}
	}
	return out
}
