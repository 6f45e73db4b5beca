package objects

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"basegate/domain"
)

// AttachMode selects how a new attachment reference combines with an
// existing attachment field.
type AttachMode string

const (
	// ModeAppend reads the current list and adds the reference at the end.
	// The read-then-write is not atomic: two concurrent appends to the same
	// record can lose one of them.
	ModeAppend AttachMode = "append"
	// ModeReplace discards the existing list and writes a single reference.
	ModeReplace AttachMode = "replace"
)

// ObjectStore is the durable side of the relay.
type ObjectStore interface {
	Put(ctx context.Context, name string, content []byte, contentType string) (string, error)
	URLFor(name string) string
}

// RecordStore is the subset of the record adapter the relay needs.
type RecordStore interface {
	GetOne(ctx context.Context, logicalName, recordID string) (domain.Record, error)
	UpdateOne(ctx context.Context, recordID string, fields map[string]any, logicalName string) (domain.Record, error)
}

// plainFieldFallbacks resolves an attachment-indirection field to the plain
// text field older records used before the indirection convention existed.
// Fixed lookup, not inferred.
var plainFieldFallbacks = map[string]string{
	"Notes File":       "Notes",
	"Description File": "Description",
}

// Relay bridges uploaded binary content to the object store and links the
// resulting public URLs into record fields.
type Relay struct {
	objects    ObjectStore
	records    RecordStore
	httpClient *http.Client
	now        func() time.Time
}

// NewRelay wires a Relay over the given stores.
func NewRelay(objects ObjectStore, records RecordStore) *Relay {
	return &Relay{
		objects:    objects,
		records:    records,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// StoreUpload writes an uploaded payload under a timestamp-prefixed name and
// returns its public URL. The millisecond prefix is the only collision
// avoidance: two same-named uploads in the same millisecond would collide.
func (r *Relay) StoreUpload(ctx context.Context, content []byte, suggestedName, contentType string) (string, error) {
	name := fmt.Sprintf("%d-%s", r.now().UnixMilli(), sanitizeName(suggestedName))
	return r.objects.Put(ctx, name, content, contentType)
}

// Attach links an attachment reference into a record field. Append performs
// a read-modify-write of the whole list; replace overwrites it.
func (r *Relay) Attach(ctx context.Context, recordID, fieldName, logicalTable string, ref domain.Attachment, mode AttachMode) (domain.Record, error) {
	var atts []domain.Attachment
	switch mode {
	case ModeAppend:
		rec, err := r.records.GetOne(ctx, logicalTable, recordID)
		if err != nil {
			return domain.Record{}, err
		}
		atts = append(domain.AttachmentField(rec.Fields, fieldName), ref)
	case ModeReplace:
		atts = []domain.Attachment{ref}
	default:
		return domain.Record{}, fmt.Errorf("unknown attach mode %q", mode)
	}
	return r.records.UpdateOne(ctx, recordID, map[string]any{fieldName: domain.AttachmentValues(atts)}, logicalTable)
}

// StoreNamedContent stores structured content behind an attachment field.
// The object name is a deterministic function of table, record, and field,
// so repeated saves overwrite the same backing object instead of leaking
// new ones. The field ends up holding exactly one reference.
func (r *Relay) StoreNamedContent(ctx context.Context, logicalTable, recordID, fieldName string, content []byte) error {
	name := namedContentObject(logicalTable, recordID, fieldName)
	url, err := r.objects.Put(ctx, name, content, "application/json")
	if err != nil {
		return err
	}
	ref := domain.Attachment{URL: url, Filename: sanitizeName(fieldName) + ".json"}
	_, err = r.Attach(ctx, recordID, fieldName, logicalTable, ref, ModeReplace)
	return err
}

// FetchNamedContent dereferences the first attachment in fieldName and
// returns the raw content, or nil when the field holds no attachments.
func (r *Relay) FetchNamedContent(ctx context.Context, logicalTable, recordID, fieldName string) ([]byte, error) {
	rec, err := r.records.GetOne(ctx, logicalTable, recordID)
	if err != nil {
		return nil, err
	}
	atts := domain.AttachmentField(rec.Fields, fieldName)
	if len(atts) == 0 {
		return nil, nil
	}
	return r.fetchURL(ctx, atts[0].URL)
}

// FetchNamedContentHybrid behaves like FetchNamedContent but falls back to
// a plain field for records predating the attachment-indirection
// convention.
func (r *Relay) FetchNamedContentHybrid(ctx context.Context, logicalTable, recordID, fieldName string) ([]byte, error) {
	rec, err := r.records.GetOne(ctx, logicalTable, recordID)
	if err != nil {
		return nil, err
	}
	atts := domain.AttachmentField(rec.Fields, fieldName)
	if len(atts) > 0 {
		return r.fetchURL(ctx, atts[0].URL)
	}
	plain, ok := plainFieldFallbacks[fieldName]
	if !ok {
		return nil, nil
	}
	if s := domain.StringField(rec.Fields, plain); s != "" {
		return []byte(s), nil
	}
	return nil, nil
}

func (r *Relay) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch content: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// namedContentObject derives the stable backing object name for named
// content. Idempotent per (table, record, field).
func namedContentObject(logicalTable, recordID, fieldName string) string {
	return fmt.Sprintf("content/%s/%s/%s.json", sanitizeName(logicalTable), recordID, sanitizeName(fieldName))
}

// sanitizeName makes a caller-supplied name safe as an object key segment.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "-", "#", "_", "?", "_")
	name = replacer.Replace(name)
	if name == "" {
		return "unnamed"
	}
	return name
}
