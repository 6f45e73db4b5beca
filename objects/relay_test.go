package objects

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"basegate/domain"
)

type fakeObjects struct {
	puts map[string][]byte
	base string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{puts: map[string][]byte{}, base: "https://cdn.example.com/bucket"}
}

func (f *fakeObjects) Put(ctx context.Context, name string, content []byte, contentType string) (string, error) {
	f.puts[name] = content
	return f.URLFor(name), nil
}

func (f *fakeObjects) URLFor(name string) string { return f.base + "/" + name }

type fakeRecords struct {
	records map[string]domain.Record
	updates []map[string]any
}

func newFakeRecords(recs ...domain.Record) *fakeRecords {
	m := map[string]domain.Record{}
	for _, r := range recs {
		m[r.ID] = r
	}
	return &fakeRecords{records: m}
}

func (f *fakeRecords) GetOne(ctx context.Context, logicalName, recordID string) (domain.Record, error) {
	return f.records[recordID], nil
}

func (f *fakeRecords) UpdateOne(ctx context.Context, recordID string, fields map[string]any, logicalName string) (domain.Record, error) {
	rec := f.records[recordID]
	if rec.Fields == nil {
		rec.Fields = map[string]any{}
		rec.ID = recordID
	}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	f.records[recordID] = rec
	f.updates = append(f.updates, fields)
	return rec, nil
}

func newTestRelay(objects ObjectStore, records RecordStore, at time.Time) *Relay {
	r := NewRelay(objects, records)
	r.now = func() time.Time { return at }
	return r
}

func attachmentURLs(rec domain.Record, field string) []string {
	atts := domain.AttachmentField(rec.Fields, field)
	urls := make([]string, len(atts))
	for i, a := range atts {
		urls[i] = a.URL
	}
	return urls
}

func TestStoreUploadTimestampPrefix(t *testing.T) {
	objects := newFakeObjects()
	at := time.UnixMilli(1700000000123)
	relay := newTestRelay(objects, newFakeRecords(), at)

	url, err := relay.StoreUpload(context.Background(), []byte("png bytes"), "shot of board.png", "image/png")
	if err != nil {
		t.Fatalf("StoreUpload: %v", err)
	}
	wantName := "1700000000123-shot-of-board.png"
	if _, ok := objects.puts[wantName]; !ok {
		t.Fatalf("expected object %q, stored: %v", wantName, objects.puts)
	}
	if url != objects.base+"/"+wantName {
		t.Fatalf("unexpected public url: %q", url)
	}
}

func TestAttachAppendKeepsExisting(t *testing.T) {
	records := newFakeRecords(domain.Record{ID: "rec1", Fields: map[string]any{
		"Files": []any{map[string]any{"url": "https://cdn/a", "filename": "a"}},
	}})
	relay := newTestRelay(newFakeObjects(), records, time.Now())

	_, err := relay.Attach(context.Background(), "rec1", "Files", "tasks",
		domain.Attachment{URL: "https://cdn/b", Filename: "b"}, ModeAppend)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	urls := attachmentURLs(records.records["rec1"], "Files")
	if len(urls) != 2 || urls[0] != "https://cdn/a" || urls[1] != "https://cdn/b" {
		t.Fatalf("expected [a b], got %v", urls)
	}
}

func TestAttachReplaceDiscardsExisting(t *testing.T) {
	records := newFakeRecords(domain.Record{ID: "rec1", Fields: map[string]any{
		"Files": []any{map[string]any{"url": "https://cdn/a"}},
	}})
	relay := newTestRelay(newFakeObjects(), records, time.Now())

	_, err := relay.Attach(context.Background(), "rec1", "Files", "tasks",
		domain.Attachment{URL: "https://cdn/b"}, ModeReplace)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	urls := attachmentURLs(records.records["rec1"], "Files")
	if len(urls) != 1 || urls[0] != "https://cdn/b" {
		t.Fatalf("expected [b], got %v", urls)
	}
}

func TestAttachUnknownMode(t *testing.T) {
	relay := newTestRelay(newFakeObjects(), newFakeRecords(), time.Now())
	_, err := relay.Attach(context.Background(), "rec1", "Files", "tasks", domain.Attachment{URL: "x"}, "merge")
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestStoreNamedContentIdempotentName(t *testing.T) {
	objects := newFakeObjects()
	records := newFakeRecords(domain.Record{ID: "rec1", Fields: map[string]any{}})
	relay := newTestRelay(objects, records, time.Now())

	ctx := context.Background()
	if err := relay.StoreNamedContent(ctx, "tasks", "rec1", "Notes File", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("StoreNamedContent: %v", err)
	}
	if err := relay.StoreNamedContent(ctx, "tasks", "rec1", "Notes File", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("StoreNamedContent: %v", err)
	}

	if len(objects.puts) != 1 {
		t.Fatalf("expected a single backing object, got %d: %v", len(objects.puts), objects.puts)
	}
	wantName := "content/tasks/rec1/Notes-File.json"
	if string(objects.puts[wantName]) != `{"v":2}` {
		t.Fatalf("expected second save to overwrite %q, got %q", wantName, objects.puts[wantName])
	}
	urls := attachmentURLs(records.records["rec1"], "Notes File")
	if len(urls) != 1 || !strings.HasSuffix(urls[0], wantName) {
		t.Fatalf("expected single reference to backing object, got %v", urls)
	}
}

func TestFetchNamedContentEmptyField(t *testing.T) {
	records := newFakeRecords(domain.Record{ID: "rec1", Fields: map[string]any{}})
	relay := newTestRelay(newFakeObjects(), records, time.Now())

	content, err := relay.FetchNamedContent(context.Background(), "tasks", "rec1", "Notes File")
	if err != nil {
		t.Fatalf("FetchNamedContent: %v", err)
	}
	if content != nil {
		t.Fatalf("expected nil for empty field, got %q", content)
	}
}

func TestFetchNamedContentDereferencesFirstAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/content/tasks/rec1/Notes-File.json" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"v":1}`))
	}))
	defer srv.Close()

	records := newFakeRecords(domain.Record{ID: "rec1", Fields: map[string]any{
		"Notes File": []any{map[string]any{"url": srv.URL + "/content/tasks/rec1/Notes-File.json"}},
	}})
	relay := newTestRelay(newFakeObjects(), records, time.Now())

	content, err := relay.FetchNamedContent(context.Background(), "tasks", "rec1", "Notes File")
	if err != nil {
		t.Fatalf("FetchNamedContent: %v", err)
	}
	if string(content) != `{"v":1}` {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestFetchNamedContentHybridFallback(t *testing.T) {
	records := newFakeRecords(domain.Record{ID: "rec1", Fields: map[string]any{
		"Notes": "plain old notes",
	}})
	relay := newTestRelay(newFakeObjects(), records, time.Now())

	content, err := relay.FetchNamedContentHybrid(context.Background(), "tasks", "rec1", "Notes File")
	if err != nil {
		t.Fatalf("FetchNamedContentHybrid: %v", err)
	}
	if string(content) != "plain old notes" {
		t.Fatalf("expected fallback to plain field, got %q", content)
	}

	// no fallback mapping means nil, not an error
	content, err = relay.FetchNamedContentHybrid(context.Background(), "tasks", "rec1", "Unmapped Field")
	if err != nil || content != nil {
		t.Fatalf("expected nil/nil for unmapped field, got %q/%v", content, err)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"a b.png":     "a-b.png",
		"../../etc":   ".._.._etc",
		"  spaced  ":  "spaced",
		"":            "unnamed",
		"q?#frag.txt": "q__frag.txt",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Fatalf("sanitizeName(%q): expected %q, got %q", in, want, got)
		}
	}
}
