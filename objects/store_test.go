package objects

import (
	"testing"
)

func TestStorePublicURLDerivation(t *testing.T) {
	store, err := NewStore("cdn.example.com", "access", "secret", "uploads", true)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	want := "https://cdn.example.com/uploads/123-file.png"
	if got := store.URLFor("123-file.png"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestStoreInsecureEndpoint(t *testing.T) {
	store, err := NewStore("localhost:9000", "access", "secret", "uploads", false)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	want := "http://localhost:9000/uploads/x"
	if got := store.URLFor("x"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
