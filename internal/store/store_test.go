package store

import (
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPaperCRUD(t *testing.T) {
	s := newTestStore(t)

	list, err := s.ListPapers()
	if err != nil {
		t.Fatalf("ListPapers: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	id, err := s.SavePaper("physics-midterm", "Q1. Define Force.\nQ2. Calculate velocity.")
	if err != nil {
		t.Fatalf("SavePaper: %v", err)
	}

	p, err := s.GetPaper(id)
	if err != nil {
		t.Fatalf("GetPaper: %v", err)
	}
	if p.Name != "physics-midterm" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Body == "" || p.CreatedAt.IsZero() {
		t.Errorf("paper not fully populated: %+v", p)
	}

	list, err = s.ListPapers()
	if err != nil {
		t.Fatalf("ListPapers: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(list))
	}
}

func TestSavePaperDeduplicates(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.SavePaper("first upload", "Q1. Define Force.")
	if err != nil {
		t.Fatalf("SavePaper: %v", err)
	}
	id2, err := s.SavePaper("second upload, same content", "Q1. Define Force.")
	if err != nil {
		t.Fatalf("SavePaper duplicate: %v", err)
	}
	if id1 != id2 {
		t.Errorf("duplicate body got new id %d, want existing %d", id2, id1)
	}

	list, _ := s.ListPapers()
	if len(list) != 1 {
		t.Errorf("expected 1 paper after duplicate save, got %d", len(list))
	}
}

func TestKeyCRUD(t *testing.T) {
	s := newTestStore(t)

	id, err := s.SaveKey("midterm-key", `{"2": {"text": "v=20m/s", "marks": 5}}`)
	if err != nil {
		t.Fatalf("SaveKey: %v", err)
	}

	k, err := s.GetKey(id)
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if k.Name != "midterm-key" {
		t.Errorf("Name = %q", k.Name)
	}

	keys, err := s.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(keys))
	}
}

func TestGetMissingRowFails(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetPaper(42); err == nil {
		t.Error("GetPaper(42) should fail on empty store")
	}
	if _, err := s.GetKey(42); err == nil {
		t.Error("GetKey(42) should fail on empty store")
	}
}
