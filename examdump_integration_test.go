//go:build cgo

package examdump

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jwkoo/examdump/reader"
	"github.com/jwkoo/examdump/store"
)

func newStoredEngine(t *testing.T, pages []reader.Page) (*engine, string) {
	t.Helper()
	reg := reader.NewRegistry()
	reg.Register("exam", &fakeReader{pages: pages})

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	path := filepath.Join(t.TempDir(), "doc.exam")
	if err := os.WriteFile(path, []byte("synthetic"), 0644); err != nil {
		t.Fatalf("writing input file: %v", err)
	}
	return &engine{cfg: Config{}, store: s, readers: reg}, path
}

func TestExtractPersistsAndSkipsUnchanged(t *testing.T) {
	e, path := newStoredEngine(t, twoQuestionPages())
	ctx := context.Background()

	first, err := e.Extract(ctx, path)
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}
	if first.DocumentID == 0 {
		t.Fatal("expected non-zero document id with store")
	}

	list, err := e.ListExtractions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 extraction, got %d", len(list))
	}
	if list[0].Status != "ready" {
		t.Errorf("status = %q, want ready", list[0].Status)
	}
	if list[0].TotalQuestions != 2 {
		t.Errorf("persisted total questions = %d, want 2", list[0].TotalQuestions)
	}

	// Same content hash: second call returns the stored result.
	second, err := e.Extract(ctx, path)
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if second.DocumentID != first.DocumentID {
		t.Errorf("second run id = %d, want %d", second.DocumentID, first.DocumentID)
	}
	if len(second.Questions) != len(first.Questions) {
		t.Fatalf("stored result has %d questions, want %d",
			len(second.Questions), len(first.Questions))
	}
	for i := range first.Questions {
		if second.Questions[i].Question != first.Questions[i].Question ||
			second.Questions[i].Answer != first.Questions[i].Answer {
			t.Errorf("stored question %d differs from original", i)
		}
	}
}

func TestExtractForceReextract(t *testing.T) {
	e, path := newStoredEngine(t, twoQuestionPages())
	ctx := context.Background()

	first, err := e.Extract(ctx, path)
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}
	res, err := e.Extract(ctx, path, WithForceReextract())
	if err != nil {
		t.Fatalf("forced extract: %v", err)
	}
	if len(res.Questions) != 2 {
		t.Fatalf("forced run got %d questions, want 2", len(res.Questions))
	}
	// The forced run updates the same record, never forks a new one.
	if res.DocumentID != first.DocumentID {
		t.Fatalf("forced run id = %d, want %d", res.DocumentID, first.DocumentID)
	}
	list, err := e.ListExtractions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 extraction after forced run, got %d", len(list))
	}
}

func TestSearchFindsStoredQuestions(t *testing.T) {
	e, path := newStoredEngine(t, twoQuestionPages())
	ctx := context.Background()

	if _, err := e.Extract(ctx, path); err != nil {
		t.Fatalf("extract: %v", err)
	}

	hits, err := e.Search(ctx, "protocol")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].QuestionNo != 2 {
		t.Errorf("hit question = %d, want 2", hits[0].QuestionNo)
	}
}

func TestDeleteExtraction(t *testing.T) {
	e, path := newStoredEngine(t, twoQuestionPages())
	ctx := context.Background()

	res, err := e.Extract(ctx, path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if err := e.DeleteExtraction(ctx, res.DocumentID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	list, err := e.ListExtractions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected 0 extractions after delete, got %d", len(list))
	}

	if err := e.DeleteExtraction(ctx, res.DocumentID); !errors.Is(err, ErrExtractionNotFound) {
		t.Fatalf("err = %v, want ErrExtractionNotFound", err)
	}
}
