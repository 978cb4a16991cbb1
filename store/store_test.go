//go:build cgo

package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	dbPath := filepath.Join(dir, "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

// ---------------------------------------------------------------------------
// Extraction CRUD
// ---------------------------------------------------------------------------

func sampleExtraction(path string) Extraction {
	return Extraction{
		Path:        path,
		Filename:    "exam.pdf",
		ContentHash: "abc123",
		Status:      "pending",
	}
}

func TestUpsertAndGetExtraction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := sampleExtraction("/tmp/exam.pdf")
	id, err := s.UpsertExtraction(ctx, e)
	if err != nil {
		t.Fatalf("upserting extraction: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero extraction id")
	}

	got, err := s.GetExtraction(ctx, id)
	if err != nil {
		t.Fatalf("getting extraction by id: %v", err)
	}
	if got.Path != e.Path {
		t.Errorf("path: got %q, want %q", got.Path, e.Path)
	}
	if got.Filename != e.Filename {
		t.Errorf("filename: got %q, want %q", got.Filename, e.Filename)
	}
	if got.Status != "pending" {
		t.Errorf("status: got %q, want %q", got.Status, "pending")
	}
}

func TestGetExtractionByPathNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetExtractionByPath(ctx, "/nonexistent")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestUpsertExtractionUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := sampleExtraction("/tmp/update.pdf")
	id1, err := s.UpsertExtraction(ctx, e)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Upsert again with different hash -- same path triggers UPDATE.
	e.ContentHash = "def456"
	e.Status = "ready"
	id2, err := s.UpsertExtraction(ctx, e)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id2 != id1 {
		t.Fatalf("upsert returned different id: %d vs %d", id2, id1)
	}

	got, err := s.GetExtraction(ctx, id1)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.ContentHash != "def456" {
		t.Errorf("content_hash not updated: got %q", got.ContentHash)
	}
}

func TestUpsertExtractionUpdateAfterQuestionInserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := sampleExtraction("/tmp/reextract.pdf")
	id1, err := s.UpsertExtraction(ctx, e)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Question inserts advance last_insert_rowid on the connection, so
	// the id of an UPDATE-branch upsert must come from the table, not
	// from LastInsertId.
	if err := s.ReplaceQuestions(ctx, id1, []Question{
		{QuestionNo: 1, Question: "a", Answer: "b", HasAnswer: true},
		{QuestionNo: 2, Question: "c", Answer: "d", HasAnswer: true},
		{QuestionNo: 3, Question: "e", Answer: "f", HasAnswer: true},
	}); err != nil {
		t.Fatalf("replace questions: %v", err)
	}

	e.ContentHash = "changed"
	id2, err := s.UpsertExtraction(ctx, e)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id2 != id1 {
		t.Fatalf("second upsert returned id %d, want existing extraction id %d", id2, id1)
	}
}

func TestListExtractions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, p := range []string{"/a.pdf", "/b.pdf", "/c.pdf"} {
		e := sampleExtraction(p)
		e.Filename = p
		if _, err := s.UpsertExtraction(ctx, e); err != nil {
			t.Fatalf("insert extraction %d: %v", i, err)
		}
	}

	out, err := s.ListExtractions(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 extractions, got %d", len(out))
	}
}

func TestUpdateExtractionCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertExtraction(ctx, sampleExtraction("/counters.pdf"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	err = s.UpdateExtractionCounters(ctx, id, Extraction{
		TotalQuestions: 40,
		WithAnswers:    38,
		WithImages:     12,
		TotalImages:    17,
		DroppedImages:  1,
		Failures:       0,
		ProcessingMs:   950,
		Status:         "ready",
	})
	if err != nil {
		t.Fatalf("update counters: %v", err)
	}

	got, err := s.GetExtraction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalQuestions != 40 || got.WithAnswers != 38 || got.TotalImages != 17 {
		t.Errorf("counters not persisted: %+v", got)
	}
	if got.Status != "ready" {
		t.Errorf("status: got %q, want %q", got.Status, "ready")
	}
}

// ---------------------------------------------------------------------------
// Question operations
// ---------------------------------------------------------------------------

func sampleQuestions() []Question {
	return []Question{
		{
			QuestionNo: 1,
			Question:   "What is the default port for PostgreSQL?",
			Answer:     "5432",
			HasAnswer:  true,
			Images: []Image{
				{Role: "question", Filename: "question_1_img_1.png", Format: "png", Width: 640, Height: 480},
			},
		},
		{
			QuestionNo: 2,
			Question:   "Configure the load balancer as shown.",
			Answer:     "[no content provided]",
			HasAnswer:  false,
		},
	}
}

func TestReplaceAndGetQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertExtraction(ctx, sampleExtraction("/questions.pdf"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.ReplaceQuestions(ctx, id, sampleQuestions()); err != nil {
		t.Fatalf("replace questions: %v", err)
	}

	got, err := s.GetQuestionsByExtraction(ctx, id)
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(got))
	}
	if got[0].QuestionNo != 1 || got[1].QuestionNo != 2 {
		t.Errorf("ordering by question_no broken: %d, %d", got[0].QuestionNo, got[1].QuestionNo)
	}
	if !got[0].HasAnswer || got[1].HasAnswer {
		t.Errorf("has_answer flags: got %v, %v", got[0].HasAnswer, got[1].HasAnswer)
	}
	if len(got[0].Images) != 1 {
		t.Fatalf("question 1 images: expected 1, got %d", len(got[0].Images))
	}
	img := got[0].Images[0]
	if img.Role != "question" || img.Filename != "question_1_img_1.png" {
		t.Errorf("image reference: %+v", img)
	}
	if img.Width != 640 || img.Height != 480 {
		t.Errorf("image dimensions: got %dx%d", img.Width, img.Height)
	}
}

func TestReplaceQuestionsReplacesOldSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.UpsertExtraction(ctx, sampleExtraction("/replace.pdf"))
	if err := s.ReplaceQuestions(ctx, id, sampleQuestions()); err != nil {
		t.Fatalf("first replace: %v", err)
	}

	// Re-extraction yields a different set.
	if err := s.ReplaceQuestions(ctx, id, []Question{
		{QuestionNo: 7, Question: "New question.", Answer: "New answer.", HasAnswer: true},
	}); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	got, err := s.GetQuestionsByExtraction(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || got[0].QuestionNo != 7 {
		t.Fatalf("expected only the new question, got %+v", got)
	}
}

// ---------------------------------------------------------------------------
// DeleteExtraction (cascade)
// ---------------------------------------------------------------------------

func TestDeleteExtraction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.UpsertExtraction(ctx, sampleExtraction("/delete.pdf"))
	if err := s.ReplaceQuestions(ctx, id, sampleQuestions()); err != nil {
		t.Fatalf("replace questions: %v", err)
	}

	if err := s.DeleteExtraction(ctx, id); err != nil {
		t.Fatalf("delete extraction: %v", err)
	}

	if _, err := s.GetExtraction(ctx, id); err != sql.ErrNoRows {
		t.Fatalf("expected extraction gone, got err=%v", err)
	}

	remaining, err := s.GetQuestionsByExtraction(ctx, id)
	if err != nil {
		t.Fatalf("get questions after delete: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected 0 questions after cascade, got %d", len(remaining))
	}

	var count int
	if err := s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM question_images").Scan(&count); err != nil {
		t.Fatalf("count images: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 image refs after cascade, got %d", count)
	}
}

// ---------------------------------------------------------------------------
// FTS search
// ---------------------------------------------------------------------------

func TestSearchQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.UpsertExtraction(ctx, sampleExtraction("/fts.pdf"))
	questions := []Question{
		{QuestionNo: 1, Question: "Which command lists running containers?", Answer: "docker ps", HasAnswer: true},
		{QuestionNo: 2, Question: "What does DNS stand for?", Answer: "Domain Name System", HasAnswer: true},
		{QuestionNo: 3, Question: "Name the default Kubernetes namespace.", Answer: "default", HasAnswer: true},
	}
	if err := s.ReplaceQuestions(ctx, id, questions); err != nil {
		t.Fatalf("replace questions: %v", err)
	}

	results, err := s.SearchQuestions(ctx, "running containers", 10)
	if err != nil {
		t.Fatalf("fts search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one FTS result")
	}
	if results[0].QuestionNo != 1 {
		t.Errorf("top FTS result question = %d, want 1", results[0].QuestionNo)
	}
	if results[0].Score <= 0 {
		t.Errorf("expected positive score, got %f", results[0].Score)
	}
	if results[0].Filename != "exam.pdf" {
		t.Errorf("filename: got %q, want %q", results[0].Filename, "exam.pdf")
	}
}

func TestSearchQuestionsMatchesAnswerText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.UpsertExtraction(ctx, sampleExtraction("/fts-answer.pdf"))
	questions := []Question{
		{QuestionNo: 1, Question: "Pick the right option.", Answer: "Use the indemnification clause.", HasAnswer: true},
	}
	if err := s.ReplaceQuestions(ctx, id, questions); err != nil {
		t.Fatalf("replace questions: %v", err)
	}

	results, err := s.SearchQuestions(ctx, "indemnification", 10)
	if err != nil {
		t.Fatalf("fts search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result matching answer text, got %d", len(results))
	}
}

func TestSearchQuestionsNoMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.UpsertExtraction(ctx, sampleExtraction("/fts2.pdf"))
	s.ReplaceQuestions(ctx, id, []Question{
		{QuestionNo: 1, Question: "hello world", Answer: "hi", HasAnswer: true},
	})

	results, err := s.SearchQuestions(ctx, "zzzyyyxxx", 10)
	if err != nil {
		t.Fatalf("fts search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results for nonsense query, got %d", len(results))
	}
}

func TestSearchQuestionsIndexFollowsDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.UpsertExtraction(ctx, sampleExtraction("/fts-del.pdf"))
	s.ReplaceQuestions(ctx, id, []Question{
		{QuestionNo: 1, Question: "ephemeral subject matter", Answer: "x", HasAnswer: true},
	})

	if err := s.DeleteExtraction(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	results, err := s.SearchQuestions(ctx, "ephemeral", 10)
	if err != nil {
		t.Fatalf("fts search after delete: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results after delete, got %d", len(results))
	}
}

func TestSearchQuestionsIndexFollowsUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.UpsertExtraction(ctx, sampleExtraction("/fts-upd.pdf"))
	if err := s.ReplaceQuestions(ctx, id, []Question{
		{QuestionNo: 1, Question: "original wording here", Answer: "x", HasAnswer: true},
	}); err != nil {
		t.Fatalf("replace questions: %v", err)
	}

	if _, err := s.DB().ExecContext(ctx,
		"UPDATE questions SET question = 'amended wording here' WHERE extraction_id = ?", id); err != nil {
		t.Fatalf("updating question: %v", err)
	}

	results, err := s.SearchQuestions(ctx, "amended", 10)
	if err != nil {
		t.Fatalf("fts search after update: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result for amended text, got %d", len(results))
	}

	results, err = s.SearchQuestions(ctx, "original", 10)
	if err != nil {
		t.Fatalf("fts search for old text: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results for replaced text, got %d", len(results))
	}
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.UpsertExtraction(ctx, sampleExtraction("/stats.pdf"))
	if err := s.ReplaceQuestions(ctx, id, sampleQuestions()); err != nil {
		t.Fatalf("replace questions: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Extractions != 1 || stats.Questions != 2 || stats.Images != 1 {
		t.Errorf("stats = %+v, want {1 2 1}", stats)
	}
}
