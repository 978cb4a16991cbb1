// Package store persists extraction runs and their question records in
// SQLite, with an FTS5 index over question and answer text.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Extraction represents a row in the extractions table: one processed
// source document with its aggregate counters.
type Extraction struct {
	ID             int64  `json:"id"`
	Path           string `json:"path"`
	Filename       string `json:"filename"`
	ContentHash    string `json:"content_hash"`
	Status         string `json:"status"`
	TotalQuestions int    `json:"total_questions"`
	WithAnswers    int    `json:"with_answers"`
	WithImages     int    `json:"with_images"`
	TotalImages    int    `json:"total_images"`
	DroppedImages  int    `json:"dropped_images"`
	Failures       int    `json:"failures"`
	ProcessingMs   int64  `json:"processing_ms"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// Question represents a row in the questions table.
type Question struct {
	ID           int64   `json:"id"`
	ExtractionID int64   `json:"extraction_id"`
	QuestionNo   int     `json:"question_no"`
	Question     string  `json:"question"`
	Answer       string  `json:"answer"`
	HasAnswer    bool    `json:"has_answer"`
	Degraded     bool    `json:"degraded"`
	Images       []Image `json:"images,omitempty"`
}

// Image is an image reference row attached to a question.
type Image struct {
	Position int    `json:"position"`
	Role     string `json:"role"` // "question" or "answer"
	Filename string `json:"filename,omitempty"`
	Format   string `json:"format,omitempty"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// SearchResult is one FTS hit with its source extraction.
type SearchResult struct {
	Question
	Filename string  `json:"filename"`
	Path     string  `json:"path"`
	Score    float64 `json:"score"`
}

// Store wraps the SQLite database for all examdump persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the FTS5 virtual table.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Extraction operations ---

// UpsertExtraction inserts or updates an extraction record keyed by
// path. Returns the extraction ID.
func (s *Store) UpsertExtraction(ctx context.Context, e Extraction) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extractions (path, filename, content_hash, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			content_hash = excluded.content_hash,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
	`, e.Path, e.Filename, e.ContentHash, e.Status)
	if err != nil {
		return 0, err
	}

	// LastInsertId is not updated when the upsert takes the UPDATE
	// branch, so resolve the id by path.
	var id int64
	row := s.db.QueryRowContext(ctx, "SELECT id FROM extractions WHERE path = ?", e.Path)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetExtractionByPath retrieves an extraction by its source file path.
func (s *Store) GetExtractionByPath(ctx context.Context, path string) (*Extraction, error) {
	return s.getExtraction(ctx, "path = ?", path)
}

// GetExtraction retrieves an extraction by ID.
func (s *Store) GetExtraction(ctx context.Context, id int64) (*Extraction, error) {
	return s.getExtraction(ctx, "id = ?", id)
}

func (s *Store) getExtraction(ctx context.Context, where string, arg any) (*Extraction, error) {
	e := &Extraction{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, path, filename, content_hash, status,
			total_questions, with_answers, with_images, total_images,
			dropped_images, failures, processing_ms, created_at, updated_at
		FROM extractions WHERE `+where,
		arg).Scan(&e.ID, &e.Path, &e.Filename, &e.ContentHash, &e.Status,
		&e.TotalQuestions, &e.WithAnswers, &e.WithImages, &e.TotalImages,
		&e.DroppedImages, &e.Failures, &e.ProcessingMs, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListExtractions returns all extractions ordered by creation time.
func (s *Store) ListExtractions(ctx context.Context) ([]Extraction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, filename, content_hash, status,
			total_questions, with_answers, with_images, total_images,
			dropped_images, failures, processing_ms, created_at, updated_at
		FROM extractions ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Extraction
	for rows.Next() {
		var e Extraction
		if err := rows.Scan(&e.ID, &e.Path, &e.Filename, &e.ContentHash, &e.Status,
			&e.TotalQuestions, &e.WithAnswers, &e.WithImages, &e.TotalImages,
			&e.DroppedImages, &e.Failures, &e.ProcessingMs, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateExtractionStatus updates just the status field.
func (s *Store) UpdateExtractionStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE extractions SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	return err
}

// UpdateExtractionCounters writes the aggregate counters after a
// completed run.
func (s *Store) UpdateExtractionCounters(ctx context.Context, id int64, e Extraction) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE extractions SET
			total_questions = ?, with_answers = ?, with_images = ?,
			total_images = ?, dropped_images = ?, failures = ?,
			processing_ms = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, e.TotalQuestions, e.WithAnswers, e.WithImages,
		e.TotalImages, e.DroppedImages, e.Failures,
		e.ProcessingMs, e.Status, id)
	return err
}

// DeleteExtraction removes an extraction and cascades to its questions
// and image references. The FTS triggers clean up the index.
func (s *Store) DeleteExtraction(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM question_images WHERE question_id IN (
				SELECT id FROM questions WHERE extraction_id = ?
			)`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM questions WHERE extraction_id = ?", id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM extractions WHERE id = ?", id)
		return err
	})
}

// --- Question operations ---

// ReplaceQuestions atomically replaces all question rows for an
// extraction with the given set (re-extraction).
func (s *Store) ReplaceQuestions(ctx context.Context, extractionID int64, questions []Question) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM question_images WHERE question_id IN (
				SELECT id FROM questions WHERE extraction_id = ?
			)`, extractionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM questions WHERE extraction_id = ?", extractionID); err != nil {
			return err
		}

		qStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO questions (extraction_id, question_no, question, answer, has_answer, degraded)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer qStmt.Close()

		iStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO question_images (question_id, position, role, filename, format, width, height)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer iStmt.Close()

		for _, q := range questions {
			res, err := qStmt.ExecContext(ctx,
				extractionID, q.QuestionNo, q.Question, q.Answer, q.HasAnswer, q.Degraded)
			if err != nil {
				return err
			}
			qid, err := res.LastInsertId()
			if err != nil {
				return err
			}
			for i, img := range q.Images {
				if _, err := iStmt.ExecContext(ctx,
					qid, i, img.Role, img.Filename, img.Format, img.Width, img.Height); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetQuestionsByExtraction returns all questions for an extraction in
// question-number order, with their image references attached.
func (s *Store) GetQuestionsByExtraction(ctx context.Context, extractionID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, extraction_id, question_no, question, answer, has_answer, degraded
		FROM questions WHERE extraction_id = ? ORDER BY question_no
	`, extractionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.ExtractionID, &q.QuestionNo,
			&q.Question, &q.Answer, &q.HasAnswer, &q.Degraded); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		imgs, err := s.questionImages(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Images = imgs
	}
	return out, nil
}

func (s *Store) questionImages(ctx context.Context, questionID int64) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, role, COALESCE(filename, ''), COALESCE(format, ''), width, height
		FROM question_images WHERE question_id = ? ORDER BY position
	`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var imgs []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.Position, &img.Role, &img.Filename,
			&img.Format, &img.Width, &img.Height); err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
	}
	return imgs, rows.Err()
}

// SearchQuestions performs a full-text search over question and answer
// text using FTS5 BM25 ranking.
func (s *Store) SearchQuestions(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.rowid, f.rank,
			q.extraction_id, q.question_no, q.question, q.answer, q.has_answer, q.degraded,
			e.filename, e.path
		FROM questions_fts f
		JOIN questions q ON q.id = f.rowid
		JOIN extractions e ON e.id = q.extraction_id
		WHERE questions_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var rank float64
		if err := rows.Scan(&r.Question.ID, &rank,
			&r.ExtractionID, &r.QuestionNo, &r.Question.Question, &r.Answer,
			&r.HasAnswer, &r.Degraded, &r.Filename, &r.Path); err != nil {
			return nil, err
		}
		// FTS5 rank is negative (lower = better), convert to positive score
		r.Score = -rank
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		imgs, err := s.questionImages(ctx, results[i].Question.ID)
		if err != nil {
			return nil, err
		}
		results[i].Question.Images = imgs
	}
	return results, nil
}

// --- Diagnostic helpers ---

// DBStats holds counts of key database objects.
type DBStats struct {
	Extractions int `json:"extractions"`
	Questions   int `json:"questions"`
	Images      int `json:"images"`
}

// Stats returns counts of extractions, questions, and image references.
func (s *Store) Stats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM extractions", &stats.Extractions},
		{"SELECT COUNT(*) FROM questions", &stats.Questions},
		{"SELECT COUNT(*) FROM question_images", &stats.Images},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
