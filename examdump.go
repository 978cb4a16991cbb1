// Package examdump extracts structured question/answer content, with
// embedded images, from fixed-format exam PDFs. Questions are anchored
// by "QUESTION NO: n" markers, answers by "Answer:" markers, and images
// are assigned to question or answer regions by their estimated position
// in the document's text order.
package examdump

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jwkoo/examdump/assemble"
	"github.com/jwkoo/examdump/reader"
	"github.com/jwkoo/examdump/segment"
	"github.com/jwkoo/examdump/store"
	"github.com/jwkoo/examdump/stream"
)

// Engine is the main entry point for exam extraction.
type Engine interface {
	// Extract runs the full pipeline on a document and returns its
	// question records. With a store configured, the run is recorded
	// and an unchanged document returns the stored result.
	Extract(ctx context.Context, path string, opts ...ExtractOption) (*Result, error)

	// Search runs a full-text query over stored question and answer
	// text. Requires a store.
	Search(ctx context.Context, query string) ([]QuestionAnswer, error)

	// ListExtractions returns all recorded extraction runs.
	ListExtractions(ctx context.Context) ([]Extraction, error)

	// DeleteExtraction removes a run and all its question records.
	DeleteExtraction(ctx context.Context, id int64) error

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// Result is the outcome of one extraction run.
type Result struct {
	DocumentID    int64            `json:"document_id,omitempty"`
	Questions     []QuestionAnswer `json:"questions"`
	Stats         Stats            `json:"stats"`
	DroppedImages int              `json:"dropped_images"`
	Failures      int              `json:"failures"`
}

// QuestionAnswer is one extracted question record.
type QuestionAnswer struct {
	QuestionNo int        `json:"question_no"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Images     []ImageRef `json:"images,omitempty"`
	HasImages  bool       `json:"has_images"`
	Degraded   bool       `json:"degraded,omitempty"`
}

// HasAnswer reports whether the record carries real answer content.
func (q QuestionAnswer) HasAnswer() bool {
	return q.Answer != assemble.PlaceholderNoContent && q.Answer != assemble.PlaceholderError
}

// ImageRole says which side of a question an image belongs to.
type ImageRole string

const (
	RoleQuestion ImageRole = "question"
	RoleAnswer   ImageRole = "answer"
)

// ImageRef references one image attached to a question: either a file
// written to the image directory (Filename) or an inline base64 payload
// (Encoded), never both.
type ImageRef struct {
	Role     ImageRole `json:"role"`
	Filename string    `json:"filename,omitempty"`
	Encoded  string    `json:"encoded_bytes,omitempty"`
	Format   string    `json:"format"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
}

// Stats aggregates counters over one extraction run.
type Stats struct {
	TotalQuestions       int     `json:"total_questions"`
	QuestionsWithAnswers int     `json:"questions_with_answers"`
	QuestionsWithImages  int     `json:"questions_with_images"`
	TotalImages          int     `json:"total_images"`
	ProcessingSeconds    float64 `json:"processing_time_seconds"`
}

// AnswerCompletionRate is the fraction of questions with real answers.
func (s Stats) AnswerCompletionRate() float64 {
	if s.TotalQuestions == 0 {
		return 0
	}
	return float64(s.QuestionsWithAnswers) / float64(s.TotalQuestions)
}

// ImageInclusionRate is the fraction of questions carrying images.
func (s Stats) ImageInclusionRate() float64 {
	if s.TotalQuestions == 0 {
		return 0
	}
	return float64(s.QuestionsWithImages) / float64(s.TotalQuestions)
}

// Extraction represents a recorded extraction run.
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
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// ExtractOption configures one extraction run.
type ExtractOption func(*extractOptions)

type extractOptions struct {
	forceReextract bool
	inlineImages   bool
	imageDir       string
	estimator      stream.OffsetEstimator
}

// WithForceReextract re-runs the pipeline even if the content hash
// hasn't changed.
func WithForceReextract() ExtractOption {
	return func(o *extractOptions) { o.forceReextract = true }
}

// WithInlineImages embeds image payloads base64-encoded in the records
// instead of referencing files.
func WithInlineImages() ExtractOption {
	return func(o *extractOptions) { o.inlineImages = true }
}

// WithImageDir sets the directory extracted image files are written to.
func WithImageDir(dir string) ExtractOption {
	return func(o *extractOptions) { o.imageDir = dir }
}

// WithOffsetEstimator overrides the image offset placement strategy.
func WithOffsetEstimator(est stream.OffsetEstimator) ExtractOption {
	return func(o *extractOptions) { o.estimator = est }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg     Config
	store   *store.Store
	readers *reader.Registry
}

// New creates a new examdump engine with the given configuration.
func New(cfg Config) (Engine, error) {
	var s *store.Store
	if !cfg.SkipStore {
		var err error
		s, err = store.New(cfg.resolveDBPath())
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
	}

	return &engine{
		cfg:     cfg,
		store:   s,
		readers: reader.NewRegistry(),
	}, nil
}

// Extract processes one document through the full pipeline.
func (e *engine) Extract(ctx context.Context, path string, opts ...ExtractOption) (*Result, error) {
	options := &extractOptions{
		inlineImages: e.cfg.InlineImages,
		imageDir:     e.cfg.ImageDir,
	}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	filename := filepath.Base(absPath)

	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(absPath), "."))
	rd, err := e.readers.Get(ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	// Unchanged content returns the stored result.
	if e.store != nil && !options.forceReextract {
		existing, err := e.store.GetExtractionByPath(ctx, absPath)
		if err == nil && existing.ContentHash == hash && existing.Status == "ready" {
			slog.Info("extract: document unchanged, returning stored result",
				"file", filename, "id", existing.ID)
			return e.storedResult(ctx, existing)
		}
	}

	var extractionID int64
	if e.store != nil {
		extractionID, err = e.store.UpsertExtraction(ctx, store.Extraction{
			Path:        absPath,
			Filename:    filename,
			ContentHash: hash,
			Status:      "processing",
		})
		if err != nil {
			return nil, fmt.Errorf("recording extraction: %w", err)
		}
	}

	start := time.Now()
	slog.Info("extract: reading document", "file", filename)

	pages, err := rd.ReadPages(ctx, absPath)
	if err != nil {
		e.markError(ctx, extractionID)
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}

	built := stream.Build(pages, options.estimator)
	markers := segment.LocateMarkers(built.FullText)
	if countQuestionMarkers(markers) == 0 {
		e.markError(ctx, extractionID)
		return nil, ErrNoQuestionMarkers
	}
	ranges := segment.ResolveRanges(markers)
	classified := segment.ClassifyElements(built.Elements, ranges)

	slog.Info("extract: stream segmented",
		"file", filename, "pages", len(pages), "elements", len(built.Elements),
		"markers", len(markers), "questions", len(ranges),
		"dropped_images", classified.DroppedImages)

	result := &Result{
		DocumentID:    extractionID,
		DroppedImages: classified.DroppedImages,
	}
	for _, r := range ranges {
		b := classified.ByQuestion[r.QuestionNo]
		qa, err := e.assembleQuestion(r.QuestionNo, *b, options)
		if err != nil {
			// One bad question never aborts the batch.
			slog.Warn("extract: question processing failed",
				"question", r.QuestionNo, "error", err)
			result.Failures++
			qa = degradedRecord(r.QuestionNo, b)
		}
		result.Questions = append(result.Questions, qa)
	}

	result.Stats = computeStats(result.Questions, time.Since(start))

	if e.store != nil {
		if err := e.persist(ctx, extractionID, result); err != nil {
			e.markError(ctx, extractionID)
			return nil, fmt.Errorf("persisting result: %w", err)
		}
	}

	slog.Info("extract: complete",
		"file", filename,
		"questions", result.Stats.TotalQuestions,
		"with_answers", result.Stats.QuestionsWithAnswers,
		"images", result.Stats.TotalImages,
		"failures", result.Failures,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// assembleQuestion builds one question's record. A panic while
// assembling is converted to an error so the caller can substitute a
// degraded record.
func (e *engine) assembleQuestion(no int, b segment.Buckets, options *extractOptions) (qa QuestionAnswer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("assembling question %d: %v", no, r)
		}
	}()

	s := assemble.Build(no, b)
	qa = QuestionAnswer{
		QuestionNo: no,
		Question:   s.QuestionText(),
		Answer:     s.AnswerText(),
	}

	// Question images first, then answer images, each in stream order.
	k := 0
	for _, el := range s.QuestionElements {
		if el.Kind != stream.KindImage {
			continue
		}
		k++
		ref, err := e.imageRef(no, k, RoleQuestion, el, options)
		if err != nil {
			return qa, err
		}
		qa.Images = append(qa.Images, ref)
	}
	for _, el := range s.AnswerElements {
		if el.Kind != stream.KindImage {
			continue
		}
		k++
		ref, err := e.imageRef(no, k, RoleAnswer, el, options)
		if err != nil {
			return qa, err
		}
		qa.Images = append(qa.Images, ref)
	}
	qa.HasImages = len(qa.Images) > 0
	return qa, nil
}

// imageRef materialises one image element as a reference, writing the
// file when an image directory is configured.
func (e *engine) imageRef(no, k int, role ImageRole, el stream.Element, options *extractOptions) (ImageRef, error) {
	format := el.Format
	if format == "" {
		format = "png"
	}
	ref := ImageRef{Role: role, Format: format, Width: el.Width, Height: el.Height}

	if options.inlineImages {
		ref.Encoded = base64.StdEncoding.EncodeToString(el.Data)
		return ref, nil
	}

	ref.Filename = fmt.Sprintf("question_%d_img_%d.%s", no, k, format)
	if options.imageDir != "" {
		if err := os.MkdirAll(options.imageDir, 0755); err != nil {
			return ref, fmt.Errorf("creating image dir: %w", err)
		}
		path := filepath.Join(options.imageDir, ref.Filename)
		if err := os.WriteFile(path, el.Data, 0644); err != nil {
			return ref, fmt.Errorf("writing %s: %w", ref.Filename, err)
		}
	}
	return ref, nil
}

// degradedRecord stands in for a question whose assembly failed. The
// question side keeps whatever raw text survived; images are dropped.
func degradedRecord(no int, b *segment.Buckets) QuestionAnswer {
	fallback := assemble.PlaceholderNoContent
	if b != nil {
		var parts []string
		for _, el := range b.Question {
			if el.Kind == stream.KindText {
				parts = append(parts, el.Text)
			}
		}
		if raw := strings.TrimSpace(strings.Join(parts, "\n")); raw != "" {
			fallback = raw
		}
	}
	return QuestionAnswer{
		QuestionNo: no,
		Question:   fallback,
		Answer:     assemble.PlaceholderError,
		Degraded:   true,
	}
}

func computeStats(questions []QuestionAnswer, elapsed time.Duration) Stats {
	s := Stats{
		TotalQuestions:    len(questions),
		ProcessingSeconds: elapsed.Seconds(),
	}
	for _, q := range questions {
		if q.HasAnswer() {
			s.QuestionsWithAnswers++
		}
		if q.HasImages {
			s.QuestionsWithImages++
		}
		s.TotalImages += len(q.Images)
	}
	return s
}

func countQuestionMarkers(markers []segment.Marker) int {
	n := 0
	for _, m := range markers {
		if m.Kind == segment.MarkerQuestion {
			n++
		}
	}
	return n
}

// persist writes the run's questions and counters to the store.
func (e *engine) persist(ctx context.Context, extractionID int64, r *Result) error {
	rows := make([]store.Question, 0, len(r.Questions))
	for _, q := range r.Questions {
		row := store.Question{
			QuestionNo: q.QuestionNo,
			Question:   q.Question,
			Answer:     q.Answer,
			HasAnswer:  q.HasAnswer(),
			Degraded:   q.Degraded,
		}
		for i, img := range q.Images {
			row.Images = append(row.Images, store.Image{
				Position: i,
				Role:     string(img.Role),
				Filename: img.Filename,
				Format:   img.Format,
				Width:    img.Width,
				Height:   img.Height,
			})
		}
		rows = append(rows, row)
	}
	if err := e.store.ReplaceQuestions(ctx, extractionID, rows); err != nil {
		return err
	}
	return e.store.UpdateExtractionCounters(ctx, extractionID, store.Extraction{
		TotalQuestions: r.Stats.TotalQuestions,
		WithAnswers:    r.Stats.QuestionsWithAnswers,
		WithImages:     r.Stats.QuestionsWithImages,
		TotalImages:    r.Stats.TotalImages,
		DroppedImages:  r.DroppedImages,
		Failures:       r.Failures,
		ProcessingMs:   int64(r.Stats.ProcessingSeconds * 1000),
		Status:         "ready",
	})
}

// storedResult rebuilds a Result from a previously persisted run.
func (e *engine) storedResult(ctx context.Context, ext *store.Extraction) (*Result, error) {
	rows, err := e.store.GetQuestionsByExtraction(ctx, ext.ID)
	if err != nil {
		return nil, fmt.Errorf("loading stored questions: %w", err)
	}

	result := &Result{
		DocumentID:    ext.ID,
		DroppedImages: ext.DroppedImages,
		Failures:      ext.Failures,
		Stats: Stats{
			TotalQuestions:       ext.TotalQuestions,
			QuestionsWithAnswers: ext.WithAnswers,
			QuestionsWithImages:  ext.WithImages,
			TotalImages:          ext.TotalImages,
			ProcessingSeconds:    float64(ext.ProcessingMs) / 1000,
		},
	}
	for _, row := range rows {
		result.Questions = append(result.Questions, recordFromRow(row))
	}
	return result, nil
}

func recordFromRow(row store.Question) QuestionAnswer {
	qa := QuestionAnswer{
		QuestionNo: row.QuestionNo,
		Question:   row.Question,
		Answer:     row.Answer,
		Degraded:   row.Degraded,
	}
	for _, img := range row.Images {
		qa.Images = append(qa.Images, ImageRef{
			Role:     ImageRole(img.Role),
			Filename: img.Filename,
			Format:   img.Format,
			Width:    img.Width,
			Height:   img.Height,
		})
	}
	qa.HasImages = len(qa.Images) > 0
	return qa
}

func (e *engine) markError(ctx context.Context, extractionID int64) {
	if e.store == nil || extractionID == 0 {
		return
	}
	if err := e.store.UpdateExtractionStatus(ctx, extractionID, "error"); err != nil {
		slog.Warn("extract: updating status failed", "id", extractionID, "error", err)
	}
}

// Search runs a full-text query over stored question and answer text.
func (e *engine) Search(ctx context.Context, query string) ([]QuestionAnswer, error) {
	if e.store == nil {
		return nil, ErrStoreRequired
	}
	hits, err := e.store.SearchQuestions(ctx, query, 20)
	if err != nil {
		return nil, fmt.Errorf("searching questions: %w", err)
	}

	out := make([]QuestionAnswer, 0, len(hits))
	for _, h := range hits {
		out = append(out, recordFromRow(h.Question))
	}
	return out, nil
}

// ListExtractions returns all recorded extraction runs.
func (e *engine) ListExtractions(ctx context.Context) ([]Extraction, error) {
	if e.store == nil {
		return nil, ErrStoreRequired
	}
	rows, err := e.store.ListExtractions(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Extraction, len(rows))
	for i, r := range rows {
		out[i] = Extraction{
			ID:             r.ID,
			Path:           r.Path,
			Filename:       r.Filename,
			ContentHash:    r.ContentHash,
			Status:         r.Status,
			TotalQuestions: r.TotalQuestions,
			WithAnswers:    r.WithAnswers,
			WithImages:     r.WithImages,
			TotalImages:    r.TotalImages,
			CreatedAt:      r.CreatedAt,
			UpdatedAt:      r.UpdatedAt,
		}
	}
	return out, nil
}

// DeleteExtraction removes a run and all its question records.
func (e *engine) DeleteExtraction(ctx context.Context, id int64) error {
	if e.store == nil {
		return ErrStoreRequired
	}
	if _, err := e.store.GetExtraction(ctx, id); err != nil {
		return fmt.Errorf("%w: %d", ErrExtractionNotFound, id)
	}
	return e.store.DeleteExtraction(ctx, id)
}

// Store returns the underlying store for diagnostic access.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts down the engine.
func (e *engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
