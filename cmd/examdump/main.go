// Command examdump extracts question/answer content from exam PDFs and
// writes the results as JSON, CSV, text listings, and an XLSX workbook.
//
// Usage (the sqlite_fts5 tag enables full-text search in the store):
//
//	go run -tags sqlite_fts5 ./cmd/examdump -pdf exam.pdf -output-dir ./out
//	go run -tags sqlite_fts5 ./cmd/examdump -search "routing protocol"
//	go run -tags sqlite_fts5 ./cmd/examdump -list
//	go run -tags sqlite_fts5 ./cmd/examdump -delete 3
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	examdump "github.com/jwkoo/examdump"
	"github.com/jwkoo/examdump/export"
)

func main() {
	var (
		pdfPath      = flag.String("pdf", "", "Path to the exam PDF to extract")
		outputDir    = flag.String("output-dir", "output", "Directory extraction outputs are written to")
		dbPath       = flag.String("db", "", "SQLite database path (default ~/.examdump/examdump.db)")
		noStore      = flag.Bool("no-store", false, "Skip the database entirely")
		inlineImages = flag.Bool("inline-images", false, "Embed images base64-encoded in the JSON output")
		noCSV        = flag.Bool("no-csv", false, "Skip the CSV output")
		noXLSX       = flag.Bool("no-xlsx", false, "Skip the XLSX output")
		force        = flag.Bool("force", false, "Re-extract even if the document is unchanged")
		search       = flag.String("search", "", "Full-text search stored questions instead of extracting")
		list         = flag.Bool("list", false, "List recorded extractions")
		deleteID     = flag.Int64("delete", 0, "Delete the extraction with this id")
		quiet        = flag.Bool("quiet", false, "Only log warnings and errors")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *quiet {
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	cfg := examdump.DefaultConfig()
	cfg.DBPath = *dbPath
	cfg.SkipStore = *noStore
	cfg.InlineImages = *inlineImages

	modes := 0
	if *pdfPath != "" {
		modes++
	}
	if *search != "" {
		modes++
	}
	if *list {
		modes++
	}
	if *deleteID != 0 {
		modes++
	}
	if modes == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if modes > 1 {
		log.Fatal("choose exactly one of -pdf, -search, -list, -delete")
	}
	if (*search != "" || *list || *deleteID != 0) && *noStore {
		log.Fatal("-search, -list, and -delete require the database")
	}

	engine, err := examdump.New(cfg)
	if err != nil {
		log.Fatalf("creating engine: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()

	switch {
	case *search != "":
		runSearch(ctx, engine, *search)
	case *list:
		runList(ctx, engine)
	case *deleteID != 0:
		runDelete(ctx, engine, *deleteID)
	default:
		runExtract(ctx, engine, *pdfPath, *outputDir, *inlineImages, *noCSV, *noXLSX, *force)
	}
}

func runExtract(ctx context.Context, engine examdump.Engine, pdfPath, outputDir string, inlineImages, noCSV, noXLSX, force bool) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Fatalf("creating output dir: %v", err)
	}

	var opts []examdump.ExtractOption
	if force {
		opts = append(opts, examdump.WithForceReextract())
	}
	if inlineImages {
		opts = append(opts, examdump.WithInlineImages())
	} else {
		opts = append(opts, examdump.WithImageDir(filepath.Join(outputDir, "images")))
	}

	res, err := engine.Extract(ctx, pdfPath, opts...)
	if err != nil {
		log.Fatalf("extraction failed: %v", err)
	}

	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	out := func(suffix string) string { return filepath.Join(outputDir, base+suffix) }

	if err := export.WriteJSON(out(".json"), res); err != nil {
		log.Fatalf("writing JSON: %v", err)
	}
	if err := export.WriteQuestionsTxt(out("_questions.txt"), res.Questions); err != nil {
		log.Fatalf("writing questions listing: %v", err)
	}
	if err := export.WriteAnswersTxt(out("_answers.txt"), res.Questions); err != nil {
		log.Fatalf("writing answers listing: %v", err)
	}
	if err := export.WriteCombinedTxt(out("_combined.txt"), res.Questions); err != nil {
		log.Fatalf("writing combined listing: %v", err)
	}
	if !noCSV {
		if err := export.WriteCSV(out(".csv"), res.Questions); err != nil {
			log.Fatalf("writing CSV: %v", err)
		}
	}
	if !noXLSX {
		if err := export.WriteXLSX(out(".xlsx"), res); err != nil {
			log.Fatalf("writing XLSX: %v", err)
		}
	}

	s := res.Stats
	fmt.Printf("Extracted %d questions (%d with answers, %d with images, %d images total)\n",
		s.TotalQuestions, s.QuestionsWithAnswers, s.QuestionsWithImages, s.TotalImages)
	fmt.Printf("Answer completion: %.1f%%  Image inclusion: %.1f%%\n",
		s.AnswerCompletionRate()*100, s.ImageInclusionRate()*100)
	if res.DroppedImages > 0 {
		fmt.Printf("Dropped images: %d\n", res.DroppedImages)
	}
	if res.Failures > 0 {
		fmt.Printf("Failed questions: %d\n", res.Failures)
	}
	fmt.Printf("Outputs written to %s\n", outputDir)
}

func runSearch(ctx context.Context, engine examdump.Engine, query string) {
	hits, err := engine.Search(ctx, query)
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}
	if len(hits) == 0 {
		fmt.Println("no matches")
		return
	}
	for _, q := range hits {
		fmt.Printf("QUESTION NO: %d\n%s\n", q.QuestionNo, q.Question)
		if q.HasAnswer() {
			fmt.Printf("Answer:\n%s\n", q.Answer)
		}
		fmt.Println()
	}
}

func runList(ctx context.Context, engine examdump.Engine) {
	extractions, err := engine.ListExtractions(ctx)
	if err != nil {
		log.Fatalf("listing extractions: %v", err)
	}
	if len(extractions) == 0 {
		fmt.Println("no extractions recorded")
		return
	}
	fmt.Printf("%-5s %-40s %-10s %-10s %s\n", "ID", "FILE", "STATUS", "QUESTIONS", "UPDATED")
	for _, e := range extractions {
		fmt.Printf("%-5d %-40s %-10s %-10d %s\n",
			e.ID, e.Filename, e.Status, e.TotalQuestions, e.UpdatedAt)
	}
}

func runDelete(ctx context.Context, engine examdump.Engine, id int64) {
	if err := engine.DeleteExtraction(ctx, id); err != nil {
		log.Fatalf("deleting extraction %d: %v", id, err)
	}
	fmt.Printf("deleted extraction %d\n", id)
}
