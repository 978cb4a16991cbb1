// Package export writes extraction results to the output formats the
// CLI serves: JSON, CSV, plain-text question/answer listings, and XLSX.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	examdump "github.com/jwkoo/examdump"
)

// WriteJSON writes the full result, stats included, as indented JSON.
func WriteJSON(path string, res *examdump.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// WriteCSV writes one row per question with image filenames joined by
// semicolons.
func WriteCSV(path string, questions []examdump.QuestionAnswer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"question_no", "question", "answer", "has_answer", "image_count", "images"}); err != nil {
		return err
	}
	for _, q := range questions {
		row := []string{
			strconv.Itoa(q.QuestionNo),
			q.Question,
			q.Answer,
			strconv.FormatBool(q.HasAnswer()),
			strconv.Itoa(len(q.Images)),
			joinImageNames(q.Images),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteQuestionsTxt writes a questions-only listing.
func WriteQuestionsTxt(path string, questions []examdump.QuestionAnswer) error {
	var sb strings.Builder
	for _, q := range questions {
		fmt.Fprintf(&sb, "QUESTION NO: %d\n%s\n\n", q.QuestionNo, q.Question)
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// WriteAnswersTxt writes an answers-only listing.
func WriteAnswersTxt(path string, questions []examdump.QuestionAnswer) error {
	var sb strings.Builder
	for _, q := range questions {
		fmt.Fprintf(&sb, "QUESTION NO: %d\n%s\n\n", q.QuestionNo, q.Answer)
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// WriteCombinedTxt writes questions and answers interleaved, with image
// references listed after each section.
func WriteCombinedTxt(path string, questions []examdump.QuestionAnswer) error {
	var sb strings.Builder
	for _, q := range questions {
		fmt.Fprintf(&sb, "QUESTION NO: %d\n%s\n", q.QuestionNo, q.Question)
		for _, img := range q.Images {
			if img.Role == examdump.RoleQuestion && img.Filename != "" {
				fmt.Fprintf(&sb, "[image: %s]\n", img.Filename)
			}
		}
		fmt.Fprintf(&sb, "Answer:\n%s\n", q.Answer)
		for _, img := range q.Images {
			if img.Role == examdump.RoleAnswer && img.Filename != "" {
				fmt.Fprintf(&sb, "[image: %s]\n", img.Filename)
			}
		}
		sb.WriteString("\n")
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// WriteXLSX writes a workbook with a Questions sheet and a Summary
// sheet carrying the run statistics.
func WriteXLSX(path string, res *examdump.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Questions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	headers := []string{"Question No", "Question", "Answer", "Has Answer", "Images"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for row, q := range res.Questions {
		values := []any{q.QuestionNo, q.Question, q.Answer, q.HasAnswer(), joinImageNames(q.Images)}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	const summary = "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return err
	}
	stats := [][]any{
		{"Total questions", res.Stats.TotalQuestions},
		{"Questions with answers", res.Stats.QuestionsWithAnswers},
		{"Questions with images", res.Stats.QuestionsWithImages},
		{"Total images", res.Stats.TotalImages},
		{"Dropped images", res.DroppedImages},
		{"Failures", res.Failures},
		{"Processing seconds", res.Stats.ProcessingSeconds},
	}
	for row, pair := range stats {
		nameCell, err := excelize.CoordinatesToCellName(1, row+1)
		if err != nil {
			return err
		}
		valueCell, err := excelize.CoordinatesToCellName(2, row+1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(summary, nameCell, pair[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(summary, valueCell, pair[1]); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func joinImageNames(images []examdump.ImageRef) string {
	var names []string
	for _, img := range images {
		if img.Filename != "" {
			names = append(names, img.Filename)
		}
	}
	return strings.Join(names, ";")
}
