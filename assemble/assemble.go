// Package assemble merges classified stream elements back into clean
// per-question records: question text, answer text, and the ordered
// image lists.
package assemble

import (
	"regexp"
	"strings"

	"github.com/jwkoo/examdump/segment"
	"github.com/jwkoo/examdump/stream"
)

// Placeholder texts substituted for question or answer bodies that end
// up empty or unprocessable.
const (
	PlaceholderNoContent = "[no content provided]"
	PlaceholderError     = "[error during processing]"
)

var (
	// Boilerplate the exam dumps carry on every page.
	footerPattern     = regexp.MustCompile(`IT Certification Guaranteed, The Easy Way!\s*\d*`)
	taskWeightPattern = regexp.MustCompile(`Task Weight:\s*\d+%`)
	scorePattern      = regexp.MustCompile(`Score:\s*\d+%`)

	leadingQuestionPattern = regexp.MustCompile(`(?i)^\s*QUESTION NO:\s*\d+\s*`)
	answerMarkerPattern    = regexp.MustCompile(`(?i)Answer:\s*`)
	blankLinesPattern      = regexp.MustCompile(`\n(\s*\n)+`)
)

// Structured is one question's assembled content: the classified
// elements in stream order plus the reassembled raw text of each side.
// Built once, immutable.
type Structured struct {
	QuestionNo       int
	QuestionElements []stream.Element
	AnswerElements   []stream.Element
	RawQuestion      string
	RawAnswer        string
}

// Build reassembles one question's buckets into a Structured record.
func Build(questionNo int, b segment.Buckets) Structured {
	return Structured{
		QuestionNo:       questionNo,
		QuestionElements: b.Question,
		AnswerElements:   b.Answer,
		RawQuestion:      joinText(b.Question),
		RawAnswer:        joinText(b.Answer),
	}
}

// QuestionText returns the cleaned question body.
func (s Structured) QuestionText() string { return CleanQuestion(s.RawQuestion) }

// AnswerText returns the cleaned answer body.
func (s Structured) AnswerText() string { return CleanAnswer(s.RawAnswer) }

// TotalImages counts image elements across both sides.
func (s Structured) TotalImages() int {
	n := 0
	for _, el := range s.QuestionElements {
		if el.Kind == stream.KindImage {
			n++
		}
	}
	for _, el := range s.AnswerElements {
		if el.Kind == stream.KindImage {
			n++
		}
	}
	return n
}

// HasAnswer reports whether the cleaned answer carries real content.
func (s Structured) HasAnswer() bool { return s.AnswerText() != PlaceholderNoContent }

// joinText joins the text-variant elements' bodies in stream order.
func joinText(els []stream.Element) string {
	var parts []string
	for _, el := range els {
		if el.Kind == stream.KindText {
			parts = append(parts, el.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// CleanQuestion strips the leading question marker, any stray answer
// tail, and page boilerplate from a raw question body. An empty result
// becomes the no-content placeholder.
func CleanQuestion(raw string) string {
	text := leadingQuestionPattern.ReplaceAllString(raw, "")
	// Anything after a stray answer marker belongs to the answer side.
	if loc := answerMarkerPattern.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	return finish(text)
}

// CleanAnswer strips any leading content up through a stray answer
// marker and page boilerplate from a raw answer body. An empty result
// becomes the no-content placeholder.
func CleanAnswer(raw string) string {
	text := raw
	if loc := answerMarkerPattern.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
	}
	return finish(text)
}

func finish(text string) string {
	text = footerPattern.ReplaceAllString(text, "")
	text = taskWeightPattern.ReplaceAllString(text, "")
	text = scorePattern.ReplaceAllString(text, "")
	text = blankLinesPattern.ReplaceAllString(text, "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return PlaceholderNoContent
	}
	return text
}
