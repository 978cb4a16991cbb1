package segment

import (
	"log/slog"
	"math"
)

// EndOfText is the open upper bound for the last question's ranges.
const EndOfText = math.MaxInt

// Range holds the four half-open offset ranges of one question:
// [QuestionStart, QuestionEnd) is the question body (including the
// question marker itself), [AnswerStart, AnswerEnd) the answer body.
// A question with no answer marker has AnswerStart == AnswerEnd ==
// QuestionEnd. Invariant: QuestionStart <= QuestionEnd <= AnswerStart
// <= AnswerEnd.
type Range struct {
	QuestionNo    int
	QuestionStart int
	QuestionEnd   int
	AnswerStart   int
	AnswerEnd     int
}

// HasAnswer reports whether the range has a non-empty answer region.
func (r Range) HasAnswer() bool { return r.AnswerStart < r.AnswerEnd }

// ResolveRanges pairs each question marker with its answer marker (the
// first one carrying the same number past the question's start) and the
// next question marker, producing one Range per question in document
// order. A later marker with a duplicate question number replaces the
// earlier one.
func ResolveRanges(markers []Marker) []Range {
	var questions []Marker
	for _, m := range markers {
		if m.Kind == MarkerQuestion {
			questions = append(questions, m)
		}
	}

	var ranges []Range
	byNumber := make(map[int]int, len(questions))
	for i, q := range questions {
		next := EndOfText
		if i+1 < len(questions) {
			next = questions[i+1].Offset
		}

		r := Range{
			QuestionNo:    q.Number,
			QuestionStart: q.Offset,
		}
		if a, ok := findAnswer(markers, q.Number, q.Offset); ok {
			r.QuestionEnd = a.Offset
			r.AnswerStart = a.Offset + a.Len
			r.AnswerEnd = next
		} else {
			r.QuestionEnd = next
			r.AnswerStart = next
			r.AnswerEnd = next
		}

		if prev, ok := byNumber[q.Number]; ok {
			slog.Warn("segment: duplicate question number, keeping later occurrence",
				"question", q.Number, "offset", q.Offset)
			ranges[prev] = r
			continue
		}
		byNumber[q.Number] = len(ranges)
		ranges = append(ranges, r)
	}
	return ranges
}

// findAnswer returns the first answer marker owned by question number n
// past offset after.
func findAnswer(markers []Marker, n, after int) (Marker, bool) {
	for _, m := range markers {
		if m.Kind == MarkerAnswer && m.Number == n && m.Offset > after {
			return m, true
		}
	}
	return Marker{}, false
}
