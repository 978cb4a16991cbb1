package segment

import (
	"strings"

	"github.com/jwkoo/examdump/stream"
)

// Buckets holds one question's classified elements, in stream order.
type Buckets struct {
	Question []stream.Element
	Answer   []stream.Element
}

// Classified is the result of bucketing the whole element stream across
// every resolved range.
type Classified struct {
	ByQuestion map[int]*Buckets

	// DroppedImages counts images whose estimated offset fell outside
	// every range. Dropped text (document preamble, footers between
	// ranges) is not counted.
	DroppedImages int
}

// ClassifyElements assigns every stream element to a question or answer
// bucket by offset membership. Text blocks that contain an embedded
// answer marker and sit inside a question's overall span are split at
// the marker, the prefix joining the question bucket and the suffix the
// answer bucket.
func ClassifyElements(elements []stream.Element, ranges []Range) Classified {
	c := Classified{ByQuestion: make(map[int]*Buckets, len(ranges))}
	for _, r := range ranges {
		c.ByQuestion[r.QuestionNo] = &Buckets{}
	}

	for _, el := range elements {
		switch el.Kind {
		case stream.KindImage:
			if !placeByOffset(&c, ranges, el) {
				c.DroppedImages++
			}
		case stream.KindText:
			classifyText(&c, ranges, el)
		}
	}
	return c
}

// classifyText places one text element. A block whose body contains an
// answer marker may hold both the tail of the question and the head of
// the answer (the reader merges adjacent lines), so it is split at the
// marker instead of being classified whole.
func classifyText(c *Classified, ranges []Range, el stream.Element) {
	if loc := answerPattern.FindStringIndex(el.Text); loc != nil {
		for _, r := range ranges {
			if el.Offset < r.QuestionStart || el.Offset >= r.AnswerEnd {
				continue
			}
			b := c.ByQuestion[r.QuestionNo]
			if prefix := strings.TrimSpace(el.Text[:loc[0]]); prefix != "" {
				q := el
				q.Text = prefix
				b.Question = append(b.Question, q)
			}
			if suffix := strings.TrimSpace(el.Text[loc[1]:]); suffix != "" {
				a := el
				a.Text = suffix
				a.Offset = el.Offset + loc[1]
				b.Answer = append(b.Answer, a)
			}
			return
		}
	}
	placeByOffset(c, ranges, el)
}

// placeByOffset buckets an element purely by half-open range membership.
// Returns false when no range claims the element's offset.
func placeByOffset(c *Classified, ranges []Range, el stream.Element) bool {
	for _, r := range ranges {
		b := c.ByQuestion[r.QuestionNo]
		switch {
		case el.Offset >= r.QuestionStart && el.Offset < r.QuestionEnd:
			b.Question = append(b.Question, el)
			return true
		case el.Offset >= r.AnswerStart && el.Offset < r.AnswerEnd:
			b.Answer = append(b.Answer, el)
			return true
		}
	}
	return false
}
