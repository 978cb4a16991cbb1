package segment

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
)

// MarkerKind discriminates question-start and answer-start markers.
type MarkerKind int

const (
	MarkerQuestion MarkerKind = iota
	MarkerAnswer
)

func (k MarkerKind) String() string {
	if k == MarkerAnswer {
		return "answer"
	}
	return "question"
}

// Marker is one recognized "QUESTION NO: n" or "Answer:" occurrence in
// the full document text. Answer markers carry the number of the most
// recently seen question; an answer appearing before any question has
// no owner and is discarded.
type Marker struct {
	Kind   MarkerKind
	Number int
	Offset int
	Len    int // length of the matched marker text
}

var (
	questionPattern = regexp.MustCompile(`(?i)QUESTION NO:\s*(\d+)`)
	answerPattern   = regexp.MustCompile(`(?i)Answer:\s*`)
)

// LocateMarkers scans the reconstructed full text for question and
// answer markers and returns them sorted by offset, with answer markers
// back-filled with their owning question number.
func LocateMarkers(fullText string) []Marker {
	var markers []Marker

	for _, m := range questionPattern.FindAllStringSubmatchIndex(fullText, -1) {
		n, err := strconv.Atoi(fullText[m[2]:m[3]])
		if err != nil {
			continue
		}
		markers = append(markers, Marker{
			Kind:   MarkerQuestion,
			Number: n,
			Offset: m[0],
			Len:    m[1] - m[0],
		})
	}
	for _, m := range answerPattern.FindAllStringIndex(fullText, -1) {
		markers = append(markers, Marker{
			Kind:   MarkerAnswer,
			Offset: m[0],
			Len:    m[1] - m[0],
		})
	}

	sort.SliceStable(markers, func(i, j int) bool {
		return markers[i].Offset < markers[j].Offset
	})

	// Back-fill answer ownership from the preceding question marker.
	out := markers[:0]
	current, seen := 0, false
	for _, m := range markers {
		switch m.Kind {
		case MarkerQuestion:
			current, seen = m.Number, true
		case MarkerAnswer:
			if !seen {
				// An answer before any question has no owner.
				slog.Debug("segment: dropping unowned answer marker", "offset", m.Offset)
				continue
			}
			m.Number = current
		}
		out = append(out, m)
	}
	return out
}
