package stream

import (
	"sort"
	"strings"

	"github.com/jwkoo/examdump/reader"
)

// Result is the linear document stream: every page's elements in reading
// order, plus the reconstructed full text their offsets index into.
type Result struct {
	Elements []Element
	FullText string
}

// Build concatenates all pages into one ordered element stream. Each
// page's text blocks get exact offsets (page start + offset within the
// page text); images get estimated offsets via est. The full text is the
// per-page texts joined with one separator newline per page, so the
// virtual text length equals the sum of page text lengths plus one per
// page.
//
// Within a page, elements are ordered by (vertical position, discovery
// order); text blocks precede images at equal positions because readers
// produce them first.
func Build(pages []reader.Page, est OffsetEstimator) Result {
	if est == nil {
		est = RatioEstimator{}
	}

	var sb strings.Builder
	var elements []Element
	pageStart := 0

	for _, p := range pages {
		pageText := p.Text()

		pageElems := make([]Element, 0, len(p.Blocks)+len(p.Images))
		seq := 0
		within := 0
		for _, b := range p.Blocks {
			pageElems = append(pageElems, Element{
				Kind:        KindText,
				Text:        b.Text,
				VerticalPos: b.Y,
				Page:        p.Number,
				Seq:         seq,
				Offset:      pageStart + within,
			})
			seq++
			within += len(b.Text) + 1
		}
		for _, img := range p.Images {
			pageElems = append(pageElems, Element{
				Kind:        KindImage,
				Data:        img.Data,
				Format:      img.Format,
				Width:       img.Width,
				Height:      img.Height,
				VerticalPos: img.Y,
				Page:        p.Number,
				Seq:         seq,
				Offset:      pageStart + est.Estimate(len(pageText), img.Y, p.Height),
			})
			seq++
		}

		sort.SliceStable(pageElems, func(i, j int) bool {
			if pageElems[i].VerticalPos != pageElems[j].VerticalPos {
				return pageElems[i].VerticalPos < pageElems[j].VerticalPos
			}
			return pageElems[i].Seq < pageElems[j].Seq
		})

		elements = append(elements, pageElems...)
		sb.WriteString(pageText)
		sb.WriteString("\n")
		pageStart += len(pageText) + 1
	}

	return Result{Elements: elements, FullText: sb.String()}
}
