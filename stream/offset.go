package stream

// OffsetEstimator maps an image's vertical position to a character offset
// within its page's extracted text. Text blocks never go through an
// estimator; their offsets are exact.
//
// The interface exists so a future reader that reports exact image
// offsets can replace the ratio heuristic without touching the
// classifier.
type OffsetEstimator interface {
	Estimate(pageTextLen int, y, pageHeight float64) int
}

// RatioEstimator places an image proportionally to where its vertical
// position falls within the page, assuming uniform text density. This is
// inherently approximate and occasionally wrong near page boundaries; it
// matches the placement the rest of the pipeline is calibrated for.
type RatioEstimator struct{}

func (RatioEstimator) Estimate(pageTextLen int, y, pageHeight float64) int {
	if pageTextLen <= 0 || pageHeight <= 0 {
		return 0
	}
	if y <= 0 {
		return 0
	}
	if y >= pageHeight {
		return pageTextLen
	}
	return int(float64(pageTextLen) * (y / pageHeight))
}
