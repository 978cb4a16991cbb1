package stream

// Kind discriminates the two element variants.
type Kind int

const (
	KindText Kind = iota
	KindImage
)

func (k Kind) String() string {
	if k == KindImage {
		return "image"
	}
	return "text"
}

// Element is one unit of page content placed into the linear document
// stream: either a text block or an image. Elements are created once by
// Build and immutable afterwards.
type Element struct {
	Kind Kind

	// Text body (KindText only).
	Text string

	// Image payload and dimensions (KindImage only).
	Data   []byte
	Format string
	Width  int
	Height int

	// VerticalPos is the distance from the top of the source page.
	VerticalPos float64
	// Page is the 1-based source page number.
	Page int
	// Seq is the within-page discovery order, used as a tie-break when
	// two elements share a vertical position.
	Seq int
	// Offset is the element's estimated character offset into the
	// reconstructed full-document text. Exact for text blocks, estimated
	// for images.
	Offset int
}
