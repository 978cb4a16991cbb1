package reader

import "context"

// TextBlock is one contiguous run of page text with its vertical position.
type TextBlock struct {
	Text string
	Y    float64 // distance from the top of the page, in page units
}

// Image is a raster image embedded in a page. Y is the distance from the
// top of the page; readers that cannot recover image placement report 0,
// which downstream treats as "top of page".
type Image struct {
	Data   []byte
	Format string // "png", "jpg", ...
	Y      float64
	Width  int
	Height int
}

// Page holds everything recovered from one document page, in reading order.
type Page struct {
	Number int // 1-based
	Height float64
	Blocks []TextBlock
	Images []Image
}

// Text returns the page's full text: blocks joined with single newlines.
func (p Page) Text() string {
	n := 0
	for _, b := range p.Blocks {
		n += len(b.Text) + 1
	}
	if n == 0 {
		return ""
	}
	buf := make([]byte, 0, n-1)
	for i, b := range p.Blocks {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, b.Text...)
	}
	return string(buf)
}

// Reader can read page content for a specific document format.
type Reader interface {
	ReadPages(ctx context.Context, path string) ([]Page, error)
	SupportedFormats() []string
}
