package reader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

const (
	// defaultPageHeight is used when a page carries no MediaBox of its own
	// (the box may be inherited from the page tree, which the text library
	// does not expose). US Letter in PDF units.
	defaultPageHeight = 792.0

	// lineTolerance groups text runs whose baselines differ by at most
	// this many page units into one line.
	lineTolerance = 2.0
)

// PDFReader reads page content from PDF files. Positioned text runs come
// from ledongthuc/pdf; image payloads come from pdfcpu. pdfcpu reports no
// placement rectangles, so images carry Y 0 and map to the start of their
// page.
type PDFReader struct{}

func (r *PDFReader) SupportedFormats() []string { return []string{"pdf"} }

func (r *PDFReader) ReadPages(ctx context.Context, path string) ([]Page, error) {
	f, doc, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	images, err := extractPageImages(path)
	if err != nil {
		// Text-only extraction still works without images.
		slog.Warn("pdf: image extraction failed, continuing without images",
			"path", path, "error", err)
		images = nil
	}

	total := doc.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		p := doc.Page(i)
		height := pageHeight(p)
		page := Page{Number: i, Height: height, Images: images[i]}
		if !p.V.IsNull() {
			page.Blocks = textBlocks(p, height)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// pageHeight reads the page's MediaBox height, falling back to US Letter.
func pageHeight(p pdf.Page) float64 {
	box := p.V.Key("MediaBox")
	if box.IsNull() {
		return defaultPageHeight
	}
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if h <= 0 {
		return defaultPageHeight
	}
	return h
}

// run is a positioned text fragment in top-down page coordinates.
type run struct {
	top      float64
	x        float64
	end      float64
	fontSize float64
	s        string
}

// textBlocks recovers reading-order text blocks from a page's content
// stream. Runs are grouped into lines by baseline, lines into blocks at
// vertical gaps larger than the running font size allows.
func textBlocks(p pdf.Page, height float64) []TextBlock {
	content := p.Content()
	if len(content.Text) == 0 {
		return nil
	}

	runs := make([]run, 0, len(content.Text))
	for _, t := range content.Text {
		if t.S == "" {
			continue
		}
		runs = append(runs, run{
			top:      height - t.Y,
			x:        t.X,
			end:      t.X + t.W,
			fontSize: t.FontSize,
			s:        t.S,
		})
	}
	if len(runs) == 0 {
		return nil
	}

	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].top != runs[j].top {
			return runs[i].top < runs[j].top
		}
		return runs[i].x < runs[j].x
	})

	type line struct {
		top      float64
		fontSize float64
		text     string
	}
	var lines []line
	cur := line{top: runs[0].top, fontSize: runs[0].fontSize}
	lastEnd := 0.0
	for i, r := range runs {
		if i > 0 && r.top-cur.top > lineTolerance {
			lines = append(lines, cur)
			cur = line{top: r.top, fontSize: r.fontSize}
			lastEnd = 0
		}
		// Re-insert the space the content stream positions away.
		if cur.text != "" && r.x > lastEnd+1.0 {
			cur.text += " "
		}
		cur.text += r.s
		lastEnd = r.end
		if r.fontSize > cur.fontSize {
			cur.fontSize = r.fontSize
		}
	}
	lines = append(lines, cur)

	var blocks []TextBlock
	var b TextBlock
	prevTop := 0.0
	prevSize := 12.0
	for i, ln := range lines {
		gap := ln.top - prevTop
		size := prevSize
		if size <= 0 {
			size = 12
		}
		if i > 0 && gap > size*1.8 {
			blocks = append(blocks, b)
			b = TextBlock{}
		}
		if b.Text == "" {
			b.Y = ln.top
			b.Text = ln.text
		} else {
			b.Text += "\n" + ln.text
		}
		prevTop = ln.top
		prevSize = ln.fontSize
	}
	if b.Text != "" {
		blocks = append(blocks, b)
	}
	return blocks
}

// extractPageImages pulls every embedded raster image out of the PDF,
// keyed by 1-based page number, in deterministic object order.
func extractPageImages(path string) (map[int][]Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pageMaps, err := api.ExtractImagesRaw(f, nil, conf)
	if err != nil {
		return nil, fmt.Errorf("extracting images: %w", err)
	}

	byPage := make(map[int][]Image)
	for _, m := range pageMaps {
		objNrs := make([]int, 0, len(m))
		for nr := range m {
			objNrs = append(objNrs, nr)
		}
		sort.Ints(objNrs)

		for _, nr := range objNrs {
			img := m[nr]
			data, err := io.ReadAll(img)
			if err != nil {
				slog.Debug("pdf: reading image payload failed",
					"page", img.PageNr, "obj", nr, "error", err)
				continue
			}
			byPage[img.PageNr] = append(byPage[img.PageNr], normalizeImage(data, img.FileType))
		}
	}
	return byPage, nil
}

// normalizeImage re-encodes a raster payload as PNG and records its
// dimensions. Payloads that cannot be decoded are kept as-is with their
// reported file type.
func normalizeImage(data []byte, fileType string) Image {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		w, h := imageSize(data)
		return Image{Data: data, Format: fileType, Width: w, Height: h}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		w, h := imageSize(data)
		return Image{Data: data, Format: fileType, Width: w, Height: h}
	}
	bounds := src.Bounds()
	return Image{
		Data:   buf.Bytes(),
		Format: "png",
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
}

// imageSize returns the width and height of an image from its encoded bytes.
func imageSize(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
