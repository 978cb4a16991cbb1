package reader

import "fmt"

// Registry maps file formats to their page content readers.
type Registry struct {
	readers map[string]Reader
}

func NewRegistry() *Registry {
	r := &Registry{readers: make(map[string]Reader)}
	// Register built-in readers
	pdf := &PDFReader{}
	for _, f := range pdf.SupportedFormats() {
		r.readers[f] = pdf
	}
	return r
}

func (r *Registry) Get(format string) (Reader, error) {
	rd, ok := r.readers[format]
	if !ok {
		return nil, fmt.Errorf("no reader for format: %s", format)
	}
	return rd, nil
}

func (r *Registry) Register(format string, rd Reader) {
	r.readers[format] = rd
}
