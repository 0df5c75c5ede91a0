package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFExtractor validates a PDF, optionally crops page headers and footers
// into a temporary copy, and extracts its plain text.
type PDFExtractor struct {
	cropTop    float64
	cropBottom float64
}

func NewPDFExtractor(top, bottom float64) *PDFExtractor {
	return &PDFExtractor{cropTop: top, cropBottom: bottom}
}

func (p *PDFExtractor) Extract(path string) (string, error) {
	conf := model.NewDefaultConfiguration()
	if err := api.ValidateFile(path, conf); err != nil {
		return "", fmt.Errorf("%w: %s: invalid pdf: %v", ErrLoad, path, err)
	}

	src := path
	if p.cropTop > 0 || p.cropBottom > 0 {
		cropped, cleanup, err := p.crop(path, conf)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
		}
		defer cleanup()
		src = cropped
	}

	text, err := plainText(src)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}
	return cleanText(text), nil
}

// crop removes the top and bottom margins (in points) from every page.
// The source file is never modified.
func (p *PDFExtractor) crop(path string, conf *model.Configuration) (string, func(), error) {
	dir, err := os.MkdirTemp("", "consultant-pdf-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	cropStr := fmt.Sprintf("%.2f 0 %.2f 0", p.cropTop, p.cropBottom)
	box, err := model.ParseBox(cropStr, types.POINTS)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to parse crop box: %w", err)
	}

	out := filepath.Join(dir, filepath.Base(path))
	if err := api.CropFile(path, out, []string{"1-"}, box, conf); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to crop PDF: %w", err)
	}
	return out, cleanup, nil
}

func plainText(path string) (text string, err error) {
	// the reader panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract text: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}
