package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
)

// maxTextPages caps how many pages contribute text to an extraction. Exam
// papers beyond this are trimmed, matching the prompt-size bound downstream.
const maxTextPages = 20

// pageWorkers bounds concurrent per-page text extraction.
const pageWorkers = 4

type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

// ExtractText returns the document's plain text joined strictly in page
// order, plus the total page count. Pages are processed concurrently, but
// the join order is by page number: out-of-order text would corrupt
// question numbering downstream. A page that fails to decode contributes
// empty text rather than failing the document.
func (s *PDFService) ExtractText(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return "", 0, fmt.Errorf("pdf has no pages")
	}

	pages := numPages
	if pages > maxTextPages {
		pages = maxTextPages
	}

	texts := make([]string, pages)
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, pageWorkers)

	for i := 0; i < pages; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			page := r.Page(idx + 1)
			if page.V.IsNull() {
				return
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				// Image-only or damaged pages yield no text.
				return
			}
			texts[idx] = text
		}(i)
	}
	wg.Wait()

	var builder strings.Builder
	for _, text := range texts {
		builder.WriteString(text)
		builder.WriteString("\n\n")
	}
	return builder.String(), numPages, nil
}

// PageImage is a single page rendered to an image.
type PageImage struct {
	PageNumber int
	ImageData  string // base64 encoded image with data URI prefix
}

// RenderPageImages renders every page to a PNG data URI via Ghostscript,
// 1-based, in page order. The images only feed diagram linking, so 150 DPI
// keeps payloads small.
func (s *PDFService) RenderPageImages(path string) ([]PageImage, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf for page count: %w", err)
	}
	numPages := r.NumPage()
	f.Close()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	tempDir, err := os.MkdirTemp("", "pdf-render-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	pagePattern := filepath.Join(tempDir, "page-%03d.png")
	cmd := exec.Command("gs",
		"-dQUIET", "-dSAFER", "-dNOPAUSE", "-dBATCH",
		"-sDEVICE=png16m", "-r150",
		"-sOutputFile="+pagePattern, path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ghostscript render failed: %w, stderr: %s", err, stderr.String())
	}

	pages := make([]PageImage, 0, numPages)
	for n := 1; n <= numPages; n++ {
		data, err := os.ReadFile(fmt.Sprintf(pagePattern, n))
		if err != nil {
			return nil, fmt.Errorf("read rendered page %d: %w", n, err)
		}
		pages = append(pages, PageImage{
			PageNumber: n,
			ImageData:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
		})
	}
	return pages, nil
}
