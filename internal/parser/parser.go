package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"dochat/internal/models"
)

var pdfMagic = []byte("%PDF-")

// Extractor turns a PDF file into one text per physical page.
type Extractor interface {
	ExtractPages(filePath string) ([]models.Page, error)
}

// PDFExtractor reads page text with ledongthuc/pdf.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractPages returns every page in order. A page whose text cannot be read
// yields an empty string; only an unreadable file fails.
func (e *PDFExtractor) ExtractPages(filePath string) (pages []models.Page, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, &models.ExtractionError{Path: filePath, Err: err}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, &models.ExtractionError{Path: filePath, Err: err}
	}

	// the pdf package panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &models.ExtractionError{Path: filePath, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, &models.ExtractionError{Path: filePath, Err: err}
	}

	numPages := reader.NumPage()
	pages = make([]models.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		pages = append(pages, models.Page{Index: i - 1, Text: pageText(reader, i)})
	}

	log.Info().Str("file", filepath.Base(filePath)).Int("pages", len(pages)).Msg("Extracted pages from PDF")
	return pages, nil
}

func pageText(reader *pdf.Reader, num int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Int("page", num).Interface("panic", r).Msg("Page text extraction failed")
			text = ""
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		log.Warn().Err(err).Int("page", num).Msg("Page text extraction failed")
		return ""
	}
	return text
}

// ValidateUpload is the intake check run before a file reaches the extractor:
// allowed extension, PDF magic header and size limit.
func ValidateUpload(filePath string, allowedTypes []string, maxBytes int64) error {
	if filePath == "" {
		return &models.UnsupportedFileError{Path: filePath, Reason: "no file given"}
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	allowed := false
	for _, t := range allowedTypes {
		if strings.EqualFold(t, ext) {
			allowed = true
			break
		}
	}
	if !allowed {
		return &models.UnsupportedFileError{Path: filePath, Reason: fmt.Sprintf("file type %q is not allowed", ext)}
	}

	f, err := os.Open(filePath)
	if err != nil {
		return &models.UnsupportedFileError{Path: filePath, Reason: err.Error()}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return &models.UnsupportedFileError{Path: filePath, Reason: err.Error()}
	}
	if stat.IsDir() {
		return &models.UnsupportedFileError{Path: filePath, Reason: "is a directory"}
	}
	if maxBytes > 0 && stat.Size() > maxBytes {
		return &models.UnsupportedFileError{
			Path:   filePath,
			Reason: fmt.Sprintf("size %d exceeds limit of %d bytes", stat.Size(), maxBytes),
		}
	}

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, pdfMagic) {
		return &models.UnsupportedFileError{Path: filePath, Reason: "missing PDF header"}
	}
	return nil
}
