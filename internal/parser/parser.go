package parser

import (
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Extractor turns a document on disk into raw text.
type Extractor interface {
	ExtractText(filePath string) (string, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(filePath string) (string, error)

func (f ExtractorFunc) ExtractText(filePath string) (string, error) { return f(filePath) }

// Default dispatches on the file extension.
var Default Extractor = ExtractorFunc(ExtractText)

// SupportedExtensions lists the extensions ExtractText understands.
var SupportedExtensions = []string{".pdf", ".docx", ".xlsx", ".txt"}

// ExtractText returns the raw text of a PDF, DOCX, XLSX or plain-text file.
// Pages, paragraphs and rows are separated by newlines.
func ExtractText(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return parsePDF(filePath)
	case ".docx":
		return parseDOCX(filePath)
	case ".xlsx":
		return parseXLSX(filePath)
	case ".txt":
		return parseText(filePath)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Supported reports whether ExtractText can handle the file name.
func Supported(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func parsePDF(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}
	log.Debug().Str("file", filePath).Int("pages", numPages).Int("chars", text.Len()).Msg("Extracted PDF text")
	return text.String(), nil
}

func parseDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	return stripXMLTags(content), nil
}

func parseXLSX(filePath string) (string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}

func parseText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// stripXMLTags drops WordprocessingML markup, turning paragraph ends into
// newlines, and decodes XML entities.
func stripXMLTags(xmlContent string) string {
	var text strings.Builder
	inTag := false
	var tag strings.Builder
	for _, r := range xmlContent {
		switch {
		case r == '<':
			inTag = true
			tag.Reset()
		case r == '>' && inTag:
			inTag = false
			if t := tag.String(); t == "/w:p" || strings.HasPrefix(t, "w:br") {
				text.WriteString("\n")
			}
		case inTag:
			tag.WriteRune(r)
		default:
			text.WriteRune(r)
		}
	}
	return html.UnescapeString(text.String())
}
