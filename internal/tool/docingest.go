package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// ParsedDocument is the uniform extraction result across formats.
type ParsedDocument struct {
	Title    string
	Content  string
	Metadata map[string]string
}

// parseDocument dispatches on file extension, directly grounded on the
// teacher's pkg/rag/native_parsers.go NativeParserRegistry (PDF via
// ledongthuc/pdf, DOCX/XLSX via nguyenthenguyen/docx + xuri/excelize).
func parseDocument(ctx context.Context, path string) (ParsedDocument, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return parsePDF(ctx, path)
	case ".docx":
		return parseDocx(path)
	case ".xlsx":
		return parseXlsx(ctx, path)
	default:
		return ParsedDocument{}, fmt.Errorf("docingest: unsupported extension %q", filepath.Ext(path))
	}
}

func parsePDF(ctx context.Context, path string) (ParsedDocument, error) {
	file, err := os.Open(path)
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("docingest: opening pdf: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return ParsedDocument{}, err
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("docingest: parsing pdf: %w", err)
	}

	var parts []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		select {
		case <-ctx.Done():
			return ParsedDocument{}, ctx.Err()
		default:
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", pageNum, text))
		}
	}

	return ParsedDocument{
		Title:   filepath.Base(path),
		Content: strings.Join(parts, "\n\n"),
		Metadata: map[string]string{
			"type":  "PDF Document",
			"pages": fmt.Sprintf("%d", reader.NumPage()),
		},
	}, nil
}

func parseDocx(path string) (ParsedDocument, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("docingest: parsing docx: %w", err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	return ParsedDocument{
		Title:   filepath.Base(path),
		Content: content,
		Metadata: map[string]string{
			"type":       "Word Document",
			"paragraphs": fmt.Sprintf("%d", len(strings.Split(content, "\n\n"))),
		},
	}, nil
}

const maxCellsPerSheet = 1000

func parseXlsx(ctx context.Context, path string) (ParsedDocument, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("docingest: parsing xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var parts []string

	for _, sheetName := range sheets {
		select {
		case <-ctx.Done():
			return ParsedDocument{}, ctx.Err()
		default:
		}

		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}

		var sheetText strings.Builder
		sheetText.WriteString(fmt.Sprintf("--- Sheet: %s ---\n", sheetName))
		cellCount := 0
		for rowIndex, row := range rows {
			if cellCount >= maxCellsPerSheet {
				sheetText.WriteString("... (truncated)\n")
				break
			}
			for colIndex, cell := range row {
				if cellCount >= maxCellsPerSheet {
					break
				}
				if text := strings.TrimSpace(cell); text != "" {
					sheetText.WriteString(fmt.Sprintf("%s%d: %s\n", columnLetter(colIndex), rowIndex+1, text))
					cellCount++
				}
			}
		}
		if text := strings.TrimSpace(sheetText.String()); text != "" {
			parts = append(parts, text)
		}
	}

	return ParsedDocument{
		Title:   filepath.Base(path),
		Content: strings.Join(parts, "\n\n"),
		Metadata: map[string]string{
			"type":   "Excel Spreadsheet",
			"sheets": fmt.Sprintf("%d", len(sheets)),
		},
	}, nil
}

func columnLetter(index int) string {
	result := ""
	for {
		result = string(rune('A'+index%26)) + result
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return result
}

// NewDocumentIngestDescriptor builds the document_ingest tool, which
// extracts text from a PDF/DOCX/XLSX file on disk into the Environment
// as a text value, for specialists (e.g. gap_analysis) that need source
// documents alongside the tabular review corpus.
func NewDocumentIngestDescriptor() Descriptor {
	return Descriptor{
		Name:             "document_ingest",
		HumanDescription: "Extracts text content from a PDF, DOCX, or XLSX file into the session Environment.",
		ParameterSchema: &ParameterSchema{
			Type:     "object",
			Required: []string{"path", "output_key"},
			Properties: map[string]*ParameterSchema{
				"path":       {Type: "string", Description: "Filesystem path to the document."},
				"output_key": {Type: "string", Description: "Environment key to store the extracted text under."},
			},
		},
		CapabilitySet: []string{"document_ingest"},
		Handler: func(ctx context.Context, args map[string]any, tc *Context) (Result, error) {
			path, _ := args["path"].(string)
			outputKey, _ := args["output_key"].(string)

			doc, err := parseDocument(ctx, path)
			if err != nil {
				return Result{Success: false, Summary: err.Error()}, nil
			}

			tc.Environment.Add(outputKey, doc.Content, map[string]any{"title": doc.Title, "source": "document_ingest"})

			return Result{
				Success: true,
				Summary: fmt.Sprintf("extracted %d characters from %q", len(doc.Content), doc.Title),
				Data:    map[string]any{"title": doc.Title, "metadata": doc.Metadata},
			}, nil
		},
	}
}
