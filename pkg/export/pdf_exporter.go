package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// FormDocument is a printable, sectioned key/value document such as an application form.
type FormDocument struct {
	Title     string
	Subtitle  string
	Reference string
	Photo     *FormPhoto
	Sections  []FormSection
	Footer    string
}

// FormPhoto is an image printed at the top right of the first page.
type FormPhoto struct {
	Data      []byte
	ImageType string // JPG or PNG
}

// FormSection renders as a two column label/value table, or as a paragraph when Text is set.
type FormSection struct {
	Heading string
	Rows    []FormRow
	Text    string
}

type FormRow struct {
	Label string
	Value string
}

// PDFExporter renders datasets and forms with gofpdf.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a landscape PDF with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 9)
	colWidth := 277.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, tr(header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		for _, value := range data.Record(row) {
			pdf.CellFormat(colWidth, 7, tr(value), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return output(pdf)
}

// RenderForm lays out a FormDocument on A4 portrait pages.
func (e *PDFExporter) RenderForm(doc FormDocument) ([]byte, error) {
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("form requires at least one section")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if doc.Footer != "" {
		pdf.SetFooterFunc(func() {
			pdf.SetY(-15)
			pdf.SetFont("Arial", "I", 8)
			pdf.CellFormat(0, 10, tr(doc.Footer), "", 0, "C", false, 0, "")
		})
	}
	pdf.AddPage()

	if doc.Photo != nil && len(doc.Photo.Data) > 0 {
		opts := gofpdf.ImageOptions{ImageType: doc.Photo.ImageType, ReadDpi: true}
		pdf.RegisterImageOptionsReader("photo", opts, bytes.NewReader(doc.Photo.Data))
		if pdf.Ok() {
			pdf.ImageOptions("photo", 160, 15, 35, 40, false, opts, 0, "")
		} else {
			// unreadable image: print the form without it
			pdf.ClearError()
		}
	}

	pdf.SetFont("Arial", "B", 14)
	pdf.MultiCell(140, 7, tr(doc.Title), "", "L", false)
	if doc.Subtitle != "" {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(140, 8, tr(doc.Subtitle), "", 1, "L", false, 0, "")
	}
	if doc.Reference != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(140, 7, tr(doc.Reference), "", 1, "L", false, 0, "")
	}
	if pdf.GetY() < 60 && doc.Photo != nil {
		pdf.SetY(60)
	}
	pdf.Ln(4)

	for _, section := range doc.Sections {
		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(0, 8, tr(section.Heading), "1", 1, "L", true, 0, "")
		pdf.SetFont("Arial", "", 10)
		if section.Text != "" {
			pdf.MultiCell(0, 6, tr(section.Text), "1", "L", false)
		}
		for _, row := range section.Rows {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(60, 7, tr(row.Label), "1", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(0, 7, tr(row.Value), "1", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	return output(pdf)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
