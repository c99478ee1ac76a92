package compliance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// ReportFileName is the download name offered by every shell.
const ReportFileName = "log_analysis.pdf"

// Report holds the formatted table rows of both categories.
type Report struct {
	Compliant    []string
	NonCompliant []string
}

// Empty reports whether neither table has rows.
func (r Report) Empty() bool {
	return len(r.Compliant) == 0 && len(r.NonCompliant) == 0
}

// ReportOptions controls PDF layout and metadata.
type ReportOptions struct {
	Title       string
	ColumnWidth float64
	RowHeight   float64
	FontSize    float64
	// CreatedAt is embedded as creation and modification date; zero means now.
	CreatedAt time.Time
}

// Options converts the persisted report settings.
func (c ReportConfig) Options() ReportOptions {
	return ReportOptions{
		ColumnWidth: c.ColumnWidth,
		RowHeight:   c.RowHeight,
		FontSize:    c.FontSize,
	}
}

func (o *ReportOptions) applyDefaults() {
	if o.Title == "" {
		o.Title = "Log Analysis"
	}
	if o.ColumnWidth <= 0 {
		o.ColumnWidth = 700
	}
	if o.RowHeight <= 0 {
		o.RowHeight = 20
	}
	if o.FontSize <= 0 {
		o.FontSize = 10
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
}

// BuildReport partitions findings into compliant and non-compliant rows. Each
// row is "Log N: " followed by that line's entries joined with newlines.
func BuildReport(res AnalysisResult) Report {
	var rep Report
	for _, line := range res.Lines {
		var compliant, nonCompliant []string
		for _, f := range line.Findings {
			if f.Compliance {
				compliant = append(compliant, fmt.Sprintf("%s: Compliant (%s)", f.Entity, f.Rule))
			} else {
				nonCompliant = append(nonCompliant, fmt.Sprintf("Non-compliant (%s)", f.Rule))
			}
		}
		if len(compliant) > 0 {
			rep.Compliant = append(rep.Compliant, line.Label+": "+strings.Join(compliant, "\n"))
		}
		if len(nonCompliant) > 0 {
			rep.NonCompliant = append(rep.NonCompliant, line.Label+": "+strings.Join(nonCompliant, "\n"))
		}
	}
	return rep
}

// FormatReport renders res as a landscape PDF with a compliant and a
// non-compliant table.
func FormatReport(res AnalysisResult, opts ReportOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, BuildReport(res), opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type tableStyle struct {
	title string
	body  [3]int
}

var (
	headerFill     = [3]int{128, 128, 128}
	compliantStyle = tableStyle{title: "Compliant Logs", body: [3]int{245, 245, 220}}
	violationStyle = tableStyle{title: "Non-compliant Logs", body: [3]int{240, 128, 128}}
)

// WritePDF renders rep to w. Empty tables are omitted; an empty report still
// produces a valid single page document.
func WritePDF(w io.Writer, rep Report, opts ReportOptions) error {
	opts.applyDefaults()
	pdf := fpdf.New("L", "pt", "Letter", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(opts.CreatedAt)
	pdf.SetModificationDate(opts.CreatedAt)
	pdf.SetTitle(opts.Title, true)
	pdf.SetCreator("logcompliance", true)

	pageW, _ := pdf.GetPageSize()
	width := opts.ColumnWidth
	if width > pageW-36 {
		width = pageW - 36
	}
	margin := (pageW - width) / 2
	pdf.SetMargins(margin, 36, margin)
	pdf.SetAutoPageBreak(true, 36)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(1)
	pdf.AddPage()

	first := true
	for _, table := range []struct {
		style tableStyle
		rows  []string
	}{
		{compliantStyle, rep.Compliant},
		{violationStyle, rep.NonCompliant},
	} {
		if len(table.rows) == 0 {
			continue
		}
		if !first {
			pdf.Ln(opts.RowHeight)
		}
		first = false
		writeTable(pdf, table.style, table.rows, width, opts)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func writeTable(pdf *fpdf.Fpdf, style tableStyle, rows []string, width float64, opts ReportOptions) {
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", opts.FontSize+1)
	pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
	pdf.CellFormat(width, opts.RowHeight*1.4, cp1252(style.title), "1", 1, "CM", true, 0, "")

	pdf.SetFont("Helvetica", "", opts.FontSize)
	pdf.SetFillColor(style.body[0], style.body[1], style.body[2])
	for _, row := range rows {
		pdf.MultiCell(width, opts.RowHeight, cp1252(row), "1", "L", true)
	}
}

// cp1252 maps text onto the core font encoding; runes outside it become '?'.
func cp1252(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}

// WriteJSON writes res as indented JSON keyed by log label.
func WriteJSON(w io.Writer, res AnalysisResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return fmt.Errorf("indent result: %w", err)
	}
	out.WriteByte('\n')
	_, err = w.Write(out.Bytes())
	return err
}
