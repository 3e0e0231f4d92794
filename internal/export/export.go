// Package export renders activity rows as CSV or XLSX.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Header is the column order of every export.
var Header = []string{
	"Date",
	"Time",
	"Display ID",
	"Name",
	"Category",
	"Description",
	"Mentor Note",
}

// Row is one (guest, bucket, category) line of an export.
type Row struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	DisplayID   int    `json:"displayId"`
	GuestName   string `json:"guestName"`
	Category    string `json:"category"`
	Description string `json:"description"`
	MentorNote  string `json:"mentorNote"`
}

func (r Row) fields() []string {
	return []string{
		r.Date,
		r.Time,
		strconv.Itoa(r.DisplayID),
		r.GuestName,
		r.Category,
		r.Description,
		r.MentorNote,
	}
}

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts csv (the default for blank input) or xlsx.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Write renders rows in format f.
func Write(w io.Writer, f Format, rows []Row) error {
	if f == FormatXLSX {
		return WriteXLSX(w, rows)
	}
	return WriteCSV(w, rows)
}

// utf8BOM lets spreadsheet applications detect the encoding of non-ASCII names.
const utf8BOM = "\ufeff"

// WriteCSV writes a header and one CRLF-terminated line per row. Fields
// containing the delimiter, a quote or a line break are quoted with inner
// quotes doubled; line breaks inside a field are written as given.
func WriteCSV(w io.Writer, rows []Row) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	rw := newRecordWriter(w)
	if err := rw.write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		if err := rw.write(r.fields()); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	return nil
}

// recordWriter quotes one record at a time with encoding/csv and terminates
// it with CRLF itself. csv.Writer.UseCRLF would also rewrite every LF inside
// quoted fields.
type recordWriter struct {
	out io.Writer
	buf bytes.Buffer
	cw  *csv.Writer
}

func newRecordWriter(out io.Writer) *recordWriter {
	rw := &recordWriter{out: out}
	rw.cw = csv.NewWriter(&rw.buf)
	return rw
}

func (rw *recordWriter) write(record []string) error {
	rw.buf.Reset()
	if err := rw.cw.Write(record); err != nil {
		return err
	}
	rw.cw.Flush()
	if err := rw.cw.Error(); err != nil {
		return err
	}
	line := bytes.TrimSuffix(rw.buf.Bytes(), []byte("\n"))
	if _, err := rw.out.Write(line); err != nil {
		return err
	}
	_, err := io.WriteString(rw.out, "\r\n")
	return err
}

const sheetName = "Activity Logs"

var columnWidths = []float64{12, 8, 12, 24, 24, 48, 48}

// WriteXLSX writes a single-sheet workbook with a styled header row.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(Header), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		values := []any{r.Date, r.Time, r.DisplayID, r.GuestName, r.Category, r.Description, r.MentorNote}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
