package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"timereport/internal/model"
)

// Writer serializes events, one row per event in the given order.
type Writer interface {
	Write(events []model.Event) ([]byte, error)
	Ext() string
	ContentType() string
}

var header = []string{"Début", "Fin", "Objet", "Aperçu", "Lieu"}

// NewWriter returns the writer for format ("csv" or "xlsx") and, for csv,
// encoding ("utf-8" or "windows-1252").
func NewWriter(format, enc string) (Writer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		switch strings.ToLower(strings.TrimSpace(enc)) {
		case "", "utf-8", "utf8":
			return CSV{}, nil
		case "windows-1252", "cp1252":
			return CSV{Windows1252: true}, nil
		default:
			return nil, fmt.Errorf("export: unknown csv encoding %q", enc)
		}
	case "xlsx":
		return XLSX{}, nil
	default:
		return nil, fmt.Errorf("export: unknown format %q", format)
	}
}

// CSV writes ';' separated lines without a header.
type CSV struct {
	// Windows1252 transcodes the output for spreadsheet tools that do not
	// detect UTF-8. Characters outside the charset are replaced.
	Windows1252 bool
}

func (CSV) Ext() string { return "csv" }

func (c CSV) ContentType() string {
	if c.Windows1252 {
		return "text/csv; charset=windows-1252"
	}
	return "text/csv; charset=utf-8"
}

func (c CSV) Write(events []model.Event) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	for _, ev := range events {
		if err := w.Write(row(ev)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	if !c.Windows1252 {
		return buf.Bytes(), nil
	}
	enc := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	return enc.Bytes(buf.Bytes())
}

// XLSX writes a single sheet with a header row.
type XLSX struct{}

const sheetName = "Reporting"

func (XLSX) Ext() string { return "xlsx" }

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSX) Write(events []model.Event) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}
	if err := setRow(f, 1, header); err != nil {
		return nil, err
	}
	for i, ev := range events {
		if err := setRow(f, i+2, row(ev)); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, line int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(sheetName, cell, &row)
}
