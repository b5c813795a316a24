package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

const SheetName = "CottonLog Data"

// Fixed export columns; mapped source columns follow in first-seen order.
var baseColumns = []string{"Bale ID", "Mill Lot", "Mill Bale #", "Weight", "Status", "Scanned At", "AI Analysis"}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9]`)

// FileName is the download name of a session export.
func FileName(sessionName string) string {
	return unsafeName.ReplaceAllString(sessionName, "_") + "_Export.xlsx"
}

type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Export(ctx context.Context, w io.Writer, session *domain.Session) error {
	if session == nil || len(session.Bales) == 0 {
		return domain.WrapError(domain.ErrValidation, "export session", errors.New("no data to export"))
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	extra := mappedColumns(session)
	headers := make([]any, 0, len(baseColumns)+len(extra))
	for _, h := range append(append([]string{}, baseColumns...), extra...) {
		headers = append(headers, h)
	}
	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for idx, b := range session.Bales {
		if err := ctx.Err(); err != nil {
			return err
		}
		cell, _ := excelize.CoordinatesToCellName(1, idx+2)
		values := exportRow(b, extra)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", idx+2, err)
		}
	}

	for i := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetName, col, col, 15)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// mappedColumns lists the source columns to export: the session's mapped
// columns first, then any other keys found on bales in sorted order.
func mappedColumns(session *domain.Session) []string {
	reserved := make(map[string]struct{}, len(baseColumns))
	for _, c := range baseColumns {
		reserved[c] = struct{}{}
	}

	out := make([]string, 0)
	add := func(key string) {
		if key == "" {
			return
		}
		if _, ok := reserved[key]; ok {
			return
		}
		reserved[key] = struct{}{}
		out = append(out, key)
	}

	if mapping := session.Config.ColumnMapping; mapping != nil {
		add(mapping.IDColumn)
		for _, c := range mapping.QualityColumns() {
			add(c)
		}
	}
	for _, b := range session.Bales {
		keys := make([]string, 0, len(b.MappedValues))
		for k := range b.MappedValues {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			add(k)
		}
	}
	return out
}

func exportRow(b domain.Bale, extra []string) []any {
	row := []any{b.ID, b.MillLot, b.MillBaleNumber, nil, string(b.Status), nil, nil}
	if b.Weight != nil {
		row[3] = *b.Weight
	}
	if b.ScannedAt != nil {
		row[5] = b.ScannedAt.UTC().Format(time.RFC3339)
	}
	if b.QualityAssessment != nil {
		row[6] = *b.QualityAssessment
	}
	for _, key := range extra {
		v, _ := b.Value(key)
		row = append(row, v)
	}
	return row
}
