package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

// Importer reads the first worksheet of a workbook. The first row is the
// header; every following non-empty row becomes a domain.Row keyed by header.
type Importer struct{}

func NewImporter() *Importer {
	return &Importer{}
}

func (i *Importer) Import(ctx context.Context, r io.Reader) (domain.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return domain.Table{}, domain.WrapError(domain.ErrValidation, "open workbook", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return domain.Table{}, domain.WrapError(domain.ErrValidation, "open workbook", errors.New("no sheets found"))
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return domain.Table{}, domain.WrapError(domain.ErrValidation, "read rows", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return domain.Table{}, domain.WrapError(domain.ErrValidation, "read header", fmt.Errorf("sheet %q is empty", sheet))
	}
	rawHeader, err := rows.Columns()
	if err != nil {
		return domain.Table{}, domain.WrapError(domain.ErrValidation, "read header", err)
	}

	header := make([]string, len(rawHeader))
	columns := make([]string, 0, len(rawHeader))
	seen := make(map[string]struct{}, len(rawHeader))
	for idx, name := range rawHeader {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		header[idx] = name
		columns = append(columns, name)
	}
	if len(columns) == 0 {
		return domain.Table{}, domain.WrapError(domain.ErrValidation, "read header", fmt.Errorf("sheet %q has no column names", sheet))
	}

	table := domain.Table{Columns: columns, Rows: make([]domain.Row, 0)}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return domain.Table{}, err
		}
		cells, err := rows.Columns()
		if err != nil {
			return domain.Table{}, domain.WrapError(domain.ErrValidation, "read row", err)
		}

		row := make(domain.Row, len(columns))
		for idx, cell := range cells {
			if idx >= len(header) || header[idx] == "" || cell == "" {
				continue
			}
			row[header[idx]] = cell
		}
		if len(row) == 0 {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Error(); err != nil {
		return domain.Table{}, domain.WrapError(domain.ErrValidation, "read rows", err)
	}
	return table, nil
}
