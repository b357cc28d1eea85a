package xlsx

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"apbn/internal/core"
)

// DefaultSheet is the worksheet name used for exports.
const DefaultSheet = "Data"

// Write renders the view as a single-sheet workbook: a header row followed by
// one row per record. Numbers stay numeric cells.
func Write(w io.Writer, sheet string, v core.View) error {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(v.Columns))
	for i, c := range v.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range v.Records {
		row := make([]any, len(v.Columns))
		for j, col := range v.Columns {
			cell := rec.Get(col)
			switch cell.Kind {
			case core.KindNumber:
				row[j] = cell.Num
			case core.KindText:
				row[j] = cell.Text
			default:
				row[j] = nil
			}
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteFile saves the view as a workbook at path.
func WriteFile(path, sheet string, v core.View) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return Write(out, sheet, v)
}
