// Package xlsx reads and writes APBN tables as Excel workbooks.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"apbn/internal/sheets"
)

// Reader reads the first worksheet of local .xlsx files.
type Reader struct {
	baseDir string
}

var _ sheets.RowReader = (*Reader)(nil)

// NewReader resolves relative locations against baseDir.
func NewReader(baseDir string) *Reader {
	return &Reader{baseDir: baseDir}
}

// Path resolves location to a file path.
func (r *Reader) Path(location string) string {
	p := strings.TrimPrefix(location, "file://")
	if filepath.IsAbs(p) || r.baseDir == "" {
		return p
	}
	return filepath.Join(r.baseDir, p)
}

func (r *Reader) ReadRows(ctx context.Context, location string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(r.Path(location))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return firstSheetRows(f)
}

// ReadWorkbook reads the first worksheet of a workbook streamed from rd.
func ReadWorkbook(rd io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(rd)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return firstSheetRows(f)
}

func firstSheetRows(f *excelize.File) ([][]string, error) {
	list := f.GetSheetList()
	if len(list) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(list[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", list[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", list[0])
	}
	return rows, nil
}
