package locationsvc

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/location"
)

const (
	baseName = "final_danh-muc-phuong-xa_moi"

	// fewest columns a CSV header row must have to be accepted
	minCSVColumns = 6
)

// the CSV export of the catalog carries a title block above its header
var csvHeaderRows = []int{2, 1, 0}

type fileSource struct {
	dir    string
	logger core.Logger
}

var _ location.Source = (*fileSource)(nil) // interface compliance check

// NewFileSource reads the administrative-unit catalog from `dir`, preferring xlsx over CSV.
func NewFileSource(dir string, logger core.Logger) *fileSource {
	return &fileSource{dir: dir, logger: logger}
}

func (src fileSource) Load(ctx context.Context) (*location.Table, error) {
	xlsxPath := filepath.Join(src.dir, baseName+".xlsx")
	if exists(xlsxPath) {
		t, err := readXLSX(xlsxPath)
		if err == nil {
			return t, nil
		}
		src.logger.Warn("locations: unreadable xlsx, trying csv: " + err.Error())
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	csvPath := filepath.Join(src.dir, baseName+".csv")
	if !exists(csvPath) {
		return nil, nil
	}
	return readCSV(csvPath)
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readXLSX(path string) (*location.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, errors.Wrap(err, "reading rows")
	}
	t := &location.Table{Source: "xlsx"}
	if len(rows) > 0 {
		t.Header, t.Rows = rows[0], rows[1:]
	}
	return t, nil
}

func readCSV(path string) (*location.Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parsing csv")
	}

	for _, h := range csvHeaderRows {
		if len(records) > h && len(records[h]) >= minCSVColumns {
			return &location.Table{Source: "csv", Header: records[h], Rows: records[h+1:]}, nil
		}
	}
	return &location.Table{Source: "csv"}, nil
}
