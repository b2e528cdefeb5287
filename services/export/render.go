package exportsvc

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/student"
)

const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatJSON = "json"

	sheetName       = "Danh sách học sinh"
	defaultFontSize = 11
	defaultTheme    = "blue"
	filePrefix      = "danh_sach_"
	maxSameSecond   = 100
)

var (
	ErrNoRows        = errors.New("Không có dữ liệu phù hợp để xuất")
	ErrUnknownFormat = errors.New("Định dạng xuất không được hỗ trợ")

	// NowFunc is mocked in tests.
	NowFunc = time.Now

	themes = map[string]string{
		"blue":   "1F4E79",
		"green":  "2E7D32",
		"orange": "F57500",
		"purple": "7B1FA2",
		"red":    "D32F2F",
		"teal":   "00796B",
	}

	contentTypes = map[string]string{
		FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		FormatCSV:  "text/csv; charset=utf-8",
		FormatJSON: "application/json; charset=utf-8",
	}

	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
)

// Options tune a rendering. Only Title and Type apply to every format.
type Options struct {
	Title            string
	Type             string // export type written in the JSON envelope
	Filter           student.FilterSpec
	IncludeStats     bool
	IncludeTimestamp bool
	HideEmptyFields  bool
	ThemeColor       string
	FontSize         int
}

func (o *Options) clean(schoolName string) {
	if o.Title = core.CleanString(o.Title); o.Title == "" {
		o.Title = "Danh sách học sinh " + schoolName
	}
	if o.Type == "" || o.Type == student.TypeAll {
		o.Type = o.Filter.Type()
	}
	if _, ok := themes[o.ThemeColor]; !ok {
		o.ThemeColor = defaultTheme
	}
	if o.FontSize < 6 || o.FontSize > 72 {
		o.FontSize = defaultFontSize
	}
}

// File is a rendered export waiting to be downloaded.
type File struct {
	Name        string
	Path        string
	ContentType string
	Rows        int
}

type Renderer struct {
	dir        string
	schoolName string
	logger     core.Logger
}

func NewRenderer(conf *core.Config, logger core.Logger) *Renderer {
	return &Renderer{dir: conf.Export.Dir, schoolName: conf.SchoolName, logger: logger}
}

// Render writes `rows` into a new file of `format` under the export directory.
func (r *Renderer) Render(rows []student.Record, format string, opts Options) (*File, error) {
	if _, ok := contentTypes[format]; !ok {
		return nil, ErrUnknownFormat
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	opts.clean(r.schoolName)
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating export directory")
	}

	now := NowFunc()
	name, err := reserve(r.dir, Filename(opts.Type, opts.Filter, format, now))
	if err != nil {
		return nil, err
	}
	f := &File{Name: name, Path: filepath.Join(r.dir, name), ContentType: contentTypes[format], Rows: len(rows)}
	cols := Columns(rows, opts.HideEmptyFields)

	switch format {
	case FormatXLSX:
		err = writeXLSX(f.Path, rows, cols, opts, now)
	case FormatCSV:
		err = writeCSV(f.Path, rows, cols)
	case FormatJSON:
		err = writeJSON(f.Path, rows, cols, opts, now)
	}
	if err != nil {
		_ = os.Remove(f.Path)
		return nil, errors.Wrapf(err, "rendering %s", format)
	}
	r.logger.Info(fmt.Sprintf("exported %d rows to %s", len(rows), name))
	return f, nil
}

// Filename is `danh_sach_hoc_sinh_<scope>_<YYYYMMDD_HHMMSS>.<ext>`. Render adds `_<n>` before the
// extension when that name is already taken.
func Filename(exportType string, fs student.FilterSpec, ext string, now time.Time) string {
	fs.Clean()
	scope := "tat_ca"
	switch exportType {
	case student.TypeGrade:
		if fs.Grade != "" {
			scope = "khoi_" + fs.Grade
		}
	case student.TypeClass:
		if len(fs.Classes) == 1 {
			scope = "lop_" + fs.Classes[0]
		} else if len(fs.Classes) > 1 {
			scope = strconv.Itoa(len(fs.Classes)) + "_lop"
		}
	case student.TypeCustom:
		scope = "tuy_chinh"
	}
	return fmt.Sprintf("%shoc_sinh_%s_%s.%s", filePrefix, sanitize(scope), now.Format("20060102_150405"), ext)
}

// reserve creates an empty file named `name` in `dir`, or `<name>_<n>.<ext>` when exports of the
// same scope land in the same second, and returns the name it got.
func reserve(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; n <= maxSameSecond; n++ {
		if n > 1 {
			name = base + "_" + strconv.Itoa(n) + ext
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, "creating export file")
		}
		return name, f.Close()
	}
	return "", errors.Errorf("too many exports named %s", base+ext)
}

// sanitize keeps a scope usable as a file name.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}

func writeXLSX(path string, rows []student.Record, cols []Column, opts Options, now time.Time) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	var preamble [][]interface{}
	if opts.IncludeStats {
		preamble = append(preamble,
			[]interface{}{opts.Title},
			[]interface{}{fmt.Sprintf("Tổng số học sinh: %d", len(rows))},
		)
		if opts.IncludeTimestamp {
			preamble = append(preamble, []interface{}{"Xuất lúc: " + now.Format("02/01/2006 15:04:05")})
		}
		preamble = append(preamble, nil)
	}

	// widths are measured on every written cell, preamble included
	widths := make([]int, len(cols))
	measure := func(i int, s string) {
		if w := cellWidth(s); w > widths[i] {
			widths[i] = w
		}
	}

	rowNum := 1
	for _, line := range preamble {
		if len(line) > 0 {
			if err := f.SetSheetRow(sheetName, cellName(1, rowNum), &line); err != nil {
				return errors.Wrap(err, "writing preamble")
			}
			if len(cols) > 0 {
				measure(0, fmt.Sprint(line[0]))
			}
		}
		rowNum++
	}

	headerRow := rowNum
	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c.Label
		measure(i, c.Label)
	}
	if err := f.SetSheetRow(sheetName, cellName(1, headerRow), &header); err != nil {
		return errors.Wrap(err, "writing header")
	}

	for n, rec := range rows {
		line := make([]interface{}, len(cols))
		for i, c := range cols {
			line[i] = cellValue(rec[c.Key])
			measure(i, cellText(rec[c.Key]))
		}
		if err := f.SetSheetRow(sheetName, cellName(1, headerRow+1+n), &line); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}
	lastRow := headerRow + len(rows)

	if err := styleXLSX(f, cols, widths, headerRow, lastRow, opts); err != nil {
		return err
	}
	return errors.Wrap(f.SaveAs(path), "saving workbook")
}

func styleXLSX(f *excelize.File, cols []Column, widths []int, headerRow, lastRow int, opts Options) error {
	border := []excelize.Border{
		{Type: "left", Color: "BFBFBF", Style: 1},
		{Type: "top", Color: "BFBFBF", Style: 1},
		{Type: "right", Color: "BFBFBF", Style: 1},
		{Type: "bottom", Color: "BFBFBF", Style: 1},
	}
	centered := &excelize.Alignment{Horizontal: "center", Vertical: "center"}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: float64(opts.FontSize + 1)},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{themes[opts.ThemeColor]}},
		Alignment: centered,
		Border:    border,
	})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	dataStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: float64(opts.FontSize)},
		Alignment: centered,
		Border:    border,
	})
	if err != nil {
		return errors.Wrap(err, "creating data style")
	}
	plainStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: float64(opts.FontSize)},
		Alignment: centered,
	})
	if err != nil {
		return errors.Wrap(err, "creating preamble style")
	}

	lastCol := len(cols)
	if headerRow > 1 {
		if err = f.SetCellStyle(sheetName, cellName(1, 1), cellName(lastCol, headerRow-1), plainStyle); err != nil {
			return errors.Wrap(err, "styling preamble")
		}
	}
	if err = f.SetCellStyle(sheetName, cellName(1, headerRow), cellName(lastCol, headerRow), headerStyle); err != nil {
		return errors.Wrap(err, "styling header")
	}
	if lastRow > headerRow {
		if err = f.SetCellStyle(sheetName, cellName(1, headerRow+1), cellName(lastCol, lastRow), dataStyle); err != nil {
			return errors.Wrap(err, "styling rows")
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err = f.SetColWidth(sheetName, col, col, float64(columnWidth(w))); err != nil {
			return errors.Wrap(err, "sizing columns")
		}
	}
	for row := 1; row <= lastRow; row++ {
		height := 25.0
		if row == headerRow {
			height = 30
		}
		if err = f.SetRowHeight(sheetName, row, height); err != nil {
			return errors.Wrap(err, "sizing rows")
		}
	}
	return nil
}

// cellWidth counts characters, with 20% extra for text outside ASCII.
func cellWidth(s string) int {
	n := utf8.RuneCountInString(s)
	for _, r := range s {
		if r > 127 {
			return int(float64(n) * 1.2)
		}
	}
	return n
}

// columnWidth pads the content width and bounds it to [12, 80].
func columnWidth(content int) int {
	w := content + 3
	if w < 12 {
		return 12
	}
	if w > 80 {
		return 80
	}
	return w
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func writeCSV(path string, rows []student.Record, cols []Column) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	bw := bufio.NewWriter(f)
	if _, err = bw.Write(utf8BOM); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "writing BOM")
	}

	w := csv.NewWriter(bw)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Label
	}
	_ = w.Write(header)
	for _, rec := range rows {
		line := make([]string, len(cols))
		for i, c := range cols {
			line[i] = cellText(rec[c.Key])
		}
		_ = w.Write(line)
	}
	w.Flush()
	if err = w.Error(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "writing rows")
	}
	if err = bw.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "flushing file")
	}
	return errors.Wrap(f.Close(), "closing file")
}

type envelope struct {
	ExportInfo exportInfo   `json:"export_info"`
	Data       []orderedRow `json:"data"`
}

type exportInfo struct {
	Title        string `json:"title"`
	ExportedAt   string `json:"exported_at"`
	TotalRecords int    `json:"total_records"`
	ExportType   string `json:"export_type"`
}

// orderedRow marshals as an object whose keys keep the column order.
type orderedRow struct {
	cols []Column
	rec  student.Record
}

func (row orderedRow) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, c := range row.cols {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(c.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(cellValue(row.rec[c.Key]))
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func writeJSON(path string, rows []student.Record, cols []Column, opts Options, now time.Time) error {
	env := envelope{
		ExportInfo: exportInfo{
			Title:        opts.Title,
			ExportedAt:   now.Format(time.RFC3339),
			TotalRecords: len(rows),
			ExportType:   opts.Type,
		},
		Data: make([]orderedRow, 0, len(rows)),
	}
	for _, rec := range rows {
		env.Data = append(env.Data, orderedRow{cols: cols, rec: rec})
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err = enc.Encode(env); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "encoding rows")
	}
	return errors.Wrap(f.Close(), "closing file")
}
