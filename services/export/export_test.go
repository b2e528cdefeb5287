package exportsvc

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/hocsinh/core/student"
	testutil "github.com/trezcool/hocsinh/tests"
)

var fixedNow = time.Date(2025, 9, 1, 8, 30, 15, 0, time.UTC)

func setup(t *testing.T) *Renderer {
	t.Helper()
	NowFunc = func() time.Time { return fixedNow }
	t.Cleanup(func() { NowFunc = time.Now })

	conf := testutil.NewConfig()
	conf.Export.Dir = t.TempDir()
	return NewRenderer(conf, testutil.NewLogger(conf))
}

func sampleRows() []student.Record {
	return []student.Record{
		{
			student.ColID:        int64(1),
			student.ColEmail:     "an@test.vn",
			student.ColFullName:  "Nguyễn Văn An",
			student.ColClass:     "11A1",
			student.ColGrade:     "11",
			student.ColPhone:     "0901234567",
			student.ColUpdatedAt: fixedNow,
			student.ColSynthetic: false,
			"ho_ten":             "Nguyễn Văn An",

			student.ColPermanentProvinceNorm: "dong nai",
		},
		{
			student.ColID:        int64(2),
			student.ColEmail:     "binh@test.vn",
			student.ColFullName:  "Trần Thị Bình",
			student.ColClass:     "11A2",
			student.ColGrade:     "11",
			student.ColPhone:     nil,
			student.ColUpdatedAt: fixedNow,
			student.ColSynthetic: false,
		},
	}
}

func labels(cols []Column) []string {
	ls := make([]string, 0, len(cols))
	for _, c := range cols {
		ls = append(ls, c.Label)
	}
	return ls
}

func TestColumns(t *testing.T) {
	rows := sampleRows()
	assert.Equal(t, []string{"STT", "Email", "Họ và tên", "Lớp", "Số điện thoại", "Khối"}, labels(Columns(rows, false)))

	// a column under the fill threshold disappears, STT never does
	for i := 0; i < 15; i++ {
		rows = append(rows, student.Record{student.ColID: nil, student.ColEmail: "x@test.vn"})
	}
	assert.Equal(t, []string{"STT", "Email", "Họ và tên", "Lớp", "Khối"}, labels(Columns(rows, true)))
}

func TestCellText(t *testing.T) {
	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"  10A1 ", "10A1"},
		{[]byte("abc"), "abc"},
		{int64(42), "42"},
		{1.5, "1.5"},
		{true, "Có"},
		{false, "Không"},
		{fixedNow, "2025-09-01 08:30:15"},
	}
	for _, tt := range tests {
		if got := cellText(tt.in); got != tt.want {
			t.Errorf("cellText(%v) = %q; want %q", tt.in, got, tt.want)
		}
	}
	assert.Equal(t, int64(3), cellValue(int64(3)))
	assert.Nil(t, cellValue("  "))
}

func TestColumnWidth(t *testing.T) {
	assert.Equal(t, 12, columnWidth(cellWidth("STT")))
	assert.Equal(t, 23, columnWidth(cellWidth("abcdefghijklmnopqrst")))
	assert.Equal(t, 27, columnWidth(cellWidth("Nguyễn Văn An Nguyễn")))
	assert.Equal(t, 80, columnWidth(500))
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		filter student.FilterSpec
		ext    string
		want   string
	}{
		{"grade", student.TypeGrade, student.FilterSpec{Grade: "11"}, "xlsx", "danh_sach_hoc_sinh_khoi_11_20250901_083015.xlsx"},
		{"one class", student.TypeClass, student.FilterSpec{Classes: []string{"10A1"}}, "csv", "danh_sach_hoc_sinh_lop_10A1_20250901_083015.csv"},
		{"many classes", student.TypeClass, student.FilterSpec{Classes: []string{"10A1,10A2", "10A3"}}, "json", "danh_sach_hoc_sinh_3_lop_20250901_083015.json"},
		{"custom", student.TypeCustom, student.FilterSpec{Province: "Đồng Nai"}, "xlsx", "danh_sach_hoc_sinh_tuy_chinh_20250901_083015.xlsx"},
		{"all", student.TypeAll, student.FilterSpec{}, "xlsx", "danh_sach_hoc_sinh_tat_ca_20250901_083015.xlsx"},
		{"grade without value", student.TypeGrade, student.FilterSpec{}, "csv", "danh_sach_hoc_sinh_tat_ca_20250901_083015.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.typ, tt.filter, tt.ext, fixedNow))
		})
	}
}

func TestRenderer_Errors(t *testing.T) {
	r := setup(t)

	_, err := r.Render(nil, FormatXLSX, Options{})
	assert.Equal(t, ErrNoRows, err)

	_, err = r.Render(sampleRows(), "pdf", Options{})
	assert.Equal(t, ErrUnknownFormat, err)
}

func TestRenderer_XLSX(t *testing.T) {
	r := setup(t)

	file, err := r.Render(sampleRows(), FormatXLSX, Options{
		Filter:           student.FilterSpec{Grade: "11"},
		IncludeStats:     true,
		IncludeTimestamp: true,
		ThemeColor:       "green",
	})
	require.NoError(t, err)
	assert.Equal(t, "danh_sach_hoc_sinh_khoi_11_20250901_083015.xlsx", file.Name)
	assert.Equal(t, 2, file.Rows)
	assert.Equal(t, contentTypes[FormatXLSX], file.ContentType)

	f, err := excelize.OpenFile(file.Path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, sheetName, f.GetSheetName(0))
	cell := func(name string) string {
		v, err := f.GetCellValue(sheetName, name)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Danh sách học sinh THPT Test", cell("A1"))
	assert.Equal(t, "Tổng số học sinh: 2", cell("A2"))
	assert.Equal(t, "Xuất lúc: 01/09/2025 08:30:15", cell("A3"))
	assert.Equal(t, "", cell("A4"))
	assert.Equal(t, "STT", cell("A5"))
	assert.Equal(t, "Email", cell("B5"))
	assert.Equal(t, "1", cell("A6"))
	assert.Equal(t, "binh@test.vn", cell("B7"))
	assert.Equal(t, "", cell("E7"))

	height, err := f.GetRowHeight(sheetName, 5)
	require.NoError(t, err)
	assert.Equal(t, 30.0, height)
	width, err := f.GetColWidth(sheetName, "A")
	require.NoError(t, err)
	// the widest preamble line sizes the first column
	assert.Equal(t, float64(columnWidth(cellWidth("Xuất lúc: 01/09/2025 08:30:15"))), width)
}

func TestRenderer_XLSXWithoutStats(t *testing.T) {
	r := setup(t)

	file, err := r.Render(sampleRows(), FormatXLSX, Options{Title: "Lớp 11", IncludeTimestamp: true})
	require.NoError(t, err)

	f, err := excelize.OpenFile(file.Path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "STT", rows[0][0])
	assert.Equal(t, "an@test.vn", rows[1][1])
}

func TestRenderer_CSV(t *testing.T) {
	r := setup(t)

	file, err := r.Render(sampleRows(), FormatCSV, Options{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(file.Name, ".csv"))

	b, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, utf8BOM), "missing BOM")

	recs, err := csv.NewReader(bytes.NewReader(b[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"STT", "Email", "Họ và tên", "Lớp", "Số điện thoại", "Khối"}, recs[0])
	assert.Equal(t, []string{"2", "binh@test.vn", "Trần Thị Bình", "11A2", "", "11"}, recs[2])
}

func TestRenderer_JSON(t *testing.T) {
	r := setup(t)

	file, err := r.Render(sampleRows(), FormatJSON, Options{Filter: student.FilterSpec{Classes: []string{"11A1"}}})
	require.NoError(t, err)
	assert.Equal(t, "danh_sach_hoc_sinh_lop_11A1_20250901_083015.json", file.Name)

	b, err := os.ReadFile(file.Path)
	require.NoError(t, err)

	var env struct {
		ExportInfo struct {
			Title        string `json:"title"`
			ExportedAt   string `json:"exported_at"`
			TotalRecords int    `json:"total_records"`
			ExportType   string `json:"export_type"`
		} `json:"export_info"`
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(b, &env))
	assert.Equal(t, "Danh sách học sinh THPT Test", env.ExportInfo.Title)
	assert.Equal(t, "2025-09-01T08:30:15Z", env.ExportInfo.ExportedAt)
	assert.Equal(t, 2, env.ExportInfo.TotalRecords)
	assert.Equal(t, student.TypeClass, env.ExportInfo.ExportType)
	require.Len(t, env.Data, 2)
	assert.Equal(t, float64(1), env.Data[0]["STT"])
	assert.Equal(t, "Nguyễn Văn An", env.Data[0]["Họ và tên"])
	assert.Nil(t, env.Data[1]["Số điện thoại"])

	// keys keep the column order
	assert.Less(t, bytes.Index(b, []byte(`"STT"`)), bytes.Index(b, []byte(`"Email"`)))
	assert.Less(t, bytes.Index(b, []byte(`"Email"`)), bytes.Index(b, []byte(`"Họ và tên"`)))
}

func TestRenderer_SameSecond(t *testing.T) {
	r := setup(t)

	first, err := r.Render(sampleRows(), FormatCSV, Options{})
	require.NoError(t, err)
	second, err := r.Render(sampleRows()[:1], FormatCSV, Options{})
	require.NoError(t, err)

	assert.Equal(t, "danh_sach_hoc_sinh_tat_ca_20250901_083015.csv", first.Name)
	assert.Equal(t, "danh_sach_hoc_sinh_tat_ca_20250901_083015_2.csv", second.Name)

	// removing one export leaves the other in place
	require.NoError(t, RemoveFile(first.Path, 1, time.Millisecond, nil))
	b, err := os.ReadFile(second.Path)
	require.NoError(t, err)
	recs, err := csv.NewReader(bytes.NewReader(b[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestRemoveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "danh_sach_x.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	assert.NoError(t, RemoveFile(path, 3, time.Millisecond, nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// already gone
	assert.NoError(t, RemoveFile(path, 3, time.Millisecond, nil))
}

func TestCleaner(t *testing.T) {
	conf := testutil.NewConfig()
	dir := t.TempDir()
	path := filepath.Join(dir, "danh_sach_hoc_sinh_tat_ca.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	c := NewCleaner(10*time.Millisecond, testutil.NewLogger(conf))
	c.Schedule(path)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond)

	// pending removals are abandoned on stop
	kept := filepath.Join(dir, "danh_sach_hoc_sinh_khoi_10.xlsx")
	require.NoError(t, os.WriteFile(kept, []byte("x"), 0o644))
	c = NewCleaner(time.Hour, testutil.NewLogger(conf))
	c.Schedule(kept)
	c.Stop()
	_, err := os.Stat(kept)
	assert.NoError(t, err)
}

func TestSweeper(t *testing.T) {
	conf := testutil.NewConfig()
	conf.Export.Dir = t.TempDir()
	conf.Export.MaxAge = 3 * time.Minute
	s := NewSweeper(conf, testutil.NewLogger(conf))

	old := time.Now().Add(-10 * time.Minute)
	write := func(name string, mtime time.Time) string {
		path := filepath.Join(conf.Export.Dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
		return path
	}
	stale := []string{
		write("danh_sach_hoc_sinh_tat_ca_1.xlsx", old),
		write("danh_sach_hoc_sinh_tat_ca_2.csv", old),
		write("danh_sach_hoc_sinh_tat_ca_3.json", old),
	}
	kept := []string{
		write("danh_sach_hoc_sinh_tat_ca_4.xlsx", time.Now()),
		write("report.xlsx", old),
		write("danh_sach_notes.txt", old),
	}

	n, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, p := range stale {
		_, err = os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
	for _, p := range kept {
		_, err = os.Stat(p)
		assert.NoError(t, err, p)
	}

	// a missing directory is not an error
	conf.Export.Dir = filepath.Join(conf.Export.Dir, "missing")
	n, err = NewSweeper(conf, testutil.NewLogger(conf)).Sweep()
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweeper_Start(t *testing.T) {
	conf := testutil.NewConfig()
	conf.Export.Dir = t.TempDir()
	s := NewSweeper(conf, testutil.NewLogger(conf))

	assert.Error(t, s.Start("every now and then"))
	require.NoError(t, s.Start("@every 1h"))
	s.Stop()
}
