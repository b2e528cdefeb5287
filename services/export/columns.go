package exportsvc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/hocsinh/core/student"
)

// Column is an exported column: its record key and its header label.
type Column struct {
	Key   string
	Label string
}

const idLabel = "STT"

// canonical export order; record columns missing from it are appended, sorted by key
var canonical = []Column{
	{student.ColID, idLabel},
	{student.ColEmail, "Email"},
	{student.ColFullName, "Họ và tên"},
	{student.ColNickname, "Tên gọi khác"},
	{student.ColClass, "Lớp"},
	{student.ColBirthDate, "Ngày sinh"},
	{student.ColGender, "Giới tính"},
	{student.ColEthnicity, "Dân tộc"},
	{"nationality", "Quốc tịch"},
	{"religion", "Tôn giáo"},
	{student.ColPhone, "Số điện thoại"},
	{"citizen_id", "Số CCCD"},
	{"cccd_date", "Ngày cấp CCCD"},
	{"cccd_place", "Nơi cấp CCCD"},
	{"personal_id", "Mã định danh"},
	{"passport", "Số hộ chiếu"},
	{"passport_date", "Ngày cấp hộ chiếu"},
	{"passport_place", "Nơi cấp hộ chiếu"},
	{"organization", "Đoàn/Đội"},
	{student.ColPermanentProvince, "Tỉnh thường trú"},
	{"permanent_ward", "Phường thường trú"},
	{"permanent_hamlet", "Khu phố thường trú"},
	{"permanent_street", "Địa chỉ thường trú"},
	{"hometown_province", "Tỉnh quê quán"},
	{"hometown_ward", "Phường quê quán"},
	{"hometown_hamlet", "Khu phố quê quán"},
	{"birth_cert_province", "Tỉnh cấp giấy khai sinh"},
	{"birth_cert_ward", "Phường cấp giấy khai sinh"},
	{"birthplace_province", "Tỉnh nơi sinh"},
	{"birthplace_ward", "Phường nơi sinh"},
	{"current_address_detail", "Địa chỉ chi tiết hiện tại"},
	{student.ColCurrentProvince, "Tỉnh hiện tại"},
	{"current_ward", "Phường hiện tại"},
	{"current_hamlet", "Khu phố hiện tại"},
	{"height", "Chiều cao (cm)"},
	{"weight", "Cân nặng (kg)"},
	{student.ColEyeDiseases, "Tật khúc xạ (mắt)"},
	{"swimming_skill", "Kỹ năng bơi"},
	{"smartphone", "Điện thoại thông minh"},
	{"computer", "Máy tính"},
	{"father_name", "Họ tên cha"},
	{"father_ethnicity", "Dân tộc của cha"},
	{"father_job", "Nghề nghiệp cha"},
	{"father_birth_year", "Năm sinh cha"},
	{"father_phone", "SĐT cha"},
	{"father_cccd", "CCCD cha"},
	{"mother_name", "Họ tên mẹ"},
	{"mother_ethnicity", "Dân tộc của mẹ"},
	{"mother_job", "Nghề nghiệp mẹ"},
	{"mother_birth_year", "Năm sinh mẹ"},
	{"mother_phone", "SĐT mẹ"},
	{"mother_cccd", "CCCD mẹ"},
	{"guardian_name", "Họ tên người giám hộ"},
	{"guardian_job", "Nghề nghiệp người giám hộ"},
	{"guardian_birth_year", "Năm sinh người giám hộ"},
	{"guardian_phone", "SĐT người giám hộ"},
	{"guardian_cccd", "CCCD người giám hộ"},
	{"guardian_gender", "Giới tính người giám hộ"},
	{student.ColCreatedAt, "Thời gian nộp kê khai"},
}

// labels of columns outside the canonical order
var extraLabels = map[string]string{
	student.ColGrade: "Khối",
}

// never exported
var skipped = map[string]bool{
	student.ColUpdatedAt: true,
	student.ColSynthetic: true,
}

// minFilledShare is the share of non-empty cells under which HideEmptyFields drops a column.
const minFilledShare = 0.1

// Columns returns the columns present in `rows`, canonical ones first.
func Columns(rows []student.Record, hideEmpty bool) []Column {
	legacy := student.LegacyColumns()
	present := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			if _, old := legacy[k]; !old && !skipped[k] && !student.IsHidden(k) {
				present[k] = true
			}
		}
	}

	cols := make([]Column, 0, len(present))
	for _, c := range canonical {
		if present[c.Key] {
			cols = append(cols, c)
			delete(present, c.Key)
		}
	}
	others := make([]string, 0, len(present))
	for k := range present {
		others = append(others, k)
	}
	sort.Strings(others)
	for _, k := range others {
		label, ok := extraLabels[k]
		if !ok {
			label = k
		}
		cols = append(cols, Column{Key: k, Label: label})
	}

	if hideEmpty && len(rows) > 0 {
		kept := cols[:0]
		for _, c := range cols {
			if c.Key == student.ColID || filledShare(rows, c.Key) >= minFilledShare {
				kept = append(kept, c)
			}
		}
		cols = kept
	}
	return cols
}

func filledShare(rows []student.Record, key string) float64 {
	var filled int
	for _, r := range rows {
		if cellText(r[key]) != "" {
			filled++
		}
	}
	return float64(filled) / float64(len(rows))
}

// cellText renders a stored value as exported text.
func cellText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "Có"
		}
		return "Không"
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(t)
	}
}

// cellValue is the value written to a row: numbers stay numbers, everything else is text.
func cellValue(v interface{}) interface{} {
	switch t := v.(type) {
	case int64, float64:
		return t
	case nil:
		return nil
	default:
		if s := cellText(t); s != "" {
			return s
		}
		return nil
	}
}
