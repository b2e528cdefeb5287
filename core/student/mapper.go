package student

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/trezcool/hocsinh/core"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

var (
	errInvalidDate   = errors.New("Ngày không hợp lệ")
	errInvalidNumber = errors.New("Giá trị phải là số")
)

// Record is a stored student row keyed by internal column name.
// Absent keys are not touched on write; nil values are cleared.
type Record map[string]interface{}

func (r Record) String(column string) string {
	switch v := r[column].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (r Record) ID() int64 {
	id, _ := r[ColID].(int64)
	return id
}

// Columns returns the mapped columns present in `r`, in Fields order.
func (r Record) Columns() []string {
	cols := make([]string, 0, len(r))
	for _, f := range Fields {
		if _, ok := r[f.Column]; ok {
			cols = append(cols, f.Column)
		}
	}
	return cols
}

// ToInternal converts an external payload into a Record.
// Blank values are treated as absent, explicit nulls clear the column.
// Values that cannot be coerced are reported per field.
func ToInternal(ext map[string]interface{}) (Record, []core.FieldError) {
	rec := make(Record, len(ext))
	var errs []core.FieldError

	for _, f := range Fields {
		raw, ok := lookup(ext, f)
		if !ok {
			continue
		}
		val, present, err := f.coerce(raw)
		if err != nil {
			errs = append(errs, core.FieldError{Field: f.Key, Error: err.Error()})
			continue
		}
		if present {
			rec[f.Column] = val
		}
	}
	deriveGrade(rec)
	return rec, errs
}

// lookup finds the value for `f`: external key first, then the internal and legacy names.
func lookup(ext map[string]interface{}, f Field) (interface{}, bool) {
	if v, ok := ext[f.Key]; ok {
		return v, true
	}
	if v, ok := ext[f.Column]; ok {
		return v, true
	}
	if f.Legacy != "" {
		if v, ok := ext[f.Legacy]; ok {
			return v, true
		}
	}
	for alias, col := range inputAliases {
		if col == f.Column {
			if v, ok := ext[alias]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// deriveGrade fills the grade from the first two characters of the class.
func deriveGrade(rec Record) {
	if _, ok := rec[ColGrade]; ok {
		return
	}
	class, ok := rec[ColClass].(string)
	if !ok || utf8.RuneCountInString(class) < 2 {
		return
	}
	rec[ColGrade] = string([]rune(class)[:2])
}

func (f Field) coerce(raw interface{}) (val interface{}, present bool, err error) {
	if raw == nil {
		return nil, true, nil
	}
	switch f.Kind {
	case KindInt:
		return coerceInt(raw)
	case KindDate:
		s := toText(raw)
		if s == "" {
			return nil, false, nil
		}
		d, ok := NormalizeDate(s)
		if !ok {
			return nil, false, errInvalidDate
		}
		return d, true, nil
	case KindList:
		items := toList(raw)
		if len(items) == 0 {
			return nil, false, nil
		}
		return strings.Join(items, listSeparator), true, nil
	default:
		s := toText(raw)
		if s == "" {
			return nil, false, nil
		}
		return s, true, nil
	}
}

func coerceInt(raw interface{}) (interface{}, bool, error) {
	var f float64
	switch v := raw.(type) {
	case int:
		return int64(v), true, nil
	case int64:
		return v, true, nil
	case float64:
		f = v
	case json.Number:
		return coerceInt(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, false, nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true, nil
		}
		var err error
		if f, err = strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err != nil {
			return nil, false, errInvalidNumber
		}
	default:
		return nil, false, errInvalidNumber
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false, errInvalidNumber
	}
	return int64(math.Round(f)), true, nil
}

func toText(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func toList(raw interface{}) []string {
	switch v := raw.(type) {
	case []string:
		return core.SplitList(strings.Join(v, listSeparator))
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			items = append(items, toText(item))
		}
		return core.SplitList(strings.Join(items, listSeparator))
	default:
		return core.SplitList(toText(raw))
	}
}

// NormalizeDate accepts yyyy-mm-dd or dd/mm/yyyy (also with `-` or `.`) and returns yyyy-mm-dd.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		if t, err := time.Parse(dateLayout, s[:10]); err == nil {
			return t.Format(dateLayout), true
		}
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '-' || r == '.' })
	if len(parts) != 3 || len(parts[2]) != 4 {
		return "", false
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return t.Format(dateLayout), true
}

// FormatDate renders a stored yyyy-mm-dd date as dd/mm/yyyy. Other values are returned untouched.
func FormatDate(s string) string {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return t.Format("02/01/2006")
}

// ToExternal converts a Record into its client representation.
// Every mapped field is present (nil when unset); renamed fields are also exposed
// under their internal and legacy names.
func ToExternal(rec Record) map[string]interface{} {
	out := make(map[string]interface{}, len(Fields)*2+3)
	out[ColID] = rec[ColID]
	for _, f := range Fields {
		stored := rec[f.Column]
		if s, ok := stored.(string); ok && s == "" {
			stored = nil
		}
		out[f.Key] = externalValue(f, stored)
		if f.Column != f.Key {
			out[f.Column] = stored
		}
		if f.Legacy != "" {
			out[f.Legacy] = stored
		}
	}
	out[ColCreatedAt] = timestamp(rec[ColCreatedAt])
	out[ColUpdatedAt] = timestamp(rec[ColUpdatedAt])
	return out
}

func externalValue(f Field, stored interface{}) interface{} {
	if stored == nil {
		return nil
	}
	if f.Kind == KindList {
		return core.SplitList(fmt.Sprint(stored))
	}
	return stored
}

func timestamp(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(timestampLayout)
	case string:
		if t == "" {
			return nil
		}
		return t
	default:
		return v
	}
}

// Detail is ToExternal plus the composite fields the detail view shows.
func Detail(rec Record) map[string]interface{} {
	out := ToExternal(rec)
	out["permanent_address"] = joinAll(", ",
		rec.String("permanent_street"), rec.String("permanent_hamlet"),
		rec.String("permanent_ward"), rec.String(ColPermanentProvince),
	)
	out["temporary_address"] = joinAll(", ",
		rec.String("current_address_detail"), rec.String("current_hamlet"),
		rec.String("current_ward"), rec.String(ColCurrentProvince),
	)
	idNumber := rec.String("citizen_id")
	if idNumber == "" {
		idNumber = rec.String("personal_id")
	}
	if idNumber != "" {
		out["id_number"] = idNumber
	} else {
		out["id_number"] = nil
	}
	return out
}

// joinAll joins parts only when none of them is blank.
func joinAll(sep string, parts ...string) interface{} {
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil
		}
	}
	return strings.Join(parts, sep)
}
