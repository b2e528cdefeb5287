package student

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/trezcool/hocsinh/core"
)

// Export types, inferred from the facets when the client does not send one.
const (
	TypeAll    = "all"
	TypeGrade  = "grade"
	TypeClass  = "class"
	TypeCustom = "custom"
)

// The free-text search of the admin listing matches names without case or diacritics,
// and the other columns as typed.
var (
	foldedSearchColumns = []string{ColFullNameNorm, ColNicknameNorm}
	searchColumns       = []string{ColEmail, ColClass, ColPhone}
)

// FilterSpec holds the optional facets of a listing, count or export. Facets combine with AND.
type FilterSpec struct {
	Grade     string   // prefix of the class; wins over Classes
	Classes   []string // exact class names
	Province  string   // fuzzy, against the permanent and current province
	Ethnicity string   // fuzzy
	Genders   []string
	HasPhone  bool
	DateFrom  string // birth date lower bound, yyyy-mm-dd
	DateTo    string // birth date upper bound, yyyy-mm-dd
	Search    string
}

func (fs *FilterSpec) Clean() {
	fs.Grade = core.CleanString(fs.Grade)
	fs.Classes = cleanList(fs.Classes)
	fs.Province = core.CleanString(fs.Province)
	fs.Ethnicity = core.CleanString(fs.Ethnicity)
	fs.Genders = cleanList(fs.Genders)
	fs.Search = core.CleanString(fs.Search)
	fs.DateFrom = cleanDate(fs.DateFrom)
	fs.DateTo = cleanDate(fs.DateTo)
}

func (fs FilterSpec) IsEmpty() bool {
	return fs.Grade == "" && len(fs.Classes) == 0 && !fs.hasCustomFacets() && fs.Search == ""
}

func (fs FilterSpec) hasCustomFacets() bool {
	return fs.Province != "" || fs.Ethnicity != "" || len(fs.Genders) > 0 || fs.HasPhone ||
		fs.DateFrom != "" || fs.DateTo != ""
}

// SetYearRange turns a birth year range into date bounds. Invalid years are ignored.
func (fs *FilterSpec) SetYearRange(fromYear, toYear string) {
	if y, err := strconv.Atoi(strings.TrimSpace(fromYear)); err == nil && y > 0 {
		fs.DateFrom = strconv.Itoa(y) + "-01-01"
	}
	if y, err := strconv.Atoi(strings.TrimSpace(toYear)); err == nil && y > 0 {
		fs.DateTo = strconv.Itoa(y) + "-12-31"
	}
}

// Type infers the export type from the facets in use.
func (fs FilterSpec) Type() string {
	switch {
	case fs.Grade != "":
		return TypeGrade
	case len(fs.Classes) > 0:
		return TypeClass
	case fs.hasCustomFacets():
		return TypeCustom
	default:
		return TypeAll
	}
}

// ForType keeps only the facets an explicit export type uses. Province and ethnicity
// apply to every type; an empty or unknown type keeps everything.
func (fs FilterSpec) ForType(exportType string) FilterSpec {
	custom := func(f *FilterSpec) {
		f.Genders, f.HasPhone, f.DateFrom, f.DateTo = nil, false, "", ""
	}
	switch exportType {
	case TypeGrade:
		fs.Classes = nil
		custom(&fs)
	case TypeClass:
		fs.Grade = ""
		custom(&fs)
	case TypeCustom:
		fs.Grade, fs.Classes = "", nil
	}
	return fs
}

// Build renders `fs` as a WHERE clause (empty when no facet applies) with `?` placeholders,
// plus its parameters in order. The caller rebinds the final query for its dialect.
// Only column names and integer literals are ever interpolated.
func Build(fs FilterSpec, d core.Dialect) (string, []interface{}) {
	fs.Clean()
	var (
		conds  []string
		params []interface{}
	)

	if fs.Grade != "" {
		conds = append(conds, d.Prefix(ColClass, utf8.RuneCountInString(fs.Grade))+" = ?")
		params = append(params, fs.Grade)
	} else if len(fs.Classes) > 0 {
		conds = append(conds, ColClass+" IN ("+placeholders(len(fs.Classes))+")")
		for _, c := range fs.Classes {
			params = append(params, c)
		}
	}

	if p := core.FoldString(fs.Province); p != "" {
		pattern := "%" + escapeLike(p) + "%"
		conds = append(conds, "("+likeEscaped(ColPermanentProvinceNorm)+" OR "+likeEscaped(ColCurrentProvinceNorm)+")")
		params = append(params, pattern, pattern)
	}

	if e := core.FoldString(fs.Ethnicity); e != "" {
		conds = append(conds, likeEscaped(ColEthnicityNorm))
		params = append(params, "%"+escapeLike(e)+"%")
	}

	if len(fs.Genders) > 0 {
		conds = append(conds, ColGender+" IN ("+placeholders(len(fs.Genders))+")")
		for _, g := range fs.Genders {
			params = append(params, g)
		}
	}

	if fs.HasPhone {
		conds = append(conds, "("+ColPhone+" IS NOT NULL AND "+ColPhone+" <> '')")
	}

	if fs.DateFrom != "" {
		conds = append(conds, ColBirthDate+" >= ?")
		params = append(params, fs.DateFrom)
	}
	if fs.DateTo != "" {
		conds = append(conds, ColBirthDate+" <= ?")
		params = append(params, fs.DateTo)
	}

	if fs.Search != "" {
		raw := "%" + escapeLike(fs.Search) + "%"
		folded := "%" + escapeLike(core.FoldString(fs.Search)) + "%"
		matches := make([]string, 0, len(searchColumns)+len(foldedSearchColumns))
		for _, col := range foldedSearchColumns {
			matches = append(matches, likeEscaped(col))
			params = append(params, folded)
		}
		for _, col := range searchColumns {
			matches = append(matches, d.ILike(col)+` ESCAPE '\'`)
			params = append(params, raw)
		}
		conds = append(conds, "("+strings.Join(matches, " OR ")+")")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), params
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func likeEscaped(column string) string {
	return column + ` LIKE ? ESCAPE '\'`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func cleanList(items []string) []string {
	var cleaned []string
	for _, item := range items {
		// accept both repeated params and comma separated values
		cleaned = append(cleaned, core.SplitList(item)...)
	}
	return cleaned
}

func cleanDate(s string) string {
	if s = core.CleanString(s); s == "" {
		return ""
	}
	if d, ok := NormalizeDate(s); ok {
		return d
	}
	return ""
}
