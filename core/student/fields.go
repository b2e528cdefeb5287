package student

// Kind tells how a field is coerced on its way in and out.
type Kind int

const (
	KindText Kind = iota
	KindDate      // stored as yyyy-mm-dd
	KindInt       // stored as integer or NULL
	KindList      // []string outside, comma joined inside
)

// Field pairs an internal column with its external (client facing) key.
type Field struct {
	Column string
	Key    string
	Kind   Kind
	Legacy string // historical column name, still emitted for older clients
}

// Table and system columns.
const (
	Table = "students"

	ColID          = "id"
	ColEmail       = "email"
	ColFullName    = "full_name"
	ColClass       = "class"
	ColGrade       = "grade"
	ColGender      = "gender"
	ColPhone       = "phone"
	ColBirthDate   = "birth_date"
	ColEthnicity   = "ethnicity"
	ColNickname    = "nickname"
	ColEyeDiseases = "eye_diseases"
	ColCreatedAt   = "created_at"
	ColUpdatedAt   = "updated_at"
	ColSynthetic   = "is_synthetic"

	ColPermanentProvince = "permanent_province"
	ColCurrentProvince   = "current_province"

	// lower-cased, diacritic free copies used for facet matching
	ColPermanentProvinceNorm = "permanent_province_norm"
	ColCurrentProvinceNorm   = "current_province_norm"
	ColEthnicityNorm         = "ethnicity_norm"
	ColFullNameNorm          = "full_name_norm"
	ColNicknameNorm          = "nickname_norm"

	listSeparator = ","
)

// Fields is the single source of truth for every field that crosses the API boundary.
// Anything not listed here is invisible to clients.
var Fields = []Field{
	{Column: "email", Key: "email"},
	{Column: "full_name", Key: "fullName", Legacy: "ho_ten"},
	{Column: "class", Key: "class", Legacy: "lop"},
	{Column: "grade", Key: "grade", Legacy: "khoi"},
	{Column: "birth_date", Key: "birthDate", Kind: KindDate, Legacy: "ngay_sinh"},
	{Column: "gender", Key: "gender", Legacy: "gioi_tinh"},
	{Column: "phone", Key: "phone", Legacy: "sdt"},
	{Column: "ethnicity", Key: "ethnicity", Legacy: "dan_toc"},
	{Column: "religion", Key: "religion", Legacy: "ton_giao"},
	{Column: "current_address_detail", Key: "currentAddressDetail", Legacy: "dia_chi"},
	{Column: "current_province", Key: "currentProvince", Legacy: "tinh_thanh"},
	{Column: "father_name", Key: "fatherName", Legacy: "ho_ten_cha"},
	{Column: "father_job", Key: "fatherJob", Legacy: "nghe_nghiep_cha"},
	{Column: "mother_name", Key: "motherName", Legacy: "ho_ten_me"},
	{Column: "mother_job", Key: "motherJob", Legacy: "nghe_nghiep_me"},

	// personal
	{Column: "nickname", Key: "nickname"},
	{Column: "nationality", Key: "nationality"},
	{Column: "citizen_id", Key: "citizenId"},
	{Column: "cccd_date", Key: "cccdDate", Kind: KindDate},
	{Column: "cccd_place", Key: "cccdPlace"},
	{Column: "personal_id", Key: "personalId"},
	{Column: "passport", Key: "passport"},
	{Column: "passport_date", Key: "passportDate", Kind: KindDate},
	{Column: "passport_place", Key: "passportPlace"},
	{Column: "occupation", Key: "occupation"},
	{Column: "organization", Key: "organization"},

	// addresses
	{Column: "permanent_province", Key: "permanentProvince"},
	{Column: "permanent_ward", Key: "permanentWard"},
	{Column: "permanent_hamlet", Key: "permanentHamlet"},
	{Column: "permanent_street", Key: "permanentStreet"},
	{Column: "hometown_province", Key: "hometownProvince"},
	{Column: "hometown_ward", Key: "hometownWard"},
	{Column: "hometown_hamlet", Key: "hometownHamlet"},
	{Column: "current_ward", Key: "currentWard"},
	{Column: "current_hamlet", Key: "currentHamlet"},
	{Column: "birthplace_province", Key: "birthplaceProvince"},
	{Column: "birthplace_ward", Key: "birthplaceWard"},
	{Column: "birth_cert_province", Key: "birthCertProvince"},
	{Column: "birth_cert_ward", Key: "birthCertWard"},

	// health
	{Column: "height", Key: "height", Kind: KindInt},
	{Column: "weight", Key: "weight", Kind: KindInt},
	{Column: "eye_diseases", Key: "eyeDiseases", Kind: KindList},
	{Column: "swimming_skill", Key: "swimmingSkill"},

	// devices
	{Column: "smartphone", Key: "smartphone"},
	{Column: "computer", Key: "computer"},

	// family
	{Column: "father_ethnicity", Key: "fatherEthnicity"},
	{Column: "father_birth_year", Key: "fatherBirthYear", Kind: KindInt},
	{Column: "father_phone", Key: "fatherPhone"},
	{Column: "father_cccd", Key: "fatherCCCD"},
	{Column: "mother_ethnicity", Key: "motherEthnicity"},
	{Column: "mother_birth_year", Key: "motherBirthYear", Kind: KindInt},
	{Column: "mother_phone", Key: "motherPhone"},
	{Column: "mother_cccd", Key: "motherCCCD"},
	{Column: "guardian_name", Key: "guardianName"},
	{Column: "guardian_job", Key: "guardianJob"},
	{Column: "guardian_birth_year", Key: "guardianBirthYear", Kind: KindInt},
	{Column: "guardian_phone", Key: "guardianPhone"},
	{Column: "guardian_cccd", Key: "guardianCCCD"},
	{Column: "guardian_gender", Key: "guardianGender"},
}

// inputAliases are extra external keys accepted on input only.
var inputAliases = map[string]string{
	"province": ColPermanentProvince,
}

var (
	fieldsByColumn = make(map[string]Field, len(Fields))
	fieldsByKey    = make(map[string]Field, len(Fields))
)

func init() {
	for _, f := range Fields {
		fieldsByColumn[f.Column] = f
		fieldsByKey[f.Key] = f
	}
}

// FieldByColumn returns the Field mapped to `column`, if any.
func FieldByColumn(column string) (Field, bool) {
	f, ok := fieldsByColumn[column]
	return f, ok
}

// LegacyColumns maps each historical column to its canonical replacement.
func LegacyColumns() map[string]string {
	legacy := make(map[string]string)
	for _, f := range Fields {
		if f.Legacy != "" {
			legacy[f.Legacy] = f.Column
		}
	}
	return legacy
}

// ColumnDef is a column of the target schema.
type ColumnDef struct {
	Name string
	Type string // INTEGER | TEXT | BOOLEAN | TIMESTAMP
}

// SchemaColumns lists every non-key column of the target schema, in order.
func SchemaColumns() []ColumnDef {
	cols := make([]ColumnDef, 0, len(Fields)+6)
	for _, f := range Fields {
		typ := "TEXT"
		if f.Kind == KindInt {
			typ = "INTEGER"
		}
		cols = append(cols, ColumnDef{Name: f.Column, Type: typ})
	}
	return append(cols,
		ColumnDef{Name: ColPermanentProvinceNorm, Type: "TEXT"},
		ColumnDef{Name: ColCurrentProvinceNorm, Type: "TEXT"},
		ColumnDef{Name: ColEthnicityNorm, Type: "TEXT"},
		ColumnDef{Name: ColFullNameNorm, Type: "TEXT"},
		ColumnDef{Name: ColNicknameNorm, Type: "TEXT"},
		ColumnDef{Name: ColSynthetic, Type: "BOOLEAN"},
		ColumnDef{Name: ColCreatedAt, Type: "TIMESTAMP"},
		ColumnDef{Name: ColUpdatedAt, Type: "TIMESTAMP"},
	)
}

// NormColumns maps each facet or search source column to its folded copy.
var NormColumns = map[string]string{
	ColPermanentProvince: ColPermanentProvinceNorm,
	ColCurrentProvince:   ColCurrentProvinceNorm,
	ColEthnicity:         ColEthnicityNorm,
	ColFullName:          ColFullNameNorm,
	ColNickname:          ColNicknameNorm,
}

// IsHidden reports whether `column` never leaves the storage layer.
func IsHidden(column string) bool {
	switch column {
	case ColPermanentProvinceNorm, ColCurrentProvinceNorm, ColEthnicityNorm, ColFullNameNorm, ColNicknameNorm:
		return true
	}
	return false
}
