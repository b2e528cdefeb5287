package student

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInternal(t *testing.T) {
	tests := []struct {
		name     string
		ext      map[string]interface{}
		want     Record
		wantErrs []string // field keys
	}{
		{
			name: "external keys",
			ext:  map[string]interface{}{"fullName": "  Nguyễn Văn An ", "class": "10A1", "phone": "0901234567"},
			want: Record{ColFullName: "Nguyễn Văn An", ColClass: "10A1", ColGrade: "10", ColPhone: "0901234567"},
		},
		{
			name: "internal and legacy names",
			ext:  map[string]interface{}{"full_name": "An", "lop": "11B2", "ngay_sinh": "2008-03-15"},
			want: Record{ColFullName: "An", ColClass: "11B2", ColGrade: "11", ColBirthDate: "2008-03-15"},
		},
		{
			name: "province alias",
			ext:  map[string]interface{}{"province": "Bình Dương"},
			want: Record{ColPermanentProvince: "Bình Dương"},
		},
		{
			name: "explicit grade wins over class",
			ext:  map[string]interface{}{"class": "12C3", "grade": "11"},
			want: Record{ColClass: "12C3", ColGrade: "11"},
		},
		{
			name: "blank values are absent, nulls clear",
			ext:  map[string]interface{}{"fullName": "   ", "phone": nil, "birthDate": "", "height": ""},
			want: Record{ColPhone: nil},
		},
		{
			name: "dates",
			ext: map[string]interface{}{
				"birthDate": "15/03/2008", "cccdDate": "1-2-2022", "passportDate": "2021-07-09T00:00:00Z",
			},
			want: Record{ColBirthDate: "2008-03-15", "cccd_date": "2022-02-01", "passport_date": "2021-07-09"},
		},
		{
			name: "numbers",
			ext: map[string]interface{}{
				"height": 165.6, "weight": "52", "fatherBirthYear": json.Number("1975"), "motherBirthYear": "1978,4",
			},
			want: Record{"height": int64(166), "weight": int64(52), "father_birth_year": int64(1975), "mother_birth_year": int64(1978)},
		},
		{
			name: "lists",
			ext:  map[string]interface{}{"eyeDiseases": []interface{}{"Cận thị", " ", "Loạn thị"}},
			want: Record{ColEyeDiseases: "Cận thị,Loạn thị"},
		},
		{
			name: "list from text",
			ext:  map[string]interface{}{"eyeDiseases": "Cận thị, Viễn thị,"},
			want: Record{ColEyeDiseases: "Cận thị,Viễn thị"},
		},
		{
			name:     "invalid values",
			ext:      map[string]interface{}{"birthDate": "31/02/2008", "height": "cao", "fullName": "An"},
			want:     Record{ColFullName: "An"},
			wantErrs: []string{"birthDate", "height"},
		},
		{
			name: "unknown keys are ignored",
			ext:  map[string]interface{}{"hacker": "x", "permanent_province_norm": "x", "is_synthetic": true},
			want: Record{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errs := ToInternal(tt.ext)
			assert.Equal(t, tt.want, got)

			keys := make([]string, 0, len(errs))
			for _, e := range errs {
				keys = append(keys, e.Field)
			}
			assert.ElementsMatch(t, tt.wantErrs, keys)
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOk bool
	}{
		{in: "2008-03-15", want: "2008-03-15", wantOk: true},
		{in: "15/03/2008", want: "2008-03-15", wantOk: true},
		{in: "5.3.2008", want: "2008-03-05", wantOk: true},
		{in: "29/02/2008", want: "2008-02-29", wantOk: true},
		{in: "29/02/2009"},
		{in: "15/03/08"},
		{in: "hôm qua"},
		{in: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeDate(tt.in)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "15/03/2008", FormatDate("2008-03-15"))
	assert.Equal(t, "n/a", FormatDate("n/a"))
}

func TestToExternal(t *testing.T) {
	created := time.Date(2024, 9, 1, 8, 30, 0, 0, time.UTC)
	rec := Record{
		ColID:          int64(7),
		ColEmail:       "an@test.vn",
		ColFullName:    "Nguyễn Văn An",
		ColClass:       "10A1",
		ColPhone:       "",
		ColEyeDiseases: "Cận thị,Loạn thị",
		"height":       int64(160),
		ColCreatedAt:   created,
		ColUpdatedAt:   "2024-09-02 10:00:00",
	}
	ext := ToExternal(rec)

	assert.Equal(t, int64(7), ext[ColID])
	assert.Equal(t, "Nguyễn Văn An", ext["fullName"])
	assert.Equal(t, "Nguyễn Văn An", ext["full_name"])
	assert.Equal(t, "Nguyễn Văn An", ext["ho_ten"])
	assert.Equal(t, "10A1", ext["lop"])
	assert.Nil(t, ext["phone"], "blank strings are exposed as null")
	assert.Nil(t, ext["nickname"])
	assert.Contains(t, ext, "nickname", "every field is present")
	assert.Equal(t, []string{"Cận thị", "Loạn thị"}, ext["eyeDiseases"])
	assert.Equal(t, "Cận thị,Loạn thị", ext[ColEyeDiseases])
	assert.Equal(t, int64(160), ext["height"])
	assert.Equal(t, "2024-09-01 08:30:00", ext[ColCreatedAt])
	assert.Equal(t, "2024-09-02 10:00:00", ext[ColUpdatedAt])
	assert.NotContains(t, ext, ColSynthetic)
	assert.NotContains(t, ext, ColEthnicityNorm)
}

func TestMapperRoundTrip(t *testing.T) {
	wellFormed := func(f Field) (in, want interface{}) {
		switch f.Kind {
		case KindDate:
			return "15/03/2008", "2008-03-15"
		case KindInt:
			return float64(42), int64(42)
		case KindList:
			return []interface{}{"Cận thị", " Loạn thị "}, []string{"Cận thị", "Loạn thị"}
		}
		return " " + f.Key + " giá trị ", f.Key + " giá trị"
	}

	t.Run("well-formed", func(t *testing.T) {
		ext := make(map[string]interface{}, len(Fields))
		for _, f := range Fields {
			ext[f.Key], _ = wellFormed(f)
		}
		rec, errs := ToInternal(ext)
		require.Empty(t, errs)
		assert.Len(t, rec, len(Fields))

		out := ToExternal(rec)
		for _, f := range Fields {
			_, want := wellFormed(f)
			assert.Equal(t, want, out[f.Key], f.Key)
			if f.Column != f.Key {
				assert.Equal(t, rec[f.Column], out[f.Column], f.Column)
			}
			if f.Legacy != "" {
				assert.Equal(t, rec[f.Column], out[f.Legacy], f.Legacy)
			}
		}
	})

	t.Run("blank", func(t *testing.T) {
		ext := make(map[string]interface{}, len(Fields))
		for _, f := range Fields {
			if f.Kind == KindList {
				ext[f.Key] = []interface{}{" ", ""}
			} else {
				ext[f.Key] = "   "
			}
		}
		rec, errs := ToInternal(ext)
		require.Empty(t, errs)
		assert.Empty(t, rec, "blank values are absent")

		out := ToExternal(rec)
		for _, f := range Fields {
			assert.Contains(t, out, f.Key)
			assert.Nil(t, out[f.Key], f.Key)
		}
	})

	t.Run("null", func(t *testing.T) {
		ext := make(map[string]interface{}, len(Fields))
		for _, f := range Fields {
			ext[f.Key] = nil
		}
		rec, errs := ToInternal(ext)
		require.Empty(t, errs)
		assert.Len(t, rec, len(Fields))

		out := ToExternal(rec)
		for _, f := range Fields {
			assert.Contains(t, rec, f.Column, "null clears the column")
			assert.Nil(t, out[f.Key], f.Key)
		}
	})
}

func TestDetail(t *testing.T) {
	full := Record{
		"permanent_street": "12 Lê Lợi", "permanent_hamlet": "Ấp 1",
		"permanent_ward": "Dĩ An", ColPermanentProvince: "Bình Dương",
		"current_address_detail": "5 Trần Hưng Đạo", "current_hamlet": "Khu 2",
		"current_ward": "Tân Đông Hiệp",
		"personal_id":  "0123",
	}
	d := Detail(full)
	assert.Equal(t, "12 Lê Lợi, Ấp 1, Dĩ An, Bình Dương", d["permanent_address"])
	assert.Nil(t, d["temporary_address"], "current province missing")
	assert.Equal(t, "0123", d["id_number"])

	full["citizen_id"] = "079"
	assert.Equal(t, "079", Detail(full)["id_number"])
	assert.Nil(t, Detail(Record{})["id_number"])
}
