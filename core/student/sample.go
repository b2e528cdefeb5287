package student

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/hocsinh/core"
)

var (
	familyNames = []string{
		"Nguyễn", "Trần", "Lê", "Phạm", "Hoàng", "Huỳnh", "Phan", "Vũ", "Võ", "Đặng",
		"Bùi", "Đỗ", "Hồ", "Ngô", "Dương", "Lý", "Đinh", "Đào", "Cao", "Lương", "Mai",
	}
	middleNames = []string{"Văn", "Thị", "Minh", "Hoàng", "Quang", "Hữu", "Thanh", "Anh", "Thành", "Bảo", "Vinh", "Khánh", "Nhật", "Mai", "Ngọc"}
	givenNames  = []string{
		"An", "Bình", "Cường", "Dũng", "Đức", "Giang", "Hà", "Hải", "Khang", "Linh",
		"Long", "Mai", "Minh", "Nam", "Phong", "Quân", "Sơn", "Thảo", "Tú", "Vy",
		"Yến", "Hương", "Loan", "Nga", "Oanh", "Phương", "Quyên", "Thu", "Trang", "Xuân",
	}
	sampleClasses = []string{
		"10A1", "10A2", "10A3", "10A4", "10A5", "10A6", "10A7", "10A8", "10B1", "10B2", "10B3", "10B4",
		"11A1", "11A2", "11A3", "11A4", "11A5", "11A6", "11A7", "11A8", "11B1", "11B2", "11B3", "11B4",
		"12A1", "12A2", "12A3", "12A4", "12A5", "12A6", "12A7", "12A8", "12B1", "12B2", "12B3", "12B4",
	}
	sampleProvinces = []string{"Thành phố Hồ Chí Minh", "Tỉnh Đồng Nai", "Tỉnh Bình Dương", "Tỉnh Long An", "Tỉnh Tây Ninh"}
	botProvinces    = []string{"Thành phố Hồ Chí Minh", "Thành phố Hà Nội", "Thành phố Đà Nẵng", "Tỉnh Bình Dương"}
	botWards        = []string{"Phường Dĩ An", "Phường Sài Gòn", "Phường Tân Bình", "Phường Thủ Đức"}
	ethnicities     = []string{"Kinh", "Tày", "Thái", "Hoa", "Mường", "Nùng", "H'Mông", "Dao", "Gia Rai", "Ê Đê"}
	religions       = []string{"Không", "Phật giáo", "Công giáo", "Cao Đài", "Hòa Hảo", "Tin Lành"}
	fatherJobs      = []string{"Công nhân", "Nông dân", "Giáo viên", "Bác sĩ", "Kỹ sư", "Kinh doanh", "Công chức", "Tài xế", "Thợ xây"}
	motherJobs      = []string{"Nội trợ", "Giáo viên", "Y tá", "Kế toán", "Bán hàng", "Công nhân", "Nông dân", "Nhân viên văn phòng"}
	eyeConditions   = []string{"Không", "Cận thị nhẹ", "Viễn thị nhẹ", "Loạn thị nhẹ", "Cận thị nặng"}
	swimmingSkills  = []string{"Biết bơi", "Không biết bơi", "Bơi được 25m", "Bơi giỏi", "Bơi cơ bản"}
	yesNo           = []string{"Có", "Không"}
	genders         = []string{"Nam", "Nữ"}
)

// math/rand sources are not safe for concurrent use
var (
	rnd   = rand.New(rand.NewSource(time.Now().UnixNano()))
	rndMu sync.Mutex
)

func pick(items []string) string {
	rndMu.Lock()
	defer rndMu.Unlock()
	return items[rnd.Intn(len(items))]
}

// between returns a random int in [lo, hi].
func between(lo, hi int) int {
	rndMu.Lock()
	defer rndMu.Unlock()
	return lo + rnd.Intn(hi-lo+1)
}

func randomDate(fromYear, toYear int) string {
	return fmt.Sprintf("%d-%02d-%02d", between(fromYear, toYear), between(1, 12), between(1, 28))
}

func shortID() string {
	return strings.SplitN(uuid.New().String(), "-", 2)[0]
}

// NewSample returns a realistic, fully filled synthetic student.
func NewSample(i int) Record {
	given, middle := pick(givenNames), pick(middleNames)
	province := pick(sampleProvinces)
	ward := fmt.Sprintf("Phường %d", between(1, 20))
	street := fmt.Sprintf("%d Đường %d", between(1, 500), between(1, 50))
	hamlet := fmt.Sprintf("Khu phố %d", between(1, 10))
	cccdPrefix := pick([]string{"001", "002", "025", "026", "079"})
	class := pick(sampleClasses)

	return Record{
		ColSynthetic:  true,
		ColEmail:      fmt.Sprintf("sample_%s.%s.%03d_%s@test.sample.com", asciiLower(given), asciiLower(middle), i+100, shortID()),
		ColFullName:   pick(familyNames) + " " + middle + " " + given,
		ColClass:      class,
		ColGrade:      class[:2],
		ColBirthDate:  randomDate(2005, 2008),
		ColGender:     pick(genders),
		ColPhone:      fmt.Sprintf("0%d", between(900000000, 999999999)),
		ColNickname:   given + " " + pick([]string{"nhỏ", "bé", "con", "em", "tí", "út"}),
		ColEthnicity:  pick(ethnicities),
		"religion":    pick(religions),
		"nationality": "Việt Nam",

		"citizen_id":  fmt.Sprintf("%s%d", cccdPrefix, between(100000000, 999999999)),
		"cccd_date":   randomDate(2020, 2024),
		"cccd_place":  "Công an " + province,
		"personal_id": fmt.Sprintf("HS%d", between(100000, 999999)),

		ColPermanentProvince:     province,
		"permanent_ward":         ward,
		"permanent_hamlet":       hamlet,
		"permanent_street":       street,
		"hometown_province":      province,
		"hometown_ward":          ward,
		ColCurrentProvince:       province,
		"current_ward":           ward,
		"current_hamlet":         hamlet,
		"current_address_detail": street,
		"birthplace_province":    province,
		"birthplace_ward":        ward,
		"birth_cert_province":    province,
		"birth_cert_ward":        ward,

		"height":         int64(between(150, 180)),
		"weight":         int64(between(45, 75)),
		ColEyeDiseases:   pick(eyeConditions),
		"swimming_skill": pick(swimmingSkills),
		"smartphone":     pick(yesNo),
		"computer":       pick(yesNo),

		"father_name":       pick(familyNames) + " " + pick([]string{"Văn", "Minh", "Thanh", "Hữu", "Quang"}) + " " + pick([]string{"An", "Bình", "Cường", "Dũng", "Hùng", "Nam", "Sơn"}),
		"father_job":        pick(fatherJobs),
		"father_birth_year": int64(between(1970, 1985)),
		"father_phone":      fmt.Sprintf("0%d", between(900000000, 999999999)),
		"mother_name":       pick(familyNames) + " Thị " + pick([]string{"Lan", "Hoa", "Mai", "Hương", "Phương", "Linh", "Nga", "Oanh", "Thu", "Xuân"}),
		"mother_job":        pick(motherJobs),
		"mother_birth_year": int64(between(1975, 1990)),
		"mother_phone":      fmt.Sprintf("0%d", between(900000000, 999999999)),
	}
}

// NewBot returns a minimal synthetic student, flagged in its name.
func NewBot(i int) Record {
	province, ward := pick(botProvinces), pick(botWards)
	hamlet := fmt.Sprintf("Khu phố %d", between(1, 10))
	street := fmt.Sprintf("Số %d/%d, đường Test %d", between(1, 999), between(1, 99), between(1, 20))
	class := pick(sampleClasses)
	birth := NowFunc().AddDate(0, 0, -between(5840, 6570))

	return Record{
		ColSynthetic:             true,
		ColEmail:                 fmt.Sprintf("bot_test_%s_bot_%d@test.com", shortID(), i),
		ColFullName:              pick(familyNames[:10]) + " " + pick(middleNames) + " " + pick(givenNames) + " (Bot)",
		ColClass:                 class,
		ColGrade:                 class[:2],
		ColBirthDate:             birth.Format(dateLayout),
		ColGender:                pick(genders),
		ColPhone:                 fmt.Sprintf("09%d", between(10000000, 99999999)),
		ColPermanentProvince:     province,
		"permanent_ward":         ward,
		"permanent_hamlet":       hamlet,
		"permanent_street":       street,
		"hometown_province":      province,
		"hometown_ward":          ward,
		"hometown_hamlet":        hamlet,
		ColCurrentProvince:       province,
		"current_ward":           ward,
		"current_hamlet":         hamlet,
		"current_address_detail": strings.Join([]string{street, hamlet, ward, province}, ", "),
		"birthplace_province":    province,
		"birthplace_ward":        ward,
		"birth_cert_province":    province,
		"birth_cert_ward":        ward,
	}
}

func asciiLower(s string) string {
	return strings.ReplaceAll(core.FoldString(s), " ", "")
}
