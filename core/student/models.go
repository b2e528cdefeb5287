package student

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hocsinh/core"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100

	DefaultSampleCount = 50
	MaxSampleCount     = 200
	DefaultBotCount    = 10
	MaxBotCount        = 100
)

// Submission is a student form payload. Email is the natural key, everything else is optional.
type Submission struct {
	Email  string                 `json:"email" validate:"required,email"`
	Fields map[string]interface{} `json:"-"`

	record Record
}

func NewSubmission(data map[string]interface{}) *Submission {
	sub := &Submission{Fields: data}
	if email, ok := data[ColEmail].(string); ok {
		sub.Email = email
	}
	return sub
}

// Validate checks the email and coerces every field. A single bad field rejects the whole payload.
func (sub *Submission) Validate(validate *validator.Validate) error {
	sub.Email = core.CleanString(sub.Email, true /* lower */)
	if err := validate.Struct(sub); err != nil {
		return err
	}

	rec, errs := ToInternal(sub.Fields)
	if len(errs) > 0 {
		return core.NewValidationError(nil, errs...)
	}
	rec[ColEmail] = sub.Email
	sub.record = rec
	return nil
}

// Record returns the coerced payload; only valid after Validate.
func (sub *Submission) Record() Record {
	return sub.record
}

// PageQuery is a listing request.
type PageQuery struct {
	Page   int    `query:"page"`
	Limit  int    `query:"limit"`
	Search string `query:"search"`
}

// Clean forces the page to at least 1 and resets out of range limits to the default.
func (pq *PageQuery) Clean() {
	if pq.Page < 1 {
		pq.Page = 1
	}
	if pq.Limit < 1 || pq.Limit > MaxLimit {
		pq.Limit = DefaultLimit
	}
	pq.Search = core.CleanString(pq.Search)
}

func (pq PageQuery) Offset() int {
	return (pq.Page - 1) * pq.Limit
}

type Page struct {
	Records []Record
	Total   int
	PageQuery
}

func (p Page) TotalPages() int {
	if p.Total == 0 || p.Limit == 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

func (p Page) HasNext() bool { return p.Page < p.TotalPages() }
func (p Page) HasPrev() bool { return p.Page > 1 }

// ExportQuery selects and orders the rows of an export.
type ExportQuery struct {
	Filter      FilterSpec
	SortByClass bool
	SortByName  bool
}

// Orderings returns the requested sort keys, always ending on id so ties are stable.
// Class sorting wins over name sorting; each uses the other as secondary key.
func (eq ExportQuery) Orderings() []core.DBOrdering {
	class := core.DBOrdering{Field: ColClass, Ascending: true}
	name := core.DBOrdering{Field: ColFullName, Ascending: true}
	id := core.DBOrdering{Field: ColID, Ascending: true}

	switch {
	case eq.SortByClass:
		return []core.DBOrdering{class, name, id}
	case eq.SortByName:
		return []core.DBOrdering{name, class, id}
	default:
		return []core.DBOrdering{id}
	}
}

// ProvinceCount is a distinct stored province and how many records use it.
type ProvinceCount struct {
	Province string `json:"province"`
	Count    int    `json:"count"`
}

// ColumnInfo describes a column of the live students table.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}
