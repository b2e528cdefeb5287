package student

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hocsinh/core"
)

func TestPageQuery_Clean(t *testing.T) {
	tests := []struct {
		name      string
		pq        PageQuery
		wantPage  int
		wantLimit int
	}{
		{name: "defaults", pq: PageQuery{}, wantPage: 1, wantLimit: DefaultLimit},
		{name: "negative page", pq: PageQuery{Page: -3, Limit: 10}, wantPage: 1, wantLimit: 10},
		{name: "limit too big", pq: PageQuery{Page: 2, Limit: 500}, wantPage: 2, wantLimit: DefaultLimit},
		{name: "max limit", pq: PageQuery{Page: 3, Limit: MaxLimit}, wantPage: 3, wantLimit: MaxLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.pq.Clean()
			assert.Equal(t, tt.wantPage, tt.pq.Page)
			assert.Equal(t, tt.wantLimit, tt.pq.Limit)
		})
	}
	assert.Equal(t, 20, PageQuery{Page: 3, Limit: 10}.Offset())
}

func TestPage(t *testing.T) {
	p := Page{Total: 101, PageQuery: PageQuery{Page: 1, Limit: 50}}
	assert.Equal(t, 3, p.TotalPages())
	assert.True(t, p.HasNext())
	assert.False(t, p.HasPrev())

	p.Page = 3
	assert.False(t, p.HasNext())
	assert.True(t, p.HasPrev())

	assert.Equal(t, 0, Page{PageQuery: PageQuery{Page: 1, Limit: 50}}.TotalPages())
}

func TestExportQuery_Orderings(t *testing.T) {
	tests := []struct {
		name string
		eq   ExportQuery
		want string
	}{
		{name: "default", eq: ExportQuery{}, want: " ORDER BY id ASC"},
		{name: "by class", eq: ExportQuery{SortByClass: true, SortByName: true}, want: " ORDER BY class ASC, full_name ASC, id ASC"},
		{name: "by name", eq: ExportQuery{SortByName: true}, want: " ORDER BY full_name ASC, class ASC, id ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, core.OrderBy(tt.eq.Orderings()...))
		})
	}
}

func TestSubmission_Validate(t *testing.T) {
	validate := validator.New()

	t.Run("missing email", func(t *testing.T) {
		sub := NewSubmission(map[string]interface{}{"fullName": "An"})
		assert.Error(t, sub.Validate(validate))
	})

	t.Run("invalid email", func(t *testing.T) {
		sub := NewSubmission(map[string]interface{}{"email": "not-an-email"})
		assert.Error(t, sub.Validate(validate))
	})

	t.Run("bad field rejects the payload", func(t *testing.T) {
		sub := NewSubmission(map[string]interface{}{"email": "an@test.vn", "birthDate": "32/13/2008"})
		err := sub.Validate(validate)
		require.Error(t, err)
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok)
		require.Len(t, verr.Fields, 1)
		assert.Equal(t, "birthDate", verr.Fields[0].Field)
	})

	t.Run("valid", func(t *testing.T) {
		sub := NewSubmission(map[string]interface{}{"email": " An@Test.VN ", "fullName": "An"})
		require.NoError(t, sub.Validate(validate))
		assert.Equal(t, "an@test.vn", sub.Email)
		assert.Equal(t, Record{ColEmail: "an@test.vn", ColFullName: "An"}, sub.Record())
	})
}
