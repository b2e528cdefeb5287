package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/student"
	exportsvc "github.com/trezcool/hocsinh/services/export"
)

// queryBool reads a checkbox-like query param: `true`, `1` and `yes` are true.
func queryBool(ctx echo.Context, name string) bool {
	switch strings.ToLower(strings.TrimSpace(ctx.QueryParam(name))) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// bindFilter reads the export facets. An explicit `type` keeps only the facets of that type,
// otherwise the type is inferred from the facets sent.
func bindFilter(ctx echo.Context) (student.FilterSpec, string) {
	params := ctx.QueryParams()
	fs := student.FilterSpec{
		Grade:     ctx.QueryParam("grade"),
		Classes:   params["classes"],
		Province:  ctx.QueryParam("province"),
		Ethnicity: ctx.QueryParam("ethnicity"),
		Genders:   params["gender"],
		HasPhone:  queryBool(ctx, "hasPhone"),
		DateFrom:  ctx.QueryParam("dateFrom"),
		DateTo:    ctx.QueryParam("dateTo"),
		Search:    ctx.QueryParam("search"),
	}
	// birth years, when valid, override the date bounds
	fs.SetYearRange(ctx.QueryParam("fromYear"), ctx.QueryParam("toYear"))
	fs.Clean()

	exportType := core.CleanString(ctx.QueryParam("type"), true /* lower */)
	if exportType == "" || exportType == student.TypeAll {
		return fs, fs.Type()
	}
	return fs.ForType(exportType), exportType
}

// bindExport reads an export request: its rows selection and its rendering options.
func bindExport(ctx echo.Context) (student.ExportQuery, exportsvc.Options) {
	fs, exportType := bindFilter(ctx)
	eq := student.ExportQuery{
		Filter:      fs,
		SortByClass: queryBool(ctx, "sortByClass"),
		SortByName:  queryBool(ctx, "sortByName"),
	}
	opts := exportsvc.Options{
		Title:            ctx.QueryParam("title"),
		Type:             exportType,
		Filter:           fs,
		IncludeStats:     queryBool(ctx, "includeStats"),
		IncludeTimestamp: queryBool(ctx, "includeTimestamp"),
		HideEmptyFields:  queryBool(ctx, "hideEmptyFields"),
		ThemeColor:       core.CleanString(ctx.QueryParam("themeColor"), true /* lower */),
	}
	if size, err := strconv.Atoi(strings.TrimSpace(ctx.QueryParam("fontSize"))); err == nil {
		opts.FontSize = size
	}
	return eq, opts
}

// CountRequest is the body of the synthetic data generators. A missing count means the default.
type CountRequest struct {
	Count *int `json:"count"`
}

func (req CountRequest) value(def int) int {
	if req.Count == nil {
		return def
	}
	return *req.Count
}
