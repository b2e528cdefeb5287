package echoapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/student"
)

const (
	msgSaved   = "Dữ liệu đã được lưu thành công!"
	msgDeleted = "Đã xóa học sinh thành công"
)

type (
	SaveResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Created bool   `json:"created"`
	}

	Pagination struct {
		CurrentPage  int  `json:"current_page"`
		TotalPages   int  `json:"total_pages"`
		TotalRecords int  `json:"total_records"`
		PerPage      int  `json:"per_page"`
		Limit        int  `json:"limit"`
		HasNext      bool `json:"has_next"`
		HasPrev      bool `json:"has_prev"`
	}

	PageResponse struct {
		Data       []map[string]interface{} `json:"data"`
		Students   []map[string]interface{} `json:"students"`
		Pagination Pagination               `json:"pagination"`
		Search     string                   `json:"search"`
	}

	DeleteResponse struct {
		Success      bool `json:"success"`
		DeletedCount int  `json:"deleted_count"`
	}

	CreateResponse struct {
		Success      bool `json:"success"`
		CreatedCount int  `json:"created_count"`
	}

	SchemaResponse struct {
		DatabaseType   string               `json:"database_type"`
		Columns        []student.ColumnInfo `json:"columns"`
		TotalColumns   int                  `json:"total_columns"`
		HasEyeDiseases bool                 `json:"has_eye_diseases"`
	}
)

type studentApi struct {
	svc      student.Service
	conf     *core.Config
	validate *validator.Validate
}

func registerStudentAPI(
	g *echo.Group,
	admin *echo.Group,
	svc student.Service,
	conf *core.Config,
	validate *validator.Validate,
) {
	api := studentApi{svc: svc, conf: conf, validate: validate}

	// public endpoints
	g.POST("/save-student", api.save)
	g.GET("/student-by-email", api.retrieveByEmail)

	// admin endpoints
	admin.GET("/students", api.query)
	admin.GET("/student/:id", api.retrieve)
	admin.DELETE("/delete-student/:id", api.destroy)
	admin.DELETE("/clear-all-data", api.clearAll)
	admin.DELETE("/delete-all-students", api.destroyAll)
	admin.POST("/generate-sample-data", api.generateSamples)
	admin.POST("/generate-bots", api.generateBots)
	admin.DELETE("/delete-all-bots", api.destroySynthetic)
	admin.GET("/debug/provinces", api.provinces)
	admin.GET("/debug/schema", api.schema)
}

// Handlers

func (api *studentApi) save(ctx echo.Context) error {
	data := make(map[string]interface{})
	dec := json.NewDecoder(ctx.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil && err != io.EOF {
		return core.NewValidationError(errors.New("Dữ liệu không hợp lệ"))
	}

	sub := student.NewSubmission(data)
	if core.CleanString(sub.Email) == "" {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"success": false, "message": errMissingEmail})
	}

	created, err := api.svc.Save(ctx.Request().Context(), sub, api.validate)
	if err != nil {
		return errors.Wrap(err, "saving student")
	}
	return ctx.JSON(http.StatusOK, SaveResponse{Success: true, Message: msgSaved, Created: created})
}

func (api *studentApi) retrieveByEmail(ctx echo.Context) error {
	email := core.CleanString(ctx.QueryParam("email"))
	if email == "" {
		return core.NewValidationError(errors.New(errMissingEmailArg))
	}

	rec, err := api.svc.GetByEmail(ctx.Request().Context(), email)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return ctx.JSON(http.StatusOK, echo.Map{"student": nil})
		}
		return errors.Wrap(err, "finding student by email")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"student": student.ToExternal(rec)})
}

func (api *studentApi) query(ctx echo.Context) error {
	var pq student.PageQuery
	if err := ctx.Bind(&pq); err != nil {
		// malformed numbers fall back to the defaults
		pq = student.PageQuery{Search: ctx.QueryParam("search")}
	}

	page, err := api.svc.Query(ctx.Request().Context(), pq)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}

	rows := make([]map[string]interface{}, 0, len(page.Records))
	for _, rec := range page.Records {
		rows = append(rows, student.ToExternal(rec))
	}
	return ctx.JSON(http.StatusOK, PageResponse{
		Data:     rows,
		Students: rows,
		Pagination: Pagination{
			CurrentPage:  page.Page,
			TotalPages:   page.TotalPages(),
			TotalRecords: page.Total,
			PerPage:      page.Limit,
			Limit:        page.Limit,
			HasNext:      page.HasNext(),
			HasPrev:      page.HasPrev(),
		},
		Search: page.Search,
	})
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	rec, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, student.Detail(rec))
}

func (api *studentApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "message": msgDeleted})
}

func (api *studentApi) clearAll(ctx echo.Context) error {
	n, err := api.svc.ClearAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "clearing all data")
	}
	return ctx.JSON(http.StatusOK, DeleteResponse{Success: true, DeletedCount: n})
}

func (api *studentApi) destroyAll(ctx echo.Context) error {
	n, err := api.svc.DeleteAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "deleting all students")
	}
	return ctx.JSON(http.StatusOK, DeleteResponse{Success: true, DeletedCount: n})
}

func (api *studentApi) generateSamples(ctx echo.Context) error {
	var data CountRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CountRequest")
	}
	n, err := api.svc.GenerateSamples(ctx.Request().Context(), data.value(student.DefaultSampleCount))
	if err != nil {
		return errors.Wrap(err, "generating sample data")
	}
	return ctx.JSON(http.StatusOK, CreateResponse{Success: true, CreatedCount: n})
}

func (api *studentApi) generateBots(ctx echo.Context) error {
	var data CountRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CountRequest")
	}
	n, err := api.svc.GenerateBots(ctx.Request().Context(), data.value(student.DefaultBotCount))
	if err != nil {
		return errors.Wrap(err, "generating bots")
	}
	return ctx.JSON(http.StatusOK, CreateResponse{Success: true, CreatedCount: n})
}

func (api *studentApi) destroySynthetic(ctx echo.Context) error {
	n, err := api.svc.DeleteSynthetic(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "deleting synthetic students")
	}
	return ctx.JSON(http.StatusOK, DeleteResponse{Success: true, DeletedCount: n})
}

func (api *studentApi) provinces(ctx echo.Context) error {
	counts, err := api.svc.Provinces(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing provinces")
	}
	names := make([]string, 0, len(counts))
	for _, pc := range counts {
		names = append(names, pc.Province)
	}
	return ctx.JSON(http.StatusOK, echo.Map{"provinces": names, "counts": counts})
}

func (api *studentApi) schema(ctx echo.Context) error {
	cols, err := api.svc.Schema(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "describing schema")
	}
	resp := SchemaResponse{DatabaseType: "SQLite", Columns: cols, TotalColumns: len(cols)}
	if !api.conf.Database.IsSQLite() {
		resp.DatabaseType = "PostgreSQL"
	}
	for _, c := range cols {
		if c.Name == student.ColEyeDiseases {
			resp.HasEyeDiseases = true
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

func pathID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, student.ErrNotFound
	}
	return id, nil
}
