package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/student"
	exportsvc "github.com/trezcool/hocsinh/services/export"
)

type exportApi struct {
	svc      student.Service
	renderer *exportsvc.Renderer
	cleaner  *exportsvc.Cleaner
	logger   core.Logger
}

func registerExportAPI(
	admin *echo.Group,
	svc student.Service,
	renderer *exportsvc.Renderer,
	cleaner *exportsvc.Cleaner,
	logger core.Logger,
) {
	api := exportApi{svc: svc, renderer: renderer, cleaner: cleaner, logger: logger}

	admin.GET("/export-xlsx", api.export(exportsvc.FormatXLSX))
	admin.GET("/export-csv", api.export(exportsvc.FormatCSV))
	admin.GET("/export-json", api.export(exportsvc.FormatJSON))
	admin.GET("/export-pdf", api.exportPDF)
	admin.GET("/export-count", api.count)
}

// Handlers

func (api *exportApi) export(format string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		eq, opts := bindExport(ctx)

		rows, err := api.svc.ExportRows(ctx.Request().Context(), eq)
		if err != nil {
			return errors.Wrap(err, "selecting export rows")
		}
		file, err := api.renderer.Render(rows, format, opts)
		if err != nil {
			return errors.Wrapf(err, "rendering %s export", format)
		}
		// removed after the cleanup delay
		api.cleaner.Schedule(file.Path)
		exportsTotal.WithLabelValues(format).Inc()

		ctx.Response().Header().Set(echo.HeaderContentType, file.ContentType)
		return ctx.Attachment(file.Path, file.Name)
	}
}

func (api *exportApi) exportPDF(echo.Context) error {
	return errPDFNotReady
}

// count never fails: the export form shows 0 and the reason instead.
func (api *exportApi) count(ctx echo.Context) error {
	fs, _ := bindFilter(ctx)
	n, err := api.svc.Count(ctx.Request().Context(), fs)
	if err != nil {
		api.logger.Error(fmt.Sprintf("counting export rows: %v", err), err)
		return ctx.JSON(http.StatusOK, echo.Map{"count": 0, "error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"count": n})
}
