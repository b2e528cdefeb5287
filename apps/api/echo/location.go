package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/hocsinh/core/location"
)

type locationApi struct {
	catalog *location.Catalog
}

func registerLocationAPI(g *echo.Group, catalog *location.Catalog) {
	api := locationApi{catalog: catalog}

	g.GET("/locations/latest", api.latest)
}

func (api *locationApi) latest(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.catalog.Latest(ctx.Request().Context(), queryBool(ctx, "refresh")))
}
