package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core/dashboard"
)

type dashboardApi struct {
	svc dashboard.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := dashboardApi{svc: s.DashboardSvc}

	dg := g.Group("/dashboard", jwt)
	dg.GET("/teacher", api.teacher, staffMiddleware())
	dg.GET("/admin", api.admin, adminMiddleware())
}

// teacher builds the dashboard of the authenticated teacher; admins may pick one with `?teacher=`.
func (api *dashboardApi) teacher(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	teacherID := claims.Subject
	if claims.IsAdmin {
		if id := ctx.QueryParam("teacher"); id != "" {
			teacherID = id
		}
	}

	d, err := api.svc.Teacher(ctx.Request().Context(), teacherID)
	if err != nil {
		return errors.Wrap(err, "building teacher dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *dashboardApi) admin(ctx echo.Context) error {
	d, err := api.svc.Admin(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building admin dashboard")
	}
	return ctx.JSON(http.StatusOK, d)
}
