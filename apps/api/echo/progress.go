package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/progress"
	"github.com/mathhub/factolearn/core/user"
)

type progressApi struct {
	svc      progress.Service
	usrSvc   user.Service
	classSvc classroom.Service
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := progressApi{
		svc:      s.ProgressSvc,
		usrSvc:   s.UserSvc,
		classSvc: s.ClassroomSvc,
	}

	pg := g.Group("/progress", jwt)
	pg.GET("/me", api.mine, studentMiddleware())
	pg.GET("/students/:id", api.student, staffMiddleware())
}

func (api *progressApi) mine(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	sum, err := api.svc.StudentSummary(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "summarizing progress")
	}
	return ctx.JSON(http.StatusOK, sum)
}

// student shows the progress of a student to admins & to the student's teachers.
func (api *progressApi) student(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	usr, err := api.usrSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding student")
	}
	if !usr.IsStudent() {
		return errHttpNotFound
	}
	if !claims.IsAdmin {
		ok, err := api.classSvc.TeacherHasStudent(ctx.Request().Context(), claims.Subject, usr.ID)
		if err != nil {
			return errors.Wrap(err, "checking teacher's students")
		}
		if !ok {
			return errHttpForbidden
		}
	}

	sum, err := api.svc.StudentSummary(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "summarizing progress")
	}
	return ctx.JSON(http.StatusOK, sum)
}
