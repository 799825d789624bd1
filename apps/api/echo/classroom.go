package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/user"
)

type classroomApi struct {
	svc      classroom.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerClassroomAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := classroomApi{
		svc:      s.ClassroomSvc,
		usrSvc:   s.UserSvc,
		validate: s.Validate,
	}

	cg := g.Group("/classrooms", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, adminMiddleware())

	dg := cg.Group("/:id", api.classroomMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/students", api.enroll, api.ownerOrAdminMiddleware)
	dg.DELETE("/students", api.unenroll, api.ownerOrAdminMiddleware)
}

func (api *classroomApi) query(ctx echo.Context) error {
	filter := new(classroom.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []classroom.Classroom{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	// teachers see their classrooms, students the ones they're enrolled in
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	switch {
	case ctxUsr.IsAdmin():
	case ctxUsr.IsTeacher():
		filter.TeacherID = ctxUsr.ID
	default:
		filter.StudentID = ctxUsr.ID
	}

	classrooms, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classrooms")
	}
	if classrooms == nil {
		classrooms = []classroom.Classroom{}
	}
	return ctx.JSON(http.StatusOK, classrooms)
}

func (api *classroomApi) create(ctx echo.Context) error {
	var data classroom.NewClassroom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClassroom")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating classroom")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *classroomApi) retrieve(ctx echo.Context) error {
	c, err := contextObject[classroom.Classroom](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classroomApi) update(ctx echo.Context) error {
	c, err := contextObject[classroom.Classroom](ctx)
	if err != nil {
		return err
	}

	var data classroom.UpdateClassroom
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClassroom")
	}
	if err = data.Validate(ctx.Request().Context(), c, api.validate, api.svc); err != nil {
		return err
	}

	c, err = api.svc.Update(ctx.Request().Context(), c, data)
	if err != nil {
		return errors.Wrap(err, "updating classroom")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classroomApi) destroy(ctx echo.Context) error {
	c, err := contextObject[classroom.Classroom](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), c.ID); err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) enroll(ctx echo.Context) error {
	c, err := contextObject[classroom.Classroom](ctx)
	if err != nil {
		return err
	}

	var data classroom.Enrolment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Enrolment")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	c, err = api.svc.Enroll(ctx.Request().Context(), c.ID, data.StudentIDs...)
	if err != nil {
		return errors.Wrap(err, "enrolling students")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classroomApi) unenroll(ctx echo.Context) error {
	c, err := contextObject[classroom.Classroom](ctx)
	if err != nil {
		return err
	}

	query := new(IDsRequest)
	query.Bind(ctx)
	if len(query.IDs) == 0 {
		return ctx.JSON(http.StatusOK, c)
	}

	c, err = api.svc.Unenroll(ctx.Request().Context(), c.ID, query.IDs...)
	if err != nil {
		return errors.Wrap(err, "unenrolling students")
	}
	return ctx.JSON(http.StatusOK, c)
}

// classroomMiddleware puts the classroom of the `:id` path param in the context
// when the authenticated user may see it.
func (api *classroomApi) classroomMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return err
		}

		c, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if errors.Cause(err) == classroom.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding classroom by ID")
		}
		if !(ctxUsr.IsAdmin() || c.TeacherID == ctxUsr.ID || c.HasStudent(ctxUsr.ID)) {
			return errHttpNotFound
		}
		ctx.Set(objectContextKey, c)
		return next(ctx)
	}
}

// ownerOrAdminMiddleware restricts a classroom endpoint to its teacher & admins.
func (api *classroomApi) ownerOrAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		c, err := contextObject[classroom.Classroom](ctx)
		if err != nil {
			return err
		}
		ctxUsr, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return err
		}
		if ctxUsr.IsAdmin() || (ctxUsr.IsTeacher() && c.TeacherID == ctxUsr.ID) {
			return next(ctx)
		}
		return errHttpForbidden
	}
}
