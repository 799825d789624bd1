package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/practice"
	"github.com/mathhub/factolearn/core/progress"
)

type lessonApi struct {
	conf        *core.Config
	logger      core.Logger
	svc         lesson.Service
	practiceSvc practice.Service
	progSvc     progress.Service
	validate    *validator.Validate
}

func registerLessonAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := lessonApi{
		conf:        s.Conf,
		logger:      s.Logger,
		svc:         s.LessonSvc,
		practiceSvc: s.PracticeSvc,
		progSvc:     s.ProgressSvc,
		validate:    s.Validate,
	}

	lg := g.Group("/lessons", jwt)
	lg.GET("", api.query)
	lg.POST("", api.create, staffMiddleware())

	dg := lg.Group("/:id", api.lessonMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, api.authorOrAdminMiddleware)
	dg.DELETE("", api.destroy, api.authorOrAdminMiddleware)
	dg.POST("/publish", api.publish, api.authorOrAdminMiddleware)
	dg.POST("/unpublish", api.unpublish, api.authorOrAdminMiddleware)
	dg.POST("/practice", api.startPractice, studentMiddleware())
}

func (api *lessonApi) query(ctx echo.Context) error {
	filter := new(lesson.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []lesson.Lesson{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if !isStaff(claims) {
		published := true
		filter.IsPublished = &published
	}

	lessons, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	if lessons == nil {
		lessons = []lesson.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *lessonApi) create(ctx echo.Context) error {
	var data lesson.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	l, err := api.svc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, l)
}

// retrieve records the view of students; a failure to do so doesn't fail the request.
func (api *lessonApi) retrieve(ctx echo.Context) error {
	l, err := contextObject[lesson.Lesson](ctx)
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsStudent {
		if _, err = api.progSvc.RecordLessonView(ctx.Request().Context(), claims.Subject, l.ID); err != nil {
			api.logger.Error("recording lesson view", errors.Wrap(err, "recording lesson view"))
		}
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *lessonApi) update(ctx echo.Context) error {
	l, err := contextObject[lesson.Lesson](ctx)
	if err != nil {
		return err
	}

	var data lesson.UpdateLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
	}
	if err = data.Validate(ctx.Request().Context(), l, api.validate, api.svc); err != nil {
		return err
	}

	l, err = api.svc.Update(ctx.Request().Context(), l, data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *lessonApi) destroy(ctx echo.Context) error {
	l, err := contextObject[lesson.Lesson](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), l.ID); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *lessonApi) publish(ctx echo.Context) error {
	return api.setPublished(ctx, true)
}

func (api *lessonApi) unpublish(ctx echo.Context) error {
	return api.setPublished(ctx, false)
}

func (api *lessonApi) setPublished(ctx echo.Context, published bool) error {
	l, err := contextObject[lesson.Lesson](ctx)
	if err != nil {
		return err
	}
	l, err = api.svc.SetPublished(ctx.Request().Context(), l, published)
	if err != nil {
		return errors.Wrap(err, "publishing lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *lessonApi) startPractice(ctx echo.Context) error {
	l, err := contextObject[lesson.Lesson](ctx)
	if err != nil {
		return err
	}

	var data practice.NewSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err = data.Validate(api.validate, api.conf.Learning); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	s, err := api.practiceSvc.Start(ctx.Request().Context(), claims.Subject, l, data)
	if err != nil {
		return errors.Wrap(err, "starting practice session")
	}
	return ctx.JSON(http.StatusCreated, s.Redacted())
}

// lessonMiddleware puts the lesson of the `:id` path param (ID or slug) in the context.
// Students only get to see published lessons.
func (api *lessonApi) lessonMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}

		l, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if errors.Cause(err) == lesson.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding lesson")
		}
		if !l.IsPublished && !isStaff(claims) {
			return errHttpNotFound
		}
		ctx.Set(objectContextKey, l)
		return next(ctx)
	}
}

// authorOrAdminMiddleware restricts a lesson endpoint to its author & admins.
func (api *lessonApi) authorOrAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		l, err := contextObject[lesson.Lesson](ctx)
		if err != nil {
			return err
		}
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		if claims.IsAdmin || (claims.IsTeacher && l.AuthorID == claims.Subject) {
			return next(ctx)
		}
		return errHttpForbidden
	}
}
