package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/practice"
)

type practiceApi struct {
	svc      practice.Service
	classSvc classroom.Service
	validate *validator.Validate
}

func registerPracticeAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := practiceApi{
		svc:      s.PracticeSvc,
		classSvc: s.ClassroomSvc,
		validate: s.Validate,
	}

	pg := g.Group("/practice/:id", jwt, api.sessionMiddleware)
	pg.GET("", api.retrieve)
	pg.POST("/answers", api.answer, api.ownerMiddleware)
	pg.POST("/finish", api.finish, api.ownerMiddleware)
}

type (
	AnswerResponse struct {
		Session  practice.Session  `json:"session"`
		Feedback practice.Feedback `json:"feedback"`
	}

	FinishResponse struct {
		Session practice.Session `json:"session"`
		Summary practice.Summary `json:"summary"`
	}
)

func (api *practiceApi) retrieve(ctx echo.Context) error {
	s, err := contextObject[practice.Session](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s.Redacted())
}

func (api *practiceApi) answer(ctx echo.Context) error {
	s, err := contextObject[practice.Session](ctx)
	if err != nil {
		return err
	}

	var data practice.SubmitAnswer
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAnswer")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	s, fb, err := api.svc.Answer(ctx.Request().Context(), s, data, claims.Lang())
	if err != nil {
		return errors.Wrap(err, "answering problem")
	}
	return ctx.JSON(http.StatusOK, AnswerResponse{Session: s.Redacted(), Feedback: fb})
}

func (api *practiceApi) finish(ctx echo.Context) error {
	s, err := contextObject[practice.Session](ctx)
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	s, sum, err := api.svc.Finish(ctx.Request().Context(), s, claims.Lang())
	if err != nil {
		return errors.Wrap(err, "finishing practice session")
	}
	return ctx.JSON(http.StatusOK, FinishResponse{Session: s, Summary: sum})
}

// sessionMiddleware puts the practice session of the `:id` path param in the context.
// Sessions are visible to their student, to admins & to the teachers of the student.
func (api *practiceApi) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}

		s, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if errors.Cause(err) == practice.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding practice session")
		}

		allowed := claims.IsAdmin || s.StudentID == claims.Subject
		if !allowed && claims.IsTeacher {
			if allowed, err = api.classSvc.TeacherHasStudent(ctx.Request().Context(), claims.Subject, s.StudentID); err != nil {
				return errors.Wrap(err, "checking teacher's students")
			}
		}
		if !allowed {
			return errHttpNotFound
		}
		ctx.Set(objectContextKey, s)
		return next(ctx)
	}
}

// ownerMiddleware restricts a practice endpoint to the student of the session.
func (api *practiceApi) ownerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		s, err := contextObject[practice.Session](ctx)
		if err != nil {
			return err
		}
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		if s.StudentID != claims.Subject {
			return errHttpForbidden
		}
		return next(ctx)
	}
}
