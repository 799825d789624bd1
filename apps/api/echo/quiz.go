package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/quiz"
)

type quizApi struct {
	svc       quiz.Service
	lessonSvc lesson.Service
	classSvc  classroom.Service
	validate  *validator.Validate
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	api := quizApi{
		svc:       s.QuizSvc,
		lessonSvc: s.LessonSvc,
		classSvc:  s.ClassroomSvc,
		validate:  s.Validate,
	}

	qg := g.Group("/quizzes", jwt)
	qg.GET("", api.query)
	qg.POST("", api.create, staffMiddleware())

	dg := qg.Group("/:id", api.quizMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, api.authorOrAdminMiddleware)
	dg.DELETE("", api.destroy, api.authorOrAdminMiddleware)
	dg.POST("/attempts", api.startAttempt, studentMiddleware())
	dg.GET("/attempts", api.queryAttempts)

	ag := g.Group("/attempts/:id", jwt)
	ag.POST("/submit", api.submitAttempt, studentMiddleware())
}

// StartAttemptResponse carries the quiz without its answers, for the student to take it.
type StartAttemptResponse struct {
	Attempt  quiz.Attempt `json:"attempt"`
	Quiz     quiz.Quiz    `json:"quiz"`
	Deadline *time.Time   `json:"deadline"`
}

func (api *quizApi) query(ctx echo.Context) error {
	filter := new(quiz.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []quiz.Quiz{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	staff := isStaff(claims)
	if !staff {
		published := true
		filter.IsPublished = &published
	}

	quizzes, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	if quizzes == nil {
		quizzes = []quiz.Quiz{}
	}
	if !staff {
		if quizzes, err = api.withPublishedLesson(ctx, quizzes); err != nil {
			return err
		}
		for i := range quizzes {
			quizzes[i] = quizzes[i].Redacted()
		}
	}
	return ctx.JSON(http.StatusOK, quizzes)
}

// withPublishedLesson drops the quizzes whose lesson isn't published.
func (api *quizApi) withPublishedLesson(ctx echo.Context, quizzes []quiz.Quiz) ([]quiz.Quiz, error) {
	if len(quizzes) == 0 {
		return quizzes, nil
	}
	ids := make([]string, 0, len(quizzes))
	for _, q := range quizzes {
		ids = append(ids, q.LessonID)
	}
	published := true
	lessons, err := api.lessonSvc.Query(ctx.Request().Context(), &lesson.QueryFilter{IDs: core.UniqueStrings(ids), IsPublished: &published}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	visible := make(map[string]bool, len(lessons))
	for _, l := range lessons {
		visible[l.ID] = true
	}
	res := quizzes[:0]
	for _, q := range quizzes {
		if visible[q.LessonID] {
			res = append(res, q)
		}
	}
	return res, nil
}

func (api *quizApi) create(ctx echo.Context) error {
	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.lessonSvc); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	q, err := api.svc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	q, err := contextObject[quiz.Quiz](ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if !isStaff(claims) {
		q = q.Redacted()
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) update(ctx echo.Context) error {
	q, err := contextObject[quiz.Quiz](ctx)
	if err != nil {
		return err
	}

	var data quiz.UpdateQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	if err = data.Validate(q, api.validate); err != nil {
		return err
	}

	q, err = api.svc.Update(ctx.Request().Context(), q, data)
	if err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *quizApi) destroy(ctx echo.Context) error {
	q, err := contextObject[quiz.Quiz](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), q.ID); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *quizApi) startAttempt(ctx echo.Context) error {
	q, err := contextObject[quiz.Quiz](ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	a, err := api.svc.StartAttempt(ctx.Request().Context(), q, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}

	res := StartAttemptResponse{Attempt: a, Quiz: q.Redacted()}
	if deadline := q.Deadline(a.StartedAt, 0); !deadline.IsZero() {
		res.Deadline = &deadline
	}
	return ctx.JSON(http.StatusCreated, res)
}

// queryAttempts lists the attempts at the quiz. Students only see theirs; teachers other than the quiz
// author only see those of the students of their classrooms.
func (api *quizApi) queryAttempts(ctx echo.Context) error {
	q, err := contextObject[quiz.Quiz](ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	filter := &quiz.AttemptFilter{QuizIDs: []string{q.ID}}
	student := ctx.QueryParam("student")
	switch {
	case !isStaff(claims):
		filter.StudentIDs = []string{claims.Subject}
	case claims.IsAdmin || q.AuthorID == claims.Subject:
		if student != "" {
			filter.StudentIDs = []string{student}
		}
	case student != "":
		ok, err := api.classSvc.TeacherHasStudent(ctx.Request().Context(), claims.Subject, student)
		if err != nil {
			return errors.Wrap(err, "checking teacher's students")
		}
		if !ok {
			return errHttpForbidden
		}
		filter.StudentIDs = []string{student}
	default:
		if filter.StudentIDs, err = api.teacherStudents(ctx, claims.Subject); err != nil {
			return err
		}
		if len(filter.StudentIDs) == 0 {
			return ctx.JSON(http.StatusOK, []quiz.Attempt{})
		}
	}

	attempts, err := api.svc.QueryAttempts(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if attempts == nil {
		attempts = []quiz.Attempt{}
	}
	return ctx.JSON(http.StatusOK, attempts)
}

// teacherStudents returns the students enrolled in the classrooms of the teacher.
func (api *quizApi) teacherStudents(ctx echo.Context, teacherID string) ([]string, error) {
	classrooms, err := api.classSvc.Query(ctx.Request().Context(), &classroom.QueryFilter{TeacherID: teacherID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	var ids []string
	for _, c := range classrooms {
		ids = append(ids, c.StudentIDs...)
	}
	return core.UniqueStrings(ids), nil
}

func (api *quizApi) submitAttempt(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	a, err := api.svc.GetAttempt(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == quiz.ErrAttemptNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding attempt")
	}
	if a.StudentID != claims.Subject {
		return errHttpNotFound
	}
	q, err := api.svc.GetByID(ctx.Request().Context(), a.QuizID)
	if err != nil {
		return errors.Wrap(err, "finding quiz")
	}

	var data quiz.SubmitAnswers
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAnswers")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.SubmitAttempt(ctx.Request().Context(), q, a, data, claims.Lang())
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusOK, res)
}

// quizMiddleware puts the quiz of the `:id` path param in the context.
// Students only get to see published quizzes of published lessons.
func (api *quizApi) quizMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}

		q, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if errors.Cause(err) == quiz.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding quiz")
		}
		if !isStaff(claims) {
			if !q.IsPublished {
				return errHttpNotFound
			}
			l, err := api.lessonSvc.GetByID(ctx.Request().Context(), q.LessonID)
			if err != nil {
				if errors.Cause(err) == lesson.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding lesson")
			}
			if !l.IsPublished {
				return errHttpNotFound
			}
		}
		ctx.Set(objectContextKey, q)
		return next(ctx)
	}
}

// authorOrAdminMiddleware restricts a quiz endpoint to its author & admins.
func (api *quizApi) authorOrAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		q, err := contextObject[quiz.Quiz](ctx)
		if err != nil {
			return err
		}
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		if claims.IsAdmin || (claims.IsTeacher && q.AuthorID == claims.Subject) {
			return next(ctx)
		}
		return errHttpForbidden
	}
}
