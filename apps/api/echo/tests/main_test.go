package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	echoapi "github.com/mathhub/factolearn/apps/api/echo"
	"github.com/mathhub/factolearn/core"
	"github.com/mathhub/factolearn/core/classroom"
	"github.com/mathhub/factolearn/core/dashboard"
	"github.com/mathhub/factolearn/core/lesson"
	"github.com/mathhub/factolearn/core/practice"
	"github.com/mathhub/factolearn/core/progress"
	"github.com/mathhub/factolearn/core/quiz"
	"github.com/mathhub/factolearn/core/user"
	emailsvc "github.com/mathhub/factolearn/services/email"
	logsvc "github.com/mathhub/factolearn/services/logger"
	inmemdb "github.com/mathhub/factolearn/storage/database/inmem"
	testutil "github.com/mathhub/factolearn/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func TestMain(m *testing.M) {
	core.ParseEmailTemplates(logsvc.NewRollbarLogger(zap.NewNop(), testutil.NewConfig()))
	os.Exit(m.Run())
}

// env is a server wired on a fresh in-memory DB.
type env struct {
	conf    *core.Config
	app     *echoapi.Server
	mailSvc *emailsvc.Mock

	usrRepo       user.Repository
	classRepo     classroom.Repository
	lessonRepo    lesson.Repository
	quizRepo      quiz.Repository
	practiceSvc   practice.Service
	progSvc       progress.Service
	classroomSvc  classroom.Service
	quizSvc       quiz.Service
	dashboardSvc  dashboard.Service
	lessonService lesson.Service
}

func setup(t *testing.T) *env {
	t.Helper()

	conf := testutil.NewConfig()
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	lesson.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)

	db := inmemdb.Open()
	e := &env{
		conf:       conf,
		mailSvc:    emailsvc.NewMock(conf),
		usrRepo:    inmemdb.NewUserRepository(db),
		classRepo:  inmemdb.NewClassroomRepository(db),
		lessonRepo: inmemdb.NewLessonRepository(db),
		quizRepo:   inmemdb.NewQuizRepository(db),
	}

	usrSvc := user.NewService(e.usrRepo, e.mailSvc, conf)
	e.classroomSvc = classroom.NewService(e.classRepo, usrSvc, db)
	e.lessonService = lesson.NewService(e.lessonRepo)
	e.progSvc = progress.NewService(inmemdb.NewProgressRepository(db), db, conf.Learning)
	e.practiceSvc = practice.NewService(inmemdb.NewPracticeRepository(db), e.progSvc, db)
	e.quizSvc = quiz.NewService(e.quizRepo, e.progSvc, db, conf.Learning)
	e.dashboardSvc = dashboard.NewService(usrSvc, e.classroomSvc, e.lessonService, e.quizSvc, e.progSvc, e.mailSvc, conf.Learning)

	e.app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		UserSvc:      usrSvc,
		ClassroomSvc: e.classroomSvc,
		LessonSvc:    e.lessonService,
		PracticeSvc:  e.practiceSvc,
		QuizSvc:      e.quizSvc,
		ProgressSvc:  e.progSvc,
		DashboardSvc: e.dashboardSvc,
	})
	return e
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves an authenticated request & returns the recorded response.
func (e *env) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	e.app.ServeHTTP(rec, req)
	return rec
}

func (e *env) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := e.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(conf, echoapi.NewClaims(conf, usr))
	require.NoError(t, err, "getToken()")
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err, "marshalObj()")
	return data
}

func marshalList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	if objs == nil {
		objs = []interface{}{}
	}
	return marshalObj(t, objs)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "decode(%s)", rec.Body.String())
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	l1, ok1 := j1.([]interface{})
	l2, ok2 := j2.([]interface{})
	if !ok1 || !ok2 {
		return false, nil
	}
	return assert.ElementsMatch(t, l1, l2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	require.NoError(t, err, "jsonBytesEqual()")
	assert.True(t, ok, "data = %s; wantData %s", rec.Body.String(), string(tt.wantData))
}
