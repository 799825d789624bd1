package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/mathhub/factolearn/apps/api/echo"
	"github.com/mathhub/factolearn/core/user"
	testutil "github.com/mathhub/factolearn/tests"
)

func Test_userApi_query(t *testing.T) {
	e := setup(t)

	path := func(search string, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if isActive != nil {
			if *isActive {
				v.Add("is_active", "true")
			} else {
				v.Add("is_active", "false")
			}
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	usr1 := testutil.CreateUser(t, e.usrRepo, "User", "awe", "awe@test.cd", "", nil, true)
	usr2 := testutil.CreateUser(t, e.usrRepo, "King", "user02", "king@test.cd", "", nil, true)
	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "user3@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	principal := testutil.CreateUser(t, e.usrRepo, "Principal", "princip", "princip@test.cd", "", []string{user.RoleAdminPrincipal}, true)
	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	naughty := testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false)

	adminToken := getToken(t, e.conf, admin)
	empty := marshalList(t)

	e.run(t, []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: getToken(t, e.conf, student), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Get all", path: "/v1/users", token: adminToken,
			wantData: marshalList(t, teacher, admin, usr1, naughty, principal, student, usr2),
		},
		{name: "search (unknown)", path: path("lol", nil), token: adminToken, wantData: empty},
		{name: "search=USE", path: path("USE", nil), token: adminToken, wantData: marshalList(t, usr1, student, usr2)},
		{name: "role (unknown)", path: path("", nil, "lol"), token: adminToken, wantData: empty},
		{name: "role=admin:", path: path("", nil, user.RoleAdmin), token: adminToken, wantData: marshalList(t, admin, principal)},
		{
			name: "role=teacher:,student:", path: path("", nil, user.RoleTeacher, user.RoleStudent),
			token: adminToken, wantData: marshalList(t, teacher, naughty, student),
		},
		{name: "is_active=false", path: path("", bPtr(false)), token: adminToken, wantData: marshalList(t, naughty)},
		{
			name: "is_active=true & role=student:", path: path("", bPtr(true), user.RoleStudent),
			token: adminToken, wantData: marshalList(t, student),
		},
	})
}

func Test_userApi_login(t *testing.T) {
	e := setup(t)

	testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog", "ndog@test.cd", "pwd", []string{user.RoleStudent}, false)
	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "hero@test.cd", "pwd", []string{user.RoleStudent}, true)

	e.run(t, []httpTest{
		{
			name: "Empty credentials", method: http.MethodPost, path: "/v1/users/login",
			body: []byte(`{}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "Unknown user", method: http.MethodPost, path: "/v1/users/login",
			body: []byte(`{"username": "lol", "password": "pwd"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Wrong password", method: http.MethodPost, path: "/v1/users/login",
			body: []byte(`{"username": "hero", "password": "lol"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Inactive user", method: http.MethodPost, path: "/v1/users/login",
			body: []byte(`{"username": "ndog", "password": "pwd"}`), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	for _, uname := range []string{"hero", "HERO@test.cd"} {
		t.Run("Login as "+uname, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/v1/users/login", "", []byte(`{"username": "`+uname+`", "password": "pwd"}`))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var res echoapi.LoginResponse
			decode(t, rec, &res)
			claims := new(echoapi.Claims)
			_, err := jwt.ParseWithClaims(res.Token, claims, func(*jwt.Token) (interface{}, error) {
				return []byte(e.conf.SecretKey), nil
			})
			require.NoError(t, err)
			assert.Equal(t, student.ID, claims.Subject)
			assert.Equal(t, "hero", claims.Username)
			assert.True(t, claims.IsStudent)
			assert.False(t, claims.IsAdmin)

			usr, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
			require.NoError(t, err)
			assert.False(t, usr.LastLogin.IsZero())
		})
	}
}

func Test_userApi_retrieveAndUpdate(t *testing.T) {
	e := setup(t)

	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, e.usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	studentToken := getToken(t, e.conf, student)
	adminToken := getToken(t, e.conf, admin)

	e.run(t, []httpTest{
		{name: "Self", path: "/v1/users/" + student.ID, token: studentToken, wantData: marshalObj(t, student)},
		{name: "Someone else", path: "/v1/users/" + other.ID, token: studentToken, wantCode: http.StatusNotFound},
		{name: "Admin", path: "/v1/users/" + other.ID, token: adminToken, wantData: marshalObj(t, other)},
		{name: "Unknown", path: "/v1/users/lol", token: adminToken, wantCode: http.StatusNotFound},
		{
			name: "Student cannot change roles", method: http.MethodPut, path: "/v1/users/" + student.ID,
			token: studentToken, body: []byte(`{"roles": ["admin:"]}`), wantCode: http.StatusForbidden,
		},
		{
			name: "Student cannot delete", method: http.MethodDelete, path: "/v1/users/" + other.ID,
			token: studentToken, wantCode: http.StatusNotFound,
		},
		{
			name: "Admin cannot delete themselves", method: http.MethodDelete, path: "/v1/users/" + admin.ID,
			token: adminToken, wantCode: http.StatusForbidden,
		},
	})

	rec := e.do(http.MethodPut, "/v1/users/"+student.ID, studentToken, []byte(`{"name": "Super Hero", "locale": "fr"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var usr user.User
	decode(t, rec, &usr)
	assert.Equal(t, "Super Hero", usr.Name)
	assert.Equal(t, "fr", usr.Locale)
	assert.Equal(t, "hero", usr.Username)

	rec = e.do(http.MethodDelete, "/v1/users/"+other.ID, adminToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(http.MethodGet, "/v1/users/"+other.ID, adminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// a deleted user's token is no good anymore
	rec = e.do(http.MethodGet, "/v1/classrooms", getToken(t, e.conf, other))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_userApi_passwordReset(t *testing.T) {
	e := setup(t)

	usr := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "hero@test.cd", "old-pwd", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog", "ndog@test.cd", "pwd", nil, false)

	for _, email := range []string{"unknown@test.cd", "ndog@test.cd"} {
		rec := e.do(http.MethodPost, "/v1/users/password-reset", "", []byte(`{"email": "`+email+`"}`))
		assert.Equal(t, http.StatusOK, rec.Code, email)
	}
	assert.Empty(t, e.mailSvc.SentMessages(), "no email for unknown or inactive users")

	rec := e.do(http.MethodPost, "/v1/users/password-reset", "", []byte(`{"email": "lol"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/v1/users/password-reset", "", []byte(`{"email": "hero@test.cd"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	sent := e.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "hero@test.cd", msg.To[0].Address)
	assert.NotEmpty(t, msg.Subject)
	data, ok := msg.TemplateData.(map[string]interface{})
	require.True(t, ok)
	uid, token := data["UID"].(string), data["Token"].(string)
	assert.Contains(t, msg.TextContent, token)

	newPwd := "Xq7!vLp2#rTz"
	e.run(t, []httpTest{
		{
			name: "Invalid token", method: http.MethodPost, path: "/v1/users/password-reset-confirm",
			body:     marshalObj(t, user.ResetUserPassword{UID: uid, Token: "lol", Password: newPwd, PasswordConfirm: newPwd}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"token": "invalid value"}),
		},
		{
			name: "Passwords mismatch", method: http.MethodPost, path: "/v1/users/password-reset-confirm",
			body:     marshalObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: "lol"}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "Reset", method: http.MethodPost, path: "/v1/users/password-reset-confirm",
			body: marshalObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd}),
		},
		{
			name: "Token is single use", method: http.MethodPost, path: "/v1/users/password-reset-confirm",
			body:     marshalObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd}),
			wantCode: http.StatusBadRequest,
		},
	})

	got, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword(newPwd))
}

func Test_userApi_refreshToken(t *testing.T) {
	e := setup(t)

	usr := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	rec := e.do(http.MethodPost, "/v1/users/token-refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(http.MethodPost, "/v1/users/token-refresh", getToken(t, e.conf, usr))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res echoapi.LoginResponse
	decode(t, rec, &res)
	assert.NotEmpty(t, res.Token)

	// past the refresh window
	stale := echoapi.NewClaims(e.conf, usr, time.Now().Add(-e.conf.Server.JWTRefreshExpirationDelta-time.Minute).Unix())
	token, err := echoapi.GenerateToken(e.conf, stale)
	require.NoError(t, err)
	rec = e.do(http.MethodPost, "/v1/users/token-refresh", token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error": "refresh has expired"}`, rec.Body.String())
}

func Test_userApi_register(t *testing.T) {
	e := setup(t)

	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, e.conf, admin)

	body := marshalObj(t, user.NewUser{
		Name:            "Ada Lovelace",
		Username:        "ada",
		Email:           "ada@test.cd",
		Password:        "Xq7!vLp2#rTz",
		PasswordConfirm: "Xq7!vLp2#rTz",
		Roles:           []string{user.RoleTeacher},
	})
	rec := e.do(http.MethodPost, "/v1/users/register", adminToken, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var usr user.User
	decode(t, rec, &usr)
	assert.Equal(t, "ada", usr.Username)
	assert.True(t, usr.IsTeacher())

	// taken username & email
	rec = e.do(http.MethodPost, "/v1/users/register", adminToken, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// an admin cannot hand out a role above theirs
	body = marshalObj(t, user.NewUser{
		Name:            "Boss",
		Username:        "boss",
		Password:        "Xq7!vLp2#rTz",
		PasswordConfirm: "Xq7!vLp2#rTz",
		Roles:           []string{user.RoleAdminOwner},
	})
	rec = e.do(http.MethodPost, "/v1/users/register", adminToken, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "roles")

	rec = e.do(http.MethodGet, "/v1/users/roles", adminToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(marshalObj(t, user.Roles)), rec.Body.String())
}
