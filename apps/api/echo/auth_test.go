package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/studentbuddy/backend/apps/api/echo"
	"github.com/studentbuddy/backend/core/activation"
	"github.com/studentbuddy/backend/core/user"
	emailsvc "github.com/studentbuddy/backend/services/email"
)

func Test_authApi_signup(t *testing.T) {
	env := setup(t)

	env.createStudent(t, "Taken", "taken@test.cd")

	tests := []httpTest{
		{
			name: "empty body", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "weak password",
			body: marshallObj(t, SignupRequest{
				Email: "weak@test.cd", Password: "password", FullName: "Weak One", GradeLevel: "10th",
			}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "invalid email reports the field",
			body: marshallObj(t, SignupRequest{
				Email: "not-an-email", Password: "G0pher!sFun", FullName: "Jane Doe", GradeLevel: "10th",
			}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"email": "email must be a valid email address"}),
		},
		{
			name: "email taken",
			body: marshallObj(t, SignupRequest{
				Email: "taken@test.cd", Password: "G0pher!sFun", FullName: "Copy Cat", GradeLevel: "10th",
			}),
			wantCode: http.StatusConflict,
			wantData: marshallObj(t, httpErr{Error: user.ErrEmailExists.Error()}),
		},
		{
			name: "ok",
			body: marshallObj(t, SignupRequest{
				Email: "jdoe@test.cd", Password: "G0pher!sFun", FullName: "Jane Doe", GradeLevel: "11th",
				SubjectsEnrolled: []string{"Math", "Physics"},
			}),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/signup", tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var resp AuthResponse
				decodeBody(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
				assert.Equal(t, "jdoe@test.cd", resp.User.Email)
				assert.Equal(t, user.RoleStudent, resp.User.Role)

				profile, err := env.studentSvc.Profile(context.Background(), resp.User.ID)
				require.NoError(t, err)
				assert.Equal(t, "11th", profile.GradeLevel)
				assert.Equal(t, "Mixed", profile.LearningStyle)
			}
		})
	}
}

func Test_authApi_login(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	frozen := env.createUser(t, "Frozen", "frozen@test.cd", "G0pher!sFun", user.RoleStudent)
	_, err := env.usrSvc.ToggleActive(context.Background(), frozen.ID)
	require.NoError(t, err)

	tests := []httpTest{
		{
			name: "unknown email", body: marshallObj(t, LoginRequest{Email: "lol@test.cd", Password: "G0pher!sFun"}),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: marshallObj(t, LoginRequest{Email: usr.Email, Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", body: marshallObj(t, LoginRequest{Email: frozen.Email, Password: "G0pher!sFun"}),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "ok", body: marshallObj(t, LoginRequest{Email: usr.Email, Password: "G0pher!sFun"}),
			wantCode: http.StatusOK,
		},
		{
			name: "email is case-insensitive", body: marshallObj(t, LoginRequest{Email: "JDOE@test.cd", Password: "G0pher!sFun"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/auth/login", tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp AuthResponse
				decodeBody(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
				assert.Equal(t, usr.ID, resp.User.ID)
				assert.False(t, resp.User.LastLogin.IsZero())
			}
		})
	}
}

func Test_authApi_forgotPassword(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")

	// response is identical whether or not the account exists
	for _, email := range []string{usr.Email, "ghost@test.cd"} {
		req, rec := newRequest(http.MethodPost, "/v1/auth/forgot-password", marshallObj(t, PasswordResetRequest{Email: email}))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	// only the real account got an email
	require.Len(t, emailsvc.SentMessages, 1)
	msg := emailsvc.SentMessages[0]
	assert.Equal(t, usr.Email, msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "password")
}

func Test_authApi_resetPassword(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	code := env.issueCode(t, usr, activation.TypePasswordReset, "")

	t.Run("invalid code", func(t *testing.T) {
		body := marshallObj(t, ConfirmPasswordResetRequest{Email: usr.Email, Code: "000000", NewPassword: "N3w!Secret"})
		req, rec := newRequest(http.MethodPost, "/v1/auth/reset-password", body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: activation.ErrCodeInvalid.Error()}),
		}, rec)
	})

	t.Run("ok", func(t *testing.T) {
		body := marshallObj(t, ConfirmPasswordResetRequest{Email: usr.Email, Code: code, NewPassword: "N3w!Secret"})
		req, rec := newRequest(http.MethodPost, "/v1/auth/reset-password", body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		refreshed, err := env.usrSvc.GetByID(context.Background(), usr.ID)
		require.NoError(t, err)
		assert.NoError(t, refreshed.CheckPassword("N3w!Secret"))
	})

	t.Run("code is single-use", func(t *testing.T) {
		body := marshallObj(t, ConfirmPasswordResetRequest{Email: usr.Email, Code: code, NewPassword: "An0ther!1"})
		req, rec := newRequest(http.MethodPost, "/v1/auth/reset-password", body)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_authApi_me(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "ok", token: env.getToken(t, usr), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/auth/me", tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var got user.User
				decodeBody(t, rec, &got)
				assert.Equal(t, usr.ID, got.ID)
				assert.Equal(t, usr.Email, got.Email)
			}
		})
	}
}

func Test_authApi_deactivatedAccountLosesAccess(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	token := env.getToken(t, usr)

	req, rec := newAuthRequest(http.MethodGet, "/v1/auth/me", token)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := env.usrSvc.ToggleActive(context.Background(), usr.ID)
	require.NoError(t, err)

	// the token is still valid for days; it must stop working anyway
	req, rec = newAuthRequest(http.MethodGet, "/v1/auth/me", token)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusUnauthorized,
		wantData: marshallObj(t, httpErr{Error: "user not authenticated"}),
	}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/test/active", token)
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_authApi_refreshToken(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	token := env.getToken(t, usr)

	req, rec := newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", token)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TokenResponse
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
}
