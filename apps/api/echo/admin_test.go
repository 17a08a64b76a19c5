package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/studentbuddy/backend/apps/api/echo"
	"github.com/studentbuddy/backend/core/mentor"
	"github.com/studentbuddy/backend/core/user"
	emailsvc "github.com/studentbuddy/backend/services/email"
)

func Test_adminApi_permissions(t *testing.T) {
	env := setup(t)

	student := env.createStudent(t, "Jane Doe", "jdoe@test.cd")

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "admin required", token: env.getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/admin/users", tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_adminApi_listUsers(t *testing.T) {
	env := setup(t)

	env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)
	boss := env.createUser(t, "Big Boss", "boss@test.cd", "G0pher!sFun", user.RoleSuperAdmin)

	listIDs := func(t *testing.T, token, path string) []string {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var users []user.User
		decodeBody(t, rec, &users)
		ids := make([]string, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		return ids
	}

	t.Run("admins never see super admins", func(t *testing.T) {
		ids := listIDs(t, env.getToken(t, admin), "/v1/admin/users")
		assert.Len(t, ids, 2)
		assert.NotContains(t, ids, boss.ID)
	})

	t.Run("super admins see everyone", func(t *testing.T) {
		ids := listIDs(t, env.getToken(t, boss), "/v1/admin/users")
		assert.Len(t, ids, 3)
		assert.Contains(t, ids, boss.ID)
	})

	t.Run("role filter", func(t *testing.T) {
		ids := listIDs(t, env.getToken(t, boss), "/v1/admin/users?role=Admin")
		assert.Equal(t, []string{admin.ID}, ids)
	})

	t.Run("admins cannot filter for super admins", func(t *testing.T) {
		ids := listIDs(t, env.getToken(t, admin), "/v1/admin/users?role=SuperAdmin")
		assert.Empty(t, ids)
	})
}

func Test_adminApi_createAdmin(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)
	boss := env.createUser(t, "Big Boss", "boss@test.cd", "G0pher!sFun", user.RoleSuperAdmin)

	body := marshallObj(t, user.NewUser{Email: "new@test.cd", Password: "G0pher!sFun", FullName: "New Admin"})

	t.Run("super admin only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/users", env.getToken(t, admin), body)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/users", env.getToken(t, boss), body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var created user.User
		decodeBody(t, rec, &created)
		assert.Equal(t, user.RoleAdmin, created.Role)
		assert.True(t, created.IsActive)
	})
}

func Test_adminApi_manageUsers(t *testing.T) {
	env := setup(t)

	student := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)
	otherAdmin := env.createUser(t, "Admin Two", "admin2@test.cd", "G0pher!sFun", user.RoleAdmin)
	boss := env.createUser(t, "Big Boss", "boss@test.cd", "G0pher!sFun", user.RoleSuperAdmin)
	adminToken := env.getToken(t, admin)

	t.Run("no self-delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/admin/users/%s", admin.ID), adminToken)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admins cannot delete their peers or betters", func(t *testing.T) {
		for _, target := range []user.User{otherAdmin, boss} {
			req, rec := newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/admin/users/%s", target.ID), adminToken)
			env.app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusForbidden, rec.Code)
		}
	})

	t.Run("deactivate then delete a student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/admin/users/%s/toggle-active", student.ID), adminToken)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var toggled user.User
		decodeBody(t, rec, &toggled)
		assert.False(t, toggled.IsActive)

		req, rec = newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/admin/users/%s", student.ID), adminToken)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		_, err := env.usrSvc.GetByID(context.Background(), student.ID)
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("super admins can delete admins", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/admin/users/%s", otherAdmin.ID), env.getToken(t, boss))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func Test_adminApi_resetUserPassword(t *testing.T) {
	env := setup(t)

	student := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)

	req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/admin/users/%s/reset-password", student.ID), env.getToken(t, admin))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TempPasswordResponse
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.Password)

	refreshed, err := env.usrSvc.GetByID(context.Background(), student.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword(resp.Password))

	// the user got the temporary password by email too
	require.Len(t, emailsvc.SentMessages, 1)
	assert.Equal(t, student.Email, emailsvc.SentMessages[0].To[0].Address)
}

func Test_adminApi_tests(t *testing.T) {
	env := setup(t)

	student := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	env.createStudent(t, "Other Kid", "other@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)
	adminToken := env.getToken(t, admin)

	t.Run("create notifies the assigned students", func(t *testing.T) {
		nt := mathTest()
		nt.AssignedTo = []string{student.ID}
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/tests", adminToken, marshallObj(t, nt))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		notifs, err := env.notifSvc.ForUser(context.Background(), student.ID)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, "New Test Assigned", notifs[0].Title)

		require.Len(t, emailsvc.SentMessages, 1)
		assert.Equal(t, student.Email, emailsvc.SentMessages[0].To[0].Address)
	})

	t.Run("open test notifies every student", func(t *testing.T) {
		emailsvc.ClearSentMessages()
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/tests", adminToken, marshallObj(t, mathTest()))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Len(t, emailsvc.SentMessages, 2)
	})

	t.Run("question validation", func(t *testing.T) {
		nt := mathTest()
		nt.Questions[0].CorrectAnswer = "5" // not among the options
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/tests", adminToken, marshallObj(t, nt))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_adminApi_mentors(t *testing.T) {
	env := setup(t)

	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)
	adminToken := env.getToken(t, admin)

	var created mentor.Mentor

	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/mentors", adminToken, marshallObj(t, mathMentor()))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		decodeBody(t, rec, &created)
		assert.Equal(t, admin.ID, created.CreatedBy)
		assert.True(t, created.IsActive)
	})

	t.Run("level validation", func(t *testing.T) {
		nm := mathMentor()
		nm.Level = "guru"
		req, rec := newAuthRequest(http.MethodPost, "/v1/admin/mentors", adminToken, marshallObj(t, nm))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("update", func(t *testing.T) {
		body := marshallObj(t, mentor.UpdateMentor{Level: strPtr(mentor.LevelAdvanced)})
		req, rec := newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/admin/mentors/%s", created.ID), adminToken, body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var updated mentor.Mentor
		decodeBody(t, rec, &updated)
		assert.Equal(t, mentor.LevelAdvanced, updated.Level)
	})

	t.Run("admin listing keeps the system prompt", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/mentors", adminToken)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var mentors []mentor.Mentor
		decodeBody(t, rec, &mentors)
		require.Len(t, mentors, 1)
		assert.NotEmpty(t, mentors[0].SystemPrompt)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, fmt.Sprintf("/v1/admin/mentors/%s", created.ID), adminToken)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
