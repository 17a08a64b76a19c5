package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studentbuddy/backend/core/notification"
	"github.com/studentbuddy/backend/core/student"
	"github.com/studentbuddy/backend/core/todo"
	"github.com/studentbuddy/backend/core/user"
)

func Test_studentApi_profile(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	token := env.getToken(t, usr)

	t.Run("get", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/student/profile", token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var profile student.Profile
		decodeBody(t, rec, &profile)
		assert.Equal(t, usr.ID, profile.UserID)
		assert.Equal(t, "10th", profile.GradeLevel)
		assert.Equal(t, student.StyleMixed, profile.LearningStyle)
	})

	t.Run("partial update", func(t *testing.T) {
		body := marshallObj(t, student.UpdateProfile{
			LearningStyle: strPtr(student.StyleVisual),
			Interests:     []string{"robotics"},
		})
		req, rec := newAuthRequest(http.MethodPut, "/v1/student/profile", token, body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var profile student.Profile
		decodeBody(t, rec, &profile)
		assert.Equal(t, student.StyleVisual, profile.LearningStyle)
		assert.Equal(t, []string{"robotics"}, profile.Interests)
		assert.Equal(t, "10th", profile.GradeLevel) // untouched
	})

	t.Run("invalid learning style", func(t *testing.T) {
		body := marshallObj(t, student.UpdateProfile{LearningStyle: strPtr("Osmosis")})
		req, rec := newAuthRequest(http.MethodPut, "/v1/student/profile", token, body)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_studentApi_dashboard(t *testing.T) {
	env := setup(t)

	ctx := context.Background()
	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)

	// one graded attempt
	tst := env.createTest(t, mathTest(), admin.ID)
	att, err := env.testSvc.Start(ctx, usr.ID, tst.ID)
	require.NoError(t, err)
	_, err = env.testSvc.Submit(ctx, usr.ID, att.Attempt.ID, map[string]string{tst.Questions[0].ID: "4"}, false)
	require.NoError(t, err)

	// one active mentor
	m := env.createMentor(t, mathMentor(), admin.ID)
	env.activateMentor(t, usr, m.ID)

	// one pending, one completed todo
	pending, err := env.todoSvc.Create(ctx, usr.ID, todo.NewTodo{Title: "Revise"})
	require.NoError(t, err)
	_ = pending
	done, err := env.todoSvc.Create(ctx, usr.ID, todo.NewTodo{Title: "Done deal"})
	require.NoError(t, err)
	_, err = env.todoSvc.Toggle(ctx, usr.ID, done.ID)
	require.NoError(t, err)

	// one unread notification
	require.NoError(t, env.notifSvc.NotifyTestAssigned(ctx, tst))

	req, rec := newAuthRequest(http.MethodGet, "/v1/student/dashboard", env.getToken(t, usr))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var dash student.Dashboard
	decodeBody(t, rec, &dash)
	assert.Equal(t, 1, dash.TotalTests)
	assert.Equal(t, 50, dash.AverageScore)
	assert.Equal(t, 1, dash.ActiveMentors)
	assert.Equal(t, 1, dash.UnreadNotifications)
	assert.Equal(t, 1, dash.PendingTodos)
}

func Test_studentApi_analytics(t *testing.T) {
	env := setup(t)

	ctx := context.Background()
	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)

	tst := env.createTest(t, mathTest(), admin.ID)
	att, err := env.testSvc.Start(ctx, usr.ID, tst.ID)
	require.NoError(t, err)
	_, err = env.testSvc.Submit(ctx, usr.ID, att.Attempt.ID, map[string]string{
		tst.Questions[0].ID: "4",
		tst.Questions[1].ID: "true",
	}, false)
	require.NoError(t, err)

	req, rec := newAuthRequest(http.MethodGet, "/v1/student/analytics", env.getToken(t, usr))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var analytics student.Analytics
	decodeBody(t, rec, &analytics)
	require.Len(t, analytics.TestResults, 1)
	assert.Equal(t, "Algebra Basics", analytics.TestResults[0].Title)
	assert.Equal(t, 75, analytics.TestResults[0].Percentage) // 3 of 4 points

	require.Len(t, analytics.SubjectPerformance, 1)
	assert.Equal(t, "Math", analytics.SubjectPerformance[0].Subject)
	assert.Equal(t, 75, analytics.SubjectPerformance[0].AveragePercentage)
}

func Test_studentApi_notifications(t *testing.T) {
	env := setup(t)

	ctx := context.Background()
	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)
	token := env.getToken(t, usr)

	tst := env.createTest(t, mathTest(), admin.ID)
	require.NoError(t, env.notifSvc.NotifyTestAssigned(ctx, tst))

	req, rec := newAuthRequest(http.MethodGet, "/v1/student/notifications", token)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var notifs []notification.Notification
	decodeBody(t, rec, &notifs)
	require.Len(t, notifs, 1)
	assert.False(t, notifs[0].Read)
	assert.Equal(t, notification.TypeTestAssigned, notifs[0].Type)

	t.Run("mark read", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/student/notifications/%s/read", notifs[0].ID), token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var marked notification.Notification
		decodeBody(t, rec, &marked)
		assert.True(t, marked.Read)

		unread, err := env.notifSvc.CountUnread(ctx, usr.ID)
		require.NoError(t, err)
		assert.Zero(t, unread)
	})

	t.Run("foreign notification is hidden", func(t *testing.T) {
		other := env.createStudent(t, "Other Kid", "other@test.cd")
		req, rec := newAuthRequest(http.MethodPut, fmt.Sprintf("/v1/student/notifications/%s/read", notifs[0].ID), env.getToken(t, other))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: notification.ErrNotFound.Error()}),
		}, rec)
	})
}
