package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/studentbuddy/backend/apps/api/echo"
	"github.com/studentbuddy/backend/core/test"
	"github.com/studentbuddy/backend/core/user"
)

func mathTest() test.NewTest {
	return test.NewTest{
		Title:           "Algebra Basics",
		Subject:         "Math",
		DurationMinutes: 30,
		Questions: []test.NewQuestion{
			{Text: "2+2?", Type: test.QuestionMultipleChoice, Options: []string{"3", "4"}, CorrectAnswer: "4", Points: 2},
			{Text: "0 is even.", Type: test.QuestionTrueFalse, CorrectAnswer: "true"},
			{Text: "Explain slopes.", Type: test.QuestionEssay},
		},
	}
}

func Test_testApi_active(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	other := env.createStudent(t, "Other Kid", "other@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)

	open := env.createTest(t, mathTest(), admin.ID)

	assigned := mathTest()
	assigned.Title = "Assigned Only"
	assigned.AssignedTo = []string{other.ID}
	env.createTest(t, assigned, admin.ID)

	expired := mathTest()
	expired.Title = "Expired"
	expired.StartTime = timePtr(time.Now().UTC().Add(-2 * time.Hour))
	expired.EndTime = timePtr(time.Now().UTC().Add(-time.Hour))
	env.createTest(t, expired, admin.ID)

	inactive := mathTest()
	inactive.Title = "Inactive"
	inactive.IsActive = boolPtr(false)
	env.createTest(t, inactive, admin.ID)

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/test/active")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)}, rec)
	})

	t.Run("students only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/test/active", env.getToken(t, admin))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("only available tests are listed, sanitized", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/test/active", env.getToken(t, usr))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var active test.ActiveTests
		decodeBody(t, rec, &active)
		require.Len(t, active.Available, 1)
		assert.Equal(t, open.ID, active.Available[0].ID)
		assert.Empty(t, active.InProgress)
		for _, q := range active.Available[0].Questions {
			assert.Empty(t, q.CorrectAnswer)
		}
	})
}

func Test_testApi_activeKeepsOpenAttempts(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)
	tst := env.createTest(t, mathTest(), admin.ID)
	token := env.getToken(t, usr)

	req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/test/%s/start", tst.ID), token)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	// the test gets pulled while the attempt is still open
	_, err := env.testSvc.Update(context.Background(), tst.ID, test.UpdateTest{IsActive: boolPtr(false)})
	require.NoError(t, err)

	req, rec = newAuthRequest(http.MethodGet, "/v1/test/active", token)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var active test.ActiveTests
	decodeBody(t, rec, &active)
	assert.Empty(t, active.Available)
	require.Len(t, active.InProgress, 1)
	assert.Equal(t, tst.ID, active.InProgress[0].Test.ID)
	for _, q := range active.InProgress[0].Test.Questions {
		assert.Empty(t, q.CorrectAnswer)
	}
}

func Test_testApi_start(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)
	tst := env.createTest(t, mathTest(), admin.ID)

	inactive := mathTest()
	inactive.IsActive = boolPtr(false)
	closed := env.createTest(t, inactive, admin.ID)

	token := env.getToken(t, usr)

	t.Run("unknown test", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/test/nope/start", token)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: test.ErrNotFound.Error()}),
		}, rec)
	})

	t.Run("inactive test", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/test/%s/start", closed.ID), token)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: test.ErrTestNotAvailable.Error()}),
		}, rec)
	})

	t.Run("ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/test/%s/start", tst.ID), token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var att test.ActiveAttempt
		decodeBody(t, rec, &att)
		assert.Equal(t, test.StatusInProgress, att.Attempt.Status)
		assert.Equal(t, tst.TotalPoints, att.Attempt.TotalPoints)
		for _, q := range att.Test.Questions {
			assert.Empty(t, q.CorrectAnswer)
		}
	})

	t.Run("one attempt per test", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/test/%s/start", tst.ID), token)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marshallObj(t, httpErr{Error: test.ErrTestAlreadyAttempted.Error()}),
		}, rec)
	})
}

func Test_testApi_submitAndResults(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	intruder := env.createStudent(t, "Nosy One", "nosy@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)
	tst := env.createTest(t, mathTest(), admin.ID)

	token := env.getToken(t, usr)

	req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/test/%s/start", tst.ID), token)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var started test.ActiveAttempt
	decodeBody(t, rec, &started)
	attemptID := started.Attempt.ID

	answers := map[string]string{
		tst.Questions[0].ID: "4",     // correct, 2 pts
		tst.Questions[1].ID: "false", // wrong
		tst.Questions[2].ID: "Essay answer, never auto-graded",
	}

	t.Run("results before submission", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/test/attempts/%s/results", attemptID), token)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("foreign attempt is hidden", func(t *testing.T) {
		body := marshallObj(t, SubmitAttemptRequest{Answers: answers})
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/test/attempts/%s/submit", attemptID), env.getToken(t, intruder), body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: test.ErrAttemptNotFound.Error()}),
		}, rec)
	})

	t.Run("submit grades choice questions only", func(t *testing.T) {
		body := marshallObj(t, SubmitAttemptRequest{Answers: answers})
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/test/attempts/%s/submit", attemptID), token, body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var att test.Attempt
		decodeBody(t, rec, &att)
		assert.Equal(t, test.StatusSubmitted, att.Status)
		assert.Equal(t, 2, att.Score)
		assert.Equal(t, 4, att.TotalPoints) // 2 + 1 + 1
		assert.Equal(t, 50, att.Percentage)
		require.Len(t, att.Answers, 3)
		assert.True(t, att.Answers[0].Correct)
		assert.False(t, att.Answers[1].Correct)
		assert.False(t, att.Answers[2].Correct) // essays always earn zero
		assert.NotNil(t, att.SubmittedAt)
	})

	t.Run("resubmission rejected", func(t *testing.T) {
		body := marshallObj(t, SubmitAttemptRequest{Answers: answers})
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/test/attempts/%s/submit", attemptID), token, body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marshallObj(t, httpErr{Error: test.ErrAttemptClosed.Error()}),
		}, rec)
	})

	t.Run("results include correct answers", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/test/attempts/%s/results", attemptID), token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res test.Result
		decodeBody(t, rec, &res)
		assert.Equal(t, attemptID, res.Attempt.ID)
		assert.Equal(t, "4", res.Test.Questions[0].CorrectAnswer)
	})
}

func Test_testApi_autoSubmit(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)
	tst := env.createTest(t, mathTest(), admin.ID)
	token := env.getToken(t, usr)

	req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/test/%s/start", tst.ID), token)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var started test.ActiveAttempt
	decodeBody(t, rec, &started)

	// timer ran out; nothing answered
	body := marshallObj(t, SubmitAttemptRequest{IsAuto: true})
	req, rec = newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/test/attempts/%s/submit", started.Attempt.ID), token, body)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var att test.Attempt
	decodeBody(t, rec, &att)
	assert.Equal(t, test.StatusAutoSubmitted, att.Status)
	assert.Equal(t, 0, att.Score)
	assert.Equal(t, 0, att.Percentage)
}
