package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/studentbuddy/backend/apps/api/echo"
	"github.com/studentbuddy/backend/core/activation"
	"github.com/studentbuddy/backend/core/mentor"
	"github.com/studentbuddy/backend/core/user"
	emailsvc "github.com/studentbuddy/backend/services/email"
)

func mathMentor() mentor.NewMentor {
	return mentor.NewMentor{
		Name:         "Professor Pi",
		Domain:       "Math",
		Level:        mentor.LevelIntermediate,
		Description:  "Patient algebra tutor",
		SystemPrompt: "You are Professor Pi, a patient math tutor.",
	}
}

func Test_mentorApi_available(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)

	env.createMentor(t, mathMentor(), admin.ID)
	retired := mathMentor()
	retired.Name = "Retired Sage"
	retired.IsActive = boolPtr(false)
	env.createMentor(t, retired, admin.ID)

	req, rec := newAuthRequest(http.MethodGet, "/v1/mentor/available", env.getToken(t, usr))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var mentors []mentor.Mentor
	decodeBody(t, rec, &mentors)
	require.Len(t, mentors, 1)
	assert.Equal(t, "Professor Pi", mentors[0].Name)
	assert.Empty(t, mentors[0].SystemPrompt, "system prompt must never reach students")
}

func Test_mentorApi_registerAndActivate(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)
	m := env.createMentor(t, mathMentor(), admin.ID)
	token := env.getToken(t, usr)

	t.Run("register sends the activation code", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/mentor/%s/register", m.ID), token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		require.Len(t, emailsvc.SentMessages, 1)
		msg := emailsvc.SentMessages[0]
		assert.Equal(t, usr.Email, msg.To[0].Address)
		assert.Contains(t, msg.TextContent, m.Name)
	})

	t.Run("wrong code", func(t *testing.T) {
		body := marshallObj(t, ActivateMentorRequest{Code: "000000"})
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/mentor/%s/activate", m.ID), token, body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: activation.ErrCodeInvalid.Error()}),
		}, rec)
	})

	t.Run("ok", func(t *testing.T) {
		code := env.issueCode(t, usr, activation.TypeMentorActivation, m.ID)
		body := marshallObj(t, ActivateMentorRequest{Code: code})
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/mentor/%s/activate", m.ID), token, body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var activated mentor.ActivatedMentor
		decodeBody(t, rec, &activated)
		assert.NotEmpty(t, activated.Activation.SessionID)
		assert.True(t, activated.Activation.IsActive)
		assert.Empty(t, activated.Mentor.SystemPrompt)
	})

	t.Run("re-register rejected once activated", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/mentor/%s/register", m.ID), token)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marshallObj(t, httpErr{Error: mentor.ErrMentorAlreadyActivated.Error()}),
		}, rec)
	})

	t.Run("activated listing", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/mentor/activated", token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var activated []mentor.ActivatedMentor
		decodeBody(t, rec, &activated)
		require.Len(t, activated, 1)
		assert.Equal(t, m.ID, activated[0].Mentor.ID)
	})
}

func Test_mentorApi_chat(t *testing.T) {
	env := setup(t)

	usr := env.createStudent(t, "Jane Doe", "jdoe@test.cd")
	intruder := env.createStudent(t, "Nosy One", "nosy@test.cd")
	admin := env.createUser(t, "Admin", "admin@test.cd", "G0pher!sFun", user.RoleAdmin)
	m := env.createMentor(t, mathMentor(), admin.ID)
	act := env.activateMentor(t, usr, m.ID)
	sessionID := act.Activation.SessionID
	token := env.getToken(t, usr)

	t.Run("foreign session is hidden", func(t *testing.T) {
		body := marshallObj(t, ChatMessageRequest{Message: "hi"})
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/mentor/chat/%s/message", sessionID), env.getToken(t, intruder), body)
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: mentor.ErrSessionNotFound.Error()}),
		}, rec)
	})

	t.Run("first message primes the model with the system prompt", func(t *testing.T) {
		body := marshallObj(t, ChatMessageRequest{Message: "What is a slope?"})
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/mentor/chat/%s/message", sessionID), token, body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var exchange mentor.ChatExchange
		decodeBody(t, rec, &exchange)
		assert.Equal(t, mentor.SenderUser, exchange.UserMessage.Sender)
		assert.Equal(t, "What is a slope?", exchange.UserMessage.Message)
		assert.Equal(t, mentor.SenderMentor, exchange.MentorMessage.Sender)
		assert.Equal(t, env.model.reply, exchange.MentorMessage.Message)

		assert.Equal(t, m.SystemPrompt, env.model.systemPrompt)
		assert.Empty(t, env.model.history)
	})

	t.Run("second message replays the history", func(t *testing.T) {
		body := marshallObj(t, ChatMessageRequest{Message: "And an intercept?"})
		req, rec := newAuthRequest(http.MethodPost, fmt.Sprintf("/v1/mentor/chat/%s/message", sessionID), token, body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		require.Len(t, env.model.history, 2) // prior exchange, oldest first
		assert.Equal(t, mentor.SenderUser, env.model.history[0].Sender)
		assert.Equal(t, mentor.SenderMentor, env.model.history[1].Sender)
	})

	t.Run("session stats track every round trip", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/mentor/activated", token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var activated []mentor.ActivatedMentor
		decodeBody(t, rec, &activated)
		require.Len(t, activated, 1)
		assert.Equal(t, 4, activated[0].Activation.TotalMessages)
		assert.NotNil(t, activated[0].Activation.LastInteraction)
	})

	t.Run("history is chronological", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/mentor/chat/%s/history", sessionID), token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var history []mentor.ChatMessage
		decodeBody(t, rec, &history)
		require.Len(t, history, 4)
		assert.Equal(t, "What is a slope?", history[0].Message)
		assert.Equal(t, "And an intercept?", history[2].Message)
	})
}
