package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	. "github.com/studentbuddy/backend/apps/api/echo"
	"github.com/studentbuddy/backend/core"
	"github.com/studentbuddy/backend/core/activation"
	"github.com/studentbuddy/backend/core/mentor"
	"github.com/studentbuddy/backend/core/notification"
	"github.com/studentbuddy/backend/core/student"
	"github.com/studentbuddy/backend/core/test"
	"github.com/studentbuddy/backend/core/todo"
	"github.com/studentbuddy/backend/core/user"
	emailsvc "github.com/studentbuddy/backend/services/email"
	logsvc "github.com/studentbuddy/backend/services/logger"
	realtimesvc "github.com/studentbuddy/backend/services/realtime"
	inmemdb "github.com/studentbuddy/backend/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// fakeChatModel records what it was asked and replies with a canned
// message.
type fakeChatModel struct {
	reply        string
	err          error
	systemPrompt string
	history      []mentor.ChatMessage
	message      string
}

func (m *fakeChatModel) Reply(_ context.Context, systemPrompt string, history []mentor.ChatMessage, message string) (string, error) {
	m.systemPrompt = systemPrompt
	m.history = history
	m.message = message
	return m.reply, m.err
}

type testEnv struct {
	conf *core.Config
	app  Server

	usrSvc     *user.Service
	codeSvc    *activation.Service
	testSvc    *test.Service
	mentorSvc  *mentor.Service
	todoSvc    *todo.Service
	notifSvc   *notification.Service
	studentSvc *student.Service
	model      *fakeChatModel
	hub        *realtimesvc.Hub
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	db := inmemdb.NewDB()

	emailsvc.ClearSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	model := &fakeChatModel{reply: "Let us break it down step by step."}
	hub := realtimesvc.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	codeSvc := activation.NewService(inmemdb.NewCodeRepository(db), conf)
	usrSvc := user.NewService(inmemdb.NewUserRepository(db), codeSvc, mailSvc, conf, logger)
	testSvc := test.NewService(inmemdb.NewTestRepository(db))
	mentorSvc := mentor.NewService(inmemdb.NewMentorRepository(db), codeSvc, mailSvc, model, hub, logger)
	todoSvc := todo.NewService(inmemdb.NewTodoRepository(db))
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), usrSvc, mailSvc, logger)
	studentSvc := student.NewService(inmemdb.NewStudentRepository(db), testSvc, mentorSvc, notifSvc, todoSvc)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	test.InitValidators(validate, translator)
	core.ParseEmailTemplates(logger)
	user.LoadCommonPasswords(logger)

	app := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		StudentSvc: studentSvc,
		TestSvc:    testSvc,
		MentorSvc:  mentorSvc,
		TodoSvc:    todoSvc,
		NotifSvc:   notifSvc,
		Hub:        hub,
		Validate:   validate,
		Translator: translator,
	})

	return &testEnv{
		conf:       conf,
		app:        app,
		usrSvc:     usrSvc,
		codeSvc:    codeSvc,
		testSvc:    testSvc,
		mentorSvc:  mentorSvc,
		todoSvc:    todoSvc,
		notifSvc:   notifSvc,
		studentSvc: studentSvc,
		model:      model,
		hub:        hub,
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
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

func (env *testEnv) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(env.conf, GetUserClaims(env.conf, usr))
	require.NoError(t, err)
	return token
}

func (env *testEnv) createUser(t *testing.T, fullName, email, pwd, role string) user.User {
	t.Helper()
	usr, err := env.usrSvc.Create(context.Background(), user.NewUser{
		Email:    email,
		Password: pwd,
		FullName: fullName,
	}, role)
	require.NoError(t, err)
	return usr
}

func (env *testEnv) createStudent(t *testing.T, fullName, email string) user.User {
	t.Helper()
	usr := env.createUser(t, fullName, email, "G0pher!sFun", user.RoleStudent)
	_, err := env.studentSvc.CreateProfile(context.Background(), usr.ID, student.NewProfile{GradeLevel: "10th"})
	require.NoError(t, err)
	return usr
}

func (env *testEnv) createTest(t *testing.T, nt test.NewTest, createdBy string) test.Test {
	t.Helper()
	tst, err := env.testSvc.Create(context.Background(), nt, createdBy)
	require.NoError(t, err)
	return tst
}

func (env *testEnv) createMentor(t *testing.T, nm mentor.NewMentor, createdBy string) mentor.Mentor {
	t.Helper()
	m, err := env.mentorSvc.Create(context.Background(), nm, createdBy)
	require.NoError(t, err)
	return m
}

// activateMentor walks the full register/activate flow and returns the
// opened session.
func (env *testEnv) activateMentor(t *testing.T, usr user.User, mentorID string) mentor.ActivatedMentor {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.mentorSvc.Register(ctx, usr, mentorID))
	code := env.issueCode(t, usr, activation.TypeMentorActivation, mentorID)
	act, err := env.mentorSvc.Activate(ctx, usr, mentorID, code)
	require.NoError(t, err)
	return act
}

// issueCode issues a fresh activation code directly, bypassing email
// delivery.
func (env *testEnv) issueCode(t *testing.T, usr user.User, codeType, mentorID string) string {
	t.Helper()
	code, err := env.codeSvc.Issue(context.Background(), activation.Key{
		UserID:   usr.ID,
		Email:    usr.Email,
		Type:     codeType,
		MentorID: mentorID,
	})
	require.NoError(t, err)
	return code.Code
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return jsonEqual(j1, j2), nil
}

func jsonEqual(j1, j2 interface{}) bool {
	b1, err := json.Marshal(j1)
	if err != nil {
		return false
	}
	b2, err := json.Marshal(j2)
	if err != nil {
		return false
	}
	return bytes.Equal(b1, b2)
}

func timePtr(t time.Time) *time.Time { return &t }
func boolPtr(b bool) *bool           { return &b }
func strPtr(s string) *string        { return &s }
