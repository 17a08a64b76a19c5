package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/studentbuddy/backend/apps/api/echo"
	"github.com/studentbuddy/backend/core"
	"github.com/studentbuddy/backend/core/activation"
	"github.com/studentbuddy/backend/core/mentor"
	"github.com/studentbuddy/backend/core/notification"
	"github.com/studentbuddy/backend/core/student"
	"github.com/studentbuddy/backend/core/test"
	"github.com/studentbuddy/backend/core/todo"
	"github.com/studentbuddy/backend/core/user"
	aisvc "github.com/studentbuddy/backend/services/ai"
	emailsvc "github.com/studentbuddy/backend/services/email"
	logsvc "github.com/studentbuddy/backend/services/logger"
	realtimesvc "github.com/studentbuddy/backend/services/realtime"
	"github.com/studentbuddy/backend/storage/database"
	pgrepos "github.com/studentbuddy/backend/storage/database/postgres"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	dbx := sqlx.NewDb(db, conf.Database.Engine)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var model mentor.ChatModel
	if conf.Gemini.ApiKey != "" {
		gemini, err := aisvc.NewGeminiModel(ctx, conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up chat model: %v", err), err)
		}
		defer func() { _ = gemini.Close() }()
		model = gemini
	} else {
		logger.Warn("no Gemini API key configured; mentor chat is disabled")
		model = aisvc.NewDisabledModel()
	}

	hub := realtimesvc.NewHub(logger)
	go hub.Run(ctx)

	codeSvc := activation.NewService(pgrepos.NewCodeRepository(dbx), conf)
	usrSvc := user.NewService(pgrepos.NewUserRepository(dbx), codeSvc, mailSvc, conf, logger)
	testSvc := test.NewService(pgrepos.NewTestRepository(dbx))
	mentorSvc := mentor.NewService(pgrepos.NewMentorRepository(dbx), codeSvc, mailSvc, model, hub, logger)
	todoSvc := todo.NewService(pgrepos.NewTodoRepository(dbx))
	notifSvc := notification.NewService(pgrepos.NewNotificationRepository(dbx), usrSvc, mailSvc, logger)
	studentSvc := student.NewService(pgrepos.NewStudentRepository(dbx), testSvc, mentorSvc, notifSvc, todoSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	test.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
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
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		shutCtx, shutCancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer shutCancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(shutCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
