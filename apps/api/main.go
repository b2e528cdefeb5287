package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/trezcool/hocsinh/apps/api/echo"
	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/location"
	"github.com/trezcool/hocsinh/core/otp"
	"github.com/trezcool/hocsinh/core/student"
	appfs "github.com/trezcool/hocsinh/fs"
	emailsvc "github.com/trezcool/hocsinh/services/email"
	exportsvc "github.com/trezcool/hocsinh/services/export"
	locationsvc "github.com/trezcool/hocsinh/services/location"
	logsvc "github.com/trezcool/hocsinh/services/logger"
	"github.com/trezcool/hocsinh/storage/database"
	sqlxrepos "github.com/trezcool/hocsinh/storage/database/sqlx"
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
	dialect := database.DialectFor(conf)
	db, err := setUpDB(conf, dialect, dbLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	mailSvc := emailsvc.New(conf, logger)
	studentSvc := student.NewService(db, sqlxrepos.NewStudentRepository(db, dialect), logger)

	var otpStore otp.Store = otp.NewMemoryStore()
	if conf.OTP.Store == "database" {
		otpStore = sqlxrepos.NewOTPStore(db, dialect)
	}
	otpSvc := otp.NewService(otp.NewGate(otpStore, conf.OTP.TTL, conf.Server.SessionTTL), mailSvc, conf, logger)

	catalog := location.NewCatalog(locationsvc.NewFileSource(conf.LocationsDir, logger), location.NewCache(), logger)

	renderer := exportsvc.NewRenderer(conf, logger)
	cleaner := exportsvc.NewCleaner(conf.Export.CleanupDelay, logger)
	defer cleaner.Stop()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)

	// warm the location cache so the first form load is fast
	snap := catalog.Latest(context.Background(), false)
	logger.Info(fmt.Sprintf("locations loaded from %s: %d provinces", snap.Meta.Source, snap.Meta.Provinces))

	// =========================================================================
	// Start Export Sweeper

	sweeper := exportsvc.NewSweeper(conf, logger)
	if err = sweeper.Start(conf.Export.SweepSchedule); err != nil {
		logger.Fatal(fmt.Sprintf("starting export sweeper: %v", err), err)
	}
	defer sweeper.Stop()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus metrics.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(dialect.Name())

	http.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			StudentSvc: studentSvc,
			OTPSvc:     otpSvc,
			Catalog:    catalog,
			Renderer:   renderer,
			Cleaner:    cleaner,
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
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config, dialect database.Dialect, logger core.Logger) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(context.Background(), db, dialect, logger); err != nil {
		_ = db.Close()
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
