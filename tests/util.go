package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/student"
	"github.com/trezcool/hocsinh/services/logger"
	"github.com/trezcool/hocsinh/storage/database"
)

// NewConfig returns a test configuration on an in-memory SQLite database.
func NewConfig() *core.Config {
	conf := &core.Config{
		Env:        "TEST",
		TestMode:   true,
		AppName:    "Hocsinh",
		SchoolName: "THPT Test",
		SecretKey:  "test-secret",
	}
	conf.Server.SessionTTL = 24 * time.Hour
	conf.Server.RequireAdminToken = true
	conf.Database.Engine = "sqlite"
	conf.Database.Path = ":memory:"
	conf.Email.Backend = "console"
	conf.Email.DefaultFromEmail = "noreply@test.vn"
	conf.OTP.Store = "memory"
	conf.OTP.TTL = 5 * time.Minute
	conf.OTP.AdminRaw = "admin@test.vn:password123"
	conf.OTP.Debug = true
	conf.OTP.VerifyRate = time.Millisecond
	conf.OTP.VerifyBurst = 100
	conf.Export.CleanupDelay = time.Minute
	conf.Export.MaxAge = time.Minute
	conf.Export.SweepSchedule = "@every 1m"
	return conf
}

// NewLogger returns a silent logger that never reports.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// PrepareDB opens a migrated in-memory SQLite database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db, database.SQLite, NewLogger(NewConfig())); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// CreateStudent stores `fields` (external keys) for `email` and returns the stored record.
func CreateStudent(
	t *testing.T,
	repo student.Repository,
	email string,
	fields map[string]interface{},
	createdAt ...time.Time,
) student.Record {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}

	rec, errs := student.ToInternal(fields)
	if len(errs) > 0 {
		t.Fatalf("CreateStudent() failed: %v", errs)
	}
	rec[student.ColEmail] = email

	ctx := context.Background()
	id, err := repo.Create(ctx, rec, tstamp)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	stored, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return stored
}
