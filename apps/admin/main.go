package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/student"
	exportsvc "github.com/trezcool/hocsinh/services/export"
	logsvc "github.com/trezcool/hocsinh/services/logger"
	"github.com/trezcool/hocsinh/storage/database"
	sqlxrepos "github.com/trezcool/hocsinh/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	dialect := database.DialectFor(conf)

	// start CLI
	cli := commandLine{
		db:         db,
		dialect:    dialect,
		studentSvc: student.NewService(db, sqlxrepos.NewStudentRepository(db, dialect), logger),
		sweeper:    exportsvc.NewSweeper(conf, logger),
		logger:     logger,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}
