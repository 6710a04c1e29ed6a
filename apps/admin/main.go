package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/cohort"
	logsvc "github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/services/logger"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/storage/database"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/storage/database/sqlxrepos"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.Conf

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	sqlxDB := sqlx.NewDb(db, conf.Database.Engine)
	chtRepo := sqlxrepos.NewCohortRepository(sqlxDB)
	svyRepo := sqlxrepos.NewSurveyRepository(sqlxDB)

	svcLogger := logsvc.NewRollbarLogger(logger, conf)
	svcLogger.Enable(false) // no remote reporting from the CLI

	// start CLI
	cli := commandLine{
		conf:    conf,
		db:      db,
		usrRepo: sqlxrepos.NewUserRepository(sqlxDB),
		chtRepo: chtRepo,
		chtSvc:  cohort.NewService(chtRepo, svyRepo, conf, svcLogger),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
