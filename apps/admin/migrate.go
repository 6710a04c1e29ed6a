package main

import (
	"github.com/pressly/goose/v3"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/fs"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) createDB() error {
	return database.CreateIfNotExist(cli.conf)
}

func (cli *commandLine) migrate(args []string) error {
	dialect := cli.conf.Database.Engine
	if dialect == database.EngineSQLite {
		dialect = "sqlite3" // goose's name for it
	}
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, "migrations/"+cli.conf.Database.Engine, arguments...)
}
