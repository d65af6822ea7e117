package main

import (
	"errors"

	"github.com/AlriyanKhan/Ai-attendance/storage/database"
)

var (
	migrateFunc = database.RunMigrations // mockable

	errNoSQL = errors.New("migrations only apply to the postgres and sqlite backends")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQL
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return migrateFunc(args[0], cli.db, arguments...)
}
