package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
	logsvc "github.com/AlriyanKhan/Ai-attendance/services/logger"
	"github.com/AlriyanKhan/Ai-attendance/storage/database"
	"github.com/AlriyanKhan/Ai-attendance/storage/database/feed"
	firestoredb "github.com/AlriyanKhan/Ai-attendance/storage/database/firestoredb"
	"github.com/AlriyanKhan/Ai-attendance/storage/database/sqlxdb"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()

	logger = logsvc.NewRollbarLogger(logsvc.ComponentAdmin, os.Stdout, conf)

	// set up DB
	cli, closeDB, err := newCommandLine(conf)
	errAndDie(err)

	// start CLI
	err = cli.run(os.Args)
	if cerr := closeDB(); cerr != nil {
		logger.Error("closing database", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Info("\nerror: " + err.Error() + "\n")
		}
		os.Exit(1)
	}
}

// newCommandLine opens the configured store. Migrations are only available on the SQL backends.
func newCommandLine(conf *core.Config) (*commandLine, func() error, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch conf.Database.Backend {
	case database.BackendFirestore:
		client, err := firestoredb.Open(ctx, conf)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening firestore")
		}
		return &commandLine{
			usrRepo:  firestoredb.NewUserRepository(client),
			credRepo: firestoredb.NewCredentialRepository(client),
			records:  firestoredb.NewAttendanceRepository(client),
		}, client.Close, nil

	case database.BackendPostgres, database.BackendSQLite:
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, nil, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening database")
		}
		if err = database.Ping(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, errors.Wrap(err, "pinging database")
		}
		return &commandLine{
			db:       db,
			usrRepo:  sqlxdb.NewUserRepository(db),
			credRepo: sqlxdb.NewCredentialRepository(db),
			records:  sqlxdb.NewAttendanceRepository(db, feed.New()),
		}, db.Close, nil

	default:
		// the memory backend lives and dies with the API process
		return nil, nil, errors.Wrap(database.ErrUnsupportedBackend, conf.Database.Backend)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
