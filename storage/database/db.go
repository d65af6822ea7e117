package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/AlriyanKhan/Ai-attendance/assets"
	"github.com/AlriyanKhan/Ai-attendance/core"
)

// Backends
const (
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"

	sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
)

var (
	gooseMu      sync.Mutex
	gooseRunFunc = goose.Run // mockable

	ErrUnsupportedBackend = errors.New("unsupported database backend")
)

// PostgresDSN builds the connection URL of `dbName`, optionally as the admin user.
func PostgresDSN(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   conf.Database.Engine,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func openPostgres(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	return sqlx.Open(driverPostgres, PostgresDSN(dbName, admin, conf))
}

// OpenSQLite opens the sqlite file at `fp` with a single connection.
func OpenSQLite(fp string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating database directory")
	}
	return openSQLite(fmt.Sprintf("file:%s?%s", fp, sqlitePragmas))
}

// OpenSQLiteMemory opens a private in-memory database named `name`. Used by tests.
func OpenSQLiteMemory(name string) (*sqlx.DB, error) {
	return openSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", url.PathEscape(name), sqlitePragmas))
}

func openSQLite(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverSQLite, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// Open connects to the configured SQL backend.
func Open(conf *core.Config) (*sqlx.DB, error) {
	switch conf.Database.Backend {
	case BackendPostgres:
		return openPostgres(conf.Database.Name, false, conf)
	case BackendSQLite:
		return OpenSQLite(conf.Database.Path)
	default:
		return nil, errors.Wrap(ErrUnsupportedBackend, conf.Database.Backend)
	}
}

// Ping waits for the database to be ready. Waits 100ms longer between each attempt.
func Ping(ctx context.Context, db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.PingContext(ctx)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sqlx.DB, query, name string) (bool, error) {
	var found bool
	err := db.Get(&found, query, name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

func createAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname=$1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sqlx.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname=$1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the postgres role & database of the app. Nothing to do for sqlite.
func CreateIfNotExist(ctx context.Context, conf *core.Config) error {
	if conf.Database.Backend != BackendPostgres {
		return nil
	}

	// connect as admin
	adminDB, err := openPostgres("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = adminDB.Close() }()

	if err = Ping(ctx, adminDB); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(adminDB, conf); err != nil {
		return errors.Wrap(err, "creating app user")
	}

	// create DB as app user
	db, err := openPostgres("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()
	return errors.Wrap(createDB(db, conf), "creating database")
}

func migrationsDir(db *sqlx.DB) (string, string) {
	if db.DriverName() == driverPostgres {
		return path.Join(assets.MigrationsDir, "postgres"), "postgres"
	}
	return path.Join(assets.MigrationsDir, "sqlite"), "sqlite3"
}

// RunMigrations runs a goose command (up, down, status, version, redo, reset, up-to, down-to...)
// over the embedded migrations of the db's dialect.
func RunMigrations(command string, db *sqlx.DB, args ...string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, dialect := migrationsDir(db)
	goose.SetBaseFS(assets.FS)
	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	return gooseRunFunc(command, db.DB, dir, args...)
}

func Migrate(db *sqlx.DB) error {
	if err := RunMigrations("up", db); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
