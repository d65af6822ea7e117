package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/AlriyanKhan/Ai-attendance/apps/api/echo"
	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
	blobsvc "github.com/AlriyanKhan/Ai-attendance/services/blob"
	emailsvc "github.com/AlriyanKhan/Ai-attendance/services/email"
	identitysvc "github.com/AlriyanKhan/Ai-attendance/services/identity"
	insightsvc "github.com/AlriyanKhan/Ai-attendance/services/insight"
	logsvc "github.com/AlriyanKhan/Ai-attendance/services/logger"
	visionsvc "github.com/AlriyanKhan/Ai-attendance/services/vision"
	"github.com/AlriyanKhan/Ai-attendance/storage/database"
	"github.com/AlriyanKhan/Ai-attendance/storage/database/feed"
	firestoredb "github.com/AlriyanKhan/Ai-attendance/storage/database/firestoredb"
	inmemdb "github.com/AlriyanKhan/Ai-attendance/storage/database/inmem"
	"github.com/AlriyanKhan/Ai-attendance/storage/database/sqlxdb"
)

var setUpTimeout = 30 * time.Second

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Cleanup collects the closers of the resources opened while building the container.
type Cleanup struct {
	closers []func() error
}

func (c *Cleanup) Add(closer func() error) {
	c.closers = append(c.closers, closer)
}

// Run closes every resource, the last opened first.
func (c *Cleanup) Run(logger core.Logger) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Error(fmt.Sprintf("cleaning up: %v", err), err)
		}
	}
}

// Shutdown receives OS termination signals and internal shutdown requests.
type Shutdown struct {
	C chan os.Signal
}

func newShutdown() *Shutdown {
	s := &Shutdown{C: make(chan os.Signal, 1)}
	signal.Notify(s.C, os.Interrupt, syscall.SIGTERM)
	return s
}

// Signal asks for a graceful shutdown. It never blocks.
func (s *Shutdown) Signal() {
	select {
	case s.C <- syscall.SIGTERM:
	default:
	}
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(logsvc.ComponentAPI, os.Stdout, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(logsvc.ComponentDB, os.Stdout, conf)
}

type Stores struct {
	dig.Out
	Users       user.Repository
	Credentials user.CredentialRepository
	Records     attendance.Repository
}

// newStores opens the configured record store backend.
func newStores(conf *core.Config, cleanup *Cleanup, loggerParam DBLoggerParam) (Stores, error) {
	ctx, cancel := context.WithTimeout(context.Background(), setUpTimeout)
	defer cancel()

	switch conf.Database.Backend {
	case database.BackendMemory:
		db, err := inmemdb.Open()
		if err != nil {
			return Stores{}, errors.Wrap(err, "opening in-memory database")
		}
		cleanup.Add(db.Close)
		return Stores{
			Users:       inmemdb.NewUserRepository(db),
			Credentials: inmemdb.NewCredentialRepository(db),
			Records:     inmemdb.NewAttendanceRepository(db),
		}, nil

	case database.BackendFirestore:
		client, err := firestoredb.Open(ctx, conf)
		if err != nil {
			return Stores{}, errors.Wrap(err, "opening firestore")
		}
		cleanup.Add(client.Close)
		return Stores{
			Users:       firestoredb.NewUserRepository(client),
			Credentials: firestoredb.NewCredentialRepository(client),
			Records:     firestoredb.NewAttendanceRepository(client),
		}, nil

	case database.BackendPostgres, database.BackendSQLite:
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return Stores{}, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(conf)
		if err != nil {
			return Stores{}, errors.Wrap(err, "opening database")
		}
		cleanup.Add(db.Close)
		if err = database.Ping(ctx, db); err != nil {
			return Stores{}, errors.Wrap(err, "pinging database")
		}
		if err = database.Migrate(db); err != nil {
			return Stores{}, errors.Wrap(err, "migrating database")
		}

		changes := feed.New()
		cleanup.Add(func() error {
			changes.Close()
			return nil
		})
		if conf.Database.Backend == database.BackendPostgres {
			// see writes of the other API processes
			listener := feed.NewPGListener(database.PostgresDSN(conf.Database.Name, false, conf), changes, loggerParam.Logger)
			if err = listener.Start(context.Background()); err != nil {
				return Stores{}, errors.Wrap(err, "starting postgres listener")
			}
			cleanup.Add(listener.Stop)
		}
		return Stores{
			Users:       sqlxdb.NewUserRepository(db),
			Credentials: sqlxdb.NewCredentialRepository(db),
			Records:     sqlxdb.NewAttendanceRepository(db, changes),
		}, nil

	default:
		return Stores{}, errors.Wrap(database.ErrUnsupportedBackend, conf.Database.Backend)
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newIdentityProvider(conf *core.Config, creds user.CredentialRepository) user.IdentityProvider {
	if conf.Identity.Provider == identitysvc.ProviderFirebase {
		return identitysvc.NewFirebaseProvider(conf)
	}
	return identitysvc.NewLocalProvider(creds)
}

func newBlobSink(conf *core.Config, cleanup *Cleanup) (attendance.BlobSink, error) {
	if conf.Blob.Backend == blobsvc.BackendGCS {
		sink, err := blobsvc.NewGCSSink(context.Background(), conf)
		if err != nil {
			return nil, errors.Wrap(err, "opening blob bucket")
		}
		cleanup.Add(sink.Close)
		return sink, nil
	}
	return blobsvc.NewLocalSink(conf), nil
}

func newInsightGenerator(conf *core.Config, cleanup *Cleanup) (attendance.InsightGenerator, error) {
	gen, err := insightsvc.NewGenerator(context.Background(), conf)
	if err != nil {
		return nil, errors.Wrap(err, "creating insight generator")
	}
	cleanup.Add(gen.Close)
	return gen, nil
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	return validate
}

func newPipelines(
	conf *core.Config,
	blobs attendance.BlobSink,
	detector attendance.FaceDetector,
	insights attendance.InsightGenerator,
	records attendance.Repository,
	logger core.Logger,
) *attendance.Pipelines {
	return attendance.NewPipelines(blobs, detector, insights, records, logger, attendance.NewPipelineConfig(conf))
}

type ServerParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Shutdown   *Shutdown
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    user.Service
	Records    attendance.Repository
	Pipelines  *attendance.Pipelines
	Dashboard  *attendance.Dashboard
}

func newServer(p ServerParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:           p.Conf,
		Logger:         p.Logger,
		SignalShutdown: p.Shutdown.Signal,
		Validate:       p.Validate,
		Translator:     p.Translator,
		UserSvc:        p.UserSvc,
		Records:        p.Records,
		Pipelines:      p.Pipelines,
		Dashboard:      p.Dashboard,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(func() *Cleanup { return new(Cleanup) }))
	must(c.Provide(newShutdown))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStores))
	must(c.Provide(newEmailService))
	must(c.Provide(newIdentityProvider))
	must(c.Provide(newBlobSink))
	must(c.Provide(visionsvc.NewDetector))
	must(c.Provide(newInsightGenerator))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(newPipelines))
	must(c.Provide(attendance.NewDashboard))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
