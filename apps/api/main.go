package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"go.uber.org/dig"

	dig_container "github.com/AlriyanKhan/Ai-attendance/apps/api/di/dig"
	echoapi "github.com/AlriyanKhan/Ai-attendance/apps/api/echo"
	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
)

type app struct {
	dig.In
	Conf      *core.Config
	Logger    core.Logger
	Cleanup   *dig_container.Cleanup
	Shutdown  *dig_container.Shutdown
	Records   attendance.Repository
	Dashboard *attendance.Dashboard
	Server    echoapi.Server
}

func main() {
	c := dig_container.New()
	must(c.Invoke(run))
}

func run(a app) {
	conf, logger := a.Conf, a.Logger

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")
	defer a.Cleanup.Run(logger)

	core.ParseEmailTemplates(conf, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// tooling listing the collection needs it to exist
	if created, err := attendance.EnsureInitialized(ctx, a.Records); err != nil {
		logger.Error(fmt.Sprintf("initializing attendance records: %v", err), err)
	} else if created {
		logger.Info("attendance records initialized")
	}

	if err := a.Dashboard.Start(ctx); err != nil {
		logger.Error(fmt.Sprintf("starting dashboard: %v", err), err)
	}
	defer a.Dashboard.Stop()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("dbBackend").Set(conf.Database.Backend)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address))
		serverErrors <- a.Server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-a.Shutdown.C:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := a.Server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
