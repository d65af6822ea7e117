package main

import (
	"bufio"
	"os"

	"github.com/AlriyanKhan/Ai-attendance/client"
	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/capture"
	logsvc "github.com/AlriyanKhan/Ai-attendance/services/logger"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()

	logger = logsvc.NewRollbarLogger(logsvc.ComponentAttendctl, os.Stderr, conf)

	c := client.New(conf)
	defer c.Close()
	if err := c.Restore(); err != nil {
		logger.Warn("restoring session: " + err.Error())
	}

	cli := commandLine{
		client: c,
		camera: capture.NewExecCamera(conf),
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			cli.printError(err)
		}
		c.Close()
		os.Exit(1)
	}
}
