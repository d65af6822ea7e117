package main

import (
	"context"
	"fmt"

	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
)

func (cli *commandLine) bootstrap() error {
	created, err := attendance.EnsureInitialized(context.Background(), cli.records)
	if err != nil {
		return err
	}
	if created {
		fmt.Println("attendance collection initialized")
	} else {
		fmt.Println("attendance collection already initialized")
	}
	return nil
}
