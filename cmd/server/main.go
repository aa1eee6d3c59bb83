package main

import (
	"github.com/sanadlabs/sanad/internal/server"
	"github.com/sanadlabs/sanad/internal/util"
	"github.com/sanadlabs/sanad/pkg/logger"
	"github.com/sanadlabs/sanad/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
