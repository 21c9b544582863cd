package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/username/taxfolio/declaration/src/cli"
	"github.com/username/taxfolio/declaration/src/config"
	"github.com/username/taxfolio/declaration/src/logger"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cli.Register(commander)

	flag.Parse()

	config.LoadConfig()
	// stdout carries command output; logs go to stderr
	logger.InitLoggerTo(os.Stderr, config.Cfg.LogLevel)

	os.Exit(int(commander.Execute(context.Background())))
}
