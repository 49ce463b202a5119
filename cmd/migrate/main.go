package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/diagnosis/luxsuv-invites/pkg/config"
	"github.com/diagnosis/luxsuv-invites/pkg/database"
	"github.com/diagnosis/luxsuv-invites/pkg/logger"
)

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [-steps n] up|down\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.Load()
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	var err error
	switch flag.Arg(0) {
	case "up":
		err = database.Migrate(cfg.Database.URL)
	case "down":
		err = database.Rollback(cfg.Database.URL, *steps)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Migration failed", "direction", flag.Arg(0), "error", err)
		os.Exit(1)
	}
	logger.Info("Migration complete", "direction", flag.Arg(0))
}
