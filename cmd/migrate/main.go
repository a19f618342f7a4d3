package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"readly/internal/config"
	"readly/internal/database"
	"readly/internal/logger"

	"go.uber.org/zap"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: migrate up|down [--all]\n")
	flag.PrintDefaults()
}

func main() {
	all := flag.Bool("all", false, "revert every migration instead of only the latest (down only)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	dir := database.Direction(flag.Arg(0))
	if dir != database.Up && dir != database.Down {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	l := logger.Get()
	defer func() {
		_ = l.Sync()
	}()

	db, err := database.NewSQLXDB(cfg)
	if err != nil {
		l.Fatal("Failed to connect to database", zap.String("driver", cfg.DB.Driver), zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(context.Background(), db, dir, *all); err != nil {
		l.Fatal("Failed to run migrations", zap.Error(err))
	}
}
