package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZetoOfficial/texport/internal/app"
	"github.com/ZetoOfficial/texport/internal/cli"
	"github.com/ZetoOfficial/texport/internal/config"
	"github.com/ZetoOfficial/texport/internal/logger"
	"github.com/ZetoOfficial/texport/internal/storage"
	"github.com/ZetoOfficial/texport/internal/watch"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(config.DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.Fatalf("load env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	args, err := cli.ParseArgs(flag.CommandLine, os.Args[1:], cfg)
	if err != nil {
		logrus.Fatal(err)
	}

	logCloser, err := logger.Setup(args.LogLevel, args.LogFile)
	if err != nil {
		logrus.Fatal(err)
	}
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store app.Storage
	if args.NeedsStorage() {
		if !cfg.Neo4jEnabled() {
			logrus.Fatal("NEO4J_URI is not set")
		}
		neo4jStorage, err := storage.NewNeo4jStorage(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			logrus.Fatal(err)
		}
		if err := neo4jStorage.Ping(ctx); err != nil {
			logrus.Fatalf("Could not connect to neo4j: %v", err)
		}
		logrus.Info("Connected to neo4j")
		defer func() {
			if err := neo4jStorage.Close(ctx); err != nil {
				logrus.Warningf("close neo4j storage: %v", err)
			}
		}()
		store = neo4jStorage
	}

	myApp := app.NewApp(store)

	if args.List {
		if err := myApp.List(os.Stdout, args.App.BaseDir, args.App.Title); err != nil {
			logrus.Fatal(err)
		}
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logrus.Infof("Received signal: %s. Shutting down...", sig)
		cancel()
	}()

	export := func(ctx context.Context) error {
		_, err := myApp.Run(ctx, args.App)
		return err
	}

	if err := export(ctx); err != nil {
		logrus.Fatal(err)
	}

	if args.Watch {
		if err := watch.New(args.App.Input, export).Run(ctx); err != nil {
			logrus.Fatal(err)
		}
	}

	logrus.Info("Done.")
}
