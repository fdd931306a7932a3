// fireside - a small chat server that keeps its conversations.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/fireside/internal/chat"
	"github.com/jeranaias/fireside/internal/cli"
	"github.com/jeranaias/fireside/internal/cloud"
	"github.com/jeranaias/fireside/internal/config"
	"github.com/jeranaias/fireside/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cmd, args := cli.Parse(argv)

	switch cmd {
	case cli.CmdHelp:
		_ = cli.HandleHelp(os.Stdout)
		return cli.ExitSuccess
	case cli.CmdVersion:
		return finish(args, cli.HandleVersion(args, os.Stdout))
	case cli.CmdUnknown:
		cli.PrintUsage(os.Stderr)
		return finish(args, &cli.UsageError{Message: fmt.Sprintf("unknown command %q", args.Name)})
	}

	if args.Quiet && cmd != cli.CmdServe {
		log.SetOutput(io.Discard)
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return finish(args, err)
	}

	if cmd == cli.CmdConfig {
		return finish(args, cli.HandleConfig(cfg, args, os.Stdout))
	}

	app, cleanup, err := buildApp(cfg)
	if err != nil {
		return finish(args, err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case cli.CmdServe:
		err = cli.HandleServe(ctx, app, args)
	case cli.CmdAsk:
		err = cli.HandleAsk(ctx, app, args)
	case cli.CmdHistory:
		err = cli.HandleHistory(ctx, app, args)
	}
	return finish(args, err)
}

// loadConfig honours --config, otherwise ~/.fireside. A broken config file
// in the default location is reported and defaults are used.
func loadConfig(args cli.Args) (*config.Config, error) {
	if args.ConfigPath != "" {
		return config.LoadFromPath(args.ConfigPath)
	}
	cfg, err := config.Load()
	if cfg == nil {
		return nil, err
	}
	if err != nil {
		log.Printf("CONFIG_LOAD_WARNING | error=%v using=defaults", err)
	}
	return cfg, nil
}

// buildApp opens storage and the model collaborator.
func buildApp(cfg *config.Config) (*cli.App, func(), error) {
	bytes, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	store := storage.NewConversationStore(bytes).WithSummaryLength(cfg.History.SummaryLength)

	model, err := cloud.New(cfg.Model)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("model provider: %w", err)
	}

	app := &cli.App{
		Config:  cfg,
		Turns:   chat.NewOrchestrator(store, model),
		History: store,
		Out:     os.Stdout,
		Err:     os.Stderr,
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Printf("STORAGE_CLOSE_ERROR | error=%v", err)
		}
	}
	return app, cleanup, nil
}

func finish(args cli.Args, err error) int {
	if err == nil {
		return cli.ExitSuccess
	}
	out := io.Writer(os.Stderr)
	if args.JSON {
		out = os.Stdout
	}
	cli.DisplayError(out, args.Name, err, args.JSON)
	return cli.GetExitCode(err)
}
