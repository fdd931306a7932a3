// commands.go - Handlers for serve, ask, history, config and version.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/fireside/internal/chat"
	"github.com/jeranaias/fireside/internal/cloud"
	"github.com/jeranaias/fireside/internal/config"
	"github.com/jeranaias/fireside/internal/conversation"
	"github.com/jeranaias/fireside/internal/export"
	"github.com/jeranaias/fireside/internal/server"
	"github.com/jeranaias/fireside/internal/util"
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
const ShutdownTimeout = 10 * time.Second

// App carries the collaborators a command may need.
type App struct {
	Config  *config.Config
	Turns   server.Turner
	History server.History

	Out io.Writer
	Err io.Writer
}

func (a *App) infof(args Args, format string, v ...any) {
	if args.Quiet || a.Err == nil {
		return
	}
	fmt.Fprintf(a.Err, format, v...)
}

// =============================================================================
// SERVE
// =============================================================================

// HandleServe runs the HTTP server until ctx is canceled.
func HandleServe(ctx context.Context, app *App, args Args) error {
	srv := server.New(app.Config.Server, app.Turns, app.History, server.Info{
		Version:        Version,
		StorageBackend: app.Config.Storage.Backend,
		ModelProvider:  app.Config.Model.Provider,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	app.infof(args, "fireside listening on http://%s\n", srv.Addr())

	select {
	case err := <-errCh:
		_ = srv.Shutdown(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	app.infof(args, "fireside stopped\n")
	return nil
}

// =============================================================================
// ASK
// =============================================================================

// HandleAsk runs a single turn and prints the reply.
func HandleAsk(ctx context.Context, app *App, args Args) error {
	p := args.Params
	prompt := JoinPositionalArgs(p, 0)
	if strings.TrimSpace(prompt) == "" {
		return usageErrorf("ask", "no question given")
	}

	settings, err := askSettings(p)
	if err != nil {
		return err
	}

	result, err := app.Turns.HandleTurn(ctx, chat.TurnRequest{
		ConversationID: p.Flag("conversation", "c"),
		Prompt:         prompt,
		Settings:       settings,
	})
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("ask", AskData{
			ConversationID: result.ConversationID,
			Response:       result.ResponseText,
			Model:          settings.Resolve(app.Config.Model).ModelID,
		}).Print(app.Out)
	}

	fmt.Fprintln(app.Out, result.ResponseText)
	app.infof(args, "\nconversation: %s\n", result.ConversationID)
	return nil
}

// askSettings builds per-turn overrides from flags. It returns nil when no
// override flag was given.
func askSettings(p *ArgParser) (*cloud.Settings, error) {
	var s cloud.Settings
	set := false

	if m := p.Flag("model", "m"); m != "" {
		s.ModelID = m
		set = true
	}
	if t, ok, err := p.FlagFloat("temperature", "t"); err != nil {
		return nil, &UsageError{Command: "ask", Message: err.Error()}
	} else if ok {
		s.Temperature = &t
		set = true
	}
	if n, ok, err := p.FlagInt("max-tokens"); err != nil {
		return nil, &UsageError{Command: "ask", Message: err.Error()}
	} else if ok {
		s.MaxOutputTokens = &n
		set = true
	}

	if !set {
		return nil, nil
	}
	return &s, nil
}

// =============================================================================
// HISTORY
// =============================================================================

const (
	historyIDWidth      = 36
	historyWhenWidth    = 16
	historySummaryWidth = 60
)

// HandleHistory lists conversations or prints one.
func HandleHistory(ctx context.Context, app *App, args Args) error {
	p := args.Params
	switch p.Subcommand() {
	case "", "list", "ls":
		return historyList(ctx, app, args)
	case "show", "get":
		return historyShow(ctx, app, args, p.Positional(1))
	case "export":
		return historyExport(ctx, app, args, p.Positional(1))
	default:
		return usageErrorf("history", "unknown subcommand %q (want list, show or export)", p.Subcommand())
	}
}

func historyList(ctx context.Context, app *App, args Args) error {
	list := app.History.List(ctx)
	if list == nil {
		list = []conversation.Summary{}
	}
	if args.JSON {
		return NewJSONResponse("history list", list).Print(app.Out)
	}
	if len(list) == 0 {
		fmt.Fprintln(app.Out, "No conversations yet.")
		return nil
	}

	fmt.Fprintf(app.Out, "%s  %s  %s\n",
		util.PadRight("ID", historyIDWidth),
		util.PadRight("LAST MODIFIED", historyWhenWidth),
		"SUMMARY")
	for _, s := range list {
		fmt.Fprintf(app.Out, "%s  %s  %s\n",
			util.PadRight(s.ID, historyIDWidth),
			util.PadRight(s.LastModified, historyWhenWidth),
			util.FitWidth(util.SingleLine(s.Summary), historySummaryWidth))
	}
	return nil
}

func historyShow(ctx context.Context, app *App, args Args, raw string) error {
	if raw == "" {
		return usageErrorf("history show", "missing conversation id")
	}
	id, err := conversation.NormalizeID(raw)
	if err != nil {
		return &UsageError{Command: "history show", Message: err.Error()}
	}
	turns, ok := app.History.Turns(ctx, id)
	if !ok {
		return &NotFoundError{Resource: "conversation", ID: id}
	}

	if args.JSON {
		if turns == nil {
			turns = []conversation.Turn{}
		}
		return NewJSONResponse("history show", HistoryShowData{ID: id, Turns: turns}).Print(app.Out)
	}

	for i, turn := range turns {
		if i > 0 {
			fmt.Fprintln(app.Out)
		}
		fmt.Fprintf(app.Out, "[%s]\n%s\n", turn.Role, turn.Text)
	}
	return nil
}

// historyExport writes the conversation to --output DIR, or to stdout.
func historyExport(ctx context.Context, app *App, args Args, raw string) error {
	if raw == "" {
		return usageErrorf("history export", "missing conversation id")
	}
	id, err := conversation.NormalizeID(raw)
	if err != nil {
		return &UsageError{Command: "history export", Message: err.Error()}
	}

	p := args.Params
	opts := export.DefaultOptions()
	opts.IncludeMetadata = !p.BoolFlag("no-metadata")
	exporter, err := export.ForFormat(p.Flag("format", "f"), opts)
	if err != nil {
		return &UsageError{Command: "history export", Message: err.Error()}
	}

	turns, ok := app.History.Turns(ctx, id)
	if !ok {
		return &NotFoundError{Resource: "conversation", ID: id}
	}
	doc := export.NewDocument(id, turns)

	dir := p.Flag("output", "o")
	if dir == "" {
		content, err := exporter.Export(doc)
		if err != nil {
			return err
		}
		_, err = app.Out.Write(content)
		return err
	}

	path, err := export.ExportToFile(doc, exporter, dir, time.Now())
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("history export", ConfigPathData{Path: path, Exists: true}).Print(app.Out)
	}
	fmt.Fprintf(app.Out, "Exported to %s\n", path)
	return nil
}

// =============================================================================
// CONFIG
// =============================================================================

// HandleConfig shows or initialises configuration. It does not need a
// model or a store.
func HandleConfig(cfg *config.Config, args Args, out io.Writer) error {
	p := args.Params
	switch p.Subcommand() {
	case "", "show":
		if args.JSON {
			return NewJSONResponse("config show", cfg.Redacted()).Print(out)
		}
		return toml.NewEncoder(out).Encode(cfg.Redacted())

	case "get":
		key := p.Positional(1)
		if key == "" {
			return usageErrorf("config get", "missing key (e.g. server.port)")
		}
		val, err := cfg.Get(key)
		if err != nil {
			return &UsageError{Command: "config get", Message: err.Error()}
		}
		if args.JSON {
			return NewJSONResponse("config get", map[string]any{key: val}).Print(out)
		}
		if val == nil {
			fmt.Fprintln(out, "(unset)")
			return nil
		}
		fmt.Fprintln(out, val)
		return nil

	case "path":
		path, err := configPath(args)
		if err != nil {
			return err
		}
		_, statErr := os.Stat(path)
		if args.JSON {
			return NewJSONResponse("config path", ConfigPathData{Path: path, Exists: statErr == nil}).Print(out)
		}
		fmt.Fprintln(out, path)
		return nil

	case "init":
		path, err := configPath(args)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !p.BoolFlag("force", "f") {
			return usageErrorf("config init", "%s already exists (use --force to overwrite)", path)
		}
		save := config.SaveTOML
		if strings.HasSuffix(path, ".json") {
			save = config.SaveJSON
		}
		if err := save(config.Default(), path); err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config init", ConfigPathData{Path: path, Exists: true}).Print(out)
		}
		fmt.Fprintf(out, "Wrote %s\n", path)
		return nil

	default:
		return usageErrorf("config", "unknown subcommand %q (want show, get, path or init)", p.Subcommand())
	}
}

func configPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

// =============================================================================
// VERSION / HELP
// =============================================================================

// HandleVersion prints version information.
func HandleVersion(args Args, out io.Writer) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Print(out)
	}
	PrintVersion(out)
	return nil
}

// HandleHelp prints usage.
func HandleHelp(out io.Writer) error {
	PrintUsage(out)
	return nil
}
