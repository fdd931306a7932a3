// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and usage text for fireside.
package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdServe Command = iota
	CmdAsk
	CmdHistory
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

func (c Command) String() string {
	switch c {
	case CmdServe:
		return "serve"
	case CmdAsk:
		return "ask"
	case CmdHistory:
		return "history"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	JSON       bool   // Output in JSON format
	Quiet      bool   // Suppress informational output on stderr
	ConfigPath string // Explicit config file, overrides ~/.fireside

	// Name is the command word as typed, for error messages.
	Name string

	// Params holds everything after the command word.
	Params *ArgParser
}

const usageText = `fireside - a small chat server with saved conversations

Usage:
  fireside [serve]                    Start the HTTP server (default)
  fireside ask "question"             Ask a single question
    -c, --conversation ID             Continue an existing conversation
    -m, --model MODEL                 Model id for this turn
    -t, --temperature T               Sampling temperature (0-2)
    --max-tokens N                    Maximum reply length in tokens
  fireside history list               List saved conversations, newest first
  fireside history show <id>          Print one conversation
  fireside history export <id>        Export a conversation (stdout by default)
    -f, --format markdown|json|text   Output format (default: markdown)
    -o, --output DIR                  Write a file into DIR instead
    --no-metadata                     Omit the metadata header
  fireside config show                Print the effective configuration (keys redacted)
  fireside config get <key>           Print one setting, e.g. server.port
  fireside config path                Print the config file location
  fireside config init [--force]      Write a default config.toml
  fireside version                    Show version information
  fireside help                       Show this help

Global flags:
  --json                              Machine-readable output
  --config PATH                       Use this config file (.toml or .json)
  -q, --quiet                         Less output on stderr

Environment:
  FIRESIDE_PROVIDER                   openrouter | anthropic
  FIRESIDE_MODEL, VERTEX_MODEL_ID     Default model id
  OPENROUTER_API_KEY                  OpenRouter key (or FIRESIDE_OPENROUTER_KEY)
  ANTHROPIC_API_KEY                   Anthropic key (or FIRESIDE_ANTHROPIC_KEY)
  FIRESIDE_STORAGE                    file | bolt | sqlite
  FIRESIDE_HISTORY_DIR                Directory for the file backend
  FIRESIDE_HOST, FIRESIDE_PORT        Listen address
  FIRESIDE_STATIC_DIR                 Directory holding index.html

Version: %s
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "fireside version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s\n", runtime.Version())
}

// Parse parses command-line arguments (without the program name).
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		args.Name = "serve"
		args.Params = NewArgParser(nil)
		return CmdServe, args
	}

	args.Name = strings.ToLower(remaining[0])
	args.Params = NewArgParser(remaining[1:])

	switch args.Name {
	case "serve", "server", "run":
		return CmdServe, args
	case "ask", "a":
		return CmdAsk, args
	case "history", "h", "conversations":
		return CmdHistory, args
	case "config", "cfg":
		return CmdConfig, args
	case "version", "-v", "--version":
		return CmdVersion, args
	case "help", "-h", "--help":
		return CmdHelp, args
	default:
		return CmdUnknown, args
	}
}

// parseGlobalFlags extracts global flags from args and returns the rest.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var args Args

	for i := 0; i < len(argv); i++ {
		arg := argv[i]

		switch {
		case arg == "--json":
			args.JSON = true
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "--config":
			if i+1 < len(argv) {
				i++
				args.ConfigPath = argv[i]
			}
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}
