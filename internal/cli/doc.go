// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and command handlers for fireside.
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	switch cmd {
//	case cli.CmdServe:
//	    err = cli.HandleServe(ctx, app, args)
//	case cli.CmdAsk:
//	    err = cli.HandleAsk(ctx, app, args)
//	// ...
//	}
//
// All commands support the --json flag, which wraps output in JSONResponse.
package cli
