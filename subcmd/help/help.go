// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package help provides help subcommand.
package help

import (
	"flag"
	"fmt"
	"io"

	"github.com/maruel/subcommands"
)

const examples = `Examples:

  scan module dependencies of translation units, and print them in json:

    $ modscan scan -config scan.star out/obj/a.pptrace.json out/obj/b.pptrace.json

  write make style deps of a translation unit:

    $ modscan scan -format make -o out/obj/a.d out/obj/a.pptrace.json

  pass flags to the config's init(ctx) as ctx.flags:

    $ modscan scan -config scan.star -flag sdk=/opt/sdk out/obj/a.pptrace.json

`

// Cmd returns the Command for the `help` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "help [<command>]",
		ShortDesc: "prints help about a command",
		LongDesc:  "Prints commands, examples of module dependency scans and globally-available flags, or help about a specific command.",
		CommandRun: func() subcommands.CommandRun {
			return &helpCmdRun{}
		},
	}
}

type helpCmdRun struct {
	subcommands.CommandRunBase
}

func (h *helpCmdRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	if len(args) == 0 {
		printUsage(a.GetOut(), a, flag.CommandLine)
		return 0
	}

	// Use default subcommands.CmdHelp for help about a command.
	helpInit := subcommands.CmdHelp.CommandRun()
	return helpInit.Run(a, args, env)
}

// printUsage prints commands of a, examples and flags in fs to w.
func printUsage(w io.Writer, a subcommands.Application, fs *flag.FlagSet) {
	subcommands.Usage(w, a, false)
	fmt.Fprint(w, examples)
	fmt.Fprintln(w, "Common flags accepted by all commands:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}
