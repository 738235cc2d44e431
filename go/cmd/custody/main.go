// Copyright (c) 2025 Pano Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at panoptisDev.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

// Run using
//
//	go run ./go/cmd/custody <command> <flags>
//
// For a list of commands and flags use
//
//	go run ./go/cmd/custody --help
func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "custody",
		HelpName:  "custody",
		Usage:     "Tooling for self-custodial accounts and relayed meta-transactions",
		Copyright: "(c) 2025 Pano Operations Ltd",
		Flags: []cli.Flag{
			verbosityFlag,
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			&keygenCmd,
			&restrictionsCmd,
			&attestCmd,
			&hashCmd,
			&signCmd,
			&runCmd,
			&raceCmd,
		},
	}
}

var verbosityFlag = &cli.IntFlag{
	Name:  "verbosity",
	Usage: "log level: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
	Value: 2,
}

func setupLogging(context *cli.Context) error {
	level := log.FromLegacyLevel(context.Int(verbosityFlag.Name))
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(context.App.ErrWriter, level, false)))
	return nil
}
