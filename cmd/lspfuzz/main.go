//go:build linux

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/willibrandon/mtlog"
	"github.com/willibrandon/mtlog/core"
)

var log core.Logger

func main() {
	app := &cli.App{
		Name:                   "lspfuzz",
		Usage:                  "Coverage-guided grammar-aware fuzzer for LSP servers",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   "lspfuzz.toml",
			},
			&cli.StringFlag{
				Name:  "temp-dir",
				Usage: "Directory for workspaces and scratch files",
				Value: os.TempDir(),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			level := core.InformationLevel
			if c.Bool("verbose") {
				level = core.DebugLevel
			}
			log = mtlog.New(mtlog.WithConsole(), mtlog.WithMinimumLevel(level))
			return nil
		},
		Commands: []*cli.Command{
			fuzzCommand(),
			minimizeCommand(),
			reproduceCommand(),
			reproduceAllCommand(),
			corpusCoverageCommand(),
			exportCommand(),
			triageCommand(),
			mineGrammarFragmentsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "lspfuzz: %v\n", err)
		os.Exit(1)
	}
}
