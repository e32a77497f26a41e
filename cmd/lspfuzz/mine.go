//go:build linux

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lspfuzz/internal/fragments"
	"github.com/standardbeagle/lspfuzz/internal/grammar"
)

func mineGrammarFragmentsCommand() *cli.Command {
	return &cli.Command{
		Name:      "mine-grammar-fragments",
		Usage:     "Mine node-keyed code fragments from a source tree",
		ArgsUsage: "<source-root>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "language", Usage: "Language to mine (inferred from extensions when empty)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Fragments file to write", Required: true},
			&cli.StringFlag{Name: "grammar-json", Usage: "tree-sitter grammar.json to embed derivation rules from"},
			&cli.StringSliceFlag{Name: "include", Usage: "Glob of files to mine (repeatable)"},
			&cli.StringSliceFlag{Name: "exclude", Usage: "Glob of files to skip (repeatable)"},
			&cli.IntFlag{Name: "max-fragment-len", Usage: "Skip nodes longer than this many bytes", Value: 256},
			&cli.IntFlag{Name: "max-per-kind", Usage: "Keep at most this many fragments per node kind", Value: 512},
		},
		Action: runMine,
	}
}

func runMine(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one source root")
	}
	root := c.Args().First()

	var language grammar.Language
	var err error
	if name := c.String("language"); name != "" {
		language, err = grammar.ParseLanguage(name)
	} else {
		language, err = fragments.InferLanguage(root)
	}
	if err != nil {
		return err
	}

	options := fragments.DefaultMinerOptions(language)
	if include := c.StringSlice("include"); len(include) > 0 {
		options.Include = include
	}
	options.Exclude = c.StringSlice("exclude")
	options.MaxFragmentLen = c.Int("max-fragment-len")
	options.MaxPerKind = c.Int("max-per-kind")

	log.Information("Mining {Language} fragments under {Root}", language.String(), root)
	mined, err := fragments.Mine(root, language, options)
	if err != nil {
		return err
	}

	ctx := &grammar.Context{Language: language, Fragments: mined}
	if grammarPath := c.String("grammar-json"); grammarPath != "" {
		ctx.Grammar, err = fragments.LoadGrammarJSON(grammarPath)
		if err != nil {
			return err
		}
	}

	if err := grammar.SaveContextFile(c.String("output"), ctx); err != nil {
		return err
	}
	kinds := len(mined.Ranges)
	log.Information("Wrote {Kinds} node kind(s), {Bytes} byte(s) of code to {Path}",
		kinds, len(mined.Code), c.String("output"))
	return nil
}
