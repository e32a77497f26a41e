//go:build linux

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func reproduceCommand() *cli.Command {
	return &cli.Command{
		Name:      "reproduce",
		Usage:     "Replay one saved input against the target and report the crashing request",
		ArgsUsage: "<input-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "Path to the LSP server", Required: true},
			&cli.StringSliceFlag{Name: "target-arg", Usage: "Extra argument for the target (repeatable)"},
			&cli.BoolFlag{Name: "json", Usage: "Print the result as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one input file")
			}
			in, err := loadInput(c.Args().First())
			if err != nil {
				return err
			}
			result, err := replay(in, c.String("target"), c.StringSlice("target-arg"))
			if err != nil {
				return err
			}
			return printReplay(c.Args().First(), result, c.Bool("json"))
		},
	}
}

func printReplay(name string, result *replayResult, asJSON bool) error {
	if asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	if !result.Crashed {
		log.Information("{Input}: target exited cleanly", name)
		return nil
	}
	log.Information("{Input}: target crashed ({Exit})", name, result.ExitDescription)
	if result.CrashingMethod != "" {
		log.Information("Crashing request: {Method}", result.CrashingMethod)
	}
	if result.Report != nil {
		log.Information("Sanitizer class {Class} ({Severity}), top frame {Frame}",
			result.Report.Class, result.Report.Severity.String(), result.Report.TopFunction())
	}
	return nil
}

func reproduceAllCommand() *cli.Command {
	return &cli.Command{
		Name:      "reproduce-all",
		Usage:     "Replay every input in a directory, in parallel",
		ArgsUsage: "<solutions-dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "Path to the LSP server", Required: true},
			&cli.StringSliceFlag{Name: "target-arg", Usage: "Extra argument for the target (repeatable)"},
			&cli.IntFlag{Name: "jobs", Usage: "Parallel reproductions", Value: runtime.NumCPU()},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one directory")
			}
			dir := c.Args().First()
			entries, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("reading %s: %w", dir, err)
			}

			type outcome struct {
				name   string
				result *replayResult
			}
			var mu sync.Mutex
			var outcomes []outcome

			group := new(errgroup.Group)
			group.SetLimit(c.Int("jobs"))
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				name := entry.Name()
				group.Go(func() error {
					in, err := loadInput(filepath.Join(dir, name))
					if err != nil {
						return err
					}
					result, err := replay(in, c.String("target"), c.StringSlice("target-arg"))
					if err != nil {
						return fmt.Errorf("replaying %s: %w", name, err)
					}
					mu.Lock()
					outcomes = append(outcomes, outcome{name: name, result: result})
					mu.Unlock()
					return nil
				})
			}
			if err := group.Wait(); err != nil {
				return err
			}

			sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].name < outcomes[j].name })
			reproduced := 0
			for _, o := range outcomes {
				if o.result.Crashed {
					reproduced++
				}
				if err := printReplay(o.name, o.result, false); err != nil {
					return err
				}
			}
			log.Information("{Reproduced}/{Total} input(s) reproduced a crash", reproduced, len(outcomes))
			return nil
		},
	}
}
