//go:build linux

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func minimizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "minimize",
		Usage:     "Shrink a crashing input while it still reproduces",
		ArgsUsage: "<input-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "Path to the LSP server", Required: true},
			&cli.StringSliceFlag{Name: "target-arg", Usage: "Extra argument for the target (repeatable)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Where to write the minimized input", Required: true},
			&cli.IntFlag{Name: "max-rounds", Usage: "Run at most this many rounds; a round that drops nothing ends early", Value: 8},
		},
		Action: runMinimize,
	}
}

// runMinimize repeatedly drops messages, keeping a drop only when the
// crash still reproduces.
func runMinimize(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one input file")
	}
	in, err := loadInput(c.Args().First())
	if err != nil {
		return err
	}
	targetPath := c.String("target")
	targetArgs := c.StringSlice("target-arg")

	baseline, err := replay(in, targetPath, targetArgs)
	if err != nil {
		return err
	}
	if !baseline.Crashed {
		return fmt.Errorf("the input does not crash the target; nothing to minimize")
	}
	baselineHash := reportHash(baseline)

	log.Information("Minimizing from {Count} message(s)", len(in.Messages))
	for round := 0; round < c.Int("max-rounds"); round++ {
		removed := false
		for idx := len(in.Messages) - 1; idx >= 0; idx-- {
			candidate := in.Clone()
			candidate.Messages = append(candidate.Messages[:idx], candidate.Messages[idx+1:]...)
			result, err := replay(candidate, targetPath, targetArgs)
			if err != nil {
				return err
			}
			if result.Crashed && reportHash(result) == baselineHash {
				in = candidate
				removed = true
				log.Debug("Dropped message {Index}; {Count} left", idx, len(in.Messages))
			}
		}
		if !removed {
			break
		}
	}

	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding minimized input: %w", err)
	}
	if err := os.WriteFile(c.String("output"), data, 0o644); err != nil {
		return fmt.Errorf("writing minimized input: %w", err)
	}
	log.Information("Minimized to {Count} message(s), written to {Path}", len(in.Messages), c.String("output"))
	return nil
}

// reportHash keys crash identity during minimization: the ASan stack hash
// when available, otherwise the exit description.
func reportHash(result *replayResult) string {
	if result.Report != nil {
		return fmt.Sprintf("%016x", result.Report.StackHash())
	}
	return result.ExitDescription
}
