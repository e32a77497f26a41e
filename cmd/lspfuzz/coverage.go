//go:build linux

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lspfuzz/internal/lspinput"
)

func corpusCoverageCommand() *cli.Command {
	return &cli.Command{
		Name:      "corpus-coverage",
		Usage:     "Replay a corpus through a coverage-instrumented build and merge LLVM profiles",
		ArgsUsage: "<corpus-dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "Coverage-instrumented LSP server build", Required: true},
			&cli.StringSliceFlag{Name: "target-arg", Usage: "Extra argument for the target (repeatable)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Merged .profdata output path", Value: "corpus.profdata"},
		},
		Action: runCorpusCoverage,
	}
}

func runCorpusCoverage(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one corpus directory")
	}
	dir := c.Args().First()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}

	profileDir, err := os.MkdirTemp("", "lspfuzz-profiles_*")
	if err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}
	defer os.RemoveAll(profileDir)

	merged := c.String("output")
	mergedExists := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		in, err := loadInput(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		profile := filepath.Join(profileDir, entry.Name()+".profraw")
		if err := runWithProfile(c, in, profile); err != nil {
			log.Warning("Coverage run for {Input} failed: {Error}", entry.Name(), err.Error())
			continue
		}
		args := []string{"merge", "-sparse", "-o", merged, profile}
		if mergedExists {
			args = append(args, merged)
		}
		if out, err := exec.Command("llvm-profdata", args...).CombinedOutput(); err != nil {
			return fmt.Errorf("llvm-profdata merge: %v: %s", err, out)
		}
		mergedExists = true
		log.Information("Merged coverage of {Input}", entry.Name())
	}
	if !mergedExists {
		return fmt.Errorf("no corpus entry produced profile data")
	}
	log.Information("Merged profile written to {Path}", merged)
	return nil
}

// runWithProfile feeds one input to the coverage build with
// LLVM_PROFILE_FILE pointed at the raw profile path.
func runWithProfile(c *cli.Context, in *lspinput.Input, profile string) error {
	workspaceDir, err := os.MkdirTemp("", "lspfuzz-coverage_*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workspaceDir)

	if err := in.Workspace.Materialize(workspaceDir); err != nil {
		return err
	}
	payload, err := in.RequestBytes(workspaceDir)
	if err != nil {
		return err
	}

	cmd := exec.Command(c.String("target"), c.StringSlice("target-arg")...)
	cmd.Dir = workspaceDir
	cmd.Env = append(os.Environ(), "LLVM_PROFILE_FILE="+profile)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	if _, err := stdin.Write(payload); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		// A dead target is fine; the profile may still have been flushed.
		_ = err
	}
	_ = stdin.Close()
	_ = cmd.Wait()

	if _, err := os.Stat(profile); err != nil {
		return fmt.Errorf("no raw profile was written")
	}
	return nil
}
