//go:build linux

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Dump an input's workspace and message byte stream to a directory",
		ArgsUsage: "<input-file> <output-dir>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected an input file and an output directory")
			}
			in, err := loadInput(c.Args().Get(0))
			if err != nil {
				return err
			}
			outDir := c.Args().Get(1)

			workspaceDir := filepath.Join(outDir, "workspace")
			if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
				return fmt.Errorf("creating export directory: %w", err)
			}
			if err := in.Workspace.Materialize(workspaceDir); err != nil {
				return err
			}

			payload, err := in.RequestBytes(workspaceDir)
			if err != nil {
				return err
			}
			messagesPath := filepath.Join(outDir, "messages.bin")
			if err := os.WriteFile(messagesPath, payload, 0o644); err != nil {
				return fmt.Errorf("writing message stream: %w", err)
			}

			log.Information("Exported {Files} file(s) and {Bytes} message byte(s) to {Dir}",
				in.Workspace.Len(), len(payload), outDir)
			return nil
		},
	}
}
