//go:build linux

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
	edlib "github.com/hbollon/go-edlib"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lspfuzz/internal/asan"
)

func triageCommand() *cli.Command {
	return &cli.Command{
		Name:      "triage",
		Usage:     "Classify stored crashes by sanitizer severity and cluster near-duplicates",
		ArgsUsage: "<solutions-dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Usage: "Path to the LSP server", Required: true},
			&cli.StringSliceFlag{Name: "target-arg", Usage: "Extra argument for the target (repeatable)"},
			&cli.BoolFlag{Name: "watch", Usage: "Keep watching the directory and triage new crashes"},
			&cli.Float64Flag{Name: "similarity", Usage: "Top-frame similarity threshold for clustering", Value: 0.8},
		},
		Action: runTriage,
	}
}

// cluster groups crashes whose innermost frames look alike.
type cluster struct {
	topFunction string
	class       string
	severity    asan.Severity
	members     []string
}

func runTriage(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one directory")
	}
	dir := c.Args().First()
	threshold := float32(c.Float64("similarity"))

	var clusters []*cluster
	triageOne := func(path string) error {
		in, err := loadInput(path)
		if err != nil {
			return err
		}
		result, err := replay(in, c.String("target"), c.StringSlice("target-arg"))
		if err != nil {
			return err
		}
		if !result.Crashed {
			log.Warning("{Input} no longer reproduces", filepath.Base(path))
			return nil
		}
		assign(&clusters, result, filepath.Base(path), threshold)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := triageOne(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	report(clusters)

	if !c.Bool("watch") {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating directory watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	log.Information("Watching {Dir} for new crashes", dir)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			if err := triageOne(event.Name); err != nil {
				log.Warning("Triage of {Input} failed: {Error}", event.Name, err.Error())
				continue
			}
			report(clusters)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warning("Watcher error: {Error}", err.Error())
		}
	}
}

// assign puts a crash into the first cluster whose top frame is similar
// enough, or opens a new one.
func assign(clusters *[]*cluster, result *replayResult, name string, threshold float32) {
	topFunction := ""
	class := "unknown"
	severity := asan.SeverityUnknown
	if result.Report != nil {
		topFunction = result.Report.TopFunction()
		class = result.Report.Class
		severity = result.Report.Severity
	}
	for _, cl := range *clusters {
		if cl.class != class {
			continue
		}
		if topFunction == "" && cl.topFunction == "" {
			cl.members = append(cl.members, name)
			return
		}
		similarity, err := edlib.StringsSimilarity(cl.topFunction, topFunction, edlib.Levenshtein)
		if err == nil && similarity >= threshold {
			cl.members = append(cl.members, name)
			return
		}
	}
	*clusters = append(*clusters, &cluster{
		topFunction: topFunction,
		class:       class,
		severity:    severity,
		members:     []string{name},
	})
}

func report(clusters []*cluster) {
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].severity > clusters[j].severity })
	for _, cl := range clusters {
		log.Information("{Severity} {Class} at {Frame}: {Count} crash(es), e.g. {Example}",
			cl.severity.String(), cl.class, cl.topFunction, len(cl.members), cl.members[0])
	}
}
