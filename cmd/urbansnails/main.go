// Command urbansnails re-analyses the 2016 snail dispersal survey along an
// urbanisation gradient and writes the text summary, plots and dashboard.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/analysis"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/config"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/db"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/fsutil"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/monitoring"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/report"
	"github.com/mdahirel/urban-ecosystems-snails-2016/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("urbansnails: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) > 0 && args[0] == "migrate" {
		fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
		archive := fs.String("archive", "output/runs.db", "SQLite run archive")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return db.RunMigrateCommand(fs.Args(), *archive, stdout)
	}

	fs := flag.NewFlagSet("urbansnails", flag.ContinueOnError)
	var (
		configPath  = fs.String("config", "", "analysis config JSON (defaults apply when empty)")
		sites       = fs.String("sites", "", "override sites GeoJSON path")
		exploration = fs.String("exploration", "", "override exploration CSV path")
		perception  = fs.String("perception", "", "override perception CSV path")
		dissection  = fs.String("dissection", "", "override dissection CSV path")
		output      = fs.String("output", "", "override output directory")
		archive     = fs.String("archive", "", "override SQLite run archive path")
		seed        = fs.Uint64("seed", 0, "override simulation seed (0 keeps the configured seed)")
		strict      = fs.Bool("strict", false, "fail when survey rows name unknown sites")
		quiet       = fs.Bool("quiet", false, "suppress progress logging")
		showVersion = fs.Bool("version", false, "print version and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintf(stdout, "urbansnails %s\n", version.String())
		return nil
	}
	if *quiet {
		monitoring.SetLogger(nil)
	}

	cfg := config.DefaultAnalysisConfig()
	if *configPath != "" {
		loaded, err := config.LoadAnalysisConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	override := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	override(&cfg.SitesPath, *sites)
	override(&cfg.ExplorationPath, *exploration)
	override(&cfg.PerceptionPath, *perception)
	override(&cfg.DissectionPath, *dissection)
	override(&cfg.OutputDir, *output)
	override(&cfg.ArchivePath, *archive)
	if *seed != 0 {
		cfg.Seed = seed
	}
	if *strict {
		cfg.StrictJoin = strict
	}

	res, err := analysis.Run(ctx, cfg)
	if err != nil {
		return err
	}

	outDir := cfg.GetOutputDir()
	written, err := report.Write(fsutil.OSFileSystem{}, outDir, res)
	if err != nil {
		return err
	}
	monitoring.Logf("run %s wrote %d files to %s in %s", res.RunID, len(written), outDir, res.Elapsed)

	if path := cfg.GetArchivePath(); path != "" {
		if err := archiveRun(path, res, cfg); err != nil {
			return err
		}
		monitoring.Logf("run %s archived to %s", res.RunID, path)
	}
	return nil
}

func archiveRun(path string, res *analysis.Result, cfg *config.AnalysisConfig) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	database, err := db.OpenArchive(path)
	if err != nil {
		return err
	}
	defer database.Close()
	return database.RecordRun(res, cfgJSON)
}
