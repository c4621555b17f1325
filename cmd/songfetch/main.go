package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"songfetch/internal/config"
	"songfetch/internal/logger"
	"songfetch/internal/metadata"
	"songfetch/internal/pipeline"
	"songfetch/internal/progress"
	"songfetch/internal/shutdown"
	"songfetch/pkg/utils"
)

func main() {
	cfg, opts, err := parseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	sh := shutdown.New()
	sh.Listen()
	defer sh.Wait()

	log := logger.New(cfg.Verbose)
	defer log.Close()

	if !cfg.Verbose {
		logDir := config.GetDefaultLogPath()
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Failed to create log directory: %v\n", err)
		} else {
			logFile := filepath.Join(logDir, fmt.Sprintf("songfetch_%s.log", time.Now().Format("2006-01-02_15-04-05")))
			if err := log.SetFileLog(logFile); err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] Failed to setup file logging: %v\n", err)
			} else {
				log.Debug("Logging to file: %s", logFile)
			}
		}
	}

	if cfg.Verbose && opts.configPath != "" {
		log.Debug("Loaded configuration from: %s", opts.configPath)
	}

	if err := cfg.Validate(); err != nil {
		log.Error("Configuration error: %v", err)
		os.Exit(1)
	}

	if err := run(sh, cfg, log, opts); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func run(sh *shutdown.Handler, cfg config.Config, log *logger.Logger, opts options) error {
	req := pipeline.Request{Query: opts.query}

	if opts.lyricsFile != "" {
		data, err := os.ReadFile(opts.lyricsFile)
		if err != nil {
			return fmt.Errorf("failed to read lyrics file: %w", err)
		}
		req.Lyrics = string(data)
	}

	tmpDir, err := utils.CreateTempDir()
	if err != nil {
		return fmt.Errorf("error creating temporary folder: %w", err)
	}
	log.Debug("Temporary folder: %s", tmpDir)

	cleanup := func() {
		log.Debug("Cleaning up...")
		if err := utils.Cleanup(tmpDir); err != nil {
			log.Warn("Error during cleanup: %v", err)
		}
	}
	defer cleanup()
	sh.AddCleanup(cleanup)

	var bar *progress.Bar
	if !cfg.Verbose {
		bar = progress.New(0)
		log.SetProgressBar(true)
		req.Progress = bar.Set
	}

	p := pipeline.New(cfg, log)
	result, err := p.ProcessFile(sh.Context(), req, tmpDir)

	if bar != nil {
		bar.Finish()
		log.SetProgressBar(false)
	}

	if err != nil {
		return err
	}

	destDir := filepath.Join(cfg.OutputDir, metadata.SubDirFromTags(result.Path))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	dest := filepath.Join(destDir, result.Filename)
	if err := utils.MoveFile(result.Path, dest); err != nil {
		return fmt.Errorf("failed to move file to output: %w", err)
	}

	log.Info("Saved %s", dest)
	log.Info("=== Process completed successfully ===")
	return nil
}
