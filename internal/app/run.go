package app

import (
	"fmt"
	"os"

	fyneapp "fyne.io/fyne/v2/app"

	"yashubustudio/logcompliance/compliance"
	"yashubustudio/logcompliance/internal/logging"
)

const fyneAppID = "yashubustudio.logcompliance"

// Run initializes required resources and starts the desktop UI.
func Run() error {
	if err := ensureConfigFile(""); err != nil {
		fmt.Fprintln(os.Stderr, "config file:", err)
	}
	cfg, err := compliance.LoadConfig("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pane := newLogCapture(logPaneLimit)
	logger, logCloser := logging.New(os.Stdout, logging.Options{Path: cfg.LogFile}, pane)
	defer logCloser.Close()

	extractor, err := compliance.NewExtractor(cfg.Extractor)
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}
	monitor, err := compliance.NewMonitor(extractor, cfg, logger)
	if err != nil {
		extractor.Close()
		return fmt.Errorf("init monitor: %w", err)
	}
	defer monitor.Close()

	a := fyneapp.NewWithID(fyneAppID)
	u := buildUI(a, monitor, pane, logger)
	u.w.ShowAndRun()
	return nil
}
