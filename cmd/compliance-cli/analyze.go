package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v2"
	"github.com/spf13/cobra"

	"yashubustudio/logcompliance/compliance"
)

type analyzeOptions struct {
	rulesPath     string
	standardsPath string
	logPath       string
	outputPath    string
	jsonPath      string
	messageColumn string
	watch         bool
	quiet         bool
}

var analyzeOpts analyzeOptions

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a log file and write log_analysis.pdf",
	Example: `  compliance-cli analyze --rules rules.json --standards standards.json --log app.log
  compliance-cli analyze --rules rules.yaml --standards standards.yaml --log events.csv --message-column detail
  compliance-cli analyze --rules rules.json --standards standards.json --log app.log --watch`,
	RunE: runAnalyze,
}

func init() {
	flags := analyzeCmd.Flags()
	flags.StringVar(&analyzeOpts.rulesPath, "rules", "", "Rule definitions (JSON, YAML or TOML)")
	flags.StringVar(&analyzeOpts.standardsPath, "standards", "", "Compliance standards (JSON, YAML or TOML)")
	flags.StringVar(&analyzeOpts.logPath, "log", "", "Log file (plain text, CSV or TSV)")
	flags.StringVarP(&analyzeOpts.outputPath, "output", "o", compliance.ReportFileName, "PDF report path")
	flags.StringVar(&analyzeOpts.jsonPath, "json", "", "Also write the analysis result as JSON (- for STDOUT)")
	flags.StringVar(&analyzeOpts.messageColumn, "message-column", "", "Column name or #index holding the message in CSV/TSV logs")
	flags.BoolVarP(&analyzeOpts.watch, "watch", "w", false, "Re-run whenever an input file changes")
	flags.BoolVarP(&analyzeOpts.quiet, "quiet", "q", false, "Hide the progress bar and summary")
	for _, name := range []string{"rules", "standards", "log"} {
		cobra.CheckErr(analyzeCmd.MarkFlagRequired(name))
	}
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	opts := analyzeOpts
	opts.rulesPath = strings.TrimSpace(opts.rulesPath)
	opts.standardsPath = strings.TrimSpace(opts.standardsPath)
	opts.logPath = strings.TrimSpace(opts.logPath)
	opts.outputPath = strings.TrimSpace(opts.outputPath)
	if opts.outputPath == "" {
		opts.outputPath = compliance.ReportFileName
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	monitor, logger, closeAll, err := newMonitor(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeAll()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	once := func() error {
		return analyzeOnce(ctx, monitor, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}
	if !opts.watch {
		return once()
	}
	if err := once(); err != nil {
		logger.Printf("analyze: %v", err)
	}
	return watchInputs(ctx, []string{opts.rulesPath, opts.standardsPath, opts.logPath}, 300*time.Millisecond, logger, func() {
		if err := once(); err != nil {
			logger.Printf("analyze: %v", err)
		}
	})
}

func analyzeOnce(ctx context.Context, monitor *compliance.Monitor, opts analyzeOptions, stdout, stderr io.Writer) error {
	in := compliance.Inputs{
		Rules:     compliance.FileUpload(opts.rulesPath),
		Standards: compliance.FileUpload(opts.standardsPath),
		Log:       compliance.FileUpload(opts.logPath),
		LogOpts:   compliance.LogParseOptions{MessageColumn: opts.messageColumn},
	}

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if opts.quiet {
			return
		}
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(stderr),
				progressbar.OptionSetDescription("Analyzing"),
			)
		}
		_ = bar.Add(1)
	}

	out, err := monitor.Process(ctx, in, time.Now(), progress)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return err
	}

	if err := writeFileAtomic(opts.outputPath, out.PDF); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := writeJSONResult(opts.jsonPath, out.Result, stdout); err != nil {
		return err
	}
	if !opts.quiet {
		summaryOut := stdout
		if strings.TrimSpace(opts.jsonPath) == "-" {
			summaryOut = stderr
		}
		fmt.Fprintln(summaryOut, renderSummary(out.Result, opts.outputPath))
	}
	return nil
}

func writeJSONResult(path string, res compliance.AnalysisResult, stdout io.Writer) error {
	path = strings.TrimSpace(path)
	switch path {
	case "":
		return nil
	case "-":
		return compliance.WriteJSON(stdout, res)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json output: %w", err)
	}
	if err := compliance.WriteJSON(f, res); err != nil {
		f.Close()
		return fmt.Errorf("write json output: %w", err)
	}
	return f.Close()
}

func writeFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Join(err, os.Remove(tmp))
	}
	return nil
}
