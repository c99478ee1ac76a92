package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"yashubustudio/logcompliance/compliance"
	"yashubustudio/logcompliance/internal/logging"
)

const envPrefix = "LOGCOMPLIANCE"

var rootCmd = &cobra.Command{
	Use:   "compliance-cli",
	Short: "Check log files against entity compliance rules",
	Long: `compliance-cli extracts named entities from every line of a log file,
looks each entity up in a rule definitions file and writes the verdicts to
a two-table PDF report.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "compliance-cli: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to config.json (default: ./config.json)")
	flags.String("backend", "", "Entity extractor backend: onnx or gazetteer")
	flags.String("mode", "", "Compliance mode: literal or standards")
	flags.String("fallback", "", "Rule reported for lines without findings: last-seen or sentinel")
	flags.String("log-file", "", "Rotating log file")
	for _, name := range []string{"config", "backend", "mode", "fallback", "log-file"} {
		cobra.CheckErr(viper.BindPFlag(name, flags.Lookup(name)))
	}
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads config.json and overlays flag and environment overrides.
func loadConfig() (compliance.Config, error) {
	cfg, err := compliance.LoadConfig(strings.TrimSpace(viper.GetString("config")))
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyOverrides(cfg *compliance.Config, v *viper.Viper) {
	if s := strings.TrimSpace(v.GetString("backend")); s != "" {
		cfg.Extractor.Backend = s
	}
	if s := strings.TrimSpace(v.GetString("mode")); s != "" {
		cfg.Compliance.Mode = compliance.Mode(s)
	}
	if s := strings.TrimSpace(v.GetString("fallback")); s != "" {
		cfg.Compliance.Fallback = compliance.FallbackPolicy(s)
	}
	if s := strings.TrimSpace(v.GetString("log-file")); s != "" {
		cfg.LogFile = s
	}
	if s := strings.TrimSpace(v.GetString("addr")); s != "" {
		cfg.Server.Addr = s
	}
}

// newMonitor builds the extractor and monitor from cfg. The returned closer
// releases both the monitor and the log file.
func newMonitor(cfg compliance.Config, console io.Writer) (*compliance.Monitor, *log.Logger, func(), error) {
	logger, logCloser := logging.New(console, logging.Options{Path: cfg.LogFile})
	extractor, err := compliance.NewExtractor(cfg.Extractor)
	if err != nil {
		logCloser.Close()
		return nil, nil, nil, fmt.Errorf("init extractor: %w", err)
	}
	monitor, err := compliance.NewMonitor(extractor, cfg, logger)
	if err != nil {
		extractor.Close()
		logCloser.Close()
		return nil, nil, nil, fmt.Errorf("init monitor: %w", err)
	}
	return monitor, logger, func() {
		monitor.Close()
		logCloser.Close()
	}, nil
}
