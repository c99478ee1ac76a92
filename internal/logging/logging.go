package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the rotating log file.
type Options struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func (o *Options) applyDefaults() {
	if o.MaxSizeMB <= 0 {
		o.MaxSizeMB = 10
	}
	if o.MaxBackups <= 0 {
		o.MaxBackups = 3
	}
	if o.MaxAgeDays <= 0 {
		o.MaxAgeDays = 28
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger that writes to console, the rotating file at opts.Path
// when set, and any extra sinks. The closer releases the file.
func New(console io.Writer, opts Options, extra ...io.Writer) (*log.Logger, io.Closer) {
	writers := make([]io.Writer, 0, len(extra)+2)
	if console != nil {
		writers = append(writers, console)
	}
	var closer io.Closer = nopCloser{}
	if opts.Path != "" {
		opts.applyDefaults()
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			log.Printf("log dir: %v", err)
		} else {
			file := &lumberjack.Logger{
				Filename:   opts.Path,
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxAgeDays,
			}
			writers = append(writers, file)
			closer = file
		}
	}
	for _, w := range extra {
		if w != nil {
			writers = append(writers, w)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	return log.New(io.MultiWriter(writers...), "", log.LstdFlags), closer
}
