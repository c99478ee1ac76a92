package compliance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Upload is a named input that is opened for the duration of one Process call.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileUpload reads from a local path.
func FileUpload(path string) Upload {
	return Upload{Name: path, Open: func() (io.ReadCloser, error) { return os.Open(path) }}
}

// BytesUpload serves in-memory content.
func BytesUpload(name string, data []byte) Upload {
	return Upload{Name: name, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}}
}

// Inputs are the three files one analysis needs.
type Inputs struct {
	Rules     Upload
	Standards Upload
	Log       Upload
	LogOpts   LogParseOptions
}

// Output is the outcome of Process.
type Output struct {
	Result AnalysisResult
	Report Report
	PDF    []byte
}

// Process decodes the inputs, analyses the log and renders the PDF report.
// Every opened input is closed before Process returns, whatever the outcome.
func (m *Monitor) Process(ctx context.Context, in Inputs, createdAt time.Time, progress func(done, total int)) (Output, error) {
	var (
		rules     RuleDefinitions
		standards ComplianceStandards
		lines     []string
	)
	if err := withUpload(in.Rules, "rule definitions", func(r io.Reader) (err error) {
		rules, err = DecodeRuleDefinitions(r, in.Rules.Name)
		return err
	}); err != nil {
		return Output{}, err
	}
	if err := withUpload(in.Standards, "compliance standards", func(r io.Reader) (err error) {
		standards, err = DecodeComplianceStandards(r, in.Standards.Name)
		return err
	}); err != nil {
		return Output{}, err
	}

	var res AnalysisResult
	if err := withUpload(in.Log, "log file", func(r io.Reader) error {
		var err error
		lines, err = ReadLogLines(r, in.Log.Name, in.LogOpts)
		if err != nil {
			return err
		}
		res, err = m.Analyze(ctx, rules, standards, lines, progress)
		return err
	}); err != nil {
		return Output{}, err
	}

	opts := m.Config().Report.Options()
	opts.CreatedAt = createdAt
	rep := BuildReport(res)
	var buf bytes.Buffer
	if err := WritePDF(&buf, rep, opts); err != nil {
		return Output{}, err
	}
	m.logf("Rendered report: %d compliant rows, %d non-compliant rows, %d bytes", len(rep.Compliant), len(rep.NonCompliant), buf.Len())
	return Output{Result: res, Report: rep, PDF: buf.Bytes()}, nil
}

func withUpload(up Upload, what string, fn func(io.Reader) error) (err error) {
	if up.Open == nil {
		return fmt.Errorf("%s: %w", what, ErrMissingUpload)
	}
	rc, err := up.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", what, err)
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", what, cerr)
		}
	}()
	return fn(rc)
}

// ErrMissingUpload is returned when one of the three inputs is absent.
var ErrMissingUpload = errors.New("upload is missing")
