package compliance

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrMalformedInput marks uploads that could not be decoded.
var ErrMalformedInput = errors.New("malformed input")

// Format is the encoding of a structured mapping file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromName picks the decoder from a file extension; JSON is the default.
func FormatFromName(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// LogParseOptions selects the message column of CSV/TSV logs.
type LogParseOptions struct {
	MessageColumn string
}

// DecodeRuleDefinitions parses an entity → rule mapping. name selects the format.
func DecodeRuleDefinitions(r io.Reader, name string) (RuleDefinitions, error) {
	var rules RuleDefinitions
	if err := decodeMapping(r, FormatFromName(name), &rules); err != nil {
		return nil, fmt.Errorf("decode rule definitions %s: %w", displayName(name), err)
	}
	if rules == nil {
		rules = RuleDefinitions{}
	}
	return rules, nil
}

// DecodeComplianceStandards parses an entity → permitted rules mapping.
func DecodeComplianceStandards(r io.Reader, name string) (ComplianceStandards, error) {
	var standards ComplianceStandards
	if err := decodeMapping(r, FormatFromName(name), &standards); err != nil {
		return nil, fmt.Errorf("decode compliance standards %s: %w", displayName(name), err)
	}
	if standards == nil {
		standards = ComplianceStandards{}
	}
	return standards, nil
}

// LoadRuleDefinitions reads rule definitions from path.
func LoadRuleDefinitions(path string) (RuleDefinitions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rule definitions: %w", err)
	}
	defer f.Close()
	return DecodeRuleDefinitions(f, path)
}

// LoadComplianceStandards reads compliance standards from path.
func LoadComplianceStandards(path string) (ComplianceStandards, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open compliance standards: %w", err)
	}
	defer f.Close()
	return DecodeComplianceStandards(f, path)
}

func decodeMapping(r io.Reader, format Format, out any) error {
	var err error
	switch format {
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(out)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case FormatTOML:
		_, err = toml.NewDecoder(r).Decode(out)
	default:
		dec := json.NewDecoder(r)
		err = dec.Decode(out)
		if err == nil && dec.More() {
			err = errors.New("trailing data after mapping")
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	return nil
}

// LoadLogLines reads the log at path.
func LoadLogLines(path string, opts LogParseOptions) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return ReadLogLines(f, path, opts)
}

// ReadLogLines returns the trimmed lines of a plaintext log, or the message
// column of a .csv/.tsv log. Blank lines are kept so numbering matches the file.
func ReadLogLines(r io.Reader, name string, opts LogParseOptions) ([]string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return readDelimitedLog(r, name, ',', opts)
	case ".tsv":
		return readDelimitedLog(r, name, '\t', opts)
	default:
		return readPlainLog(r)
	}
}

func readPlainLog(r io.Reader) ([]string, error) {
	var out []string
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			out = append(out, cleanCell(line))
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read log file: %w", err)
		}
	}
}

func readDelimitedLog(r io.Reader, name string, comma rune, opts LogParseOptions) ([]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", displayName(name), ErrMalformedInput, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = cleanCell(cell)
	}
	col, start, err := resolveMessageColumn(header, opts.MessageColumn)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows)-start)
	for _, row := range rows[start:] {
		if col >= len(row) {
			out = append(out, "")
			continue
		}
		out = append(out, cleanCell(row[col]))
	}
	return out, nil
}

func resolveMessageColumn(header []string, explicit string) (int, int, error) {
	if strings.TrimSpace(explicit) != "" {
		idx, fromHeader, err := matchExplicitColumn(header, explicit)
		if err != nil {
			return -1, 0, err
		}
		start := 0
		if fromHeader {
			start = 1
		}
		return idx, start, nil
	}
	if col := findColumn(header, getColumnCandidates().Message); col >= 0 {
		return col, 1, nil
	}
	return 0, 0, nil
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "\ufeff")
	return v
}

func findColumn(header []string, candidates []string) int {
	for i, col := range header {
		for _, cand := range candidates {
			if strings.EqualFold(col, cand) {
				return i
			}
		}
	}
	return -1
}

func matchExplicitColumn(header []string, explicit string) (int, bool, error) {
	trimmed := strings.TrimSpace(explicit)
	for i, col := range header {
		if strings.EqualFold(col, trimmed) {
			return i, true, nil
		}
	}
	if strings.HasPrefix(trimmed, "#") {
		idx, err := parseColumnIndex(trimmed)
		if err != nil {
			return -1, false, err
		}
		if idx >= len(header) {
			return -1, false, fmt.Errorf("column index %s is out of range", trimmed)
		}
		return idx, false, nil
	}
	return -1, false, fmt.Errorf("column %q not found", explicit)
}

func parseColumnIndex(token string) (int, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(token, "#"))
	idx, err := strconv.Atoi(trimmed)
	if err != nil || trimmed == "" {
		return -1, fmt.Errorf("invalid column index %q", token)
	}
	if idx <= 0 {
		return -1, fmt.Errorf("column indices are 1-based: %q", token)
	}
	return idx - 1, nil
}

func displayName(name string) string {
	if name == "" {
		return "(upload)"
	}
	return filepath.Base(name)
}
