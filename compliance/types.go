package compliance

import (
	"bytes"
	"encoding/json"
)

// Mode selects how a compliance verdict is reached for an entity with a rule.
type Mode string

const (
	// ModeLiteral reports every entity that has a rule as compliant.
	ModeLiteral Mode = "literal"
	// ModeStandards checks the rule against the entity's permitted rules.
	ModeStandards Mode = "standards"
)

// FallbackPolicy selects the rule reported for lines without findings.
type FallbackPolicy string

const (
	// FallbackLastSeen reuses the most recent rule matched earlier in the file.
	FallbackLastSeen FallbackPolicy = "last-seen"
	// FallbackSentinel always reports the configured sentinel rule.
	FallbackSentinel FallbackPolicy = "sentinel"
)

const (
	// FallbackEntity is the key used for the synthetic finding of a line with no matches.
	FallbackEntity = "Compliant"
	// DefaultFallbackRule is reported when no rule is available for a fallback finding.
	DefaultFallbackRule = "no applicable rule"
)

// RuleDefinitions maps an entity name to the rule that governs it.
type RuleDefinitions map[string]string

// ComplianceStandards maps an entity name to the rules it is permitted to satisfy.
type ComplianceStandards map[string][]string

// Finding is the verdict for one entity on one log line.
type Finding struct {
	Entity     string `json:"-"`
	Rule       string `json:"Rule"`
	Compliance bool   `json:"Compliance"`
}

// LineResult holds the findings for a single log line.
type LineResult struct {
	Index    int
	Label    string
	Text     string
	Findings []Finding
}

// AnalysisResult is the ordered per-line outcome of an analysis run.
type AnalysisResult struct {
	Lines []LineResult
}

// Len returns the number of analysed lines.
func (r AnalysisResult) Len() int {
	return len(r.Lines)
}

// Line returns the result for the given label ("Log N").
func (r AnalysisResult) Line(label string) (LineResult, bool) {
	for _, line := range r.Lines {
		if line.Label == label {
			return line, true
		}
	}
	return LineResult{}, false
}

// Finding returns the finding for entity on this line.
func (l LineResult) Finding(entity string) (Finding, bool) {
	for _, f := range l.Findings {
		if f.Entity == entity {
			return f, true
		}
	}
	return Finding{}, false
}

// Counts returns how many findings are compliant and non-compliant.
func (r AnalysisResult) Counts() (compliant, nonCompliant int) {
	for _, line := range r.Lines {
		for _, f := range line.Findings {
			if f.Compliance {
				compliant++
			} else {
				nonCompliant++
			}
		}
	}
	return compliant, nonCompliant
}

// MarshalJSON encodes the result as {"Log 1": {"entity": {"Rule": ..., "Compliance": ...}}}
// keeping line and entity order.
func (r AnalysisResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, line := range r.Lines {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONKey(&buf, line.Label); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, f := range line.Findings {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONKey(&buf, f.Entity); err != nil {
				return nil, err
			}
			val, err := json.Marshal(f)
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONKey(buf *bytes.Buffer, key string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	return nil
}

// ExtractorConfig configures the entity extraction backend and its cache.
type ExtractorConfig struct {
	Backend       string   `json:"backend"`
	OrtDLL        string   `json:"ortDll"`
	ModelPath     string   `json:"modelPath"`
	TokenizerPath string   `json:"tokenizerPath"`
	LabelsPath    string   `json:"labelsPath"`
	Labels        []string `json:"labels,omitempty"`
	MaxSeqLen     int      `json:"maxSeqLen"`
	MinScore      float32  `json:"minScore"`
	CacheDir      string   `json:"cacheDir"`
	CacheTTL      string   `json:"cacheTtl"`
	ModelID       string   `json:"modelId"`
}

// EvaluationConfig controls compliance verdicts and the fallback finding.
type EvaluationConfig struct {
	Mode         Mode           `json:"mode"`
	Fallback     FallbackPolicy `json:"fallback"`
	FallbackRule string         `json:"fallbackRule"`
}

// ReportConfig controls PDF layout.
type ReportConfig struct {
	ColumnWidth float64 `json:"columnWidth"`
	RowHeight   float64 `json:"rowHeight"`
	FontSize    float64 `json:"fontSize"`
}

// ServerConfig configures the web upload form.
type ServerConfig struct {
	Addr          string `json:"addr"`
	MaxUploadSize int64  `json:"maxUploadSize"`
}

// Config aggregates runtime settings persisted to config.json.
type Config struct {
	Extractor  ExtractorConfig  `json:"extractor"`
	Compliance EvaluationConfig `json:"compliance"`
	Report     ReportConfig     `json:"report"`
	Server     ServerConfig     `json:"server"`
	LogFile    string           `json:"logFile"`
}

// Clone creates a deep copy of the configuration so callers can mutate safely.
func (c Config) Clone() Config {
	buf, _ := json.Marshal(c)
	var out Config
	_ = json.Unmarshal(buf, &out)
	return out
}

// ApplyDefaults populates zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Extractor.Backend == "" {
		c.Extractor.Backend = BackendONNX
	}
	if c.Extractor.MaxSeqLen == 0 {
		c.Extractor.MaxSeqLen = 512
	}
	if c.Extractor.CacheTTL == "" {
		c.Extractor.CacheTTL = "30m"
	}
	if c.Compliance.Mode == "" {
		c.Compliance.Mode = ModeLiteral
	}
	if c.Compliance.Fallback == "" {
		c.Compliance.Fallback = FallbackLastSeen
	}
	if c.Compliance.FallbackRule == "" {
		c.Compliance.FallbackRule = DefaultFallbackRule
	}
	if c.Report.ColumnWidth == 0 {
		c.Report.ColumnWidth = 700
	}
	if c.Report.RowHeight == 0 {
		c.Report.RowHeight = 20
	}
	if c.Report.FontSize == 0 {
		c.Report.FontSize = 10
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8501"
	}
	if c.Server.MaxUploadSize == 0 {
		c.Server.MaxUploadSize = 32 << 20
	}
}
