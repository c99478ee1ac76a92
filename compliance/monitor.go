package compliance

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Monitor runs entity extraction and compliance evaluation over log lines.
type Monitor struct {
	extractor Extractor

	cfgMu sync.RWMutex
	cfg   Config

	logger *log.Logger
}

// NewMonitor constructs a monitor with the given extractor and configuration.
func NewMonitor(extractor Extractor, cfg Config, logger *log.Logger) (*Monitor, error) {
	if extractor == nil {
		return nil, ErrNoExtractor
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Close releases extractor resources.
func (m *Monitor) Close() error {
	if m.extractor != nil {
		return m.extractor.Close()
	}
	return nil
}

// Config returns a copy of the current configuration.
func (m *Monitor) Config() Config {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg.Clone()
}

// UpdateConfig replaces the configuration.
func (m *Monitor) UpdateConfig(cfg Config) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.cfgMu.Lock()
	m.cfg = cfg
	m.cfgMu.Unlock()
	return nil
}

// Analyze extracts entities from every line and evaluates them against rules.
// Every line yields exactly one LineResult; lines without a matched entity get
// a single non-compliant FallbackEntity finding.
func (m *Monitor) Analyze(ctx context.Context, rules RuleDefinitions, standards ComplianceStandards, lines []string, progress func(done, total int)) (AnalysisResult, error) {
	cfg := m.Config()
	ev := NewEvaluator(rules, standards, cfg.Compliance.Mode)
	extractor := m.extractor
	if scoped, ok := extractor.(NameScoped); ok {
		extractor = scoped.WithNames(ev.Names())
	}

	result := AnalysisResult{Lines: make([]LineResult, 0, len(lines))}
	lastRule := ""
	total := len(lines)
	for i, raw := range lines {
		if err := ctx.Err(); err != nil {
			return AnalysisResult{}, err
		}
		idx := i + 1
		entities, err := extractor.ExtractEntities(ctx, raw)
		if err != nil {
			return AnalysisResult{}, fmt.Errorf("extract entities from line %d: %w", idx, err)
		}
		line := LineResult{Index: idx, Label: fmt.Sprintf("Log %d", idx), Text: raw}
		pos := make(map[string]int, len(entities))
		for _, entity := range entities {
			finding, ok := ev.Evaluate(entity)
			if !ok {
				continue
			}
			lastRule = finding.Rule
			if at, seen := pos[entity]; seen {
				line.Findings[at] = finding
				continue
			}
			pos[entity] = len(line.Findings)
			line.Findings = append(line.Findings, finding)
		}
		if len(line.Findings) == 0 {
			line.Findings = append(line.Findings, Finding{
				Entity:     FallbackEntity,
				Rule:       fallbackRule(cfg.Compliance, lastRule),
				Compliance: false,
			})
		}
		result.Lines = append(result.Lines, line)
		if progress != nil {
			progress(idx, total)
		}
	}
	compliant, nonCompliant := result.Counts()
	m.logf("Analyzed %d lines with %s: %d compliant, %d non-compliant", total, extractor.ModelID(), compliant, nonCompliant)
	return result, nil
}

func fallbackRule(cfg EvaluationConfig, lastRule string) string {
	sentinel := cfg.FallbackRule
	if sentinel == "" {
		sentinel = DefaultFallbackRule
	}
	if cfg.Fallback == FallbackSentinel || lastRule == "" {
		return sentinel
	}
	return lastRule
}

func (m *Monitor) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
