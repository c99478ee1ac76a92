package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"yashubustudio/logcompliance/compliance"
)

const defaultConfigPath = "config.json"

// ensureConfigFile writes the default configuration to path when the file
// does not exist yet, so users have a starting point for editing model paths.
func ensureConfigFile(path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		clean = defaultConfigPath
	}
	clean = filepath.Clean(clean)
	if _, err := os.Stat(clean); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	var cfg compliance.Config
	cfg.ApplyDefaults()
	cfg.Extractor.ModelPath = filepath.Join("models", "ner", "model.onnx")
	cfg.Extractor.TokenizerPath = filepath.Join("models", "ner", "tokenizer.json")
	cfg.Extractor.LabelsPath = filepath.Join("models", "ner", "config.json")
	cfg.Extractor.CacheDir = "cache"
	return compliance.SaveConfig(clean, cfg)
}

// persistConfig saves cfg, keeping the previous file on failure.
func persistConfig(path string, cfg compliance.Config) error {
	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath
	}
	return compliance.SaveConfig(path, cfg)
}
