package compliance

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"yashubustudio/logcompliance/ner"
)

const (
	// BackendONNX extracts entities with the ONNX token classification model.
	BackendONNX = "onnx"
	// BackendGazetteer matches rule-definition names literally.
	BackendGazetteer = "gazetteer"
)

// ErrNoExtractor is returned when a Monitor is built without an extractor.
var ErrNoExtractor = errors.New("entity extractor is required")

// Extractor exposes the minimal surface required by the analyzer.
type Extractor interface {
	ExtractEntities(ctx context.Context, text string) ([]string, error)
	Close() error
	ModelID() string
}

// NameScoped is implemented by extractors whose vocabulary comes from the
// rule definitions of each request.
type NameScoped interface {
	WithNames(names []string) Extractor
}

type recognizer interface {
	Recognize(text string) ([]ner.Span, error)
	Close()
}

// OrtExtractor is a thin wrapper over ner.Encoder with caching.
type OrtExtractor struct {
	rec      recognizer
	cfg      ExtractorConfig
	memCache *gocache.Cache
	mu       sync.RWMutex
}

// NewOrtExtractor initializes the encoder and prepares cache directories.
func NewOrtExtractor(cfg ExtractorConfig) (*OrtExtractor, error) {
	encoder := &ner.Encoder{}
	if err := encoder.Init(ner.Config{
		OrtDLL:        cfg.OrtDLL,
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		LabelsPath:    cfg.LabelsPath,
		Labels:        cfg.Labels,
		MaxSeqLen:     cfg.MaxSeqLen,
		MinScore:      cfg.MinScore,
	}); err != nil {
		return nil, fmt.Errorf("init ner encoder: %w", err)
	}
	o, err := newOrtExtractor(encoder, cfg)
	if err != nil {
		encoder.Close()
		return nil, err
	}
	return o, nil
}

func newOrtExtractor(rec recognizer, cfg ExtractorConfig) (*OrtExtractor, error) {
	if cfg.ModelID == "" && cfg.ModelPath != "" {
		cfg.ModelID = filepath.Base(filepath.Dir(cfg.ModelPath)) + "/" + filepath.Base(cfg.ModelPath)
	}
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	ttl := 30 * time.Minute
	if cfg.CacheTTL != "" {
		parsed, err := time.ParseDuration(cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("parse cache ttl: %w", err)
		}
		ttl = parsed
	}
	return &OrtExtractor{
		rec:      rec,
		cfg:      cfg,
		memCache: gocache.New(ttl, 2*ttl),
	}, nil
}

// NewExtractor builds the backend selected in cfg. The gazetteer backend
// starts empty; callers load names per request.
func NewExtractor(cfg ExtractorConfig) (Extractor, error) {
	switch cfg.Backend {
	case BackendGazetteer:
		return NewGazetteerExtractor(nil), nil
	case BackendONNX, "":
		return NewOrtExtractor(cfg)
	default:
		return nil, fmt.Errorf("unknown extractor backend %q", cfg.Backend)
	}
}

// Close releases ORT resources.
func (o *OrtExtractor) Close() error {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rec != nil {
		o.rec.Close()
		o.rec = nil
	}
	o.memCache.Flush()
	return nil
}

// ModelID returns the identifier used for cache keys.
func (o *OrtExtractor) ModelID() string {
	return o.cfg.ModelID
}

// ExtractEntities returns the entity surface forms found in text, in order.
func (o *OrtExtractor) ExtractEntities(_ context.Context, text string) ([]string, error) {
	normalized := NormalizeText(text)
	if normalized == "" {
		return nil, nil
	}
	o.mu.RLock()
	rec := o.rec
	o.mu.RUnlock()
	if rec == nil {
		return nil, ner.ErrNotInitialized
	}
	key := o.cacheKey(normalized)
	if ents, ok := o.memCache.Get(key); ok {
		return cloneStrings(ents.([]string)), nil
	}
	if ents, err := o.loadFromDisk(key); err == nil {
		o.memCache.SetDefault(key, ents)
		return cloneStrings(ents), nil
	}
	spans, err := rec.Recognize(normalized)
	if err != nil {
		return nil, err
	}
	ents := ner.Texts(spans)
	o.memCache.SetDefault(key, cloneStrings(ents))
	_ = o.saveToDisk(key, ents)
	return ents, nil
}

func (o *OrtExtractor) cacheKey(text string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, o.cfg.ModelID)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return hex.EncodeToString(h.Sum(nil))
}

func (o *OrtExtractor) loadFromDisk(key string) ([]string, error) {
	if o.cfg.CacheDir == "" {
		return nil, os.ErrNotExist
	}
	path := filepath.Join(o.cfg.CacheDir, key+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ents []string
	if err := json.Unmarshal(data, &ents); err != nil {
		return nil, fmt.Errorf("decode cache file %s: %w", path, err)
	}
	return ents, nil
}

func (o *OrtExtractor) saveToDisk(key string, ents []string) error {
	if o.cfg.CacheDir == "" {
		return nil
	}
	if ents == nil {
		ents = []string{}
	}
	path := filepath.Join(o.cfg.CacheDir, key+".json")
	tmp := path + ".tmp"
	data, err := json.Marshal(ents)
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
