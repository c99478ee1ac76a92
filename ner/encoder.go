// Package ner runs BERT-style token classification models exported to ONNX and
// turns their per-token predictions into named-entity spans.
package ner

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrNotInitialized is returned when Recognize is called before Init or after Close.
var ErrNotInitialized = errors.New("ner encoder is not initialized")

// Config describes the model files used by Encoder.
type Config struct {
	OrtDLL        string
	ModelPath     string
	TokenizerPath string
	LabelsPath    string
	Labels        []string
	MaxSeqLen     int
	MinScore      float32
}

// Encoder wraps an ONNX Runtime session and a HuggingFace tokenizer.
type Encoder struct {
	mu       sync.Mutex
	tk       *tokenizer.Tokenizer
	session  *ort.DynamicAdvancedSession
	labels   []string
	maxLen   int
	minScore float32
	useTypes bool
	ownsEnv  bool
}

// Init loads the tokenizer, the label table and the ONNX session.
func (e *Encoder) Init(cfg Config) error {
	if strings.TrimSpace(cfg.ModelPath) == "" {
		return errors.New("ner model path is empty")
	}
	if strings.TrimSpace(cfg.TokenizerPath) == "" {
		return errors.New("ner tokenizer path is empty")
	}
	labels := cfg.Labels
	if len(labels) == 0 && cfg.LabelsPath != "" {
		loaded, err := LoadLabels(cfg.LabelsPath)
		if err != nil {
			return err
		}
		labels = loaded
	}
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = 512
	}

	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}

	if cfg.OrtDLL != "" {
		ort.SetSharedLibraryPath(cfg.OrtDLL)
	}
	ownsEnv := false
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
		ownsEnv = true
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		if ownsEnv {
			_ = ort.DestroyEnvironment()
		}
		return fmt.Errorf("inspect model: %w", err)
	}
	if len(outputs) == 0 {
		if ownsEnv {
			_ = ort.DestroyEnvironment()
		}
		return errors.New("model declares no outputs")
	}
	useTypes := false
	for _, in := range inputs {
		if in.Name == "token_type_ids" {
			useTypes = true
		}
	}
	inputNames := []string{"input_ids", "attention_mask"}
	if useTypes {
		inputNames = append(inputNames, "token_type_ids")
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, []string{outputs[0].Name}, nil)
	if err != nil {
		if ownsEnv {
			_ = ort.DestroyEnvironment()
		}
		return fmt.Errorf("create session: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tk = tk
	e.session = session
	e.labels = append([]string(nil), labels...)
	e.maxLen = cfg.MaxSeqLen
	e.minScore = cfg.MinScore
	e.useTypes = useTypes
	e.ownsEnv = ownsEnv
	return nil
}

// Close releases the session and, if Init created it, the ORT environment.
func (e *Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		_ = e.session.Destroy()
		e.session = nil
	}
	if e.ownsEnv {
		_ = ort.DestroyEnvironment()
		e.ownsEnv = false
	}
	e.tk = nil
}

// Labels returns the class labels in id order.
func (e *Encoder) Labels() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.labels...)
}

// Recognize returns the entity spans found in text.
func (e *Encoder) Recognize(text string) ([]Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.tk == nil {
		return nil, ErrNotInitialized
	}

	enc, err := e.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	n := len(enc.Ids)
	if n == 0 {
		return nil, nil
	}
	keep := truncateIndices(n, e.maxLen)
	n = len(keep)

	ids := make([]int64, n)
	mask := make([]int64, n)
	types := make([]int64, n)
	for i, src := range keep {
		ids[i] = int64(enc.Ids[src])
		mask[i] = 1
		if src < len(enc.AttentionMask) {
			mask[i] = int64(enc.AttentionMask[src])
		}
		if src < len(enc.TypeIds) {
			types[i] = int64(enc.TypeIds[src])
		}
	}

	shape := ort.NewShape(1, int64(n))
	idsT, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idsT.Destroy()
	maskT, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer maskT.Destroy()
	inputs := []ort.Value{idsT, maskT}
	if e.useTypes {
		typesT, err := ort.NewTensor(shape, types)
		if err != nil {
			return nil, fmt.Errorf("token_type_ids tensor: %w", err)
		}
		defer typesT.Destroy()
		inputs = append(inputs, typesT)
	}

	numLabels := len(e.labels)
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(n), int64(numLabels)))
	if err != nil {
		return nil, fmt.Errorf("logits tensor: %w", err)
	}
	defer out.Destroy()

	if err := e.session.Run(inputs, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}
	logits := out.GetData()
	if len(logits) < n*numLabels {
		return nil, fmt.Errorf("unexpected logits size %d for %d tokens", len(logits), n)
	}

	tags := make([]TokenTag, n)
	for i, src := range keep {
		best, prob := argmaxSoftmax(logits[i*numLabels : (i+1)*numLabels])
		tag := TokenTag{Label: e.labels[best], Score: prob, Word: -1}
		if src < len(enc.Offsets) && len(enc.Offsets[src]) == 2 {
			tag.Start, tag.End = enc.Offsets[src][0], enc.Offsets[src][1]
		}
		if src < len(enc.Words) {
			tag.Word = enc.Words[src]
		}
		if src < len(enc.Tokens) {
			tag.Subword = strings.HasPrefix(enc.Tokens[src], "##")
		}
		if src < len(enc.SpecialTokenMask) {
			tag.Special = enc.SpecialTokenMask[src] == 1
		}
		tags[i] = tag
	}
	return Aggregate(text, tags, e.minScore), nil
}

// truncateIndices keeps at most maxLen positions out of n, always retaining
// the final (special) token.
func truncateIndices(n, maxLen int) []int {
	if maxLen <= 0 || n <= maxLen {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, maxLen)
	for i := 0; i < maxLen-1; i++ {
		out = append(out, i)
	}
	return append(out, n-1)
}

func argmaxSoftmax(row []float32) (int, float32) {
	if len(row) == 0 {
		return 0, 0
	}
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	var sum float64
	maxV := float64(row[best])
	for _, v := range row {
		sum += math.Exp(float64(v) - maxV)
	}
	return best, float32(1 / sum)
}
