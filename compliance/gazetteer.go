package compliance

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"
)

// GazetteerExtractor finds known entity names in text without a model. It is
// the offline backend: names are the rule-definition keys of each request.
//
// Matching ignores case and returns the dictionary spelling, not the surface
// form: "acme corp" in a log yields "ACME Corp", which then matches the rule
// key exactly. The ONNX backend returns surface forms and so stays
// case-sensitive at rule lookup.
type GazetteerExtractor struct {
	names []string
}

// NewGazetteerExtractor builds an extractor over the given names. Longer
// names win over their prefixes.
func NewGazetteerExtractor(names []string) *GazetteerExtractor {
	cleaned := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		cleaned = append(cleaned, name)
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		return utf8.RuneCountInString(cleaned[i]) > utf8.RuneCountInString(cleaned[j])
	})
	return &GazetteerExtractor{names: cleaned}
}

// WithNames returns a gazetteer over names. The receiver is not modified, so
// concurrent requests never share a dictionary.
func (g *GazetteerExtractor) WithNames(names []string) Extractor {
	return NewGazetteerExtractor(names)
}

// ExtractEntities returns dictionary names occurring in text on word
// boundaries, case-insensitively, in order of appearance. The dictionary
// spelling is returned so rule lookups match.
func (g *GazetteerExtractor) ExtractEntities(_ context.Context, text string) ([]string, error) {
	names := g.names
	if len(names) == 0 || text == "" {
		return nil, nil
	}
	var out []string
	prev := rune(-1)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if prev == -1 || !isWordRune(prev) || !isWordRune(r) {
			if name, n, ok := matchAt(text[i:], names); ok {
				out = append(out, name)
				last, _ := utf8.DecodeLastRuneInString(text[i : i+n])
				prev = last
				i += n
				continue
			}
		}
		prev = r
		i += size
	}
	return out, nil
}

func matchAt(s string, names []string) (string, int, bool) {
	for _, name := range names {
		n, ok := foldPrefixLen(s, name)
		if !ok {
			continue
		}
		if n < len(s) {
			next, _ := utf8.DecodeRuneInString(s[n:])
			last, _ := utf8.DecodeLastRuneInString(name)
			if isWordRune(next) && isWordRune(last) {
				continue
			}
		}
		return name, n, true
	}
	return "", 0, false
}

// Close is a no-op.
func (g *GazetteerExtractor) Close() error { return nil }

// ModelID identifies the backend in logs.
func (g *GazetteerExtractor) ModelID() string { return BackendGazetteer }
