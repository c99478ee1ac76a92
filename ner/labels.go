package ner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// DefaultLabels is the CoNLL-2003 tag set used by the common BERT NER exports.
var DefaultLabels = []string{"O", "B-MISC", "I-MISC", "B-PER", "I-PER", "B-ORG", "I-ORG", "B-LOC", "I-LOC"}

// LoadLabels reads the id2label table from a HuggingFace config.json.
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return ParseLabels(data)
}

// ParseLabels decodes an id2label object ({"0": "O", "1": "B-PER", ...}) into
// a slice indexed by class id.
func ParseLabels(data []byte) ([]string, error) {
	var doc struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	if len(doc.ID2Label) == 0 {
		return nil, errors.New("id2label is empty")
	}
	ids := make([]int, 0, len(doc.ID2Label))
	byID := make(map[int]string, len(doc.ID2Label))
	for key, label := range doc.ID2Label {
		id, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("invalid label id %q", key)
		}
		ids = append(ids, id)
		byID[id] = label
	}
	sort.Ints(ids)
	for i, id := range ids {
		if id != i {
			return nil, fmt.Errorf("label ids are not contiguous: missing %d", i)
		}
	}
	out := make([]string, len(ids))
	for _, id := range ids {
		out[id] = byID[id]
	}
	return out, nil
}

// splitTag separates a BIO tag into its prefix and entity type. Tags without
// a prefix are treated as inside tags.
func splitTag(tag string) (prefix byte, kind string) {
	if tag == "" || tag == "O" {
		return 'O', ""
	}
	if len(tag) > 2 && tag[1] == '-' {
		switch tag[0] {
		case 'B', 'I', 'E', 'S':
			return tag[0], tag[2:]
		}
	}
	return 'I', tag
}
