package ner

import (
	"strings"
	"unicode/utf8"
)

// TokenTag is the per-token prediction fed into Aggregate.
type TokenTag struct {
	Label   string
	Score   float32
	Start   int
	End     int
	Word    int // -1 when unknown
	Subword bool
	Special bool
}

// Span is a recognized entity.
type Span struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float32 `json:"score"`
}

type openSpan struct {
	kind     string
	start    int
	end      int
	lastWord int
	scoreSum float32
	count    int
}

// Aggregate merges BIO-tagged tokens into entity spans over text. Spans are
// returned in order of appearance; spans scoring below minScore are dropped.
func Aggregate(text string, tags []TokenTag, minScore float32) []Span {
	var (
		out []Span
		cur *openSpan
	)
	flush := func() {
		if cur == nil {
			return
		}
		if sp, ok := cur.finish(text); ok && sp.Score >= minScore {
			out = append(out, sp)
		}
		cur = nil
	}
	for _, tag := range tags {
		if tag.Special || tag.End <= tag.Start {
			continue
		}
		prefix, kind := splitTag(tag.Label)
		continues := cur != nil && (tag.Subword || (tag.Word >= 0 && tag.Word == cur.lastWord))
		switch {
		case prefix == 'O':
			if continues {
				// trailing word piece of an entity word predicted as O
				cur.extend(tag)
				continue
			}
			flush()
		case continues:
			cur.extend(tag)
		case (prefix == 'I' || prefix == 'E') && cur != nil && cur.kind == kind:
			cur.extend(tag)
		default:
			flush()
			cur = &openSpan{kind: kind, start: tag.Start, end: tag.End, lastWord: tag.Word, scoreSum: tag.Score, count: 1}
		}
		if prefix == 'E' || prefix == 'S' {
			flush()
		}
	}
	flush()
	return out
}

func (s *openSpan) extend(tag TokenTag) {
	if tag.End > s.end {
		s.end = tag.End
	}
	s.lastWord = tag.Word
	s.scoreSum += tag.Score
	s.count++
}

func (s *openSpan) finish(text string) (Span, bool) {
	start, end := s.start, s.end
	if start < 0 || end > len(text) || start >= end {
		return Span{}, false
	}
	surface := text[start:end]
	if !utf8.ValidString(surface) {
		return Span{}, false
	}
	trimmed := strings.TrimSpace(surface)
	if trimmed == "" {
		return Span{}, false
	}
	start += strings.Index(surface, trimmed)
	return Span{
		Text:  trimmed,
		Label: s.kind,
		Start: start,
		End:   start + len(trimmed),
		Score: s.scoreSum / float32(s.count),
	}, true
}

// Texts returns the surface forms of spans in order.
func Texts(spans []Span) []string {
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = sp.Text
	}
	return out
}
