package compliance

import "sync"

// ColumnCandidates defines header names used to auto-detect the message column
// of CSV/TSV logs.
type ColumnCandidates struct {
	Message []string `json:"message"`
}

var (
	columnCandidatesMu  sync.RWMutex
	activeColumnOptions = defaultColumnCandidates()
)

func defaultColumnCandidates() ColumnCandidates {
	return ColumnCandidates{
		Message: []string{"message", "msg", "log", "text", "line", "event", "description", "body"},
	}
}

// DefaultColumnCandidates returns the built-in column detection candidates.
func DefaultColumnCandidates() ColumnCandidates {
	return defaultColumnCandidates().clone()
}

// SetColumnCandidates updates the candidates used during auto-detection. A nil
// Message list restores the defaults.
func SetColumnCandidates(candidates ColumnCandidates) {
	columnCandidatesMu.Lock()
	defer columnCandidatesMu.Unlock()
	if candidates.Message == nil {
		candidates = defaultColumnCandidates()
	}
	activeColumnOptions = candidates.clone()
}

func getColumnCandidates() ColumnCandidates {
	columnCandidatesMu.RLock()
	defer columnCandidatesMu.RUnlock()
	return activeColumnOptions.clone()
}

func (c ColumnCandidates) clone() ColumnCandidates {
	return ColumnCandidates{Message: cloneStrings(c.Message)}
}
