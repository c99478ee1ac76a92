package app

import (
	"strings"

	"yashubustudio/logcompliance/compliance"
)

var resultHeader = []string{"Log", "Entity", "Rule", "Status", "Text"}

// buildTableData flattens a result into one row per finding, header first.
func buildTableData(res compliance.AnalysisResult) [][]string {
	data := make([][]string, 1, res.Len()+1)
	data[0] = resultHeader
	for _, line := range res.Lines {
		for i, f := range line.Findings {
			status := "Non-compliant"
			if f.Compliance {
				status = "Compliant"
			}
			text := ""
			if i == 0 {
				text = truncateText(line.Text, 100)
			}
			data = append(data, []string{line.Label, f.Entity, f.Rule, status, text})
		}
	}
	return data
}

func truncateText(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "…"
}
