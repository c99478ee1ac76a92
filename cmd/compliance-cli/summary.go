package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"yashubustudio/logcompliance/compliance"
)

var (
	styleTitle     = lipgloss.NewStyle().Bold(true)
	styleCompliant = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleViolation = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleMuted     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// renderSummary formats per-line verdict counts for the terminal.
func renderSummary(res compliance.AnalysisResult, reportPath string) string {
	compliant, nonCompliant := res.Counts()
	var b strings.Builder
	b.WriteString(styleTitle.Render(fmt.Sprintf("Analyzed %d log lines", res.Len())))
	b.WriteByte('\n')
	b.WriteString(styleCompliant.Render(fmt.Sprintf("  compliant:     %d", compliant)))
	b.WriteByte('\n')
	b.WriteString(styleViolation.Render(fmt.Sprintf("  non-compliant: %d", nonCompliant)))
	b.WriteByte('\n')
	b.WriteString(styleMuted.Render("  report: " + reportPath))
	return b.String()
}
