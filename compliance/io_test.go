package compliance

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRuleDefinitionsFormats(t *testing.T) {
	cases := map[string]string{
		"rules.json": `{"ACME Corp": "RULE-1", "Globex": "RULE-2"}`,
		"rules.yaml": "ACME Corp: RULE-1\nGlobex: RULE-2\n",
		"rules.toml": "\"ACME Corp\" = \"RULE-1\"\nGlobex = \"RULE-2\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rules, err := DecodeRuleDefinitions(strings.NewReader(body), name)
			require.NoError(t, err)
			assert.Equal(t, RuleDefinitions{"ACME Corp": "RULE-1", "Globex": "RULE-2"}, rules)
		})
	}
}

func TestDecodeComplianceStandards(t *testing.T) {
	standards, err := DecodeComplianceStandards(strings.NewReader(`{"ACME Corp": ["RULE-1", "RULE-9"]}`), "standards.json")
	require.NoError(t, err)
	assert.Equal(t, ComplianceStandards{"ACME Corp": {"RULE-1", "RULE-9"}}, standards)
}

func TestDecodeEmptyInputsYieldEmptyMappings(t *testing.T) {
	rules, err := DecodeRuleDefinitions(strings.NewReader(""), "rules.yaml")
	require.NoError(t, err)
	assert.NotNil(t, rules)
	assert.Empty(t, rules)

	standards, err := DecodeComplianceStandards(strings.NewReader("{}"), "standards.json")
	require.NoError(t, err)
	assert.Empty(t, standards)
}

func TestDecodeMalformedInput(t *testing.T) {
	cases := map[string]string{
		"rules.json":     `{"ACME": `,
		"trailing.json":  `{"ACME": "R1"} {"x": "y"}`,
		"wrongtype.json": `["ACME"]`,
		"rules.yaml":     "ACME: [unclosed",
		"rules.toml":     "ACME = ",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRuleDefinitions(strings.NewReader(body), name)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedInput)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestFormatFromName(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromName("a.YML"))
	assert.Equal(t, FormatTOML, FormatFromName("a.toml"))
	assert.Equal(t, FormatJSON, FormatFromName("a.json"))
	assert.Equal(t, FormatJSON, FormatFromName(""))
}

func TestReadLogLinesKeepsBlankLines(t *testing.T) {
	lines, err := ReadLogLines(strings.NewReader("\ufeffACME Corp violated policy.\r\n\n  Nothing relevant here.  \n"), "app.log", LogParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME Corp violated policy.", "", "Nothing relevant here."}, lines)
}

func TestReadLogLinesAcceptsVeryLongLines(t *testing.T) {
	long := "ACME Corp " + strings.Repeat("x", 3<<20)
	lines, err := ReadLogLines(strings.NewReader(long+"\r\nsecond"), "app.log", LogParseOptions{})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, long, lines[0])
	assert.Equal(t, "second", lines[1])
}

func TestReadLogLinesEmpty(t *testing.T) {
	lines, err := ReadLogLines(strings.NewReader(""), "app.log", LogParseOptions{})
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestReadLogLinesDetectsMessageColumn(t *testing.T) {
	body := "timestamp,level,Message\n2024-01-01,INFO,ACME Corp login\n2024-01-02,WARN,\"Globex, Inc. breach\"\n"
	lines, err := ReadLogLines(strings.NewReader(body), "events.csv", LogParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME Corp login", "Globex, Inc. breach"}, lines)
}

func TestReadLogLinesExplicitColumn(t *testing.T) {
	body := "ts\tdetail\n1\tfirst\n2\tsecond\n"
	lines, err := ReadLogLines(strings.NewReader(body), "events.tsv", LogParseOptions{MessageColumn: "detail"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, lines)

	lines, err = ReadLogLines(strings.NewReader("a,b\nc,d\n"), "raw.csv", LogParseOptions{MessageColumn: "#2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, lines)
}

func TestReadLogLinesFallsBackToFirstColumn(t *testing.T) {
	lines, err := ReadLogLines(strings.NewReader("one,x\ntwo\n"), "raw.csv", LogParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestReadLogLinesBadColumn(t *testing.T) {
	_, err := ReadLogLines(strings.NewReader("a,b\n"), "raw.csv", LogParseOptions{MessageColumn: "missing"})
	assert.Error(t, err)
	_, err = ReadLogLines(strings.NewReader("a,b\n"), "raw.csv", LogParseOptions{MessageColumn: "#0"})
	assert.Error(t, err)
	_, err = ReadLogLines(strings.NewReader("a,b\n"), "raw.csv", LogParseOptions{MessageColumn: "#3"})
	assert.Error(t, err)
}

func TestSetColumnCandidates(t *testing.T) {
	t.Cleanup(func() { SetColumnCandidates(ColumnCandidates{}) })
	SetColumnCandidates(ColumnCandidates{Message: []string{"payload"}})

	lines, err := ReadLogLines(strings.NewReader("message,payload\nx,y\n"), "e.csv", LogParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, lines)

	SetColumnCandidates(ColumnCandidates{})
	assert.Equal(t, DefaultColumnCandidates(), getColumnCandidates())
}

func TestLoadersReadFiles(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.json")
	standardsPath := filepath.Join(dir, "standards.yaml")
	logPath := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(rulesPath, []byte(`{"ACME": "R1"}`), 0o644))
	require.NoError(t, os.WriteFile(standardsPath, []byte("ACME:\n  - R1\n"), 0o644))
	require.NoError(t, os.WriteFile(logPath, []byte("ACME\n"), 0o644))

	rules, err := LoadRuleDefinitions(rulesPath)
	require.NoError(t, err)
	assert.Equal(t, "R1", rules["ACME"])

	standards, err := LoadComplianceStandards(standardsPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1"}, standards["ACME"])

	lines, err := LoadLogLines(logPath, LogParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ACME"}, lines)

	_, err = LoadRuleDefinitions(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
