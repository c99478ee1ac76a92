package compliance

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackedUpload struct {
	data   []byte
	opened int
	closed int
	err    error
}

func (u *trackedUpload) upload(name string) Upload {
	return Upload{Name: name, Open: func() (io.ReadCloser, error) {
		u.opened++
		return &trackedReader{Reader: bytes.NewReader(u.data), owner: u}, nil
	}}
}

type trackedReader struct {
	io.Reader
	owner *trackedUpload
}

func (r *trackedReader) Close() error {
	r.owner.closed++
	return r.owner.err
}

func TestProcessEndToEnd(t *testing.T) {
	m := newTestMonitor(t, NewGazetteerExtractor(nil), nil)
	in := Inputs{
		Rules:     BytesUpload("rules.json", []byte(`{"ACME Corp": "RULE-1"}`)),
		Standards: BytesUpload("standards.json", []byte(`{"ACME Corp": ["RULE-1"]}`)),
		Log:       BytesUpload("app.log", []byte("ACME Corp violated policy.\nNothing relevant here.\n")),
	}

	out, err := m.Process(context.Background(), in, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Result.Len())
	assert.Equal(t, []string{"Log 1: ACME Corp: Compliant (RULE-1)"}, out.Report.Compliant)
	assert.Equal(t, []string{"Log 2: Non-compliant (RULE-1)"}, out.Report.NonCompliant)
	assert.True(t, bytes.HasPrefix(out.PDF, []byte("%PDF-")))
}

func TestProcessClosesUploadsOnFailure(t *testing.T) {
	m := newTestMonitor(t, &fakeExtractor{err: errors.New("boom")}, nil)
	rules := &trackedUpload{data: []byte(`{"ACME": "R1"}`)}
	standards := &trackedUpload{data: []byte(`{}`)}
	logs := &trackedUpload{data: []byte("ACME\n")}

	_, err := m.Process(context.Background(), Inputs{
		Rules:     rules.upload("rules.json"),
		Standards: standards.upload("standards.json"),
		Log:       logs.upload("app.log"),
	}, time.Time{}, nil)
	require.Error(t, err)

	for _, u := range []*trackedUpload{rules, standards, logs} {
		assert.Equal(t, 1, u.opened)
		assert.Equal(t, 1, u.closed)
	}
}

func TestProcessStopsAtMalformedRules(t *testing.T) {
	m := newTestMonitor(t, &fakeExtractor{}, nil)
	logs := &trackedUpload{data: []byte("x\n")}

	_, err := m.Process(context.Background(), Inputs{
		Rules:     BytesUpload("rules.json", []byte("not json")),
		Standards: BytesUpload("standards.json", []byte("{}")),
		Log:       logs.upload("app.log"),
	}, time.Time{}, nil)
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.Zero(t, logs.opened)
}

func TestProcessReportsCloseError(t *testing.T) {
	m := newTestMonitor(t, &fakeExtractor{}, nil)
	closeErr := errors.New("close failed")
	rules := &trackedUpload{data: []byte(`{}`), err: closeErr}

	_, err := m.Process(context.Background(), Inputs{
		Rules:     rules.upload("rules.json"),
		Standards: BytesUpload("standards.json", []byte("{}")),
		Log:       BytesUpload("app.log", nil),
	}, time.Time{}, nil)
	assert.ErrorIs(t, err, closeErr)
}

func TestProcessMissingUpload(t *testing.T) {
	m := newTestMonitor(t, &fakeExtractor{}, nil)
	_, err := m.Process(context.Background(), Inputs{
		Rules: BytesUpload("rules.json", []byte("{}")),
		Log:   BytesUpload("app.log", nil),
	}, time.Time{}, nil)
	assert.ErrorIs(t, err, ErrMissingUpload)
	assert.ErrorContains(t, err, "compliance standards")
}

func TestProcessFileUploads(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	m := newTestMonitor(t, NewGazetteerExtractor(nil), nil)
	out, err := m.Process(context.Background(), Inputs{
		Rules:     FileUpload(write("rules.yaml", "Globex: RULE-7\n")),
		Standards: FileUpload(write("standards.toml", "Globex = [\"RULE-7\"]\n")),
		Log:       FileUpload(write("events.csv", "level,message\nINFO,Globex rollout\n")),
	}, time.Time{}, nil)
	require.NoError(t, err)
	line, ok := out.Result.Line("Log 1")
	require.True(t, ok)
	f, ok := line.Finding("Globex")
	require.True(t, ok)
	assert.Equal(t, "RULE-7", f.Rule)

	_, err = m.Process(context.Background(), Inputs{
		Rules:     FileUpload(filepath.Join(dir, "absent.json")),
		Standards: FileUpload(filepath.Join(dir, "absent.json")),
		Log:       FileUpload(filepath.Join(dir, "absent.log")),
	}, time.Time{}, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProcessHandlesMultiMegabyteLogLine(t *testing.T) {
	m := newTestMonitor(t, NewGazetteerExtractor(nil), nil)
	long := "ACME Corp " + strings.Repeat("x", 3<<20)
	out, err := m.Process(context.Background(), Inputs{
		Rules:     BytesUpload("rules.json", []byte(`{"ACME Corp": "RULE-1"}`)),
		Standards: BytesUpload("standards.json", []byte("{}")),
		Log:       BytesUpload("app.log", []byte(long+"\nsecond\n")),
	}, time.Time{}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, out.Result.Len())
	f, ok := out.Result.Lines[0].Finding("ACME Corp")
	require.True(t, ok)
	assert.Equal(t, "RULE-1", f.Rule)
	assert.True(t, bytes.HasPrefix(out.PDF, []byte("%PDF-")))
}
