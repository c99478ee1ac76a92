package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yashubustudio/logcompliance/compliance"
)

func newTestServer(t *testing.T, maxUpload int64) *Server {
	t.Helper()
	var cfg compliance.Config
	cfg.Extractor.Backend = compliance.BackendGazetteer
	cfg.Server.MaxUploadSize = maxUpload
	m, err := compliance.NewMonitor(compliance.NewGazetteerExtractor(nil), cfg, nil)
	require.NoError(t, err)
	s := New(m, nil)
	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func multipartBody(t *testing.T, files map[string][2]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for field, file := range files {
		part, err := w.CreateFormFile(field, file[0])
		require.NoError(t, err)
		_, err = part.Write([]byte(file[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func validFiles() map[string][2]string {
	return map[string][2]string{
		"rules":     {"rules.json", `{"ACME Corp": "RULE-1"}`},
		"standards": {"standards.json", `{"ACME Corp": ["RULE-1"]}`},
		"logs":      {"app.log", "ACME Corp violated policy.\nNothing relevant here.\n"},
	}
}

func post(t *testing.T, s *Server, target string, files map[string][2]string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeReturnsPDFAttachment(t *testing.T) {
	s := newTestServer(t, 0)
	rec := post(t, s, "/analyze", validFiles(), nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="log_analysis.pdf"`)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestAnalyzeJSONFormat(t *testing.T) {
	s := newTestServer(t, 0)
	rec := post(t, s, "/analyze?format=json", validFiles(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got map[string]map[string]struct {
		Rule       string
		Compliance bool
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "RULE-1", got["Log 1"]["ACME Corp"].Rule)
	assert.True(t, got["Log 1"]["ACME Corp"].Compliance)
	assert.False(t, got["Log 2"]["Compliant"].Compliance)
}

func TestAnalyzeMissingUpload(t *testing.T) {
	s := newTestServer(t, 0)
	files := validFiles()
	delete(files, "standards")

	rec := post(t, s, "/analyze", files, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "standards")
}

func TestAnalyzeMalformedRules(t *testing.T) {
	s := newTestServer(t, 0)
	files := validFiles()
	files["rules"] = [2]string{"rules.json", "{broken"}

	rec := post(t, s, "/analyze", files, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "decode rule definitions")
}

func TestAnalyzeRejectsOversizedUpload(t *testing.T) {
	s := newTestServer(t, 1024)
	files := validFiles()
	files["logs"] = [2]string{"app.log", strings.Repeat("ACME Corp\n", 500)}

	rec := post(t, s, "/analyze", files, nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	assert.Contains(t, rec.Body.String(), `"backend":"gazetteer"`)
}

func TestIndexServesForm(t *testing.T) {
	s := newTestServer(t, 0)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Upload Rule Definitions")
	assert.Contains(t, rec.Body.String(), "Process and Generate PDF")
}
