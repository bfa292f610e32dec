package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appreview "github.com/bryanwahyu/automaton-review/internal/application/review"
	domain "github.com/bryanwahyu/automaton-review/internal/domain/review"
	"github.com/bryanwahyu/automaton-review/internal/infra/ai/extract"
	"github.com/bryanwahyu/automaton-review/internal/infra/ai/prompt"
	"github.com/bryanwahyu/automaton-review/internal/infra/ingest"
	"github.com/bryanwahyu/automaton-review/internal/middleware"
)

type fakeClient struct {
	reply string
	err   error
	calls int
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) Complete(context.Context, string) (string, error) {
	f.calls++
	return f.reply, f.err
}

const parsedReply = `{"bugs":[{"message":"unchecked error","line":"7"},{"message":"race"}],` +
	`"security_vulnerabilities":[{"message":"sql injection","severity":"critical"}],` +
	`"improvements":[],"explanations":[{"message":"reads config"}]}`

type testServer struct {
	handler http.Handler
	scratch string
	client  *fakeClient
}

func newTestServer(t *testing.T, client *fakeClient, opts Options) *testServer {
	t.Helper()
	scratch := t.TempDir()
	svc := &appreview.Service{
		Client:    client,
		Extractor: extract.New(),
		Archives:  ingest.NewArchiveExtractor(scratch, 1<<20),
		Assembler: ingest.NewAssembler(900 * 1024),
		Prompts:   prompt.Builder{},
	}
	return &testServer{handler: NewRouter(svc, opts), scratch: scratch, client: client}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type formPart struct {
	field    string
	filename string
	body     []byte
}

func multipartRequest(t *testing.T, parts ...formPart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.filename == "" {
			require.NoError(t, mw.WriteField(p.field, string(p.body)))
			continue
		}
		w, err := mw.CreateFormFile(p.field, p.filename)
		require.NoError(t, err)
		_, err = w.Write(p.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type successBody struct {
	Analysis json.RawMessage `json:"analysis"`
	Parsed   bool            `json:"parsed"`
	Message  string          `json:"message"`
	Source   domain.Source   `json:"source"`
	Issues   []domain.Issue  `json:"issues"`
}

type failureBody struct {
	Error  string         `json:"error"`
	Issues []domain.Issue `json:"issues"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNonPostIsMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &fakeClient{reply: parsedReply}, Options{})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := s.do(httptest.NewRequest(method, "/api/analyze", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.Equal(t, "POST", rec.Header().Get("Allow"))

		body := decode[failureBody](t, rec)
		assert.Equal(t, domain.MsgMethodNotAllowed, body.Error)
		require.Len(t, body.Issues, 1)
		assert.Equal(t, domain.CategoryError, body.Issues[0].Category)
		assert.Equal(t, domain.SeverityHigh, body.Issues[0].Severity)
	}
	assert.Zero(t, s.client.calls)
}

func TestEmptyOrInvalidCodeIsBadRequest(t *testing.T) {
	s := newTestServer(t, &fakeClient{reply: parsedReply}, Options{})

	for _, body := range []string{``, `{}`, `{"code": 42}`, `{"code": "   "}`, `not json`} {
		rec := s.do(jsonRequest(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, domain.MsgEmptyCode, decode[failureBody](t, rec).Error, body)
	}
	assert.Zero(t, s.client.calls)
}

func TestPastedCodeParsed(t *testing.T) {
	s := newTestServer(t, &fakeClient{reply: "Here:\n```json\n" + parsedReply + "\n```"}, Options{})

	rec := s.do(jsonRequest(`{"code": "func main() {}"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode[successBody](t, rec)
	assert.True(t, body.Parsed)
	assert.Equal(t, "Analyzing pasted code.", body.Message)
	assert.Equal(t, domain.KindPaste, body.Source.Kind)

	var analysis map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body.Analysis, &analysis))
	for _, k := range domain.RequiredKeys {
		assert.Contains(t, analysis, k)
	}

	require.Len(t, body.Issues, 4)
	assert.Equal(t, domain.SeverityHigh, body.Issues[0].Severity)
	assert.Equal(t, "7", body.Issues[0].Line)
	assert.Equal(t, domain.NotApplicable, body.Issues[1].Line)
	assert.Equal(t, domain.CategorySecurity, body.Issues[2].Category)
	assert.Equal(t, domain.CategoryExplanation, body.Issues[3].Category)
	assert.Equal(t, domain.SeverityInfo, body.Issues[3].Severity)

	seen := map[string]bool{}
	for _, is := range body.Issues {
		assert.False(t, seen[is.ID], "duplicate id %s", is.ID)
		seen[is.ID] = true
	}
}

func TestParsedAnalysisIsReturnedAsSent(t *testing.T) {
	reply := `{"summary":"one issue","bugs":[{"message":"race"}],` +
		`"security_vulnerabilities":[],"improvements":[],"explanations":[]}`
	s := newTestServer(t, &fakeClient{reply: reply}, Options{})

	rec := s.do(jsonRequest(`{"code": "go f()"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[successBody](t, rec)
	assert.True(t, body.Parsed)
	assert.JSONEq(t, reply, string(body.Analysis))
	require.Len(t, body.Issues, 1)
	assert.Equal(t, domain.NotApplicable, body.Issues[0].Line)
}

func TestPastedCodeUnparsedKeepsRawText(t *testing.T) {
	raw := `I found nothing. {"bugs":[],"security_vulnerabilities":[],"explanations":[]}`
	s := newTestServer(t, &fakeClient{reply: raw}, Options{})

	rec := s.do(jsonRequest(`{"code": "x = 1"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[successBody](t, rec)
	assert.False(t, body.Parsed)
	var text string
	require.NoError(t, json.Unmarshal(body.Analysis, &text))
	assert.Equal(t, raw, text)
	require.Len(t, body.Issues, 1)
	assert.Equal(t, domain.CategoryRaw, body.Issues[0].Category)
}

func TestSingleFileUpload(t *testing.T) {
	s := newTestServer(t, &fakeClient{reply: parsedReply}, Options{})

	rec := s.do(multipartRequest(t, formPart{field: "codeFile", filename: "handler.go", body: []byte("package x\n")}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[successBody](t, rec)
	assert.Equal(t, "Analyzing single file: handler.go.", body.Message)
	assert.Equal(t, domain.KindFile, body.Source.Kind)
	assert.Equal(t, "handler.go", body.Source.Name)
	assert.Equal(t, "handler.go", body.Issues[0].FilePath)
}

func TestUploadedFileWinsOverCodeField(t *testing.T) {
	s := newTestServer(t, &fakeClient{reply: parsedReply}, Options{})

	rec := s.do(multipartRequest(t,
		formPart{field: "code", body: []byte("ignored")},
		formPart{field: "codeFile", filename: "app.py", body: []byte("print(1)\n")},
	))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "app.py", decode[successBody](t, rec).Source.Name)
}

func TestMultipartWithoutFile(t *testing.T) {
	s := newTestServer(t, &fakeClient{reply: parsedReply}, Options{})

	rec := s.do(multipartRequest(t, formPart{field: "code", body: []byte("print(1)")}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.MsgNoFileUploaded, decode[failureBody](t, rec).Error)
}

func TestUnsupportedSingleFile(t *testing.T) {
	s := newTestServer(t, &fakeClient{reply: parsedReply}, Options{})

	rec := s.do(multipartRequest(t, formPart{field: "codeFile", filename: "notes.txt", body: []byte("hi")}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.MsgUnsupportedFile, decode[failureBody](t, rec).Error)
}

func TestFileTooLarge(t *testing.T) {
	s := newTestServer(t, &fakeClient{reply: parsedReply}, Options{MaxUploadBytes: 4718592})

	big := bytes.Repeat([]byte("a"), 4718593)
	rec := s.do(multipartRequest(t, formPart{field: "codeFile", filename: "big.js", body: big}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `"File too large. Maximum allowed is 4.5MB."`, mustField(t, rec, "error"))

	// exactly at the limit is accepted
	rec = s.do(multipartRequest(t, formPart{field: "codeFile", filename: "ok.js", body: big[:4718592]}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, s.client.calls)
}

func TestBodyFarOverLimit(t *testing.T) {
	s := newTestServer(t, &fakeClient{reply: parsedReply}, Options{MaxUploadBytes: 1024})

	huge := bytes.Repeat([]byte("b"), 3<<20)
	rec := s.do(multipartRequest(t, formPart{field: "codeFile", filename: "huge.zip", body: huge}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, domain.MsgFileTooLarge, decode[failureBody](t, rec).Error)
	assertScratchEmpty(t, s.scratch)
}

func mustField(t *testing.T, rec *httptest.ResponseRecorder, key string) string {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return string(m[key])
}

func TestZipUpload(t *testing.T) {
	s := newTestServer(t, &fakeClient{reply: parsedReply}, Options{})
	data := zipBytes(t, map[string]string{
		"project/main.go":             "package main\n\nfunc main() {}\n",
		"project/web/app.tsx":         "export const App = () => null\n",
		"project/node_modules/x/i.js": "skip()\n",
		"project/README.md":           "# readme\n",
	})

	rec := s.do(multipartRequest(t, formPart{field: "codeFile", filename: "project.zip", body: data}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[successBody](t, rec)
	assert.Equal(t, domain.KindArchive, body.Source.Kind)
	assert.Equal(t, "project.zip", body.Source.Name)
	assert.Equal(t, 2, body.Source.FilesIncluded)
	assert.Equal(t, "Analyzing codebase from ZIP: project.zip (processed 2 key files).", body.Message)
	assertScratchEmpty(t, s.scratch)
}

func TestCorruptZipIsServerError(t *testing.T) {
	s := newTestServer(t, &fakeClient{reply: parsedReply}, Options{})

	rec := s.do(multipartRequest(t, formPart{field: "codeFile", filename: "broken.ZIP", body: []byte("not a zip")}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, domain.MsgArchive, decode[failureBody](t, rec).Error)
	assert.Zero(t, s.client.calls)
	assertScratchEmpty(t, s.scratch)
}

func TestUpstreamFailuresAreServerErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"auth":        {domain.ErrUpstreamAuth, domain.MsgUpstreamAuth},
		"quota":       {domain.ErrUpstreamQuota, domain.MsgUpstreamQuota},
		"unavailable": {domain.ErrUpstreamUnavailable, domain.MsgUpstreamGeneric},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t, &fakeClient{err: tc.err}, Options{})
			zipped := zipBytes(t, map[string]string{"a.go": "package a\n"})

			rec := s.do(multipartRequest(t, formPart{field: "codeFile", filename: "a.zip", body: zipped}))
			assert.Equal(t, http.StatusInternalServerError, rec.Code)

			body := decode[failureBody](t, rec)
			assert.Equal(t, tc.want, body.Error)
			require.Len(t, body.Issues, 1)
			assert.Equal(t, domain.CategoryError, body.Issues[0].Category)
			assertScratchEmpty(t, s.scratch)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, &fakeClient{reply: parsedReply}, Options{AllowedOrigins: []string{"https://review.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "https://review.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := s.do(req)

	assert.Equal(t, "https://review.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Zero(t, s.client.calls)
}

func TestRateLimitedAnalyze(t *testing.T) {
	rl, err := middleware.NewRateLimiter(1, 1, 8)
	require.NoError(t, err)
	s := newTestServer(t, &fakeClient{reply: parsedReply}, Options{RateLimiter: rl})

	assert.Equal(t, http.StatusOK, s.do(jsonRequest(`{"code":"a"}`)).Code)
	rec := s.do(jsonRequest(`{"code":"b"}`))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 1, s.client.calls)
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t, &fakeClient{reply: parsedReply}, Options{
		Readiness: map[string]middleware.HealthChecker{
			"provider": middleware.ProviderChecker{Configured: func() bool { return true }},
		},
	})

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "analyses")
}
