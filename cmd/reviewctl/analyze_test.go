package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-review/internal/config"
	domain "github.com/bryanwahyu/automaton-review/internal/domain/review"
	"github.com/bryanwahyu/automaton-review/internal/infra/httpserver"
)

type recordingAnalyzer struct {
	got []domain.Submission
	err error
}

func (a *recordingAnalyzer) Analyze(_ context.Context, sub domain.Submission) (*domain.Result, error) {
	a.got = append(a.got, sub)
	if a.err != nil {
		return nil, a.err
	}
	return &domain.Result{
		Analysis: &domain.Analysis{},
		Parsed:   true,
		Message:  "Analyzing pasted code.",
		Source:   domain.Source{Kind: sub.Kind, Name: sub.Name},
		Issues:   []domain.Issue{{ID: "1", Category: domain.CategoryInfo, Line: "N/A", Severity: domain.SeverityInfo}},
	}, nil
}

func runWith(t *testing.T, a *recordingAnalyzer, stdin string, args ...string) (int, string) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, k := range []string{"AI_PROVIDER", "AI_MODEL", "GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY"} {
		t.Setenv(k, "")
	}
	var out bytes.Buffer
	code := run(args, strings.NewReader(stdin), &out, func(context.Context, *config.Config) httpserver.Analyzer {
		return a
	})
	return code, out.String()
}

func TestAnalyzeStdin(t *testing.T) {
	a := &recordingAnalyzer{}
	code, out := runWith(t, a, "print('hi')\n", "analyze", "-", "--compact")

	assert.Equal(t, ExitSuccess, code)
	require.Len(t, a.got, 1)
	assert.Equal(t, domain.KindPaste, a.got[0].Kind)
	assert.Equal(t, "print('hi')\n", a.got[0].Code)

	var body httpserver.AnalyzeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.True(t, body.Parsed)
	assert.Len(t, body.Issues, 1)
}

func TestAnalyzeSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o600))

	a := &recordingAnalyzer{}
	code, _ := runWith(t, a, "", "analyze", path)

	assert.Equal(t, ExitSuccess, code)
	require.Len(t, a.got, 1)
	assert.Equal(t, domain.KindFile, a.got[0].Kind)
	assert.Equal(t, "main.go", a.got[0].Name)
}

func TestAnalyzeDirectoryIsZipped(t *testing.T) {
	root := filepath.Join(t.TempDir(), "proj")
	for name, body := range map[string]string{
		"main.go":               "package main\n",
		"web/app.ts":            "export {}\n",
		"node_modules/dep/i.js": "x()\n",
		"notes.md":              "# notes\n",
	} {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}

	a := &recordingAnalyzer{}
	code, _ := runWith(t, a, "", "analyze", root)
	require.Equal(t, ExitSuccess, code)
	require.Len(t, a.got, 1)
	assert.Equal(t, domain.KindArchive, a.got[0].Kind)
	assert.Equal(t, "proj.zip", a.got[0].Name)

	zr, err := zip.NewReader(bytes.NewReader(a.got[0].Data), int64(len(a.got[0].Data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"main.go", "web/app.ts"}, names)
}

func TestAnalyzeErrorsSetExitCode(t *testing.T) {
	code, out := runWith(t, &recordingAnalyzer{}, "", "analyze", filepath.Join(t.TempDir(), "missing.go"))
	assert.Equal(t, ExitUsageError, code)
	var body httpserver.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, domain.MsgNoFileUploaded, body.Error)
	require.Len(t, body.Issues, 1)
	assert.Equal(t, domain.CategoryError, body.Issues[0].Category)

	code, out = runWith(t, &recordingAnalyzer{err: domain.ErrUpstreamAuth}, "x := 1", "analyze", "-")
	assert.Equal(t, ExitAuthError, code)
	assert.Contains(t, out, domain.MsgUpstreamAuth)

	code, _ = runWith(t, &recordingAnalyzer{err: domain.ErrUpstreamUnavailable}, "x := 1", "analyze", "-")
	assert.Equal(t, ExitRuntimeError, code)
}

func TestAnalyzeRequiresOneArgument(t *testing.T) {
	code, _ := runWith(t, &recordingAnalyzer{}, "", "analyze")
	assert.Equal(t, ExitUsageError, code)
}

func TestZipDirTooLarge(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.js"), bytes.Repeat([]byte("q"), 4096), 0o600))

	_, err := zipDir(root, 16)
	require.ErrorIs(t, err, domain.ErrFileTooLarge)
}
