package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"resume-screener-go/internal/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend 按路径返回固定响应并统计请求次数
type fakeBackend struct {
	srv   *httptest.Server
	calls map[string]*atomic.Int32
}

func newFakeBackend(t *testing.T, responses map[string]string) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{calls: map[string]*atomic.Int32{}}
	for path := range responses {
		fb.calls[path] = &atomic.Int32{}
	}
	fb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := responses[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fb.calls[r.URL.Path].Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) count(path string) int32 {
	if c, ok := fb.calls[path]; ok {
		return c.Load()
	}
	return 0
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// runCLI 使用临时配置文件运行命令
func runCLI(t *testing.T, baseURL, stdin string, args ...string) (int, string, string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "server:\n  base_url: \""+baseURL+"\"\nlogger:\n  level: error\n")

	var stdout, stderr bytes.Buffer
	full := append([]string{"-c", cfgPath, "--no-color", "--session", "test-session"}, args...)
	code := run(full, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestParseGlobal(t *testing.T) {
	opts, fs, err := parseGlobal([]string{"-c", "x.yaml", "--session", "s1", "--no-color", "analyze", "--preflight", "a.pdf"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "x.yaml", opts.configPath)
	assert.Equal(t, "s1", opts.sessionID)
	assert.True(t, opts.noColor)
	assert.Equal(t, []string{"analyze", "--preflight", "a.pdf"}, fs.Args())
}

func TestRunWithoutCommand(t *testing.T) {
	var stderr bytes.Buffer
	code := run(nil, strings.NewReader(""), io.Discard, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Usage: screener")
}

func TestRunVersion(t *testing.T) {
	var stdout bytes.Buffer
	assert.Equal(t, 0, run([]string{"version"}, strings.NewReader(""), &stdout, io.Discard))
	assert.Contains(t, stdout.String(), version)
}

func TestRunInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	assert.Equal(t, 0, run([]string{"init-config", path}, strings.NewReader(""), io.Discard, io.Discard))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "base_url")

	// 不覆盖已存在的文件
	var stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"init-config", path}, strings.NewReader(""), io.Discard, &stderr))
	assert.Contains(t, stderr.String(), "已存在")
}

func TestRunAnalyze(t *testing.T) {
	fb := newFakeBackend(t, map[string]string{
		"/upload": `{"summary":"Solid backend engineer","analytics":{"score":85,"skills":["Go","Redis"]},"model_info":{"response_time":1.2,"rag_enhanced":true}}`,
	})
	resume := writeFile(t, t.TempDir(), "resume.txt", "Alice\nGo developer")

	code, stdout, _ := runCLI(t, fb.srv.URL, "", "analyze", "--preflight", resume)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Preflight (text)")
	assert.Contains(t, stdout, "Resume Analysis")
	assert.Contains(t, stdout, "Solid backend engineer")
	assert.Contains(t, stdout, "85 (good)")
	assert.Contains(t, stdout, "Redis")
	assert.Equal(t, int32(1), fb.count("/upload"))
}

func TestRunAnalyzeRejectsInvalidType(t *testing.T) {
	fb := newFakeBackend(t, map[string]string{"/upload": `{}`})
	image := writeFile(t, t.TempDir(), "photo.png", "not a resume")

	code, stdout, _ := runCLI(t, fb.srv.URL, "", "analyze", image)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Invalid file type")
	assert.Zero(t, fb.count("/upload"))
}

func TestRunAnalyzeMissingFile(t *testing.T) {
	fb := newFakeBackend(t, map[string]string{"/upload": `{}`})

	code, stdout, _ := runCLI(t, fb.srv.URL, "", "analyze", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Could not read the selected file.")
	assert.Zero(t, fb.count("/upload"))
}

func TestRunAnalyzeRemoteError(t *testing.T) {
	fb := newFakeBackend(t, map[string]string{"/upload": `{"error":"Could not extract text from resume"}`})
	resume := writeFile(t, t.TempDir(), "resume.pdf", "%PDF-broken")

	code, stdout, _ := runCLI(t, fb.srv.URL, "", "analyze", resume)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Could not extract text from resume")
}

func TestRunMatch(t *testing.T) {
	fb := newFakeBackend(t, map[string]string{
		"/jd_match": `{"analytics":{"score":"72","matched_keywords":["Go"],"missing_keywords":["Kafka"]}}`,
	})
	dir := t.TempDir()
	resume := writeFile(t, dir, "resume.txt", "Go developer")
	jd := writeFile(t, dir, "jd.txt", "We need Go and Kafka")

	code, stdout, _ := runCLI(t, fb.srv.URL, "", "match", resume, "--jd-file", jd)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Job Description Match")
	assert.Contains(t, stdout, "72 (fair)")
	assert.Contains(t, stdout, "Kafka")
}

func TestRunMatchDescriptionFlags(t *testing.T) {
	fb := newFakeBackend(t, map[string]string{"/jd_match": `{}`})
	dir := t.TempDir()
	resume := writeFile(t, dir, "resume.txt", "Go developer")
	jd := writeFile(t, dir, "jd.txt", "Go")

	code, _, stderr := runCLI(t, fb.srv.URL, "", "match", resume, "--jd", "Go", "--jd-file", jd)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "either --jd or --jd-file")

	code, stdout, _ := runCLI(t, fb.srv.URL, "", "match", resume, "--jd", "   ")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "Please enter a job description.")
	assert.Zero(t, fb.count("/jd_match"))
}

func TestRunChat(t *testing.T) {
	fb := newFakeBackend(t, map[string]string{"/chat": `{"response":"Your strongest skill is Go.","rag_enhanced":true}`})

	code, stdout, _ := runCLI(t, fb.srv.URL, "", "chat", "what", "is", "my", "strongest", "skill?")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "what is my strongest skill?")
	assert.Contains(t, stdout, "[RAG]")
	assert.Contains(t, stdout, "Your strongest skill is Go.")

	code, _, _ = runCLI(t, fb.srv.URL, "", "chat")
	assert.Equal(t, 2, code)
}

func TestRunHistoryWithoutStorage(t *testing.T) {
	fb := newFakeBackend(t, map[string]string{})

	code, _, stderr := runCLI(t, fb.srv.URL, "", "history")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, history.ErrNoHistorySource.Error())
}

func TestRunUnknownCommand(t *testing.T) {
	fb := newFakeBackend(t, map[string]string{})

	code, _, stderr := runCLI(t, fb.srv.URL, "", "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)
}

func TestShellSession(t *testing.T) {
	fb := newFakeBackend(t, map[string]string{
		"/jd_match": `{"summary":"Good fit","analytics":{"score":90}}`,
		"/chat":     `{"response":"Sure, happy to help."}`,
	})
	resume := writeFile(t, t.TempDir(), "resume.txt", "Go developer")

	script := strings.Join([]string{
		"analyze",
		"select " + resume,
		"p",
		"jd Senior Go developer",
		"match",
		"tab chat",
		"can you help?",
		"history",
		"bogus",
		"clear",
		"quit",
		"chat never sent",
	}, "\n") + "\n"

	code, stdout, _ := runCLI(t, fb.srv.URL, script, "shell")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "session test-session")
	assert.Contains(t, stdout, "Please select a resume file first.")
	assert.Contains(t, stdout, "Selected: resume.txt")
	assert.Contains(t, stdout, "Preflight (text)")
	assert.Contains(t, stdout, "Good fit")
	assert.Contains(t, stdout, "[chat]")
	assert.Contains(t, stdout, "Sure, happy to help.")
	assert.Contains(t, stdout, "History needs mysql or redis")
	assert.Contains(t, stdout, `Unknown command "bogus"`)
	assert.NotContains(t, stdout, "never sent")
	assert.Equal(t, int32(1), fb.count("/jd_match"))
	assert.Equal(t, int32(1), fb.count("/chat"))
}

func TestWriteHistory(t *testing.T) {
	score := 81.5
	entries := []history.Entry{
		{RecordID: "r1", SessionID: "s1", Kind: "resume", FileName: "/tmp/a.pdf", Score: &score, RAGEnhanced: true, CreatedAt: time.Date(2025, 5, 1, 10, 0, 0, 0, time.Local)},
		{RecordID: "r2", SessionID: "s2", Kind: "jd_match", FileName: "b.docx", CreatedAt: time.Date(2025, 5, 1, 11, 0, 0, 0, time.Local)},
	}

	var out bytes.Buffer
	writeHistory(&out, entries, true)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "SESSION")
	assert.Contains(t, lines[1], "2025-05-01 10:00")
	assert.Contains(t, lines[1], "a.pdf")
	assert.Contains(t, lines[1], "81.5 (good)")
	assert.Contains(t, lines[1], "yes")
	assert.Contains(t, lines[2], "N/A")
	assert.Contains(t, lines[2], "s2")
}
