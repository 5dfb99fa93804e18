package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"resume-screener-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProbe(t *testing.T, opts ...PreflightOption) *PreflightProbe {
	t.Helper()
	return NewPreflightProbe(context.Background(), opts...)
}

func uploadFile(name string, content []byte) types.UploadFile {
	return types.UploadFile{Name: name, Size: int64(len(content)), Content: content}
}

// buildDocx 生成最小可读的docx
func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() + `</w:body></w:document>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestProbePlainText(t *testing.T) {
	probe := newTestProbe(t)
	report := probe.Probe(context.Background(), uploadFile("cv.TXT", []byte("  Alice Zhang\nSenior Go Engineer  ")))

	assert.True(t, report.Supported)
	assert.True(t, report.HasText())
	assert.Equal(t, ExtractorPlainText, report.Extractor)
	assert.Equal(t, 4, report.Words)
	assert.Equal(t, len("Alice Zhang\nSenior Go Engineer"), report.Chars)
	assert.Equal(t, "Alice Zhang Senior Go Engineer", report.Snippet)
	assert.Empty(t, report.Warning)
}

func TestProbeEmptyTextWarns(t *testing.T) {
	report := newTestProbe(t).Probe(context.Background(), uploadFile("empty.txt", []byte(" \n\t ")))
	assert.True(t, report.Supported)
	assert.False(t, report.HasText())
	assert.Contains(t, report.Warning, "no text found")
}

func TestProbeInvalidUTF8(t *testing.T) {
	report := newTestProbe(t).Probe(context.Background(), uploadFile("bin.txt", []byte{0xff, 0xfe, 0xfd}))
	assert.Contains(t, report.Warning, "could not extract text locally")
	assert.Zero(t, report.Chars)
}

func TestProbeDocSkipped(t *testing.T) {
	report := newTestProbe(t).Probe(context.Background(), uploadFile("legacy.doc", []byte("binary")))
	assert.False(t, report.Supported)
	assert.False(t, report.HasText())
	assert.Contains(t, report.Warning, ".doc")
}

func TestProbeDocx(t *testing.T) {
	data := buildDocx(t, "Alice &amp; Bob", "Kubernetes, Go")
	report := newTestProbe(t).Probe(context.Background(), uploadFile("cv.docx", data))

	assert.Equal(t, ExtractorDocx, report.Extractor)
	require.Empty(t, report.Warning)
	assert.Equal(t, "Alice & Bob Kubernetes, Go", report.Snippet)
	assert.Equal(t, 5, report.Words)
}

func TestProbeBrokenDocx(t *testing.T) {
	report := newTestProbe(t).Probe(context.Background(), uploadFile("cv.docx", []byte("not a zip")))
	assert.True(t, report.Supported)
	assert.Contains(t, report.Warning, "could not extract text locally")
}

func TestProbeBrokenPDF(t *testing.T) {
	report := newTestProbe(t).Probe(context.Background(), uploadFile("cv.pdf", []byte("%PDF-1.4 truncated")))
	assert.True(t, report.Supported)
	assert.False(t, report.HasText())
	assert.NotEmpty(t, report.Warning)
}

func TestSnippetTruncates(t *testing.T) {
	assert.Equal(t, "abc", snippet("abc", 5))
	assert.Equal(t, "ab...", snippet("abcdef", 2))
	assert.Equal(t, "你好...", snippet("你好世界", 2))
	assert.Equal(t, "a b", snippet(" a \n\n b ", 10))

	probe := newTestProbe(t, WithSnippetLength(4))
	report := probe.Probe(context.Background(), uploadFile("cv.txt", []byte("Distributed systems")))
	assert.Equal(t, "Dist...", report.Snippet)
}

func TestStripDocxMarkup(t *testing.T) {
	in := `<w:body><w:p><w:r><w:t>Go</w:t><w:tab/><w:t>5 yrs</w:t></w:r></w:p><w:p><w:t>R&amp;D</w:t></w:p></w:body>`
	assert.Equal(t, "Go\t5 yrs\nR&D\n", stripDocxMarkup(in))
}
