package parser

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/tracing"
	"resume-screener-go/internal/types"

	einopdf "github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var preflightTracer = otel.Tracer("resume-screener/parser")

// DefaultSnippetLength 预览片段的最大字符数
const DefaultSnippetLength = 160

// 提取器名称，写入报告
const (
	ExtractorEino      = "eino-pdf"
	ExtractorPDFReader = "ledongthuc-pdf"
	ExtractorDocx      = "docx"
	ExtractorPlainText = "text"
)

var (
	xmlTagPattern     = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// PreflightReport 本地文本探测结果，只用于提示，不影响上传
type PreflightReport struct {
	FileName  string
	Supported bool
	Extractor string
	Chars     int
	Words     int
	Snippet   string
	Warning   string
	Elapsed   time.Duration
}

// HasText 是否提取到了可用文本
func (r PreflightReport) HasText() bool {
	return r.Supported && r.Chars > 0
}

// PreflightProbe 上传前在本地尝试提取简历文本
// PDF 先用 eino 解析器，失败时退回 ledongthuc/pdf；DOCX 用 docx 库；DOC 不支持
type PreflightProbe struct {
	pdfParser  *einopdf.PDFParser
	snippetLen int
	timeout    time.Duration
}

// PreflightOption 探测器配置选项
type PreflightOption func(*PreflightProbe)

// WithSnippetLength 设置预览片段长度
func WithSnippetLength(n int) PreflightOption {
	return func(p *PreflightProbe) {
		if n > 0 {
			p.snippetLen = n
		}
	}
}

// WithProbeTimeout 单个文件的解析超时
func WithProbeTimeout(d time.Duration) PreflightOption {
	return func(p *PreflightProbe) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewPreflightProbe 创建探测器。eino 解析器创建失败时只记录日志，PDF 直接走备用解析
func NewPreflightProbe(ctx context.Context, opts ...PreflightOption) *PreflightProbe {
	p := &PreflightProbe{
		snippetLen: DefaultSnippetLength,
		timeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}

	parser, err := einopdf.NewPDFParser(ctx, &einopdf.Config{
		ToPages: false, // 整个PDF作为一个文档返回
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("创建eino PDF解析器失败，将使用备用PDF解析")
	} else {
		p.pdfParser = parser
	}
	return p
}

// Probe 探测文件文本。从不返回错误，所有问题都写进 Warning
func (p *PreflightProbe) Probe(ctx context.Context, file types.UploadFile) PreflightReport {
	start := time.Now()
	report := PreflightReport{FileName: file.Name, Supported: true}

	ctx, span := preflightTracer.Start(ctx, "parser.Preflight")
	defer span.End()
	span.SetAttributes(
		attribute.String("file.name", tracing.MaskFileName(file.Name)),
		attribute.Int64("file.size", file.Size),
	)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(strings.TrimPrefix(extensionOf(file.Name), ".")); ext {
	case "pdf":
		text, report.Extractor, err = p.extractPDF(ctx, file)
	case "docx":
		report.Extractor = ExtractorDocx
		text, err = extractDocx(file.Content)
	case "txt":
		report.Extractor = ExtractorPlainText
		text, err = extractPlainText(file.Content)
	default:
		report.Supported = false
		report.Warning = fmt.Sprintf("preflight is not available for .%s files; skipped", ext)
		report.Elapsed = time.Since(start)
		return report
	}
	report.Elapsed = time.Since(start)

	span.SetAttributes(attribute.String("parser.extractor", report.Extractor))
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeParse)
		logger.Ctx(ctx).Warn().Err(err).
			Str("extractor", report.Extractor).
			Msg("本地文本探测失败")
		report.Warning = fmt.Sprintf("could not extract text locally: %v", err)
		return report
	}

	text = strings.TrimSpace(text)
	report.Chars = utf8.RuneCountInString(text)
	report.Words = len(strings.Fields(text))
	report.Snippet = snippet(text, p.snippetLen)
	span.SetAttributes(attribute.Int("parser.chars", report.Chars))
	if report.Chars == 0 {
		report.Warning = "no text found; the server will likely reject this file"
	}

	logger.Ctx(ctx).Debug().
		Str("extractor", report.Extractor).
		Int("chars", report.Chars).
		Int("words", report.Words).
		Dur("elapsed", report.Elapsed).
		Msg("本地文本探测完成")
	return report
}

func (p *PreflightProbe) extractPDF(ctx context.Context, file types.UploadFile) (string, string, error) {
	if p.pdfParser != nil {
		docs, err := p.pdfParser.Parse(ctx, bytes.NewReader(file.Content),
			einoParser.WithURI(file.Name),
			einoParser.WithExtraMeta(map[string]any{"source": "preflight"}),
		)
		if err == nil {
			var sb strings.Builder
			for i, doc := range docs {
				if i > 0 {
					sb.WriteString("\n\n")
				}
				sb.WriteString(doc.Content)
			}
			if strings.TrimSpace(sb.String()) != "" {
				return sb.String(), ExtractorEino, nil
			}
		} else {
			logger.Ctx(ctx).Debug().Err(err).Msg("eino PDF解析失败，尝试备用解析")
		}
	}

	text, err := extractPDFPages(file.Content)
	return text, ExtractorPDFReader, err
}

// extractPDFPages 逐页提取，单页失败时跳过
func extractPDFPages(data []byte) (text string, err error) {
	// ledongthuc/pdf 对损坏的文件可能直接panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("解析PDF失败: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("读取PDF失败: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func extractDocx(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("解析docx失败: %w", err)
	}
	defer doc.Close()

	return stripDocxMarkup(doc.Editable().GetContent()), nil
}

// stripDocxMarkup 把 document.xml 转成纯文本，段落之间换行
func stripDocxMarkup(content string) string {
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = strings.ReplaceAll(content, "<w:tab/>", "\t")
	content = xmlTagPattern.ReplaceAllString(content, "")
	return html.UnescapeString(content)
}

func extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("文本不是有效的UTF-8编码")
	}
	return string(data), nil
}

// snippet 折叠空白后截取前 n 个字符
func snippet(text string, n int) string {
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func extensionOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return name[idx:]
}
