package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/tracing"
	"resume-screener-go/internal/types"
	"resume-screener-go/pkg/ratelimit"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "resume-screener/api"

// maxErrorBodyLength 写入错误信息的响应体最大长度
const maxErrorBodyLength = 200

// Client 筛选服务的HTTP客户端，三个方法分别对应三个接口
type Client struct {
	baseURL   string
	hc        *client.Client
	timeout   time.Duration
	userAgent string
	session   SessionStore
	tracer    trace.Tracer
	limiter   *ratelimit.TokenBucket

	dialTimeout     time.Duration
	maxConnsPerHost int
	tracing         bool
}

// Option 定义客户端配置选项函数
type Option func(*Client)

// WithTimeout 单次请求超时，0表示不设超时
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithDialTimeout 建连超时
func WithDialTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.dialTimeout = timeout
		}
	}
}

// WithMaxConnsPerHost 每个host的最大连接数
func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxConnsPerHost = n
		}
	}
}

// WithUserAgent 自定义User-Agent
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithSessionStore 使用外部的会话存储（例如Redis）
func WithSessionStore(store SessionStore) Option {
	return func(c *Client) {
		if store != nil {
			c.session = store
		}
	}
}

// WithRateLimit 每分钟最多发出的请求数，0表示不限制。超出时等待，不会丢弃或重试
func WithRateLimit(qpm int) Option {
	return func(c *Client) {
		c.limiter = ratelimit.NewTokenBucket(qpm, 0)
	}
}

// WithTracing 是否为hertz客户端挂载OpenTelemetry中间件
func WithTracing(enabled bool) Option {
	return func(c *Client) {
		c.tracing = enabled
	}
}

// NewClient 创建筛选服务客户端
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		userAgent:       "resume-screener-go",
		session:         NewMemorySessionStore(),
		tracer:          otel.Tracer(tracerName),
		dialTimeout:     5 * time.Second,
		maxConnsPerHost: 8,
		tracing:         true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		return nil, errors.New("base url不能为空")
	}

	hc, err := client.NewClient(
		client.WithDialTimeout(c.dialTimeout),
		client.WithMaxConnsPerHost(c.maxConnsPerHost),
	)
	if err != nil {
		return nil, fmt.Errorf("创建hertz客户端失败: %w", err)
	}
	if c.tracing {
		hc.Use(hertztracing.ClientMiddleware())
	}
	c.hc = hc
	return c, nil
}

// BaseURL 返回服务地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Analyze 上传简历到 /upload
func (c *Client) Analyze(ctx context.Context, file types.UploadFile) Outcome[types.AnalyzeResponse] {
	ctx, span := c.tracer.Start(ctx, "api.Analyze", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("resume.file_name", tracing.MaskFileName(file.Name)),
		attribute.Int64("resume.size", file.Size),
	)

	req := protocol.AcquireRequest()
	defer protocol.ReleaseRequest(req)
	c.prepare(req, constants.PathUpload)
	req.SetFileReader(constants.FormFieldResume, file.Name, bytes.NewReader(file.Content))

	return finish[types.AnalyzeResponse](ctx, span, c.do(ctx, req))
}

// MatchJD 上传简历和JD到 /jd_match
func (c *Client) MatchJD(ctx context.Context, file types.UploadFile, jd string) Outcome[types.MatchResponse] {
	ctx, span := c.tracer.Start(ctx, "api.MatchJD", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("resume.file_name", tracing.MaskFileName(file.Name)),
		attribute.Int64("resume.size", file.Size),
		attribute.Int("jd.length", len([]rune(jd))),
	)

	req := protocol.AcquireRequest()
	defer protocol.ReleaseRequest(req)
	c.prepare(req, constants.PathJDMatch)
	req.SetMultipartFormData(map[string]string{constants.FormFieldJD: jd})
	req.SetFileReader(constants.FormFieldResume, file.Name, bytes.NewReader(file.Content))

	return finish[types.MatchResponse](ctx, span, c.do(ctx, req))
}

// Chat 发送聊天消息到 /chat
func (c *Client) Chat(ctx context.Context, message string) Outcome[types.ChatResponse] {
	ctx, span := c.tracer.Start(ctx, "api.Chat", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("chat.message", tracing.SafeMessage(message)))

	body, err := json.Marshal(types.ChatRequest{Message: message})
	if err != nil {
		return finish[types.ChatResponse](ctx, span, rawResult{err: fmt.Errorf("序列化聊天请求失败: %w", err)})
	}

	req := protocol.AcquireRequest()
	defer protocol.ReleaseRequest(req)
	c.prepare(req, constants.PathChat)
	req.Header.SetContentTypeBytes([]byte(consts.MIMEApplicationJSON))
	req.SetBody(body)

	return finish[types.ChatResponse](ctx, span, c.do(ctx, req))
}

func (c *Client) prepare(req *protocol.Request, path string) {
	req.SetRequestURI(c.baseURL + path)
	req.SetMethod(consts.MethodPost)
	req.Header.Set("Accept", consts.MIMEApplicationJSON)
	if c.userAgent != "" {
		req.Header.SetUserAgentBytes([]byte(c.userAgent))
	}
}

// rawResult 一次HTTP往返的原始结果
type rawResult struct {
	status int
	body   []byte
	err    error
}

func (c *Client) do(ctx context.Context, req *protocol.Request) rawResult {
	if err := c.limiter.Wait(ctx); err != nil {
		return rawResult{err: err}
	}

	cookies := c.loadCookies(ctx)
	for name, value := range cookies {
		req.Header.SetCookie(name, value)
	}

	resp := protocol.AcquireResponse()
	defer protocol.ReleaseResponse(resp)

	start := time.Now()
	var err error
	if deadline, ok := c.deadline(ctx, start); ok {
		err = c.hc.DoDeadline(ctx, req, resp, deadline)
	} else {
		err = c.hc.Do(ctx, req, resp)
	}
	elapsed := time.Since(start)

	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("uri", string(req.URI().Path())).
			Dur("elapsed", elapsed).
			Msg("请求筛选服务失败")
		return rawResult{err: err}
	}

	c.captureCookies(ctx, cookies, resp)

	body := append([]byte(nil), resp.Body()...)
	logger.Ctx(ctx).Debug().
		Str("uri", string(req.URI().Path())).
		Int("status", resp.StatusCode()).
		Int("bytes", len(body)).
		Dur("elapsed", elapsed).
		Msg("筛选服务已响应")
	return rawResult{status: resp.StatusCode(), body: body}
}

// deadline 合并ctx的截止时间和配置的超时，取较早者
func (c *Client) deadline(ctx context.Context, start time.Time) (time.Time, bool) {
	ctxDeadline, hasCtx := ctx.Deadline()
	if c.timeout <= 0 {
		return ctxDeadline, hasCtx
	}
	d := start.Add(c.timeout)
	if hasCtx && ctxDeadline.Before(d) {
		d = ctxDeadline
	}
	return d, true
}

func (c *Client) loadCookies(ctx context.Context) map[string]string {
	cookies, err := c.session.LoadCookies(ctx)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("读取会话cookie失败，本次请求不带cookie")
		return map[string]string{}
	}
	if cookies == nil {
		cookies = map[string]string{}
	}
	return cookies
}

// captureCookies 合并响应中的Set-Cookie，过期或清空的cookie被删除
func (c *Client) captureCookies(ctx context.Context, current map[string]string, resp *protocol.Response) {
	changed := false
	resp.Header.VisitAllCookie(func(_, value []byte) {
		cookie := protocol.AcquireCookie()
		defer protocol.ReleaseCookie(cookie)
		if err := cookie.ParseBytes(value); err != nil {
			return
		}
		name := string(cookie.Key())
		if name == "" {
			return
		}
		expired := cookie.MaxAge() < 0 ||
			(!cookie.Expire().IsZero() && cookie.Expire().Before(time.Now()))
		if len(cookie.Value()) == 0 || expired {
			if _, ok := current[name]; ok {
				delete(current, name)
				changed = true
			}
			return
		}
		if current[name] != string(cookie.Value()) {
			current[name] = string(cookie.Value())
			changed = true
		}
	})
	if !changed {
		return
	}
	if err := c.session.SaveCookies(ctx, current); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("保存会话cookie失败")
	}
}

// finish 把原始结果分类为 Success / Remote / Transport
//   - 响应体带非空 error 字段 -> Remote，与状态码无关
//   - 非JSON、非2xx、或字段类型无法解码 -> Transport
func finish[T any](ctx context.Context, span trace.Span, res rawResult) Outcome[T] {
	out := classify[T](res)
	span.SetAttributes(
		attribute.String("outcome", out.Kind.String()),
		attribute.Int("http.status_code", out.StatusCode),
	)
	switch out.Kind {
	case OutcomeRemote:
		tracing.RecordHTTPError(span, errors.New(out.Message), tracing.ErrorTypeRemote, out.StatusCode)
		logger.Ctx(ctx).Info().Str("message", out.Message).Int("status", out.StatusCode).Msg("筛选服务返回错误")
	case OutcomeTransport:
		tracing.RecordHTTPError(span, out.Err, tracing.ErrorTypeTransport, out.StatusCode)
	}
	return out
}

func classify[T any](res rawResult) Outcome[T] {
	if res.err != nil {
		return transport[T](res.err, 0)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(res.body, &probe); err != nil || probe == nil {
		if res.status < 200 || res.status >= 300 {
			return transport[T](&StatusError{StatusCode: res.status, Body: bodySnippet(res.body)}, res.status)
		}
		return transport[T](fmt.Errorf("响应不是JSON对象: %s", bodySnippet(res.body)), res.status)
	}

	if raw, ok := probe["error"]; ok {
		if msg := errorMessage(raw); msg != "" {
			return remote[T](msg, res.status)
		}
	}

	if res.status < 200 || res.status >= 300 {
		return transport[T](&StatusError{StatusCode: res.status, Body: bodySnippet(res.body)}, res.status)
	}

	var value T
	if err := json.Unmarshal(res.body, &value); err != nil {
		return transport[T](fmt.Errorf("解析响应失败: %w", err), res.status)
	}
	return success(value, res.body, res.status)
}

// errorMessage 后端的error通常是字符串，其他类型按原样展示
func errorMessage(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("false")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(trimmed)
}

func bodySnippet(body []byte) string {
	return tracing.TruncateString(strings.TrimSpace(string(body)), maxErrorBodyLength)
}
