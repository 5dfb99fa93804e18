// Package controller 持有当前选中的文件、最近一次分析结果和聊天记录，
// 驱动三个后端请求并把结果投影到 Display 上
package controller

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"resume-screener-go/internal/api"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/tracing"
	"resume-screener-go/internal/types"
	"resume-screener-go/internal/view"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Screener 筛选服务，api.Client 实现了该接口
type Screener interface {
	Analyze(ctx context.Context, file types.UploadFile) api.Outcome[types.AnalyzeResponse]
	MatchJD(ctx context.Context, file types.UploadFile, jd string) api.Outcome[types.MatchResponse]
	Chat(ctx context.Context, message string) api.Outcome[types.ChatResponse]
}

// Display 被动的展示区域，只接收视图模型
type Display interface {
	ShowSelection(sel view.SelectionView)
	ClearSelection()
	SetActionsEnabled(enabled bool)

	ShowLoading(message string)
	HideLoading()
	ShowError(message string)
	HideError()

	ShowAnalysis(v view.AnalysisView)
	ShowMatch(v view.MatchView)
	HideResults()
	ClearDescription()

	AppendChatEntry(entry view.ChatEntryView)
	ShowTyping()
	HideTyping()
}

// ResultSink 接收每次成功的分析结果，例如归档到数据库。实现自行处理并记录错误
type ResultSink interface {
	Record(ctx context.Context, file types.UploadFile, result *types.AnalysisResult)
}

// operation 每类操作各自有一个进行中标记
type operation string

const (
	opAnalyze operation = "analyze"
	opMatch   operation = "match"
	opChat    operation = "chat"
)

// State 控制器状态快照
type State struct {
	Selection  *Selection
	Result     *types.AnalysisResult
	Transcript []types.ChatEntry
}

// Controller 上传/渲染控制器
type Controller struct {
	screener Screener
	display  Display
	sink     ResultSink
	tracer   trace.Tracer

	maxFileSize int64
	allowed     []string
	now         func() time.Time
	newID       func() string

	mu         sync.Mutex
	selection  *Selection
	result     *types.AnalysisResult
	transcript []types.ChatEntry
	pending    map[operation]bool
}

// Option 定义控制器配置选项函数
type Option func(*Controller)

// WithUploadConfig 使用配置中的扩展名和大小限制
func WithUploadConfig(cfg config.UploadConfig) Option {
	return func(c *Controller) {
		if len(cfg.AllowedExtensions) > 0 {
			c.allowed = slices.Clone(cfg.AllowedExtensions)
		}
		if cfg.MaxFileSizeBytes > 0 {
			c.maxFileSize = cfg.MaxFileSizeBytes
		}
	}
}

// WithResultSink 设置成功结果的接收者
func WithResultSink(sink ResultSink) Option {
	return func(c *Controller) {
		c.sink = sink
	}
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithIDGenerator 替换聊天条目ID的生成方式
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) {
		c.newID = newID
	}
}

// New 创建控制器
func New(screener Screener, display Display, opts ...Option) *Controller {
	c := &Controller{
		screener:    screener,
		display:     display,
		tracer:      otel.Tracer("resume-screener/controller"),
		maxFileSize: config.DefaultMaxFileSize,
		allowed:     slices.Clone(config.DefaultAllowedExtensions),
		now:         time.Now,
		newID:       uuid.NewString,
		pending:     make(map[operation]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.display.SetActionsEnabled(false)
	return c
}

// SelectFile 校验并替换当前选中的文件。校验失败时保留原来的选择
func (c *Controller) SelectFile(candidate FileCandidate) error {
	ext := fileExtension(candidate.Name)
	if !slices.Contains(c.allowed, ext) {
		return c.reject(newValidationError(ReasonInvalidType,
			fmt.Sprintf(constants.MsgInvalidFileType, strings.ToUpper(strings.Join(c.allowed, ", ")))))
	}
	if candidate.Size > c.maxFileSize {
		return c.reject(newValidationError(ReasonTooLarge,
			fmt.Sprintf(constants.MsgFileTooLarge, view.HumanSize(c.maxFileSize))))
	}
	if candidate.Open == nil {
		return c.reject(newValidationError(ReasonUnreadable, constants.MsgFileUnreadable))
	}

	sel := &Selection{
		Name:      candidate.Name,
		Size:      candidate.Size,
		Extension: ext,
		open:      candidate.Open,
	}
	c.mu.Lock()
	c.selection = sel
	c.mu.Unlock()

	logger.Debug().
		Str("file", tracing.MaskFileName(sel.Name)).
		Int64("size", sel.Size).
		Msg("已选择简历文件")

	c.display.HideError()
	c.display.ShowSelection(view.NewSelectionView(sel.Name, sel.Size, sel.Extension))
	c.display.SetActionsEnabled(true)
	return nil
}

// RemoveSelection 清除当前选中的文件
func (c *Controller) RemoveSelection() {
	c.mu.Lock()
	c.selection = nil
	c.mu.Unlock()

	c.display.ClearSelection()
	c.display.SetActionsEnabled(false)
}

// Analyze 把选中的文件提交到 /upload 并渲染结果
func (c *Controller) Analyze(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "controller.Analyze")
	defer span.End()

	file, release, err := c.begin(ctx, opAnalyze)
	if err != nil {
		return c.fail(span, err)
	}
	defer release()

	c.display.HideError()
	c.display.HideResults()
	hideLoading := sync.OnceFunc(c.display.HideLoading)
	c.display.ShowLoading("Analyzing resume...")
	defer hideLoading()

	out := c.screener.Analyze(ctx, file)
	hideLoading()

	switch out.Kind {
	case api.OutcomeSuccess:
		result := types.NewResumeResult(&out.Value, out.Raw, c.now())
		c.replaceResult(result)
		span.SetAttributes(attribute.Float64("result.score", result.Score().Value))
		c.display.ShowAnalysis(view.BuildAnalysisView(result))
		c.record(ctx, file, result)
		return nil
	case api.OutcomeRemote:
		return c.fail(span, c.remoteFailure(string(opAnalyze), out.Message, out.StatusCode))
	default:
		return c.fail(span, c.transportFailure(ctx, string(opAnalyze), out.Err))
	}
}

// MatchAgainstDescription 把选中的文件和JD提交到 /jd_match 并渲染结果
func (c *Controller) MatchAgainstDescription(ctx context.Context, description string) error {
	ctx, span := c.tracer.Start(ctx, "controller.MatchAgainstDescription")
	defer span.End()

	if !c.hasSelection() {
		return c.fail(span, c.reject(newValidationError(ReasonNoSelection, constants.MsgNoSelection)))
	}
	jd := strings.TrimSpace(description)
	if jd == "" {
		return c.fail(span, c.reject(newValidationError(ReasonEmptyDescription, constants.MsgEmptyDescription)))
	}

	file, release, err := c.begin(ctx, opMatch)
	if err != nil {
		return c.fail(span, err)
	}
	defer release()

	c.display.HideError()
	c.display.HideResults()
	hideLoading := sync.OnceFunc(c.display.HideLoading)
	c.display.ShowLoading("Matching resume against job description...")
	defer hideLoading()

	out := c.screener.MatchJD(ctx, file, jd)
	hideLoading()

	switch out.Kind {
	case api.OutcomeSuccess:
		result := types.NewMatchResult(&out.Value, out.Raw, c.now())
		result.JobDescription = jd
		c.replaceResult(result)
		span.SetAttributes(attribute.Float64("result.score", result.Score().Value))
		c.display.ShowMatch(view.BuildMatchView(result))
		c.record(ctx, file, result)
		return nil
	case api.OutcomeRemote:
		return c.fail(span, c.remoteFailure(string(opMatch), out.Message, out.StatusCode))
	default:
		return c.fail(span, c.transportFailure(ctx, string(opMatch), out.Err))
	}
}

// SendChatMessage 先追加用户消息，再追加助手回复。空消息直接忽略
func (c *Controller) SendChatMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !c.acquire(opChat) {
		return ErrOperationPending
	}
	defer c.releaseOp(opChat)

	ctx, span := c.tracer.Start(ctx, "controller.SendChatMessage")
	defer span.End()

	c.appendEntry(types.SenderUser, text, false)

	hideTyping := sync.OnceFunc(c.display.HideTyping)
	c.display.ShowTyping()
	defer hideTyping()

	out := c.screener.Chat(ctx, text)
	hideTyping()

	switch out.Kind {
	case api.OutcomeSuccess:
		c.appendEntry(types.SenderAssistant, out.Value.Response, out.Value.RAGEnhanced)
		return nil
	case api.OutcomeRemote:
		c.appendEntry(types.SenderAssistant, "Error: "+out.Message, false)
		err := &RemoteError{Op: string(opChat), Message: out.Message, StatusCode: out.StatusCode}
		return c.fail(span, err)
	default:
		logger.Ctx(ctx).Error().Err(out.Err).Msg("聊天请求失败")
		c.appendEntry(types.SenderAssistant, constants.MsgChatFailure, false)
		return c.fail(span, &TransportError{Op: string(opChat), Err: out.Err})
	}
}

// ClearAll 重置选择、结果以及所有展示区域，聊天记录保持不变
func (c *Controller) ClearAll() {
	c.mu.Lock()
	c.selection = nil
	c.result = nil
	c.mu.Unlock()

	c.display.ClearSelection()
	c.display.SetActionsEnabled(false)
	c.display.HideResults()
	c.display.HideError()
	c.display.ClearDescription()
}

// Snapshot 返回当前状态的副本
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sel *Selection
	if c.selection != nil {
		s := *c.selection
		sel = &s
	}
	return State{
		Selection:  sel,
		Result:     c.result,
		Transcript: slices.Clone(c.transcript),
	}
}

// Transcript 返回聊天记录的副本
func (c *Controller) Transcript() []types.ChatEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.transcript)
}

// begin 检查选择并获取进行中标记，然后读取文件内容
func (c *Controller) begin(ctx context.Context, op operation) (types.UploadFile, func(), error) {
	c.mu.Lock()
	sel := c.selection
	c.mu.Unlock()
	if sel == nil {
		return types.UploadFile{}, nil, c.reject(newValidationError(ReasonNoSelection, constants.MsgNoSelection))
	}
	if !c.acquire(op) {
		return types.UploadFile{}, nil, ErrOperationPending
	}
	release := func() { c.releaseOp(op) }

	file, err := c.readSelection(sel)
	if err != nil {
		release()
		logger.Ctx(ctx).Warn().Err(err).Str("file", tracing.MaskFileName(sel.Name)).Msg("读取选中文件失败")
		return types.UploadFile{}, nil, c.reject(err)
	}
	return file, release, nil
}

// readSelection 文件可能在选择之后被修改，读取时再检查一次大小
func (c *Controller) readSelection(sel *Selection) (types.UploadFile, *ValidationError) {
	rc, err := sel.open()
	if err != nil {
		return types.UploadFile{}, &ValidationError{Reason: ReasonUnreadable, Message: constants.MsgFileUnreadable, Err: err}
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, c.maxFileSize+1))
	if err != nil {
		return types.UploadFile{}, &ValidationError{Reason: ReasonUnreadable, Message: constants.MsgFileUnreadable, Err: err}
	}
	if int64(len(content)) > c.maxFileSize {
		return types.UploadFile{}, newValidationError(ReasonTooLarge,
			fmt.Sprintf(constants.MsgFileTooLarge, view.HumanSize(c.maxFileSize)))
	}
	return types.UploadFile{Name: sel.Name, Size: int64(len(content)), Content: content}, nil
}

func (c *Controller) hasSelection() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection != nil
}

func (c *Controller) acquire(op operation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[op] {
		return false
	}
	c.pending[op] = true
	return true
}

func (c *Controller) releaseOp(op operation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, op)
}

// Pending 某类操作是否正在进行
func (c *Controller) Pending(op string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[operation(op)]
}

func (c *Controller) replaceResult(result *types.AnalysisResult) {
	c.mu.Lock()
	c.result = result
	c.mu.Unlock()
}

func (c *Controller) appendEntry(sender types.Sender, text string, enhanced bool) {
	entry := types.ChatEntry{
		ID:          c.newID(),
		Sender:      sender,
		Text:        text,
		Timestamp:   c.now(),
		RAGEnhanced: enhanced,
	}
	c.mu.Lock()
	c.transcript = append(c.transcript, entry)
	c.mu.Unlock()
	c.display.AppendChatEntry(view.BuildChatEntryView(entry))
}

func (c *Controller) record(ctx context.Context, file types.UploadFile, result *types.AnalysisResult) {
	if c.sink == nil {
		return
	}
	c.sink.Record(ctx, file, result)
}

// reject 在错误横幅中展示校验错误
func (c *Controller) reject(err *ValidationError) *ValidationError {
	c.display.ShowError(err.Message)
	return err
}

func (c *Controller) remoteFailure(op, message string, status int) *RemoteError {
	c.display.ShowError(message)
	return &RemoteError{Op: op, Message: message, StatusCode: status}
}

func (c *Controller) transportFailure(ctx context.Context, op string, cause error) *TransportError {
	logger.Ctx(ctx).Error().Err(cause).Str("op", op).Msg("请求筛选服务失败")
	c.display.ShowError(constants.MsgTransportFailure)
	return &TransportError{Op: op, Err: cause}
}

// fail 记录span错误后原样返回
func (c *Controller) fail(span trace.Span, err error) error {
	var errType tracing.ErrorType
	switch err.(type) {
	case *ValidationError:
		errType = tracing.ErrorTypeValidation
	case *RemoteError:
		errType = tracing.ErrorTypeRemote
	case *TransportError:
		errType = tracing.ErrorTypeTransport
	default:
		errType = tracing.ErrorTypeInternal
	}
	tracing.RecordError(span, err, errType)
	return err
}
