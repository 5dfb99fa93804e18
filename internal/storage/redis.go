package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/tracing"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var redisTracer = otel.Tracer("resume-screener/storage/redis")

const redisPingTimeout = 5 * time.Second

var errRedisNotReady = errors.New("redis客户端未初始化")

// Redis 会话cookie和最近结果缓存
type Redis struct {
	Client *redis.Client
	cfg    *config.RedisConfig
}

func redisOptions(cfg *config.RedisConfig) *redis.Options {
	seconds := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  seconds(cfg.DialTimeoutSeconds),
		ReadTimeout:  seconds(cfg.ReadTimeoutSeconds),
		WriteTimeout: seconds(cfg.WriteTimeoutSeconds),
		MaxRetries:   cfg.MaxRetries,
	}
}

// NewRedis 建立连接并PING一次，失败时关闭客户端
func NewRedis(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, errors.New("redis地址不能为空")
	}
	r, err := NewRedisFromClient(redis.NewClient(redisOptions(cfg)), cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("连接Redis %s 失败: %w", cfg.Address, err)
	}
	return r, nil
}

// NewRedisFromClient 包装已有客户端，单条命令的span由redisotel生成
func NewRedisFromClient(client *redis.Client, cfg *config.RedisConfig) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis客户端不能为空")
	}
	if cfg == nil {
		cfg = &config.RedisConfig{Address: client.Options().Addr}
	}
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("挂载redisotel失败: %w", err)
	}
	return &Redis{Client: client, cfg: cfg}, nil
}

func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return errRedisNotReady
	}
	return r.Client.Ping(ctx).Err()
}

// startSpan 组合操作(事务管道)的外层span
func (r *Redis) startSpan(ctx context.Context, name, operation, key string) (context.Context, trace.Span) {
	return redisTracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemRedis,
			attribute.Int("db.redis.database_index", r.cfg.DB),
			attribute.String("net.peer.name", r.cfg.Address),
			attribute.String("db.operation", operation),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
		),
	)
}

// ---------------- 会话cookie ----------------

// SessionStore 把后端会话cookie保存在Redis HASH中，供多次CLI调用共享
// 方法集与 api.SessionStore 一致
type SessionStore struct {
	redis     *Redis
	sessionID string
	ttl       time.Duration
}

// SessionStore 返回指定会话的cookie存储
func (r *Redis) SessionStore(sessionID string, ttl time.Duration) *SessionStore {
	return &SessionStore{redis: r, sessionID: sessionID, ttl: ttl}
}

func (s *SessionStore) key() string {
	return fmt.Sprintf(constants.KeySessionCookies, s.sessionID)
}

// LoadCookies 读取会话的全部cookie，key不存在时返回空map
func (s *SessionStore) LoadCookies(ctx context.Context) (map[string]string, error) {
	if s.redis.Client == nil {
		return nil, errRedisNotReady
	}
	cookies, err := s.redis.Client.HGetAll(ctx, s.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("读取会话cookie失败: %w", err)
	}
	return cookies, nil
}

// SaveCookies 整体替换会话cookie并刷新过期时间，空map表示删除
func (s *SessionStore) SaveCookies(ctx context.Context, cookies map[string]string) error {
	if s.redis.Client == nil {
		return errRedisNotReady
	}
	key := s.key()
	ctx, span := s.redis.startSpan(ctx, "Redis.SaveCookies", "MULTI", key)
	defer span.End()
	span.SetAttributes(attribute.Int("cookie.count", len(cookies)))

	pipe := s.redis.Client.TxPipeline()
	pipe.Del(ctx, key)
	if len(cookies) > 0 {
		values := make(map[string]any, len(cookies))
		for name, value := range cookies {
			values[name] = value
		}
		pipe.HSet(ctx, key, values)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("保存会话cookie失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ---------------- 最近结果 ----------------

// RecentResult 最近一次分析的摘要，按会话保存在LIST中
type RecentResult struct {
	RecordID    string    `json:"record_id"`
	Kind        string    `json:"kind"`
	FileName    string    `json:"file_name"`
	Score       *float64  `json:"score,omitempty"`
	Band        string    `json:"band,omitempty"`
	RAGEnhanced bool      `json:"rag_enhanced"`
	CreatedAt   time.Time `json:"created_at"`
}

// PushRecentResult 新结果放在最前，列表长度不超过 limit
func (r *Redis) PushRecentResult(ctx context.Context, sessionID string, result RecentResult, limit int, ttl time.Duration) error {
	if r.Client == nil {
		return errRedisNotReady
	}
	if limit <= 0 {
		limit = constants.RecentResultsLimit
	}
	key := fmt.Sprintf(constants.KeySessionRecentResults, sessionID)
	ctx, span := r.startSpan(ctx, "Redis.PushRecentResult", "LPUSH", key)
	defer span.End()

	data, err := json.Marshal(result)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return fmt.Errorf("序列化最近结果失败: %w", err)
	}

	pipe := r.Client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(limit-1))
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("写入最近结果失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// RecentResults 读取会话最近的结果，新的在前。无法解析的元素被跳过
func (r *Redis) RecentResults(ctx context.Context, sessionID string, limit int) ([]RecentResult, error) {
	if r.Client == nil {
		return nil, errRedisNotReady
	}
	if limit <= 0 {
		limit = constants.RecentResultsLimit
	}
	key := fmt.Sprintf(constants.KeySessionRecentResults, sessionID)
	items, err := r.Client.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取最近结果失败: %w", err)
	}

	results := make([]RecentResult, 0, len(items))
	for _, item := range items {
		var res RecentResult
		if err := json.Unmarshal([]byte(item), &res); err != nil {
			continue
		}
		results = append(results, res)
	}
	return results, nil
}
