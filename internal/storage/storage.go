package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"resume-screener-go/internal/config"
	"resume-screener-go/internal/logger"
)

// Storage 可选的归档依赖。未配置或连接失败的组件为nil
type Storage struct {
	MinIO    *MinIO    // 报告原文
	RabbitMQ *RabbitMQ // 筛选完成事件
	MySQL    *MySQL    // 筛选记录和发件箱
	Redis    *Redis    // 会话cookie和最近结果
}

// openComponent 组件未配置时返回nil，连接失败只记录下来不中断其他组件
func openComponent[T any](ctx context.Context, name string, enabled bool, open func() (*T, error), failures *[]error) *T {
	if !enabled {
		return nil
	}
	c, err := open()
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("component", name).Msg("存储组件初始化失败")
		*failures = append(*failures, fmt.Errorf("%s: %w", name, err))
		return nil
	}
	return c
}

// NewStorage 按配置连接各组件。配置了组件但全部失败时返回错误，
// 什么都没配置时返回空的 Storage
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, errors.New("配置不能为空")
	}

	var failures []error
	s := &Storage{
		Redis: openComponent(ctx, "Redis", cfg.Redis.Enabled(), func() (*Redis, error) {
			return NewRedis(&cfg.Redis)
		}, &failures),
		MySQL: openComponent(ctx, "MySQL", cfg.MySQL.Enabled(), func() (*MySQL, error) {
			return NewMySQL(&cfg.MySQL)
		}, &failures),
		MinIO: openComponent(ctx, "MinIO", cfg.MinIO.Enabled(), func() (*MinIO, error) {
			return NewMinIO(ctx, &cfg.MinIO)
		}, &failures),
		RabbitMQ: openComponent(ctx, "RabbitMQ", cfg.RabbitMQ.Enabled(), func() (*RabbitMQ, error) {
			return NewRabbitMQ(&cfg.RabbitMQ)
		}, &failures),
	}

	if len(failures) > 0 && s.Empty() {
		return nil, fmt.Errorf("所有存储组件初始化失败: %w", errors.Join(failures...))
	}
	return s, nil
}

// Empty 没有任何可用组件
func (s *Storage) Empty() bool {
	return s == nil || (s.MinIO == nil && s.RabbitMQ == nil && s.MySQL == nil && s.Redis == nil)
}

type namedCloser struct {
	name string
	io.Closer
}

// Close 先停事件发布，再关数据库和缓存。MinIO 客户端无需关闭
func (s *Storage) Close() {
	if s == nil {
		return
	}
	var closers []namedCloser
	if s.RabbitMQ != nil {
		closers = append(closers, namedCloser{"RabbitMQ", s.RabbitMQ})
	}
	if s.MySQL != nil {
		closers = append(closers, namedCloser{"MySQL", s.MySQL})
	}
	if s.Redis != nil {
		closers = append(closers, namedCloser{"Redis", s.Redis})
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Str("component", c.name).Msg("关闭存储连接失败")
		}
	}
}
