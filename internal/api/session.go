package api

import (
	"context"
	"maps"
	"sync"
)

// SessionStore 保存后端会话cookie，使多次请求(以及多次命令调用)共享同一个后端会话
type SessionStore interface {
	LoadCookies(ctx context.Context) (map[string]string, error)
	SaveCookies(ctx context.Context, cookies map[string]string) error
}

// MemorySessionStore 进程内的cookie存储
type MemorySessionStore struct {
	mu      sync.Mutex
	cookies map[string]string
}

// NewMemorySessionStore 创建空的内存会话存储
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{cookies: make(map[string]string)}
}

// LoadCookies 返回当前cookie的副本
func (s *MemorySessionStore) LoadCookies(_ context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.cookies), nil
}

// SaveCookies 整体替换保存的cookie
func (s *MemorySessionStore) SaveCookies(_ context.Context, cookies map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = maps.Clone(cookies)
	if s.cookies == nil {
		s.cookies = make(map[string]string)
	}
	return nil
}

var _ SessionStore = (*MemorySessionStore)(nil)
