package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"resume-screener-go/internal/api"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/constants"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ api.SessionStore = (*SessionStore)(nil)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r, err := NewRedisFromClient(client, &config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestSessionStoreRoundTrip(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()
	store := r.SessionStore("s-1", time.Hour)

	cookies, err := store.LoadCookies(ctx)
	require.NoError(t, err)
	assert.Empty(t, cookies, "新会话没有cookie")

	require.NoError(t, store.SaveCookies(ctx, map[string]string{"session": "abc", "lang": "en"}))

	key := fmt.Sprintf(constants.KeySessionCookies, "s-1")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	cookies, err = store.LoadCookies(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"session": "abc", "lang": "en"}, cookies)

	// 整体替换，不保留旧字段
	require.NoError(t, store.SaveCookies(ctx, map[string]string{"session": "def"}))
	cookies, err = store.LoadCookies(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"session": "def"}, cookies)

	require.NoError(t, store.SaveCookies(ctx, map[string]string{}))
	assert.False(t, mr.Exists(key))
}

func TestSessionStoresAreIsolated(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.SessionStore("a", 0).SaveCookies(ctx, map[string]string{"session": "1"}))
	cookies, err := r.SessionStore("b", 0).LoadCookies(ctx)
	require.NoError(t, err)
	assert.Empty(t, cookies)
}

func TestRecentResults(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()
	score := 82.0

	for i := 0; i < 4; i++ {
		require.NoError(t, r.PushRecentResult(ctx, "s-1", RecentResult{
			RecordID: fmt.Sprintf("r%d", i),
			Kind:     "resume",
			FileName: "cv.pdf",
			Score:    &score,
		}, 3, time.Hour))
	}

	results, err := r.RecentResults(ctx, "s-1", 10)
	require.NoError(t, err)
	require.Len(t, results, 3, "列表被裁剪到上限")
	assert.Equal(t, "r3", results[0].RecordID, "新的在前")
	assert.Equal(t, "r1", results[2].RecordID)
	require.NotNil(t, results[0].Score)
	assert.Equal(t, 82.0, *results[0].Score)

	key := fmt.Sprintf(constants.KeySessionRecentResults, "s-1")
	_, err = mr.Lpush(key, "not-json")
	require.NoError(t, err)
	results, err = r.RecentResults(ctx, "s-1", 2)
	require.NoError(t, err)
	assert.Len(t, results, 1, "无法解析的元素被跳过")
}

func TestRedisUnavailable(t *testing.T) {
	r, mr := newTestRedis(t)
	mr.Close()

	_, err := r.SessionStore("s", 0).LoadCookies(context.Background())
	assert.Error(t, err)
	assert.Error(t, r.Ping(context.Background()))
}
