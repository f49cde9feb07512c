package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 消息点赞数缓存key前缀
const (
	LikeCountKeyPrefix   = KeyPrefix + "likes:count:"
	LikeVersionKeyPrefix = KeyPrefix + "likes:version:"
)

// versionTTL 版本号保留时间，需远大于一次回源耗时
const versionTTL = 24 * time.Hour

// storeIfUnchanged 仅当版本号与回源前读取的一致时回填
// KEYS[1] 计数key，KEYS[2] 版本key；ARGV[1] 回源前版本，ARGV[2] 计数，ARGV[3] TTL毫秒
var storeIfUnchanged = redis.NewScript(`
local current = redis.call("GET", KEYS[2])
if current == false then current = "" end
if current ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// LikeCountCache 点赞数旁路缓存
// 数据库为准；点赞、取消点赞、删除消息后使缓存失效。
// 每次失效递增版本号，回源期间发生过失效的结果不会写回
type LikeCountCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLikeCountCache 创建点赞数缓存
func NewLikeCountCache(rdb *redis.Client, ttl time.Duration) *LikeCountCache {
	return &LikeCountCache{rdb: rdb, ttl: ttl}
}

func likeCountKey(messageID uint) string {
	return fmt.Sprintf("%s%d", LikeCountKeyPrefix, messageID)
}

func likeVersionKey(messageID uint) string {
	return fmt.Sprintf("%s%d", LikeVersionKeyPrefix, messageID)
}

// Get 读取缓存，未命中时调用 load 并回填
func (c *LikeCountCache) Get(ctx context.Context, messageID uint, load func(context.Context) (int64, error)) (int64, error) {
	key := likeCountKey(messageID)

	count, err := c.rdb.Get(ctx, key).Int64()
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, redis.Nil) {
		// 缓存异常时直接回源
		return load(ctx)
	}

	version, err := c.rdb.Get(ctx, likeVersionKey(messageID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return load(ctx)
	}

	count, err = load(ctx)
	if err != nil {
		return 0, err
	}
	_ = storeIfUnchanged.Run(ctx, c.rdb,
		[]string{key, likeVersionKey(messageID)},
		version, count, c.ttl.Milliseconds(),
	).Err()
	return count, nil
}

// Invalidate 使指定消息的点赞数缓存失效
func (c *LikeCountCache) Invalidate(ctx context.Context, messageID uint) error {
	versionKey := likeVersionKey(messageID)

	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, versionKey)
	pipe.Expire(ctx, versionKey, versionTTL)
	pipe.Del(ctx, likeCountKey(messageID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("删除点赞数缓存失败: %w", err)
	}
	return nil
}
