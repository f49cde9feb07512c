// Package testutil 提供测试用的数据库与Redis夹具
package testutil

import (
	"fmt"
	"testing"

	"warbler/internal/model"
	"warbler/pkg/db"
	"warbler/pkg/password"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewTestDB 创建独立的内存sqlite数据库并完成迁移
// 单连接保证事务串行，事务内必须使用 tx
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	password.Cost = bcrypt.MinCost

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// NewTestRedis 启动miniredis并返回客户端
func NewTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// CreateUser 直接写入一个用户，密码为明文 plain 的哈希
func CreateUser(t *testing.T, gdb *gorm.DB, username, plain string) *model.User {
	t.Helper()

	hash, err := password.Hash(plain)
	require.NoError(t, err)

	u := &model.User{
		Username:       username,
		Email:          username + "@example.com",
		PasswordHash:   hash,
		ImageURL:       model.DefaultImageURL,
		HeaderImageURL: model.DefaultHeaderImageURL,
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// CreateMessage 直接写入一条消息
func CreateMessage(t *testing.T, gdb *gorm.DB, owner *model.User, text string) *model.Message {
	t.Helper()

	m := &model.Message{Text: text, UserID: owner.ID}
	require.NoError(t, gdb.Create(m).Error)
	return m
}
