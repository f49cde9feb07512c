package repository

import (
	"context"
	"errors"

	"warbler/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository 点赞数据仓储
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository 创建LikeRepository实例
func NewLikeRepository(db *gorm.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

// Create 不存在时插入点赞记录
// 事务内先锁定消息行：消息已被删除时返回 ErrNotFound；
// 记录已存在时 created 为 false，不会产生第二行
func (r *LikeRepository) Create(ctx context.Context, userID, messageID uint) (created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var message model.Message
		if err := lockMessage(tx, messageID, &message); err != nil {
			return err
		}

		like := model.Like{UserID: userID, MessageID: messageID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	return created, translate(err)
}

// Delete 删除点赞记录，不存在时 removed 为 false
func (r *LikeRepository) Delete(ctx context.Context, userID, messageID uint) (removed bool, err error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Delete(&model.Like{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Exists 判断用户是否已点赞该消息
func (r *LikeRepository) Exists(ctx context.Context, userID, messageID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Like{}).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Count(&count).Error
	return count > 0, err
}

// CountByMessage 统计消息的点赞数
func (r *LikeRepository) CountByMessage(ctx context.Context, messageID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Like{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	return count, err
}

// ListLikedMessages 按消息ID升序分页获取用户点赞的消息（键集分页）
func (r *LikeRepository) ListLikedMessages(ctx context.Context, userID, afterMessageID uint, limit int) ([]*model.Message, error) {
	var messages []*model.Message
	err := r.db.WithContext(ctx).
		Joins("JOIN likes ON likes.message_id = messages.id").
		Where("likes.user_id = ? AND messages.id > ?", userID, afterMessageID).
		Order("messages.id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}
