package repository

import (
	"context"

	"warbler/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository 消息数据仓储
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建MessageRepository实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 创建消息，所有者不存在时返回 ErrNotFound
func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owners int64
		if err := tx.Model(&model.User{}).Where("id = ?", message.UserID).Count(&owners).Error; err != nil {
			return err
		}
		if owners == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(message).Error
	}))
}

// GetByID 根据ID获取消息
func (r *MessageRepository) GetByID(ctx context.Context, id uint) (*model.Message, error) {
	var message model.Message
	if err := r.db.WithContext(ctx).First(&message, id).Error; err != nil {
		return nil, translate(err)
	}
	return &message, nil
}

// DeleteWithLikes 在同一事务中删除消息及其全部点赞
// 先对消息行加锁，与并发点赞互斥
func (r *MessageRepository) DeleteWithLikes(ctx context.Context, id uint) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var message model.Message
		if err := lockMessage(tx, id, &message); err != nil {
			return err
		}
		if err := tx.Where("message_id = ?", id).Delete(&model.Like{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Message{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}))
}

// lockMessage 以 FOR UPDATE 读取消息行（sqlite 忽略行锁，依赖数据库级写锁）
func lockMessage(tx *gorm.DB, id uint, dest *model.Message) error {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(dest, id).Error
}
