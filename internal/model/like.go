package model

import (
	"time"
)

// Like 点赞关系
// (UserID, MessageID) 为联合主键，同一用户对同一消息最多一条记录
type Like struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	MessageID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Like) TableName() string { return "likes" }
