package model

import (
	"time"
)

// MaxMessageLength 消息正文最大长度（字符数）
const MaxMessageLength = 140

// Message 消息模型
// UserID 为消息所有者，创建后不可变更
// 删除消息时其点赞记录在同一事务内删除，外键级联作为兜底
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `gorm:"type:varchar(140);not null" json:"text"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`

	Likes []Like `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Message) TableName() string { return "messages" }

// OwnedBy 判断消息是否属于指定用户
func (m *Message) OwnedBy(userID uint) bool {
	return m != nil && userID != 0 && m.UserID == userID
}
