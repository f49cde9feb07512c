package model

import (
	"time"
)

// 头像与背景图默认值
const (
	DefaultImageURL       = "/static/images/default-pic.png"
	DefaultHeaderImageURL = "/static/images/warbler-hero.jpg"
)

// User 用户模型
// 索引与唯一约束：用户名唯一、邮箱唯一
// 说明：密码仅存储哈希（PasswordHash），不存储明文，也不参与序列化
// 用户不做硬删除；若删除，其消息与点赞随外键级联删除
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Username       string    `gorm:"type:varchar(30);not null;uniqueIndex" json:"username"`
	Email          string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"email"`
	PasswordHash   string    `gorm:"type:varchar(255);not null" json:"-"`
	ImageURL       string    `gorm:"type:varchar(255);default:'/static/images/default-pic.png'" json:"image_url"`
	HeaderImageURL string    `gorm:"type:varchar(255);default:'/static/images/warbler-hero.jpg'" json:"header_image_url"`
	Bio            string    `gorm:"type:text" json:"bio"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Messages []Message `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Likes    []Like    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (User) TableName() string { return "users" }
