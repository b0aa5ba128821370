package models

import (
	"time"
)

type Post struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"size:36;not null;index" json:"userId"`
	Author       User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Title        string    `gorm:"not null" json:"title"`
	URL          *string   `json:"url"`                      // Optional
	Content      *string   `gorm:"type:text" json:"content"` // Optional
	Points       int       `gorm:"not null;default:0" json:"points"`
	CommentCount int       `gorm:"not null;default:0" json:"commentCount"` // 直接 + 间接评论总数
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
}
