package models

import (
	"time"
)

type Comment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          string    `gorm:"size:36;not null;index" json:"userId"`
	Author          User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	PostID          uint      `gorm:"not null;index" json:"postId"`
	Post            Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ParentCommentID *uint     `gorm:"index" json:"parentCommentId"` // nil 表示顶层评论
	ParentComment   *Comment  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	Depth           int       `gorm:"not null;default:0" json:"depth"`
	CommentCount    int       `gorm:"not null;default:0" json:"commentCount"` // 仅统计直接子评论
	Points          int       `gorm:"not null;default:0" json:"points"`
	CreatedAt       time.Time `gorm:"index" json:"createdAt"`
}
