package models

// User 账号。ID 为不透明字符串 (UUID)，用户名全局唯一。
type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Username     string `gorm:"uniqueIndex;size:31;not null" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`
}
