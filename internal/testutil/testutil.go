// Package testutil provides an isolated in-memory database and seed helpers
// for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"betternews/internal/db"
	"betternews/internal/models"
	"betternews/internal/utils"
)

var dbSeq atomic.Int64

// OpenTestDB creates a fresh, migrated in-memory sqlite database that lives
// until the test ends. Each call gets its own database.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", dbSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	// One connection keeps the shared in-memory database alive and
	// serializes writers the way sqlite would on disk.
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return gdb
}

// TestPassword is the password of every seeded user.
const TestPassword = "password123"

// SeedUser inserts a user with TestPassword.
func SeedUser(t *testing.T, gdb *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := utils.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	user := &models.User{ID: uuid.NewString(), Username: username, PasswordHash: hash}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

// SeedPost inserts a text post by author.
func SeedPost(t *testing.T, gdb *gorm.DB, author *models.User, title string) *models.Post {
	t.Helper()

	content := "content of " + title
	post := &models.Post{UserID: author.ID, Title: title, Content: &content}
	if err := gdb.Omit("Author").Create(post).Error; err != nil {
		t.Fatalf("Failed to create post %s: %v", title, err)
	}
	return post
}

// SeedComment inserts a comment directly, without touching counters.
func SeedComment(t *testing.T, gdb *gorm.DB, author *models.User, postID uint, parent *models.Comment, content string) *models.Comment {
	t.Helper()

	c := &models.Comment{UserID: author.ID, PostID: postID, Content: content}
	if parent != nil {
		c.ParentCommentID = &parent.ID
		c.Depth = parent.Depth + 1
	}
	if err := gdb.Omit("Author", "Post", "ParentComment").Create(c).Error; err != nil {
		t.Fatalf("Failed to create comment: %v", err)
	}
	return c
}
