package db

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"betternews/internal/config"
	"betternews/internal/models"
)

var dbSeq atomic.Int64

func TestDialector(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{driver: "postgres", want: "postgres"},
		{driver: "mysql", want: "mysql"},
		{driver: "sqlite", want: "sqlite"},
		{driver: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Dialector(tt.driver, "dsn")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Dialector() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && d.Name() != tt.want {
				t.Errorf("Dialector().Name() = %s, want %s", d.Name(), tt.want)
			}
		})
	}
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver:       "sqlite",
		URL:          fmt.Sprintf("file:dbtest_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", dbSeq.Add(1)),
		MaxOpenConns: 1,
	}
	db, err := Open(cfg, "error", zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer Close(db)

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, m := range []interface{}{
		&models.User{}, &models.Session{}, &models.Post{},
		&models.Comment{}, &models.PostUpvote{}, &models.CommentUpvote{},
	} {
		if !db.Migrator().HasTable(m) {
			t.Errorf("Expected table for %T", m)
		}
	}
	if !db.Migrator().HasIndex(&models.PostUpvote{}, "idx_post_upvotes_post_user") {
		t.Error("Expected unique index on post upvotes")
	}

	if err := Health(context.Background(), db); err != nil {
		t.Errorf("Health() error = %v", err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{dsn: "forum.db", want: "forum.db?_pragma=busy_timeout(5000)"},
		{dsn: "file:forum.db?_pragma=foreign_keys(1)", want: "file:forum.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{dsn: "forum.db?_pragma=busy_timeout(100)", want: "forum.db?_pragma=busy_timeout(100)"},
	}
	for _, tt := range tests {
		if got := sqliteDSN(tt.dsn); got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestOpenSQLiteSingleConnection(t *testing.T) {
	cfg := config.DatabaseConfig{
		Driver:       "sqlite",
		URL:          fmt.Sprintf("file:dbtest_%d?mode=memory&cache=shared", dbSeq.Add(1)),
		MaxOpenConns: 8,
	}
	db, err := Open(cfg, "error", zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer Close(db)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}
