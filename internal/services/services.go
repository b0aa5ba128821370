package services

import (
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"betternews/internal/cache"
	"betternews/internal/telemetry"
)

// Deps 是所有服务共享的依赖，由 main 显式注入
type Deps struct {
	DB       *gorm.DB
	Cache    cache.Store
	CacheTTL time.Duration
	Logger   *zap.Logger
	Metrics  *telemetry.Metrics
}

func (d Deps) withDefaults() Deps {
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = time.Minute
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

// Viewer 当前请求的登录用户，nil 表示匿名访问
type Viewer struct {
	UserID   string
	Username string
}

// ID returns the viewer's user id, or "" for an anonymous viewer.
func (v *Viewer) ID() string {
	if v == nil {
		return ""
	}
	return v.UserID
}

// lockForUpdate 行锁 (SELECT ... FOR UPDATE)。sqlite 没有行锁，
// db.Open 将其限制为单连接，事务因此串行执行。
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

// isUniqueViolation recognizes duplicate-key errors from every supported driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
