package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"betternews/internal/apperr"
)

// upvoteTarget 描述一种可点赞实体 (帖子/评论) 的表结构
type upvoteTarget struct {
	name     string
	entity   func() interface{} // &models.Post{} / &models.Comment{}
	vote     func() interface{} // &models.PostUpvote{} / &models.CommentUpvote{}
	fkColumn string
	newVote  func(entityID uint, userID string) interface{}
	notFound string
}

type pointsRow struct {
	ID     uint
	Points int
}

// toggleUpvote 在一个事务内翻转点赞状态并同步 points。
//
// 实体行先以 FOR UPDATE 锁定，同一实体上的并发切换因此串行执行；
// (entity, user) 唯一索引兜底，冲突时整个事务失败而不是重复计数。
func toggleUpvote(tx *gorm.DB, t upvoteTarget, entityID uint, userID string) (points int, upvoted bool, err error) {
	var row pointsRow
	err = lockForUpdate(tx).Model(t.entity()).
		Select("id", "points").
		Where("id = ?", entityID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, apperr.NotFound(t.notFound)
	}
	if err != nil {
		return 0, false, fmt.Errorf("lock %s %d: %w", t.name, entityID, err)
	}

	// 已赞则删除；删除行数即为"是否已赞"
	res := tx.Where(t.fkColumn+" = ? AND user_id = ?", entityID, userID).Delete(t.vote())
	if res.Error != nil {
		return 0, false, fmt.Errorf("delete %s upvote: %w", t.name, res.Error)
	}

	delta := -1
	if res.RowsAffected == 0 {
		if err := tx.Create(t.newVote(entityID, userID)).Error; err != nil {
			if isUniqueViolation(err) {
				return 0, false, apperr.Conflict("Upvote already recorded, please retry")
			}
			return 0, false, fmt.Errorf("insert %s upvote: %w", t.name, err)
		}
		delta = 1
		upvoted = true
	}

	err = tx.Model(t.entity()).
		Where("id = ?", entityID).
		UpdateColumn("points", gorm.Expr("points + ?", delta)).Error
	if err != nil {
		return 0, false, fmt.Errorf("update %s points: %w", t.name, err)
	}

	return row.Points + delta, upvoted, nil
}
