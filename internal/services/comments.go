package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"betternews/internal/apperr"
	"betternews/internal/logging"
	"betternews/internal/models"
	"betternews/internal/telemetry"
)

// childPreviewSize 顶层评论列表中每条附带的子评论数量
const childPreviewSize = 2

// CommentService 评论的创建、分页读取与点赞
type CommentService struct {
	deps  Deps
	posts *PostService
	log   *zap.Logger
}

// NewCommentService posts is used to drop the cached post whenever its
// comment count changes; it may be nil.
func NewCommentService(d Deps, posts *PostService) *CommentService {
	d = d.withDefaults()
	return &CommentService{deps: d, posts: posts, log: logging.WithComponent(d.Logger, "comments")}
}

// ListCommentsQuery 顶层评论查询；IncludeChildren 时每条附带最多两条子评论
type ListCommentsQuery struct {
	PageRequest
	IncludeChildren bool
}

type CommentPage struct {
	Comments   []CommentView
	Pagination Pagination
}

// UpvoteCommentResult 评论点赞切换后的权威状态
type UpvoteCommentResult struct {
	Count          int         `json:"count"`
	CommentUpvotes []UpvoteRef `json:"commentUpvotes"`
}

// CreateTopLevel 在帖子下发表顶层评论，同一事务内 post.commentCount+1
func (s *CommentService) CreateTopLevel(ctx context.Context, viewer *Viewer, postID uint, content string) (*CommentView, error) {
	if viewer == nil {
		return nil, apperr.Auth("Unauthorized")
	}
	content, err := validateCommentContent(content)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{UserID: viewer.UserID, PostID: postID, Content: content}
	err = s.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("bump post comment count: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Post not found")
		}

		if err := tx.Omit("Author", "Post", "ParentComment").Create(&comment).Error; err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCreate(ctx, &comment, false)
	return s.createdView(&comment, viewer), nil
}

// CreateReply 回复评论：父评论 commentCount+1，根帖子 commentCount+1，
// 新评论 depth = parent.depth + 1
func (s *CommentService) CreateReply(ctx context.Context, viewer *Viewer, parentID uint, content string) (*CommentView, error) {
	if viewer == nil {
		return nil, apperr.Auth("Unauthorized")
	}
	content, err := validateCommentContent(content)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{UserID: viewer.UserID, ParentCommentID: &parentID, Content: content}
	err = s.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Comment{}).
			Where("id = ?", parentID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("bump parent comment count: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Comment not found")
		}

		var parent models.Comment
		if err := tx.Select("id", "post_id", "depth").Take(&parent, parentID).Error; err != nil {
			return fmt.Errorf("load parent comment %d: %w", parentID, err)
		}

		res = tx.Model(&models.Post{}).
			Where("id = ?", parent.PostID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("bump post comment count: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Comment post not found")
		}

		comment.PostID = parent.PostID
		comment.Depth = parent.Depth + 1
		if err := tx.Omit("Author", "Post", "ParentComment").Create(&comment).Error; err != nil {
			return fmt.Errorf("insert reply: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCreate(ctx, &comment, true)
	return s.createdView(&comment, viewer), nil
}

func (s *CommentService) afterCreate(ctx context.Context, c *models.Comment, reply bool) {
	if s.posts != nil {
		s.posts.Invalidate(ctx, c.PostID)
	}
	s.deps.Metrics.CommentCreated(ctx, reply)
	s.log.Debug("comment created",
		zap.Uint("comment_id", c.ID),
		zap.Uint("post_id", c.PostID),
		zap.Int("depth", c.Depth))
}

func (s *CommentService) createdView(c *models.Comment, viewer *Viewer) *CommentView {
	c.Author = models.User{ID: viewer.UserID, Username: viewer.Username}
	view := newCommentView(c)
	return &view
}

// ListTopLevel 帖子的顶层评论分页；帖子不存在返回 NotFound
func (s *CommentService) ListTopLevel(ctx context.Context, viewer *Viewer, postID uint, q ListCommentsQuery) (*CommentPage, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}
	if err := s.requireExists(ctx, &models.Post{}, postID, "Post not found"); err != nil {
		return nil, err
	}

	filter := func(tx *gorm.DB) *gorm.DB {
		return tx.Where("post_id = ? AND parent_comment_id IS NULL", postID)
	}
	page, err := s.list(ctx, viewer, filter, q.PageRequest, q.IncludeChildren)
	if err != nil {
		return nil, fmt.Errorf("list comments of post %d: %w", postID, err)
	}
	return page, nil
}

// ListChildren 某条评论的直接子评论分页；父评论不存在同样返回 NotFound
func (s *CommentService) ListChildren(ctx context.Context, viewer *Viewer, commentID uint, q PageRequest) (*CommentPage, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}
	if err := s.requireExists(ctx, &models.Comment{}, commentID, "Comment not found"); err != nil {
		return nil, err
	}

	filter := func(tx *gorm.DB) *gorm.DB {
		return tx.Where("parent_comment_id = ?", commentID)
	}
	page, err := s.list(ctx, viewer, filter, q, false)
	if err != nil {
		return nil, fmt.Errorf("list replies of comment %d: %w", commentID, err)
	}
	return page, nil
}

func (s *CommentService) requireExists(ctx context.Context, model interface{}, id uint, msg string) error {
	var n int64
	if err := s.deps.DB.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("check existence: %w", err)
	}
	if n == 0 {
		return apperr.NotFound(msg)
	}
	return nil
}

func (s *CommentService) list(ctx context.Context, viewer *Viewer, filter func(*gorm.DB) *gorm.DB, q PageRequest, withChildren bool) (*CommentPage, error) {
	db := s.deps.DB.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Comment{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, err
	}

	page := &CommentPage{Comments: []CommentView{}, Pagination: q.pagination(total)}
	if q.beyondEnd(total) {
		return page, nil
	}

	var rows []models.Comment
	if err := db.Scopes(filter, q.paginate("comments")).Preload("Author").Find(&rows).Error; err != nil {
		return nil, err
	}

	for i := range rows {
		view := newCommentView(&rows[i])
		if withChildren && rows[i].CommentCount > 0 {
			children, err := s.preview(ctx, rows[i].ID, q)
			if err != nil {
				return nil, err
			}
			view.ChildComments = children
		}
		page.Comments = append(page.Comments, view)
	}

	if err := fillCommentUpvotes(ctx, s.deps.DB, page.Comments, viewer.ID()); err != nil {
		return nil, err
	}
	return page, nil
}

// preview 取前 childPreviewSize 条直接子评论，排序与父列表一致
func (s *CommentService) preview(ctx context.Context, parentID uint, q PageRequest) ([]CommentView, error) {
	var rows []models.Comment
	err := s.deps.DB.WithContext(ctx).
		Where("parent_comment_id = ?", parentID).
		Clauses(q.order("comments")).
		Limit(childPreviewSize).
		Preload("Author").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("preview replies of %d: %w", parentID, err)
	}

	views := make([]CommentView, 0, len(rows))
	for i := range rows {
		views = append(views, newCommentView(&rows[i]))
	}
	return views, nil
}

var commentUpvotes = upvoteTarget{
	name:     "comment",
	entity:   func() interface{} { return &models.Comment{} },
	vote:     func() interface{} { return &models.CommentUpvote{} },
	fkColumn: "comment_id",
	newVote: func(id uint, userID string) interface{} {
		return &models.CommentUpvote{CommentID: id, UserID: userID}
	},
	notFound: "Comment not found",
}

// ToggleUpvote 与帖子点赞相同的切换逻辑，作用于评论
func (s *CommentService) ToggleUpvote(ctx context.Context, viewer *Viewer, commentID uint) (*UpvoteCommentResult, error) {
	if viewer == nil {
		return nil, apperr.Auth("Unauthorized")
	}

	ctx, span := telemetry.StartSpan(ctx, "CommentService.ToggleUpvote")
	defer span.End()
	span.SetAttributes(attribute.Int64("comment.id", int64(commentID)))

	result := UpvoteCommentResult{CommentUpvotes: []UpvoteRef{}}
	err := s.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		points, upvoted, err := toggleUpvote(tx, commentUpvotes, commentID, viewer.UserID)
		if err != nil {
			return err
		}
		result.Count = points
		if upvoted {
			result.CommentUpvotes = []UpvoteRef{{UserID: viewer.UserID}}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if !errors.As(err, new(*apperr.Error)) {
			s.log.Error("comment upvote failed", zap.Uint("comment_id", commentID), zap.Error(err))
		}
		return nil, err
	}

	s.deps.Metrics.UpvoteToggled(ctx, "comment", len(result.CommentUpvotes) > 0)
	return &result, nil
}
