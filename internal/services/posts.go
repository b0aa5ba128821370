package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"betternews/internal/apperr"
	"betternews/internal/logging"
	"betternews/internal/models"
	"betternews/internal/telemetry"
)

// PostService 帖子的创建、查询与点赞
type PostService struct {
	deps Deps
	log  *zap.Logger
}

func NewPostService(d Deps) *PostService {
	d = d.withDefaults()
	return &PostService{deps: d, log: logging.WithComponent(d.Logger, "posts")}
}

// ListPostsQuery 列表查询；Author 为用户 ID，Site 精确匹配帖子 URL
type ListPostsQuery struct {
	PageRequest
	Author string
	Site   string
}

type PostPage struct {
	Posts      []PostView
	Pagination Pagination
}

// UpvotePostResult 点赞切换后的权威状态
type UpvotePostResult struct {
	Count     int  `json:"count"`
	IsUpvoted bool `json:"isUpvoted"`
}

// 帖子缓存按版本存储：post:<id>:v 为版本号，正文在 post:<id>@<版本>。
// Invalidate 只递增版本号，读到旧行的并发 load 写入的是旧版本的 key，不会再被读到。
func postVersionKey(id uint) string {
	return fmt.Sprintf("post:%d:v", id)
}

func postCacheKey(id uint, version int64) string {
	return fmt.Sprintf("post:%d@%d", id, version)
}

// postVersion returns the current cache version of a post, 0 if none.
func (s *PostService) postVersion(ctx context.Context, id uint) (int64, error) {
	raw, ok, err := s.deps.Cache.Get(ctx, postVersionKey(id))
	if err != nil || !ok {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

// Create 发帖，返回新帖子 ID
func (s *PostService) Create(ctx context.Context, viewer *Viewer, in CreatePostInput) (uint, error) {
	if viewer == nil {
		return 0, apperr.Auth("Unauthorized")
	}
	if err := in.normalize(); err != nil {
		return 0, err
	}

	post := models.Post{UserID: viewer.UserID, Title: in.Title}
	if in.URL != "" {
		post.URL = &in.URL
	}
	if in.Content != "" {
		post.Content = &in.Content
	}

	if err := s.deps.DB.WithContext(ctx).Omit("Author").Create(&post).Error; err != nil {
		return 0, fmt.Errorf("create post: %w", err)
	}

	s.deps.Metrics.PostCreated(ctx)
	s.log.Debug("post created", zap.Uint("post_id", post.ID), zap.String("user_id", viewer.UserID))
	return post.ID, nil
}

// Get 单个帖子。帖子本体走共享缓存，访问者点赞状态实时查询。
func (s *PostService) Get(ctx context.Context, viewer *Viewer, id uint) (*PostView, error) {
	view, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	views := []PostView{*view}
	if err := fillPostUpvotes(ctx, s.deps.DB, views, viewer.ID()); err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *PostService) load(ctx context.Context, id uint) (*PostView, error) {
	version, err := s.postVersion(ctx, id)
	if err != nil {
		s.log.Warn("post cache version read failed", zap.Uint("post_id", id), zap.Error(err))
		return s.loadFromDB(ctx, id, "")
	}

	key := postCacheKey(id, version)
	if raw, ok, err := s.deps.Cache.Get(ctx, key); err != nil {
		s.log.Warn("post cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var view PostView
		if err := json.Unmarshal(raw, &view); err == nil {
			return &view, nil
		}
		s.log.Warn("discarding corrupt cache entry", zap.String("key", key))
	}
	return s.loadFromDB(ctx, id, key)
}

// loadFromDB reads the post and stores it under key; an empty key skips
// the cache write.
func (s *PostService) loadFromDB(ctx context.Context, id uint, key string) (*PostView, error) {
	var post models.Post
	err := s.deps.DB.WithContext(ctx).Preload("Author").First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Post not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load post %d: %w", id, err)
	}

	view := newPostView(&post)
	if key == "" {
		return &view, nil
	}
	if raw, err := json.Marshal(view); err == nil {
		if err := s.deps.Cache.Set(ctx, key, raw, s.deps.CacheTTL); err != nil {
			s.log.Warn("post cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return &view, nil
}

// Invalidate 递增帖子缓存版本并删除旧版本正文，计数变化提交后调用
func (s *PostService) Invalidate(ctx context.Context, id uint) {
	version, err := s.deps.Cache.Incr(ctx, postVersionKey(id))
	if err != nil {
		s.log.Warn("post cache invalidation failed", zap.Uint("post_id", id), zap.Error(err))
		return
	}
	if err := s.deps.Cache.Delete(ctx, postCacheKey(id, version-1)); err != nil {
		s.log.Warn("post cache cleanup failed", zap.Uint("post_id", id), zap.Error(err))
	}
}

// List 分页列出帖子，totalPages 基于同一筛选条件的计数
func (s *PostService) List(ctx context.Context, viewer *Viewer, q ListPostsQuery) (*PostPage, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}

	filter := func(tx *gorm.DB) *gorm.DB {
		if q.Author != "" {
			tx = tx.Where("user_id = ?", q.Author)
		}
		if q.Site != "" {
			tx = tx.Where("url = ?", q.Site)
		}
		return tx
	}

	db := s.deps.DB.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Post{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}

	page := &PostPage{Posts: []PostView{}, Pagination: q.pagination(total)}
	if q.beyondEnd(total) {
		return page, nil
	}

	var posts []models.Post
	err := db.Scopes(filter, q.paginate("posts")).Preload("Author").Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	for i := range posts {
		page.Posts = append(page.Posts, newPostView(&posts[i]))
	}
	if err := fillPostUpvotes(ctx, s.deps.DB, page.Posts, viewer.ID()); err != nil {
		return nil, err
	}
	return page, nil
}

var postUpvotes = upvoteTarget{
	name:     "post",
	entity:   func() interface{} { return &models.Post{} },
	vote:     func() interface{} { return &models.PostUpvote{} },
	fkColumn: "post_id",
	newVote: func(id uint, userID string) interface{} {
		return &models.PostUpvote{PostID: id, UserID: userID}
	},
	notFound: "Post not found",
}

// ToggleUpvote 切换点赞：已赞则取消并 points-1，未赞则点赞并 points+1
func (s *PostService) ToggleUpvote(ctx context.Context, viewer *Viewer, id uint) (*UpvotePostResult, error) {
	if viewer == nil {
		return nil, apperr.Auth("Unauthorized")
	}

	ctx, span := telemetry.StartSpan(ctx, "PostService.ToggleUpvote")
	defer span.End()
	span.SetAttributes(attribute.Int64("post.id", int64(id)))

	var result UpvotePostResult
	err := s.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		points, upvoted, err := toggleUpvote(tx, postUpvotes, id, viewer.UserID)
		if err != nil {
			return err
		}
		result = UpvotePostResult{Count: points, IsUpvoted: upvoted}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.Invalidate(ctx, id)
	s.deps.Metrics.UpvoteToggled(ctx, "post", result.IsUpvoted)
	return &result, nil
}
