package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"betternews/internal/models"
	"betternews/internal/utils"
)

type AuthorView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// PostView 帖子的对外表示。IsUpvoted 与当前访问者相关，不进缓存。
type PostView struct {
	ID           uint       `json:"id"`
	Title        string     `json:"title"`
	URL          *string    `json:"url"`
	Content      *string    `json:"content"`
	ContentHTML  string     `json:"contentHtml,omitempty"`
	Points       int        `json:"points"`
	CommentCount int        `json:"commentCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	Author       AuthorView `json:"author"`
	IsUpvoted    bool       `json:"isUpvoted"`
}

type UpvoteRef struct {
	UserID string `json:"userId"`
}

// CommentView 评论的对外表示。CommentUpvotes 只包含当前访问者自己的点赞。
type CommentView struct {
	ID              uint          `json:"id"`
	UserID          string        `json:"userId"`
	PostID          uint          `json:"postId"`
	ParentCommentID *uint         `json:"parentCommentId"`
	Content         string        `json:"content"`
	ContentHTML     string        `json:"contentHtml"`
	Depth           int           `json:"depth"`
	CommentCount    int           `json:"commentCount"`
	Points          int           `json:"points"`
	CreatedAt       time.Time     `json:"createdAt"`
	Author          AuthorView    `json:"author"`
	CommentUpvotes  []UpvoteRef   `json:"commentUpvotes"`
	ChildComments   []CommentView `json:"childComments"`
}

func newPostView(p *models.Post) PostView {
	v := PostView{
		ID:           p.ID,
		Title:        p.Title,
		URL:          p.URL,
		Content:      p.Content,
		Points:       p.Points,
		CommentCount: p.CommentCount,
		CreatedAt:    p.CreatedAt,
		Author:       AuthorView{ID: p.Author.ID, Username: p.Author.Username},
	}
	if p.Content != nil {
		v.ContentHTML = utils.RenderMarkdown(*p.Content)
	}
	return v
}

func newCommentView(c *models.Comment) CommentView {
	return CommentView{
		ID:              c.ID,
		UserID:          c.UserID,
		PostID:          c.PostID,
		ParentCommentID: c.ParentCommentID,
		Content:         c.Content,
		ContentHTML:     utils.RenderMarkdown(c.Content),
		Depth:           c.Depth,
		CommentCount:    c.CommentCount,
		Points:          c.Points,
		CreatedAt:       c.CreatedAt,
		Author:          AuthorView{ID: c.Author.ID, Username: c.Author.Username},
		CommentUpvotes:  []UpvoteRef{},
		ChildComments:   []CommentView{},
	}
}

// fillPostUpvotes 批量标记访问者赞过的帖子
func fillPostUpvotes(ctx context.Context, db *gorm.DB, posts []PostView, viewerID string) error {
	if viewerID == "" || len(posts) == 0 {
		return nil
	}

	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	var upvoted []uint
	err := db.WithContext(ctx).Model(&models.PostUpvote{}).
		Where("user_id = ? AND post_id IN ?", viewerID, postIDs).
		Pluck("post_id", &upvoted).Error
	if err != nil {
		return fmt.Errorf("load post upvotes: %w", err)
	}

	set := make(map[uint]bool, len(upvoted))
	for _, id := range upvoted {
		set[id] = true
	}
	for i := range posts {
		posts[i].IsUpvoted = set[posts[i].ID]
	}
	return nil
}

// fillCommentUpvotes 批量填充评论（含预览子评论）的访问者点赞
func fillCommentUpvotes(ctx context.Context, db *gorm.DB, comments []CommentView, viewerID string) error {
	if viewerID == "" || len(comments) == 0 {
		return nil
	}

	var ids []uint
	for _, c := range comments {
		ids = append(ids, c.ID)
		for _, child := range c.ChildComments {
			ids = append(ids, child.ID)
		}
	}

	var upvoted []uint
	err := db.WithContext(ctx).Model(&models.CommentUpvote{}).
		Where("user_id = ? AND comment_id IN ?", viewerID, ids).
		Pluck("comment_id", &upvoted).Error
	if err != nil {
		return fmt.Errorf("load comment upvotes: %w", err)
	}

	set := make(map[uint]bool, len(upvoted))
	for _, id := range upvoted {
		set[id] = true
	}
	mark := func(c *CommentView) {
		if set[c.ID] {
			c.CommentUpvotes = []UpvoteRef{{UserID: viewerID}}
		}
	}
	for i := range comments {
		mark(&comments[i])
		for j := range comments[i].ChildComments {
			mark(&comments[i].ChildComments[j])
		}
	}
	return nil
}
