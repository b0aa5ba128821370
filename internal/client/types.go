package client

import (
	"strconv"

	"betternews/internal/services"
)

// CommentRef identifies a comment in the client cache: either a Draft that
// exists only locally, or a Persisted comment with its server id.
type CommentRef interface {
	isCommentRef()
}

// Draft 乐观插入、尚未得到服务端确认的评论
type Draft struct {
	TempID string
}

// Persisted 服务端已保存的评论
type Persisted struct {
	ID uint
}

func (Draft) isCommentRef()     {}
func (Persisted) isCommentRef() {}

// Comment 缓存中的评论条目
type Comment struct {
	Ref  CommentRef
	View services.CommentView
}

// IsPersisted reports whether the comment has the given server id.
func (c Comment) IsPersisted(id uint) bool {
	p, ok := c.Ref.(Persisted)
	return ok && p.ID == id
}

func persisted(v services.CommentView) Comment {
	return Comment{Ref: Persisted{ID: v.ID}, View: v}
}

func persistedAll(views []services.CommentView) []Comment {
	out := make([]Comment, len(views))
	for i, v := range views {
		out[i] = persisted(v)
	}
	return out
}

// PostsPage 帖子列表的一页
type PostsPage struct {
	Posts      []services.PostView
	Pagination services.Pagination
}

// CommentsPage 评论列表的一页
type CommentsPage struct {
	Comments   []Comment
	Pagination services.Pagination
}

// PostPages 与 CommentPages 是"无限加载"查询的值：已加载的页按顺序排列
type (
	PostPages    []PostsPage
	CommentPages []CommentsPage
)

// HasMore reports whether another page can be loaded.
func (p PostPages) HasMore() bool {
	return len(p) == 0 || p[len(p)-1].Pagination.Page < p[len(p)-1].Pagination.TotalPages
}

func (p CommentPages) HasMore() bool {
	return len(p) == 0 || p[len(p)-1].Pagination.Page < p[len(p)-1].Pagination.TotalPages
}

// PostQuery 帖子列表查询参数
type PostQuery struct {
	SortBy  string
	OrderBy string
	Author  string
	Site    string
	Limit   int
}

// CommentQuery 评论列表查询参数
type CommentQuery struct {
	SortBy          string
	OrderBy         string
	Limit           int
	IncludeChildren bool
}

func idSeg(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Query keys.
func UserKey() Key        { return Key{"user"} }
func PostKey(id uint) Key { return Key{"post", idSeg(id)} }
func PostsPrefix() Key    { return Key{"posts"} }

func PostsKey(q PostQuery) Key {
	return Key{"posts", q.SortBy, q.OrderBy, q.Author, q.Site}
}

// PostCommentsPrefix matches every top-level comment query of a post.
func PostCommentsPrefix(postID uint) Key {
	return Key{"comments", "post", idSeg(postID)}
}

func PostCommentsKey(postID uint, q CommentQuery) Key {
	return append(PostCommentsPrefix(postID), q.SortBy, q.OrderBy, strconv.FormatBool(q.IncludeChildren))
}

// RepliesPrefix matches every reply query of a comment.
func RepliesPrefix(commentID uint) Key {
	return Key{"comments", "comment", idSeg(commentID)}
}

func RepliesKey(commentID uint, q CommentQuery) Key {
	return append(RepliesPrefix(commentID), q.SortBy, q.OrderBy)
}
