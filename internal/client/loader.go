package client

import (
	"context"

	"betternews/internal/services"
)

// API is the subset of HTTPClient the cache layer depends on.
type API interface {
	GetPost(ctx context.Context, id uint) (services.PostView, error)
	ListPosts(ctx context.Context, q PostQuery, page int) (PostsPage, error)
	ListComments(ctx context.Context, postID uint, q CommentQuery, page int) (CommentsPage, error)
	ListReplies(ctx context.Context, commentID uint, q CommentQuery, page int) (CommentsPage, error)
	UpvotePost(ctx context.Context, id uint) (*services.UpvotePostResult, error)
	UpvoteComment(ctx context.Context, id uint) (*services.UpvoteCommentResult, error)
	CreateComment(ctx context.Context, postID uint, content string) (*services.CommentView, error)
	Reply(ctx context.Context, parentID uint, content string) (*services.CommentView, error)
}

var _ API = (*HTTPClient)(nil)

// Loader 读取查询：命中且未过期时直接返回缓存，否则请求服务端
type Loader struct {
	api   API
	cache *QueryCache
}

func NewLoader(api API, cache *QueryCache) *Loader {
	return &Loader{api: api, cache: cache}
}

func (l *Loader) Post(ctx context.Context, id uint) (services.PostView, error) {
	return Fetch(ctx, l.cache, PostKey(id), func(ctx context.Context) (services.PostView, error) {
		return l.api.GetPost(ctx, id)
	})
}

// Posts returns the loaded pages of a post list, loading the first page if
// needed. A stale list is reloaded from page one.
func (l *Loader) Posts(ctx context.Context, q PostQuery) (PostPages, error) {
	return Fetch(ctx, l.cache, PostsKey(q), func(ctx context.Context) (PostPages, error) {
		page, err := l.api.ListPosts(ctx, q, 1)
		if err != nil {
			return nil, err
		}
		return PostPages{page}, nil
	})
}

// MorePosts appends the next page to a post list.
func (l *Loader) MorePosts(ctx context.Context, q PostQuery) (PostPages, error) {
	key := PostsKey(q)
	return Refetch(ctx, l.cache, key, func(ctx context.Context) (PostPages, error) {
		cur, _ := l.current(key).(PostPages)
		if len(cur) > 0 && !cur.HasMore() {
			return cur, nil
		}
		page, err := l.api.ListPosts(ctx, q, len(cur)+1)
		if err != nil {
			return nil, err
		}
		return append(append(PostPages{}, cur...), page), nil
	})
}

func (l *Loader) Comments(ctx context.Context, postID uint, q CommentQuery) (CommentPages, error) {
	return Fetch(ctx, l.cache, PostCommentsKey(postID, q), func(ctx context.Context) (CommentPages, error) {
		page, err := l.api.ListComments(ctx, postID, q, 1)
		if err != nil {
			return nil, err
		}
		return CommentPages{page}, nil
	})
}

func (l *Loader) MoreComments(ctx context.Context, postID uint, q CommentQuery) (CommentPages, error) {
	return l.moreComments(ctx, PostCommentsKey(postID, q), func(ctx context.Context, page int) (CommentsPage, error) {
		return l.api.ListComments(ctx, postID, q, page)
	})
}

func (l *Loader) Replies(ctx context.Context, commentID uint, q CommentQuery) (CommentPages, error) {
	return Fetch(ctx, l.cache, RepliesKey(commentID, q), func(ctx context.Context) (CommentPages, error) {
		page, err := l.api.ListReplies(ctx, commentID, q, 1)
		if err != nil {
			return nil, err
		}
		return CommentPages{page}, nil
	})
}

func (l *Loader) MoreReplies(ctx context.Context, commentID uint, q CommentQuery) (CommentPages, error) {
	return l.moreComments(ctx, RepliesKey(commentID, q), func(ctx context.Context, page int) (CommentsPage, error) {
		return l.api.ListReplies(ctx, commentID, q, page)
	})
}

func (l *Loader) moreComments(ctx context.Context, key Key, list func(context.Context, int) (CommentsPage, error)) (CommentPages, error) {
	return Refetch(ctx, l.cache, key, func(ctx context.Context) (CommentPages, error) {
		cur, _ := l.current(key).(CommentPages)
		if len(cur) > 0 && !cur.HasMore() {
			return cur, nil
		}
		page, err := list(ctx, len(cur)+1)
		if err != nil {
			return nil, err
		}
		return append(append(CommentPages{}, cur...), page), nil
	})
}

// current 过期的列表从第一页重新加载
func (l *Loader) current(key Key) any {
	v, stale, ok := l.cache.Get(key)
	if !ok || stale {
		return nil
	}
	return v
}
