package client

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"betternews/internal/services"
	"betternews/internal/utils"
)

// Notifier surfaces a user-visible error, the toast of the web frontend.
type Notifier interface {
	Error(message string)
}

type NotifierFunc func(message string)

func (f NotifierFunc) Error(message string) { f(message) }

// LogNotifier 将提示写入日志，供命令行使用
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Error(message string) {
	n.Logger.Warn(message)
}

// Mutator 乐观更新：先改缓存，请求成功后以服务端结果为准，失败则回滚并使缓存失效
type Mutator struct {
	api    API
	cache  *QueryCache
	notify Notifier
	viewer services.AuthorView
	now    func() time.Time
	log    *zap.Logger
}

func NewMutator(api API, cache *QueryCache, notify Notifier, viewer services.AuthorView, logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notify == nil {
		notify = LogNotifier{Logger: logger}
	}
	return &Mutator{
		api:    api,
		cache:  cache,
		notify: notify,
		viewer: viewer,
		now:    time.Now,
		log:    logger.With(zap.String("component", "mutator")),
	}
}

// begin cancels reads that could overwrite the optimistic values and
// snapshots the affected entries.
func (m *Mutator) begin(keys ...Key) Snapshot {
	for _, k := range keys {
		m.cache.Cancel(k)
	}
	return m.cache.Snapshot(keys...)
}

func (m *Mutator) abort(snap Snapshot, message string, err error, keys ...Key) {
	m.cache.Restore(snap)
	m.log.Warn("mutation rolled back", zap.String("notice", message), zap.Error(err))
	m.notify.Error(message)
	for _, k := range keys {
		m.cache.Invalidate(k)
	}
}

// UpvotePost toggles the viewer's upvote on a post.
func (m *Mutator) UpvotePost(ctx context.Context, id uint) (*services.UpvotePostResult, error) {
	keys := []Key{PostKey(id), PostsPrefix()}
	snap := m.begin(keys...)

	m.updatePost(id, func(p services.PostView) services.PostView {
		if p.IsUpvoted {
			p.Points--
		} else {
			p.Points++
		}
		p.IsUpvoted = !p.IsUpvoted
		return p
	})

	res, err := m.api.UpvotePost(ctx, id)
	if err != nil {
		m.abort(snap, "Failed to upvote post", err, keys...)
		return nil, err
	}

	m.updatePost(id, func(p services.PostView) services.PostView {
		p.Points = res.Count
		p.IsUpvoted = res.IsUpvoted
		return p
	})
	return res, nil
}

func (m *Mutator) updatePost(id uint, fn func(services.PostView) services.PostView) {
	m.cache.Update(PostKey(id), func(_ Key, v any) any {
		p, ok := v.(services.PostView)
		if !ok {
			return nil
		}
		return fn(p)
	})
	m.cache.Update(PostsPrefix(), func(_ Key, v any) any {
		pages, ok := v.(PostPages)
		if !ok {
			return nil
		}
		out, changed := mapPosts(pages, id, fn)
		if !changed {
			return nil
		}
		return out
	})
}

// UpvoteComment toggles the viewer's upvote on a comment wherever it is
// cached: top-level lists, reply lists and child previews.
func (m *Mutator) UpvoteComment(ctx context.Context, id uint) (*services.UpvoteCommentResult, error) {
	keys := []Key{{"comments"}}
	snap := m.begin(keys...)

	m.updateComment(id, func(c services.CommentView) services.CommentView {
		if len(c.CommentUpvotes) > 0 {
			c.Points--
			c.CommentUpvotes = []services.UpvoteRef{}
		} else {
			c.Points++
			c.CommentUpvotes = []services.UpvoteRef{{UserID: m.viewer.ID}}
		}
		return c
	})

	res, err := m.api.UpvoteComment(ctx, id)
	if err != nil {
		m.abort(snap, "Failed to upvote comment", err, keys...)
		return nil, err
	}

	m.updateComment(id, func(c services.CommentView) services.CommentView {
		c.Points = res.Count
		c.CommentUpvotes = append([]services.UpvoteRef{}, res.CommentUpvotes...)
		return c
	})
	return res, nil
}

func (m *Mutator) updateComment(id uint, fn func(services.CommentView) services.CommentView) {
	m.cache.Update(Key{"comments"}, func(_ Key, v any) any {
		pages, ok := v.(CommentPages)
		if !ok {
			return nil
		}
		out, changed := mapComments(pages, func(c services.CommentView) (services.CommentView, bool) {
			if c.ID != id {
				return c, false
			}
			return fn(c), true
		})
		if !changed {
			return nil
		}
		return out
	})
}

func (m *Mutator) draft(postID uint, parentID *uint, depth int, content string) Comment {
	return Comment{
		Ref: Draft{TempID: uuid.NewString()},
		View: services.CommentView{
			UserID:          m.viewer.ID,
			PostID:          postID,
			ParentCommentID: parentID,
			Content:         content,
			ContentHTML:     utils.RenderMarkdown(content),
			Depth:           depth,
			CreatedAt:       m.now(),
			Author:          m.viewer,
			CommentUpvotes:  []services.UpvoteRef{},
			ChildComments:   []services.CommentView{},
		},
	}
}

// CreateComment adds a top-level comment, showing it as a draft at the top
// of every cached comment list of the post until the server confirms it.
func (m *Mutator) CreateComment(ctx context.Context, postID uint, content string) (*services.CommentView, error) {
	keys := []Key{PostCommentsPrefix(postID), PostKey(postID), PostsPrefix()}
	snap := m.begin(keys...)

	d := m.draft(postID, nil, 0, content)
	m.prependDraft(PostCommentsPrefix(postID), d)
	m.updatePost(postID, func(p services.PostView) services.PostView {
		p.CommentCount++
		return p
	})

	view, err := m.api.CreateComment(ctx, postID, content)
	if err != nil {
		m.abort(snap, "Failed to create comment", err, keys...)
		return nil, err
	}

	m.commitDraft(PostCommentsPrefix(postID), d.Ref.(Draft), *view)
	m.cache.Invalidate(PostKey(postID))
	return view, nil
}

// Reply answers parent. parent is the cached view of the comment being
// replied to; its post and depth place the draft.
func (m *Mutator) Reply(ctx context.Context, parent services.CommentView, content string) (*services.CommentView, error) {
	keys := []Key{{"comments"}, PostKey(parent.PostID)}
	snap := m.begin(keys...)

	parentID := parent.ID
	d := m.draft(parent.PostID, &parentID, parent.Depth+1, content)
	m.prependDraft(RepliesPrefix(parent.ID), d)
	m.updateComment(parent.ID, func(c services.CommentView) services.CommentView {
		c.CommentCount++
		return c
	})

	view, err := m.api.Reply(ctx, parent.ID, content)
	if err != nil {
		m.abort(snap, "Failed to create comment", err, keys...)
		return nil, err
	}

	m.commitDraft(RepliesPrefix(parent.ID), d.Ref.(Draft), *view)
	m.cache.Invalidate(PostKey(parent.PostID))
	return view, nil
}

func (m *Mutator) prependDraft(prefix Key, d Comment) {
	m.cache.Update(prefix, func(_ Key, v any) any {
		pages, ok := v.(CommentPages)
		if !ok || len(pages) == 0 {
			return nil
		}
		out := append(CommentPages{}, pages...)
		out[0].Comments = append([]Comment{d}, pages[0].Comments...)
		return out
	})
}

func (m *Mutator) commitDraft(prefix Key, d Draft, view services.CommentView) {
	m.cache.Update(prefix, func(_ Key, v any) any {
		pages, ok := v.(CommentPages)
		if !ok {
			return nil
		}
		for pi, page := range pages {
			for ci, c := range page.Comments {
				if ref, ok := c.Ref.(Draft); ok && ref == d {
					out := append(CommentPages{}, pages...)
					out[pi].Comments = append([]Comment{}, page.Comments...)
					out[pi].Comments[ci] = persisted(view)
					return out
				}
			}
		}
		return nil
	})
}

func mapPosts(pages PostPages, id uint, fn func(services.PostView) services.PostView) (PostPages, bool) {
	for pi, page := range pages {
		for i, p := range page.Posts {
			if p.ID == id {
				out := append(PostPages{}, pages...)
				out[pi].Posts = append([]services.PostView{}, page.Posts...)
				out[pi].Posts[i] = fn(p)
				return out, true
			}
		}
	}
	return nil, false
}

// mapComments 复制被修改的页与评论切片，原值保持不变
func mapComments(pages CommentPages, fn func(services.CommentView) (services.CommentView, bool)) (CommentPages, bool) {
	out := append(CommentPages{}, pages...)
	changedAny := false
	for pi, page := range pages {
		var comments []Comment
		for ci, c := range page.Comments {
			v, changed := fn(c.View)
			children, childChanged := mapChildren(v.ChildComments, fn)
			if !changed && !childChanged {
				continue
			}
			v.ChildComments = children
			if comments == nil {
				comments = append([]Comment{}, page.Comments...)
			}
			comments[ci] = Comment{Ref: c.Ref, View: v}
		}
		if comments != nil {
			out[pi].Comments = comments
			changedAny = true
		}
	}
	return out, changedAny
}

func mapChildren(children []services.CommentView, fn func(services.CommentView) (services.CommentView, bool)) ([]services.CommentView, bool) {
	var out []services.CommentView
	for i, c := range children {
		v, changed := fn(c)
		if !changed {
			continue
		}
		if out == nil {
			out = append([]services.CommentView{}, children...)
		}
		out[i] = v
	}
	if out == nil {
		return children, false
	}
	return out, true
}
