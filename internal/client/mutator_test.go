package client

import (
	"context"
	"errors"
	"testing"

	"betternews/internal/services"
)

// fakeAPI serves canned pages; mutation hooks run while the optimistic
// state is in the cache.
type fakeAPI struct {
	posts         PostsPage
	comments      CommentsPage
	upvotePost    func(id uint) (*services.UpvotePostResult, error)
	upvoteComment func(id uint) (*services.UpvoteCommentResult, error)
	create        func(postID uint, content string) (*services.CommentView, error)
}

func (f *fakeAPI) GetPost(_ context.Context, id uint) (services.PostView, error) {
	for _, p := range f.posts.Posts {
		if p.ID == id {
			return p, nil
		}
	}
	return services.PostView{}, &APIError{Status: 404, Message: "Post not found"}
}

func (f *fakeAPI) ListPosts(context.Context, PostQuery, int) (PostsPage, error) {
	return f.posts, nil
}

func (f *fakeAPI) ListComments(context.Context, uint, CommentQuery, int) (CommentsPage, error) {
	return f.comments, nil
}

func (f *fakeAPI) ListReplies(context.Context, uint, CommentQuery, int) (CommentsPage, error) {
	return CommentsPage{Comments: []Comment{}, Pagination: services.Pagination{Page: 1, TotalPages: 1}}, nil
}

func (f *fakeAPI) UpvotePost(_ context.Context, id uint) (*services.UpvotePostResult, error) {
	return f.upvotePost(id)
}

func (f *fakeAPI) UpvoteComment(_ context.Context, id uint) (*services.UpvoteCommentResult, error) {
	return f.upvoteComment(id)
}

func (f *fakeAPI) CreateComment(_ context.Context, postID uint, content string) (*services.CommentView, error) {
	return f.create(postID, content)
}

func (f *fakeAPI) Reply(_ context.Context, parentID uint, content string) (*services.CommentView, error) {
	return f.create(parentID, content)
}

type recorder []string

func (r *recorder) Error(message string) { *r = append(*r, message) }

var bob = services.AuthorView{ID: "bob-id", Username: "bob"}

func newTestMutator(t *testing.T, api *fakeAPI) (*Mutator, *Loader, *QueryCache, *recorder) {
	t.Helper()
	c := newTestCache(t)
	notes := &recorder{}
	return NewMutator(api, c, notes, bob, nil), NewLoader(api, c), c, notes
}

func cachedPost(t *testing.T, c *QueryCache, id uint) services.PostView {
	t.Helper()
	v, _, ok := c.Get(PostKey(id))
	if !ok {
		t.Fatalf("post %d not cached", id)
	}
	return v.(services.PostView)
}

func TestUpvotePostOptimisticCommit(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{posts: PostsPage{
		Posts:      []services.PostView{{ID: 1, Title: "hello", Points: 4}},
		Pagination: services.Pagination{Page: 1, TotalPages: 1},
	}}
	m, l, c, notes := newTestMutator(t, api)

	if _, err := l.Post(ctx, 1); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if _, err := l.Posts(ctx, PostQuery{}); err != nil {
		t.Fatalf("Posts: %v", err)
	}

	api.upvotePost = func(id uint) (*services.UpvotePostResult, error) {
		if p := cachedPost(t, c, id); p.Points != 5 || !p.IsUpvoted {
			t.Errorf("Expected optimistic 5 points, got %+v", p)
		}
		return &services.UpvotePostResult{Count: 7, IsUpvoted: true}, nil
	}
	if _, err := m.UpvotePost(ctx, 1); err != nil {
		t.Fatalf("UpvotePost: %v", err)
	}

	if p := cachedPost(t, c, 1); p.Points != 7 || !p.IsUpvoted {
		t.Errorf("Expected server count 7, got %+v", p)
	}
	pages, _ := l.Posts(ctx, PostQuery{})
	if p := pages[0].Posts[0]; p.Points != 7 || !p.IsUpvoted {
		t.Errorf("Expected list entry reconciled, got %+v", p)
	}
	if len(*notes) != 0 {
		t.Errorf("Unexpected notifications: %v", *notes)
	}
}

func TestUpvotePostRollback(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{posts: PostsPage{Posts: []services.PostView{{ID: 1, Points: 4}}}}
	m, l, c, notes := newTestMutator(t, api)
	if _, err := l.Post(ctx, 1); err != nil {
		t.Fatalf("Post: %v", err)
	}

	api.upvotePost = func(uint) (*services.UpvotePostResult, error) {
		return nil, &APIError{Status: 500, Message: "Internal Server Error"}
	}
	if _, err := m.UpvotePost(ctx, 1); !IsStatus(err, 500) {
		t.Fatalf("Expected 500 APIError, got %v", err)
	}

	v, stale, _ := c.Get(PostKey(1))
	if p := v.(services.PostView); p.Points != 4 || p.IsUpvoted {
		t.Errorf("Expected rollback to 4 points, got %+v", p)
	}
	if !stale {
		t.Error("Expected post to be invalidated after rollback")
	}
	if len(*notes) != 1 || (*notes)[0] != "Failed to upvote post" {
		t.Errorf("Expected one error notification, got %v", *notes)
	}
}

func TestUpvoteCommentUpdatesPreviews(t *testing.T) {
	ctx := context.Background()
	child := services.CommentView{ID: 2, PostID: 1, Points: 1, CommentUpvotes: []services.UpvoteRef{}}
	api := &fakeAPI{comments: CommentsPage{
		Comments: []Comment{persisted(services.CommentView{
			ID: 1, PostID: 1, CommentUpvotes: []services.UpvoteRef{}, ChildComments: []services.CommentView{child},
		})},
		Pagination: services.Pagination{Page: 1, TotalPages: 1},
	}}
	m, l, c, notes := newTestMutator(t, api)
	q := CommentQuery{IncludeChildren: true}
	if _, err := l.Comments(ctx, 1, q); err != nil {
		t.Fatalf("Comments: %v", err)
	}

	api.upvoteComment = func(id uint) (*services.UpvoteCommentResult, error) {
		pages, _, _ := c.Get(PostCommentsKey(1, q))
		got := pages.(CommentPages)[0].Comments[0].View.ChildComments[0]
		if got.Points != 2 || len(got.CommentUpvotes) != 1 || got.CommentUpvotes[0].UserID != bob.ID {
			t.Errorf("Expected optimistic upvote on preview, got %+v", got)
		}
		return nil, errors.New("network down")
	}
	if _, err := m.UpvoteComment(ctx, 2); err == nil {
		t.Fatal("Expected error")
	}

	pages, stale, _ := c.Get(PostCommentsKey(1, q))
	got := pages.(CommentPages)[0].Comments[0].View.ChildComments[0]
	if got.Points != 1 || len(got.CommentUpvotes) != 0 {
		t.Errorf("Expected preview rolled back, got %+v", got)
	}
	if !stale || len(*notes) != 1 || (*notes)[0] != "Failed to upvote comment" {
		t.Errorf("Expected invalidation and notification, stale=%v notes=%v", stale, *notes)
	}
	if api.comments.Comments[0].View.ChildComments[0].Points != 1 {
		t.Error("optimistic update mutated the fetched value in place")
	}

	api.upvoteComment = func(uint) (*services.UpvoteCommentResult, error) {
		return &services.UpvoteCommentResult{Count: 9, CommentUpvotes: []services.UpvoteRef{{UserID: bob.ID}}}, nil
	}
	if _, err := m.UpvoteComment(ctx, 1); err != nil {
		t.Fatalf("UpvoteComment: %v", err)
	}
	pages, _, _ = c.Get(PostCommentsKey(1, q))
	if top := pages.(CommentPages)[0].Comments[0].View; top.Points != 9 || len(top.CommentUpvotes) != 1 {
		t.Errorf("Expected server count on top-level comment, got %+v", top)
	}
}

func TestCreateCommentDraft(t *testing.T) {
	ctx := context.Background()
	existing := persisted(services.CommentView{ID: 1, PostID: 3, Content: "first"})
	api := &fakeAPI{
		posts:    PostsPage{Posts: []services.PostView{{ID: 3, CommentCount: 1}}},
		comments: CommentsPage{Comments: []Comment{existing}, Pagination: services.Pagination{Page: 1, TotalPages: 1}},
	}
	m, l, c, notes := newTestMutator(t, api)
	if _, err := l.Post(ctx, 3); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if _, err := l.Comments(ctx, 3, CommentQuery{}); err != nil {
		t.Fatalf("Comments: %v", err)
	}

	var tempID string
	api.create = func(postID uint, content string) (*services.CommentView, error) {
		v, _, _ := c.Get(PostCommentsKey(3, CommentQuery{}))
		first := v.(CommentPages)[0].Comments[0]
		d, ok := first.Ref.(Draft)
		if !ok || d.TempID == "" {
			t.Fatalf("Expected draft at the top, got %+v", first.Ref)
		}
		tempID = d.TempID
		if first.View.Author != bob || first.View.Content != content {
			t.Errorf("Unexpected draft view: %+v", first.View)
		}
		if p := cachedPost(t, c, 3); p.CommentCount != 2 {
			t.Errorf("Expected optimistic comment count 2, got %d", p.CommentCount)
		}
		return &services.CommentView{ID: 42, PostID: postID, Content: content, Author: bob}, nil
	}
	if _, err := m.CreateComment(ctx, 3, "second"); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	v, _, _ := c.Get(PostCommentsKey(3, CommentQuery{}))
	comments := v.(CommentPages)[0].Comments
	if len(comments) != 2 || !comments[0].IsPersisted(42) || !comments[1].IsPersisted(1) {
		t.Fatalf("Expected persisted comment 42 replacing draft %s, got %+v", tempID, comments)
	}
	if _, stale, _ := c.Get(PostKey(3)); !stale {
		t.Error("Expected post invalidated after comment")
	}

	api.create = func(uint, string) (*services.CommentView, error) {
		return nil, &APIError{Status: 400, Message: "Comment cannot be empty", IsFormError: true}
	}
	if _, err := m.CreateComment(ctx, 3, "x"); err == nil {
		t.Fatal("Expected error")
	}
	v, _, _ = c.Get(PostCommentsKey(3, CommentQuery{}))
	if n := len(v.(CommentPages)[0].Comments); n != 2 {
		t.Errorf("Expected draft removed on rollback, got %d comments", n)
	}
	if len(*notes) != 1 || (*notes)[0] != "Failed to create comment" {
		t.Errorf("Unexpected notifications: %v", *notes)
	}
}

func TestCreateCommentRollbackRestoresPostLists(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{
		posts:    PostsPage{Posts: []services.PostView{{ID: 3, CommentCount: 3}}, Pagination: services.Pagination{Page: 1, TotalPages: 1}},
		comments: CommentsPage{Comments: []Comment{}, Pagination: services.Pagination{Page: 1, TotalPages: 1}},
	}
	m, l, c, notes := newTestMutator(t, api)
	if _, err := l.Posts(ctx, PostQuery{}); err != nil {
		t.Fatalf("Posts: %v", err)
	}

	api.create = func(uint, string) (*services.CommentView, error) {
		v, _, _ := c.Get(PostsKey(PostQuery{}))
		if n := v.(PostPages)[0].Posts[0].CommentCount; n != 4 {
			t.Errorf("Expected optimistic list count 4, got %d", n)
		}
		return nil, &APIError{Status: 500, Message: "Internal Server Error"}
	}
	if _, err := m.CreateComment(ctx, 3, "hello"); !IsStatus(err, 500) {
		t.Fatalf("Expected 500 APIError, got %v", err)
	}

	v, stale, ok := c.Get(PostsKey(PostQuery{}))
	if !ok {
		t.Fatal("post list dropped from cache")
	}
	if n := v.(PostPages)[0].Posts[0].CommentCount; n != 3 {
		t.Errorf("Expected list count restored to 3, got %d", n)
	}
	if !stale {
		t.Error("Expected post list invalidated after rollback")
	}
	if len(*notes) != 1 || (*notes)[0] != "Failed to create comment" {
		t.Errorf("Unexpected notifications: %v", *notes)
	}
}

func TestReplyBumpsParent(t *testing.T) {
	ctx := context.Background()
	parent := services.CommentView{ID: 5, PostID: 1, Depth: 0, CommentCount: 0}
	api := &fakeAPI{comments: CommentsPage{Comments: []Comment{persisted(parent)}, Pagination: services.Pagination{Page: 1, TotalPages: 1}}}
	m, l, c, _ := newTestMutator(t, api)
	if _, err := l.Comments(ctx, 1, CommentQuery{}); err != nil {
		t.Fatalf("Comments: %v", err)
	}
	if _, err := l.Replies(ctx, 5, CommentQuery{}); err != nil {
		t.Fatalf("Replies: %v", err)
	}

	api.create = func(parentID uint, content string) (*services.CommentView, error) {
		v, _, _ := c.Get(RepliesKey(5, CommentQuery{}))
		d := v.(CommentPages)[0].Comments[0]
		if d.View.Depth != 1 || d.View.ParentCommentID == nil || *d.View.ParentCommentID != 5 {
			t.Errorf("Unexpected reply draft: %+v", d.View)
		}
		pid := parentID
		return &services.CommentView{ID: 6, PostID: 1, ParentCommentID: &pid, Depth: 1, Content: content}, nil
	}
	if _, err := m.Reply(ctx, parent, "reply"); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	v, _, _ := c.Get(PostCommentsKey(1, CommentQuery{}))
	if n := v.(CommentPages)[0].Comments[0].View.CommentCount; n != 1 {
		t.Errorf("Expected parent commentCount 1, got %d", n)
	}
	v, _, _ = c.Get(RepliesKey(5, CommentQuery{}))
	if !v.(CommentPages)[0].Comments[0].IsPersisted(6) {
		t.Errorf("Expected persisted reply, got %+v", v)
	}
}
