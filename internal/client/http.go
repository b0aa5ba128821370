// Package client is the Go counterpart of the web frontend's data layer: a
// typed HTTP client for the forum API plus a query cache with optimistic
// mutations.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"

	"betternews/internal/services"
)

// APIError 服务端返回的 {success:false} 响应
type APIError struct {
	Status      int
	Message     string
	IsFormError bool
	Fields      map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

type envelope struct {
	Success     bool                 `json:"success"`
	Message     string               `json:"message"`
	Error       string               `json:"error"`
	IsFormError bool                 `json:"isFormError"`
	Fields      map[string]string    `json:"fields"`
	Data        json.RawMessage      `json:"data"`
	Pagination  *services.Pagination `json:"pagination"`
}

// HTTPClient 调用论坛 API；会话 cookie 保存在 cookie jar 中
type HTTPClient struct {
	base *url.URL
	http *http.Client
}

// NewHTTPClient creates a client for baseURL. A nil httpClient gets a
// fresh client with its own cookie jar.
func NewHTTPClient(baseURL string, httpClient *http.Client) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient = &http.Client{Jar: jar}
	}
	return &HTTPClient{base: u, http: httpClient}, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query, form url.Values, out interface{}) (*services.Pagination, error) {
	u := *c.base
	u.Path += path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if resp.StatusCode >= 400 || !env.Success {
		return nil, &APIError{Status: resp.StatusCode, Message: env.Error, IsFormError: env.IsFormError, Fields: env.Fields}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return env.Pagination, nil
}

func credentialsForm(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

func (c *HTTPClient) Signup(ctx context.Context, username, password string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/signup", nil, credentialsForm(username, password), nil)
	return err
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, credentialsForm(username, password), nil)
	return err
}

// Logout 服务端以重定向响应，这里不跟随
func (c *HTTPClient) Logout(ctx context.Context) error {
	u := *c.base
	u.Path += "/api/auth/logout"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	hc := *c.http
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

// User returns the logged-in username.
func (c *HTTPClient) User(ctx context.Context) (string, error) {
	var out struct {
		Username string `json:"username"`
	}
	_, err := c.do(ctx, http.MethodGet, "/api/auth/user", nil, nil, &out)
	return out.Username, err
}

func (c *HTTPClient) CreatePost(ctx context.Context, title, link, content string) (uint, error) {
	form := url.Values{"title": {title}}
	if link != "" {
		form.Set("url", link)
	}
	if content != "" {
		form.Set("content", content)
	}
	var out struct {
		PostID uint `json:"postId"`
	}
	_, err := c.do(ctx, http.MethodPost, "/api/posts", nil, form, &out)
	return out.PostID, err
}

func pageQuery(page, limit int, sortBy, orderBy string) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if sortBy != "" {
		q.Set("sortBy", sortBy)
	}
	if orderBy != "" {
		q.Set("orderBy", orderBy)
	}
	return q
}

func (c *HTTPClient) ListPosts(ctx context.Context, q PostQuery, page int) (PostsPage, error) {
	query := pageQuery(page, q.Limit, q.SortBy, q.OrderBy)
	if q.Author != "" {
		query.Set("author", q.Author)
	}
	if q.Site != "" {
		query.Set("site", q.Site)
	}
	var out PostsPage
	p, err := c.do(ctx, http.MethodGet, "/api/posts", query, nil, &out.Posts)
	if p != nil {
		out.Pagination = *p
	}
	return out, err
}

func (c *HTTPClient) GetPost(ctx context.Context, id uint) (services.PostView, error) {
	var out services.PostView
	_, err := c.do(ctx, http.MethodGet, "/api/posts/"+idSeg(id), nil, nil, &out)
	return out, err
}

func (c *HTTPClient) UpvotePost(ctx context.Context, id uint) (*services.UpvotePostResult, error) {
	var out services.UpvotePostResult
	if _, err := c.do(ctx, http.MethodPatch, "/api/posts/"+idSeg(id)+"/upvote", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateComment(ctx context.Context, postID uint, content string) (*services.CommentView, error) {
	var out services.CommentView
	if _, err := c.do(ctx, http.MethodPost, "/api/posts/"+idSeg(postID)+"/comment", nil, url.Values{"content": {content}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Reply(ctx context.Context, parentID uint, content string) (*services.CommentView, error) {
	var out services.CommentView
	if _, err := c.do(ctx, http.MethodPost, "/api/comments/"+idSeg(parentID), nil, url.Values{"content": {content}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) listComments(ctx context.Context, path string, query url.Values) (CommentsPage, error) {
	var views []services.CommentView
	p, err := c.do(ctx, http.MethodGet, path, query, nil, &views)
	if err != nil {
		return CommentsPage{}, err
	}
	out := CommentsPage{Comments: persistedAll(views)}
	if p != nil {
		out.Pagination = *p
	}
	return out, nil
}

func (c *HTTPClient) ListComments(ctx context.Context, postID uint, q CommentQuery, page int) (CommentsPage, error) {
	query := pageQuery(page, q.Limit, q.SortBy, q.OrderBy)
	if q.IncludeChildren {
		query.Set("includeChildren", "true")
	}
	return c.listComments(ctx, "/api/posts/"+idSeg(postID)+"/comments", query)
}

func (c *HTTPClient) ListReplies(ctx context.Context, commentID uint, q CommentQuery, page int) (CommentsPage, error) {
	return c.listComments(ctx, "/api/comments/"+idSeg(commentID)+"/comments", pageQuery(page, q.Limit, q.SortBy, q.OrderBy))
}

func (c *HTTPClient) UpvoteComment(ctx context.Context, id uint) (*services.UpvoteCommentResult, error) {
	var out services.UpvoteCommentResult
	if _, err := c.do(ctx, http.MethodPatch, "/api/comments/"+idSeg(id)+"/upvote", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
