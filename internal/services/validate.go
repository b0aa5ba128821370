package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"betternews/internal/apperr"
)

var (
	validate      = validator.New()
	usernameChars = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// fieldErrors 按字段收集校验错误，第一条作为整体错误信息
type fieldErrors struct {
	first  string
	fields map[string]string
}

func (f *fieldErrors) add(field, msg string) {
	if f.fields == nil {
		f.fields = map[string]string{}
	}
	if _, dup := f.fields[field]; dup {
		return
	}
	if f.first == "" {
		f.first = msg
	}
	f.fields[field] = msg
}

func (f *fieldErrors) err() error {
	if f.first == "" {
		return nil
	}
	return apperr.Validation(f.first, f.fields)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// isURL accepts absolute URLs with a scheme and host.
func isURL(s string) bool {
	return validate.Var(s, "required,url") == nil && strings.Contains(s, "://")
}

// Credentials 注册和登录共用的表单
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) validate() error {
	var fe fieldErrors
	if n := runeLen(c.Username); n < 3 || n > 31 {
		fe.add("username", "Username must be between 3 and 31 characters")
	} else if !usernameChars.MatchString(c.Username) {
		fe.add("username", "Username may only contain letters, numbers and underscores")
	}
	if n := runeLen(c.Password); n < 3 || n > 255 {
		fe.add("password", "Password must be between 3 and 255 characters")
	}
	return fe.err()
}

// CreatePostInput 发帖表单。URL 和 Content 为空串视为未提供。
type CreatePostInput struct {
	Title   string
	URL     string
	Content string
}

func (in *CreatePostInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.URL = strings.TrimSpace(in.URL)

	var fe fieldErrors
	if runeLen(in.Title) < 3 {
		fe.add("title", "Title must be at least 3 characters long")
	}
	if in.URL != "" && !isURL(in.URL) {
		fe.add("url", "URL must be valid")
	}
	if in.URL == "" && strings.TrimSpace(in.Content) == "" {
		fe.add("content", "Either URL or Content must be provided")
	}
	return fe.err()
}

func validateCommentContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if runeLen(content) < 3 {
		var fe fieldErrors
		fe.add("content", "Content must be at least 3 characters long")
		return "", fe.err()
	}
	return content, nil
}
