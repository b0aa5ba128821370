package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"betternews/internal/apperr"
	"betternews/internal/models"
	"betternews/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, ErrorResponse) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		err        error
		status     int
		message    string
		form       bool
	}{
		{"validation", true, apperr.Validation("Title must be at least 3 characters long", map[string]string{"title": "x"}), 400, "Title must be at least 3 characters long", true},
		{"not found", true, apperr.NotFound("Post not found"), 404, "Post not found", false},
		{"conflict form", true, apperr.Conflict("Username already used").AsForm(), 409, "Username already used", true},
		{"unexpected redacted", true, errors.New("pq: connection refused"), 500, "Internal Server Error", false},
		{"unexpected in development", false, errors.New("pq: connection refused"), 500, "pq: connection refused", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandler(tt.production, nil))
			r.GET("/", func(c *gin.Context) {
				_ = c.Error(tt.err)
			})

			w, body := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			if body.Success || body.Error != tt.message || body.IsFormError != tt.form {
				t.Errorf("Unexpected body: %+v", body)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(true, nil), Recovery())
	r.GET("/", func(c *gin.Context) {
		panic("boom")
	})

	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError || body.Error != "Internal Server Error" {
		t.Errorf("Expected redacted 500, got %d %+v", w.Code, body)
	}
}

type fakeSessions map[string]*services.SessionInfo

func (f fakeSessions) ValidateSession(_ context.Context, id string) (*services.SessionInfo, error) {
	return f[id], nil
}

func TestLoadUserAndAuthRequired(t *testing.T) {
	info := &services.SessionInfo{
		Session: models.Session{ID: "abc"},
		User:    models.User{ID: "u1", Username: "alice"},
	}
	m := NewSessionManager(fakeSessions{"abc": info}, false, nil)

	r := gin.New()
	r.Use(ErrorHandler(false, nil))
	r.Use(sessions.Sessions("auth_session", cookie.NewStore([]byte("0123456789abcdef0123456789abcdef"))))
	r.Use(m.LoadUser())
	r.GET("/login/:id", func(c *gin.Context) {
		if err := m.Start(c, &models.Session{ID: c.Param("id"), ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
			t.Fatalf("Start: %v", err)
		}
		c.Status(http.StatusNoContent)
	})
	r.GET("/me", AuthRequired(), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentViewer(c).Username)
	})

	w, body := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized || body.Error != "Unauthorized" {
		t.Fatalf("Expected 401, got %d %+v", w.Code, body)
	}

	for _, tc := range []struct {
		id     string
		status int
	}{{"abc", http.StatusOK}, {"stale", http.StatusUnauthorized}} {
		login := httptest.NewRecorder()
		r.ServeHTTP(login, httptest.NewRequest(http.MethodGet, "/login/"+tc.id, nil))
		cookies := login.Result().Cookies()
		if len(cookies) == 0 {
			t.Fatalf("no session cookie for %s", tc.id)
		}
		if !cookies[0].HttpOnly || cookies[0].SameSite != http.SameSiteLaxMode {
			t.Errorf("Unexpected cookie attributes: %+v", cookies[0])
		}

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(cookies[0])
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.status {
			t.Errorf("session %s: expected %d, got %d", tc.id, tc.status, w.Code)
		}
		if tc.status == http.StatusOK && w.Body.String() != "alice" {
			t.Errorf("Expected viewer alice, got %q", w.Body.String())
		}
	}
}
