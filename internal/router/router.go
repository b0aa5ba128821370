package router

import (
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"betternews/internal/config"
	"betternews/internal/handlers"
	"betternews/internal/middleware"
	"betternews/internal/services"
	"betternews/internal/telemetry"
)

// Deps 路由需要的全部依赖，由 main 组装
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Auth     *services.AuthService
	Posts    *services.PostService
	Comments *services.CommentService
	Cache    handlers.Pinger // optional
	Logger   *zap.Logger
	Metrics  *telemetry.Metrics
}

// New 构建 gin 引擎并注册所有路由
func New(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	cfg := d.Config
	prod := cfg.Server.IsProduction()

	r := gin.New()
	r.Use(
		middleware.ErrorHandler(prod, d.Logger),
		middleware.Recovery(),
		middleware.RequestLogger(d.Logger.With(zap.String("component", "http")), d.Metrics),
	)
	if cfg.Telemetry.Enabled {
		r.Use(middleware.Tracing())
	}
	r.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// Setup Sessions
	secret := []byte(cfg.Session.Secret)
	if len(secret) == 0 {
		d.Logger.Warn("session secret not set, using a random key; sessions will not survive restarts")
		secret = securecookie.GenerateRandomKey(32)
	}
	sessionManager := middleware.NewSessionManager(d.Auth, prod, d.Logger)
	store := cookie.NewStore(secret)
	store.Options(sessionManager.Options(time.Now().Add(cfg.Session.TTL)))
	r.Use(sessions.Sessions(cfg.Session.CookieName, store))
	r.Use(sessionManager.LoadUser())

	health := handlers.NewHealthHandler(d.DB, d.Cache)
	r.GET("/health", health.Health)
	if cfg.Telemetry.Enabled && cfg.Telemetry.PrometheusEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(d.Auth, sessionManager)
	postHandler := handlers.NewPostHandler(d.Posts, d.Comments)
	commentHandler := handlers.NewCommentHandler(d.Comments)

	api := r.Group("/api")
	requireAuth := middleware.AuthRequired()

	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)         // 注册
		auth.POST("/login", authHandler.Login)           // 登录
		auth.GET("/logout", authHandler.Logout)          // 退出登录
		auth.GET("/user", requireAuth, authHandler.User) // 当前用户
	}

	posts := api.Group("/posts")
	{
		posts.GET("", postHandler.List)                                    // 帖子列表
		posts.POST("", requireAuth, postHandler.Create)                    // 发帖
		posts.GET("/:id", postHandler.Get)                                 // 帖子详情
		posts.PATCH("/:id/upvote", requireAuth, postHandler.Upvote)        // 点赞/取消
		posts.POST("/:id/comment", requireAuth, postHandler.CreateComment) // 顶层评论
		posts.GET("/:id/comments", postHandler.Comments)                   // 顶层评论列表
	}

	comments := api.Group("/comments")
	{
		comments.POST("/:id", requireAuth, commentHandler.Reply)          // 回复评论
		comments.GET("/:id/comments", commentHandler.Children)            // 子评论列表
		comments.PATCH("/:id/upvote", requireAuth, commentHandler.Upvote) // 点赞/取消
	}

	r.NoRoute(staticFallback(cfg.Server.StaticDir))
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return cors.New(c)
}

// staticFallback 非 /api 路径返回前端构建产物，找不到文件时回退到 index.html
func staticFallback(dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || path == "/api" || dir == "" ||
			(c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
			c.JSON(http.StatusNotFound, middleware.ErrorResponse{Error: "Not Found"})
			return
		}

		file := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+path)))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.File(file)
			return
		}
		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			c.JSON(http.StatusNotFound, middleware.ErrorResponse{Error: "Not Found"})
			return
		}
		c.File(index)
	}
}
