package api

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"codequery/internal/api/auth"
	"codequery/internal/api/middleware"
	"codequery/internal/config"
	"codequery/internal/model"
	"codequery/internal/pkg/intelligent"
	"codequery/internal/pkg/metrics"
	"codequery/internal/pkg/ratelimit"
	"codequery/internal/pkg/revoke"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、令牌服务以及 Gin 路由引擎。
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *gorm.DB
	rdb       *redis.Client
	router    *gin.Engine
	tokens    *auth.TokenService
	auth      *auth.Handler
	users     auth.UserStore
	questions QuestionStore
	answers   AnswerStore
	generator intelligent.Generator
}

// QuestionStore 提问持久化操作。
type QuestionStore interface {
	List(ctx context.Context) ([]model.Question, error)
	Search(ctx context.Context, q string) ([]model.Question, error)
	FindByID(ctx context.Context, id uint) (*model.Question, error)
	Detailed(ctx context.Context, id uint) (*model.Question, error)
	Create(ctx context.Context, question *model.Question) error
	Save(ctx context.Context, question *model.Question) error
	Delete(ctx context.Context, id uint) error
}

// AnswerStore 回答与投票持久化操作。
type AnswerStore interface {
	FindByID(ctx context.Context, id uint) (*model.Answer, error)
	ListByQuestion(ctx context.Context, questionID uint) ([]model.Answer, error)
	Create(ctx context.Context, answer *model.Answer) error
	Save(ctx context.Context, answer *model.Answer) error
	Delete(ctx context.Context, id uint) error
	SetVote(ctx context.Context, answerID, userID uint, value int) error
	ClearVote(ctx context.Context, answerID, userID uint) error
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis
// 3. 初始化令牌服务、限流器与 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Question{}, &model.Answer{}, &model.AnswerVote{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	tokens := auth.NewTokenService(cfg.Security.JWTSecret, cfg.TokenTTL(), revoke.NewStore(rdb))
	users := auth.NewDBUserStore(db)
	limiter := ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.Rate, cfg.RateLimit.Burst)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.App.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimit(limiter, logger))

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		rdb:       rdb,
		router:    r,
		tokens:    tokens,
		auth:      auth.NewHandler(users, tokens, cfg.Security.CookieName, logger),
		users:     users,
		questions: dbQuestionStore{db: db},
		answers:   dbAnswerStore{db: db},
		generator: intelligent.NewGeminiClient(cfg.AI.Endpoint, cfg.AI.Model, cfg.AI.APIKey),
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 释放服务器持有的资源。
func (s *Server) Close() error {
	if s.rdb != nil {
		return s.rdb.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/healthz", s.handleHealthz)

	cookie := s.cfg.Security.CookieName
	required := middleware.RequireAuth(s.tokens, cookie)
	optional := middleware.OptionalAuth(s.tokens, cookie)

	users := s.router.Group("/users")
	users.POST("/signup", s.auth.Signup)
	users.POST("/signin", s.auth.Signin)
	users.POST("/signout", s.auth.Signout)
	users.POST("/validate", required, s.auth.Validate)
	users.GET("", s.auth.ListUsers)
	users.PUT("/:id", required, s.auth.UpdateUser)
	users.DELETE("/:id", s.auth.DeleteUser)

	questions := s.router.Group("/questions")
	questions.GET("", s.handleListQuestions)
	questions.GET("/search", s.handleSearchQuestions)
	questions.POST("", required, s.handleCreateQuestion)
	questions.GET("/:id", s.handleGetQuestion)
	questions.PUT("/:id", required, s.handleUpdateQuestion)
	questions.DELETE("/:id", required, s.handleDeleteQuestion)

	questions.GET("/:id/answers", s.handleListAnswers)
	questions.POST("/:id/answers", optional, s.handleCreateAnswer)
	questions.PUT("/:id/answers/intelligent", required, s.handleIntelligentAnswer)
	questions.PUT("/:id/answers/:answerId", required, s.handleUpdateAnswer)
	questions.DELETE("/:id/answers/:answerId", required, s.handleDeleteAnswer)
	questions.PUT("/:id/answers/:answerId/upvote", required, s.handleUpvoteAnswer)
	questions.PUT("/:id/answers/:answerId/downvote", required, s.handleDownvoteAnswer)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
