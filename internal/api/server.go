package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"taskkeeper/internal/api/auth"
	"taskkeeper/internal/api/middleware"
	"taskkeeper/internal/api/scheduler"
	"taskkeeper/internal/config"
	"taskkeeper/internal/model"
	"taskkeeper/internal/pkg/metrics"
	"taskkeeper/internal/pkg/notify"
	"taskkeeper/internal/pkg/ratelimit"
	"taskkeeper/internal/task"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、任务生命周期管理器、
// 提醒调度器以及 Gin 路由引擎。
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
	rdb    *redis.Client
	router *gin.Engine
	sched  *scheduler.Scheduler
	auth   *auth.Handler
	tasks  *task.Manager
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis
// 3. 初始化通知器、任务管理器与提醒调度器
// 4. 初始化 Gin 路由引擎
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
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

	emailNotifier := notify.NewEmailNotifier(&cfg.Email, logger)
	taskStore := task.NewStore(db)
	manager := task.NewManager(taskStore, emailNotifier, logger, cfg.App.NotifyTimeout)
	sched := scheduler.NewScheduler(
		db,
		logger,
		emailNotifier,
		cfg.App.ReminderHourUTC,
		cfg.App.SweepOnStart,
		cfg.App.NotifyTimeout,
	)
	limiter := ratelimit.NewRateLimiter(rdb, cfg.App.RateLimit, cfg.App.RateBurst, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:    cfg,
		logger: logger,
		db:     db,
		rdb:    rdb,
		router: r,
		sched:  sched,
		auth:   auth.NewHandler(db, cfg.Security.JWTSecret, cfg.App.BaseURL, emailNotifier, logger),
		tasks:  manager,
	}
	s.registerRoutes(limiter)
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// StartScheduler 在后台启动提醒调度器。
func (s *Server) StartScheduler(ctx context.Context) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("PANIC in reminder scheduler", slog.Any("panic", r))
			}
		}()
		s.sched.Run(ctx)
	}()
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes(limiter *ratelimit.RateLimiter) {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	public := s.router.Group("/")
	public.Use(middleware.RateLimitMiddleware(limiter, s.logger))
	public.POST("/register", s.auth.Register)
	public.POST("/login", s.auth.Login)
	public.POST("/password/forgot", s.auth.ForgotPassword)
	public.POST("/password/reset", s.auth.ResetPassword)

	authed := s.router.Group("/")
	authed.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret))
	authed.GET("/tasks", s.handleListTasks)
	authed.GET("/tasks/stats", s.handleTaskStats)
	authed.POST("/tasks", s.handleCreateTask)
	authed.PUT("/tasks/:id", s.handleUpdateTask)
	authed.PUT("/tasks/complete/:id", s.handleToggleComplete)
	authed.PUT("/tasks/archive/:id", s.handleArchiveTask)
	authed.PUT("/tasks/restore/:id", s.handleRestoreTask)
	authed.DELETE("/tasks/:id", s.handleDeleteTask)
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

// createTaskRequest 创建任务的请求参数。
type createTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	EndDate     *time.Time `json:"endDate"`
}

// updateTaskRequest 更新任务的请求参数，nil 字段不修改。
type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	EndDate     *time.Time `json:"endDate"`
	Completed   *bool      `json:"completed"`
}

// handleListTasks 返回调用者自己的任务列表。
//
// GET /tasks?includeArchived=<bool>&month=<1-12>&year=<n>
//
// month 与 year 同时给出时按创建月份过滤（UTC 日历）。
func (s *Server) handleListTasks(c *gin.Context) {
	ownerID := getUserID(c)
	includeArchived := c.Query("includeArchived") == "true"

	tasks, err := s.tasks.List(c.Request.Context(), ownerID, includeArchived)
	if err != nil {
		s.logger.Error("list tasks failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list tasks failed"})
		return
	}

	month := parseQueryInt(c, "month", 0)
	year := parseQueryInt(c, "year", 0)
	if month >= 1 && month <= 12 && year > 0 {
		tasks = task.FilterByPeriod(tasks, time.Month(month), year)
	}

	c.JSON(http.StatusOK, tasks)
}

// handleTaskStats 返回调用者任务的数量统计（含归档）。
//
// GET /tasks/stats
func (s *Server) handleTaskStats(c *gin.Context) {
	ownerID := getUserID(c)

	tasks, err := s.tasks.List(c.Request.Context(), ownerID, true)
	if err != nil {
		s.logger.Error("load tasks for stats failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load tasks failed"})
		return
	}

	c.JSON(http.StatusOK, task.ComputeStats(tasks))
}

// handleCreateTask 创建任务。
//
// POST /tasks
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := s.tasks.Create(c.Request.Context(), getUserID(c), task.CreateRequest{
		Title:       req.Title,
		Description: req.Description,
		EndDate:     req.EndDate,
	})
	if err != nil {
		s.renderTaskError(c, "create task failed", err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// handleUpdateTask 更新任务字段。
//
// PUT /tasks/:id
func (s *Server) handleUpdateTask(c *gin.Context) {
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := s.tasks.Update(c.Request.Context(), getUserID(c), taskID, task.UpdateRequest{
		Title:       req.Title,
		Description: req.Description,
		EndDate:     req.EndDate,
		Completed:   req.Completed,
	})
	if err != nil {
		s.renderTaskError(c, "update task failed", err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// handleToggleComplete 翻转任务完成状态。
//
// PUT /tasks/complete/:id
func (s *Server) handleToggleComplete(c *gin.Context) {
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}

	updated, err := s.tasks.ToggleComplete(c.Request.Context(), getUserID(c), taskID)
	if err != nil {
		s.renderTaskError(c, "toggle complete failed", err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// handleArchiveTask 归档任务（幂等）。
//
// PUT /tasks/archive/:id
func (s *Server) handleArchiveTask(c *gin.Context) {
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}

	archived, err := s.tasks.Archive(c.Request.Context(), getUserID(c), taskID)
	if err != nil {
		s.renderTaskError(c, "archive task failed", err)
		return
	}

	c.JSON(http.StatusOK, archived)
}

// handleRestoreTask 恢复已归档任务（幂等）。
//
// PUT /tasks/restore/:id
func (s *Server) handleRestoreTask(c *gin.Context) {
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}

	restored, err := s.tasks.Restore(c.Request.Context(), getUserID(c), taskID)
	if err != nil {
		s.renderTaskError(c, "restore task failed", err)
		return
	}

	c.JSON(http.StatusOK, restored)
}

// handleDeleteTask 永久删除任务。
//
// DELETE /tasks/:id
func (s *Server) handleDeleteTask(c *gin.Context) {
	taskID, ok := parseTaskID(c)
	if !ok {
		return
	}

	if err := s.tasks.Delete(c.Request.Context(), getUserID(c), taskID); err != nil {
		s.renderTaskError(c, "delete task failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

// renderTaskError 将生命周期错误映射为 HTTP 状态码。
func (s *Server) renderTaskError(c *gin.Context, logMsg string, err error) {
	switch {
	case errors.Is(err, task.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, task.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, task.ErrArchived):
		c.JSON(http.StatusConflict, gin.H{"error": "task is archived"})
	default:
		s.logger.Error(logMsg, slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": logMsg})
	}
}

func parseTaskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return uint(id), true
}

// parseQueryInt 解析查询参数中的整数值。
func parseQueryInt(c *gin.Context, key string, def int) int {
	val := c.Query(key)
	if val == "" {
		return def
	}
	iv, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return iv
}

func getUserID(c *gin.Context) uint {
	if v, ok := c.Get("userID"); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
