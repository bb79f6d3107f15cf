// Package api 提供曲线编辑、播放控制和工程管理的 HTTP 接口
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"servos/communication"
	"servos/studio"
)

// Server API 服务器
type Server struct {
	studio    *studio.Studio
	hub       *Hub
	unobserve func()
	startTime time.Time
	version   string
	listPorts func() ([]string, error) // 枚举本机串口
	logger    *zap.SugaredLogger
}

// NewServer 创建 API 服务器，并把播放采样转发到 SSE 订阅者
func NewServer(st *studio.Studio, streamBuffer int, logger *zap.SugaredLogger) *Server {
	s := &Server{
		studio:    st,
		hub:       NewHub(streamBuffer),
		startTime: time.Now(),
		version:   "1.0.0",
		listPorts: communication.ListSerialPorts,
		logger:    logger,
	}
	s.unobserve = st.Observe(s.hub.Publish)
	return s
}

// Close 取消采样订阅并断开所有 SSE 连接
func (s *Server) Close() {
	s.unobserve()
	s.hub.Close()
}

// NewEngine 创建 gin 引擎
func NewEngine(enableCORS bool, logger *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	if enableCORS {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"*"}, // 允许的域，*表示允许所有
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	return r
}

// SetupRoutes 设置 API 路由
func (s *Server) SetupRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	{
		// 通道管理路由
		channels := v1.Group("/channels")
		{
			channels.GET("", s.handleListChannels)          // 获取所有通道
			channels.POST("", s.handleCreateChannel)        // 新增通道
			channels.PUT("/count", s.handleSetChannelCount) // 调整通道数量
			channels.GET("/:id", s.handleGetChannel)        // 获取通道详情
			channels.PATCH("/:id", s.handleUpdateChannel)   // 修改名称、开关、上下限
			channels.DELETE("/:id", s.handleDeleteChannel)  // 删除通道

			// 曲线编辑路由
			ch := channels.Group("/:id")
			{
				ch.POST("/keyframes", s.handleInsertKeyframe)            // 插入关键帧
				ch.PUT("/keyframes/:kf", s.handleMoveKeyframe)           // 移动关键帧
				ch.DELETE("/keyframes/:kf", s.handleDeleteKeyframe)      // 删除关键帧
				ch.PUT("/segments/:index/controls", s.handleSetControls) // 设置片段控制点
				ch.PUT("/baseline", s.handleSetBaseline)                 // 设置基准值
				ch.GET("/curve", s.handleGetCurve)                       // 导出曲线
				ch.PUT("/curve", s.handleReplaceCurve)                   // 替换曲线
				ch.GET("/samples", s.handleSamples)                      // 预览采样
				ch.POST("/hit-test", s.handleHitTest)                    // 像素命中测试
			}
		}

		// 视口换算路由
		viewport := v1.Group("/viewport")
		{
			viewport.GET("", s.handleGetViewport)
			viewport.POST("/to-curve", s.handleToCurve)
			viewport.POST("/to-viewport", s.handleToViewport)
		}

		// 编辑器设置
		v1.PUT("/editor/limit-mode", s.handleSetLimitMode)

		// 播放控制路由
		pb := v1.Group("/playback")
		{
			pb.POST("/start", s.handleStart)
			pb.POST("/pause", s.handlePause)
			pb.POST("/resume", s.handleResume)
			pb.POST("/stop", s.handleStop)
			pb.POST("/seek", s.handleSeek)
			pb.GET("/status", s.handlePlaybackStatus)
			pb.PUT("/settings", s.handleSettings)
			pb.GET("/stream", s.handleStream) // SSE 实时采样
		}

		// 工程管理路由
		project := v1.Group("/project")
		{
			project.GET("", s.handleExportProject)
			project.PUT("", s.handleImportProject)
			project.POST("/new", s.handleNewProject)
			project.POST("/save", s.handleSaveProject)
			project.POST("/load", s.handleLoadProject)
		}

		// 系统管理路由
		system := v1.Group("/system")
		{
			system.GET("/status", s.handleSystemStatus)      // 获取系统状态
			system.GET("/health", s.handleHealthCheck)       // 健康检查
			system.GET("/transports", s.handleGetTransports) // 输出类型与统计
		}
	}
}

// requestLogger 用 zap 记录每个请求
func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/api/v1/playback/stream" {
			return
		}
		logger.Debugw("🌐 请求",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
