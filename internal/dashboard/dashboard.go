package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/betbot/sniper/internal/scanner"
	"github.com/betbot/sniper/pkg/logger"
)

// Server 只读观测面板 + 主开关
type Server struct {
	scanner *scanner.Scanner
	srv     *http.Server
}

// New 创建面板服务
func New(addr string, sc *scanner.Scanner) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{scanner: sc}

	api := r.Group("/api")
	{
		api.GET("/metrics", s.handleMetrics)
		api.GET("/stats", s.handleStats)
		api.GET("/logs", s.handleLogs)
		api.POST("/sniper/toggle", s.handleToggle)
		api.POST("/stats/reset", s.handleReset)
	}

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start 启动 HTTP 服务（非阻塞）
func (s *Server) Start() {
	go func() {
		logger.Infof("仪表盘: http://%s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("仪表盘服务异常退出: %v", err)
		}
	}()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.scanner.Metrics())
}

func (s *Server) handleStats(c *gin.Context) {
	st, err := s.scanner.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleLogs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": s.scanner.Logs()})
}

// handleToggle 翻转主开关并返回新状态
func (s *Server) handleToggle(c *gin.Context) {
	next := !s.scanner.Enabled()
	s.scanner.SetEnabled(next)
	c.JSON(http.StatusOK, gin.H{"enabled": next})
}

func (s *Server) handleReset(c *gin.Context) {
	s.scanner.ResetStats()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
