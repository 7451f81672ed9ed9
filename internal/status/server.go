package status

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/swapbot/goswap/internal/services"
)

var log = logrus.WithField("component", "status")

// Provider 状态数据来源（由调度器实现）
type Provider interface {
	Snapshot() []services.CycleReport
	Kick()
}

// Server 只读状态 HTTP 服务
// GET /healthz、GET /status 查看每个合约最近一轮结果，POST /cycle 立即触发下一轮
type Server struct {
	addr     string
	provider Provider
	srv      *http.Server
}

// NewServer 创建状态服务
func NewServer(addr string, provider Provider) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		addr:     addr,
		provider: provider,
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"time":    time.Now(),
			"reports": s.provider.Snapshot(),
		})
	})
	engine.POST("/cycle", func(c *gin.Context) {
		s.provider.Kick()
		c.JSON(http.StatusAccepted, gin.H{"message": "下一轮已触发"})
	})

	s.srv = &http.Server{Addr: addr, Handler: engine}
	return s
}

// Start 在后台启动状态服务
func (s *Server) Start() {
	go func() {
		log.Infof("状态服务监听 %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("状态服务退出: %v", err)
		}
	}()
}

// Shutdown 优雅关闭状态服务
func (s *Server) Shutdown(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Errorf("状态服务关闭失败: %v", err)
	}
}
