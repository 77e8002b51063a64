package health

import (
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"communitymsg/backend/internal/storage"
)

// Pinger 可探活的外部依赖,例如 Redis 客户端。
type Pinger interface {
	Ping() error
}

// Checker 健康检查器,暴露 /live 和 /ready 两个探针。
type Checker struct {
	handler healthcheck.Handler
	store   storage.Store
	log     *zap.Logger
}

// NewChecker 创建健康检查器并注册存储层检查。
func NewChecker(store storage.Store, log *zap.Logger) *Checker {
	c := &Checker{
		handler: healthcheck.NewHandler(),
		store:   store,
		log:     log,
	}

	c.handler.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(2000))
	c.handler.AddReadinessCheck("storage", func() error {
		return store.Health()
	})

	return c
}

// AddPinger 注册一个附加依赖的就绪检查。
func (c *Checker) AddPinger(name string, p Pinger) {
	c.handler.AddReadinessCheck(name, healthcheck.Check(p.Ping))
}

// Handler 返回健康检查 HTTP 处理器。
func (c *Checker) Handler() http.Handler {
	return c.handler
}

// Watch 周期性执行就绪检查并记录失败,直到 stop 被关闭。
func (c *Checker) Watch(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.store.Health(); err != nil {
				c.log.Warn("storage health check failed", zap.Error(err))
			}
		}
	}
}
