package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"vector-pipeline-go/internal/service"
)

// ReadyProbe 检查一个外部依赖是否就绪，键为依赖名。
type ReadyProbe func(ctx context.Context) bool

// HealthHandler 暴露存活/就绪探针和流水线状态观测接口。
type HealthHandler struct {
	statusService service.StatusService
	probes        map[string]ReadyProbe
}

// NewHealthHandler 创建一个新的 HealthHandler 实例。
// statusService 可以为空，此时 /status 返回 404 由路由决定是否注册。
func NewHealthHandler(statusService service.StatusService, probes map[string]ReadyProbe) *HealthHandler {
	return &HealthHandler{
		statusService: statusService,
		probes:        probes,
	}
}

// Health 是综合健康检查，依赖全部就绪时返回 200，否则 503。
func (h *HealthHandler) Health(c *gin.Context) {
	checks := make(map[string]bool, len(h.probes))
	healthy := true
	for name, probe := range h.probes {
		ok := probe(c.Request.Context())
		checks[name] = ok
		if !ok {
			healthy = false
		}
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

// Live 是存活探针，进程在跑就返回 200。
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Ready 是就绪探针，语义与 Health 相同但只返回状态。
func (h *HealthHandler) Ready(c *gin.Context) {
	for _, probe := range h.probes {
		if !probe(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Status 返回流水线的队列深度和处理进度。
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    200,
		"data":    h.statusService.PipelineStatus(c.Request.Context()),
		"message": "success",
	})
}
