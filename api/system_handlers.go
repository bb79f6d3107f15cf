package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"servos/communication"
)

// handleSystemStatus 获取系统状态
func (s *Server) handleSystemStatus(c *gin.Context) {
	respondOK(c, "", s.studio.Status())
}

// handleHealthCheck 健康检查
func (s *Server) handleHealthCheck(c *gin.Context) {
	respondOK(c, "", HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Streams:   s.hub.Len(),
	})
}

// handleGetTransports 可用的输出类型、当前输出统计以及本机串口
func (s *Server) handleGetTransports(c *gin.Context) {
	resp := TransportsResponse{
		Supported:   communication.GetSupportedTransports(),
		Active:      s.studio.TransportStats(),
		SerialPorts: []string{},
	}
	// 枚举串口失败不影响其余信息
	ports, err := s.listPorts()
	if err != nil {
		s.logger.Warnf("⚠️ 枚举串口失败: %v", err)
		resp.SerialError = err.Error()
	} else if ports != nil {
		resp.SerialPorts = ports
	}
	respondOK(c, "", resp)
}
