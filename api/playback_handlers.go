package api

import (
	"github.com/gin-gonic/gin"

	"servos/studio"
)

// handleStart 从头开始播放
func (s *Server) handleStart(c *gin.Context) {
	session, err := s.studio.Start()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "播放已开始", StartResponse{Session: session})
}

func (s *Server) handlePause(c *gin.Context) {
	if err := s.studio.Pause(); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "播放已暂停", s.studio.PlaybackStatus())
}

func (s *Server) handleResume(c *gin.Context) {
	if err := s.studio.Resume(); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "播放已恢复", s.studio.PlaybackStatus())
}

func (s *Server) handleStop(c *gin.Context) {
	s.studio.Stop()
	respondOK(c, "播放已停止", s.studio.PlaybackStatus())
}

// handleSeek 跳转播放位置
func (s *Server) handleSeek(c *gin.Context) {
	var req SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的跳转请求", err)
		return
	}
	if err := s.studio.Seek(*req.Time); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", s.studio.PlaybackStatus())
}

func (s *Server) handlePlaybackStatus(c *gin.Context) {
	respondOK(c, "", s.studio.PlaybackStatus())
}

// handleSettings 修改时长、分辨率、步长倍数或缓存缺失策略
func (s *Server) handleSettings(c *gin.Context) {
	var req studio.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的播放参数", err)
		return
	}
	status, err := s.studio.ApplySettings(req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "播放参数已更新", status)
}
