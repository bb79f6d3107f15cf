package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"servos/store"
)

// handleExportProject 导出当前工程
func (s *Server) handleExportProject(c *gin.Context) {
	respondOK(c, "", s.studio.Snapshot())
}

// handleImportProject 用请求体替换当前工程
func (s *Server) handleImportProject(c *gin.Context) {
	var p store.Project
	if err := c.ShouldBindJSON(&p); err != nil {
		respondBadRequest(c, "无效的工程数据", err)
		return
	}
	if err := s.studio.Restore(p); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, fmt.Sprintf("工程已导入 (%d 个通道)", len(p.Channels)), nil)
}

func (s *Server) handleNewProject(c *gin.Context) {
	var req NewProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的新建工程请求", err)
		return
	}
	if err := s.studio.NewProject(req.Channels); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "已新建工程", s.studio.ListChannels())
}

func (s *Server) handleSaveProject(c *gin.Context) {
	if err := s.studio.Save(); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "工程已保存", nil)
}

func (s *Server) handleLoadProject(c *gin.Context) {
	if err := s.studio.Load(); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "工程已载入", s.studio.ListChannels())
}
