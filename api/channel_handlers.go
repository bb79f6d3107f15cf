package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"servos/define"
	"servos/studio"
)

// channelID 解析路径中的通道 ID
func channelID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, define.ApiResponse{
			Status: "error",
			Error:  fmt.Sprintf("无效的通道 ID：%s", c.Param("id")),
		})
		return 0, false
	}
	return id, true
}

// handleListChannels 获取所有通道
func (s *Server) handleListChannels(c *gin.Context) {
	respondOK(c, "", s.studio.ListChannels())
}

// handleCreateChannel 新增通道
func (s *Server) handleCreateChannel(c *gin.Context) {
	var req ChannelCreateRequest
	// 请求体可以为空
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "无效的通道创建请求", err)
			return
		}
	}

	info, err := s.studio.AddChannel(req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, define.ApiResponse{
		Status:  "success",
		Message: fmt.Sprintf("通道 %d 已创建", info.ID),
		Data:    info,
	})
}

// handleSetChannelCount 调整通道数量
func (s *Server) handleSetChannelCount(c *gin.Context) {
	var req ChannelCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的通道数量", err)
		return
	}

	added, removed, err := s.studio.SetChannelCount(req.Count)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, fmt.Sprintf("通道数量已调整为 %d", req.Count), ChannelCountResponse{
		Added:   nonNil(added),
		Removed: nonNil(removed),
		Total:   req.Count,
	})
}

// handleGetChannel 获取通道详情
func (s *Server) handleGetChannel(c *gin.Context) {
	id, ok := channelID(c)
	if !ok {
		return
	}
	info, err := s.studio.Channel(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", info)
}

// handleUpdateChannel 修改通道属性
func (s *Server) handleUpdateChannel(c *gin.Context) {
	id, ok := channelID(c)
	if !ok {
		return
	}
	var req studio.ChannelUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的通道修改请求", err)
		return
	}
	info, err := s.studio.UpdateChannel(id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, fmt.Sprintf("通道 %d 已更新", id), info)
}

// handleDeleteChannel 删除通道
func (s *Server) handleDeleteChannel(c *gin.Context) {
	id, ok := channelID(c)
	if !ok {
		return
	}
	if err := s.studio.RemoveChannel(id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, fmt.Sprintf("通道 %d 已删除", id), nil)
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}
