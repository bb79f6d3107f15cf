package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"servos/curve"
	"servos/define"
	"servos/editor"
)

// keyframeID 解析路径中的关键帧句柄，start/end 表示边界锚点
func keyframeID(c *gin.Context) (curve.KeyframeID, bool) {
	switch raw := c.Param("kf"); raw {
	case "start":
		return curve.StartBoundary, true
	case "end":
		return curve.EndBoundary, true
	default:
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, define.ApiResponse{
				Status: "error",
				Error:  fmt.Sprintf("无效的关键帧 ID：%s", raw),
			})
			return 0, false
		}
		return curve.KeyframeID(id), true
	}
}

// viewportOr 请求未携带视口时使用默认视口
func (s *Server) viewportOr(vp *editor.Viewport) editor.Viewport {
	if vp != nil {
		return *vp
	}
	return s.studio.Viewport()
}

// bindKeyframe 解析关键帧请求，必须给出 time/value 或 x/y 其中一组
func bindKeyframe(c *gin.Context) (KeyframeRequest, bool, bool) {
	var req KeyframeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的关键帧请求", err)
		return req, false, false
	}
	switch {
	case req.Time != nil && req.Value != nil:
		return req, false, true
	case req.X != nil && req.Y != nil:
		return req, true, true
	}
	c.JSON(http.StatusBadRequest, define.ApiResponse{
		Status: "error",
		Error:  "需要同时提供 time/value 或 x/y",
	})
	return req, false, false
}

// handleInsertKeyframe 插入关键帧
func (s *Server) handleInsertKeyframe(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}
	req, pixel, ok := bindKeyframe(c)
	if !ok {
		return
	}

	var (
		id  curve.KeyframeID
		err error
	)
	if pixel {
		id, err = s.studio.InsertKeyframeAt(chID, s.viewportOr(req.Viewport), *req.X, *req.Y)
	} else {
		id, err = s.studio.InsertKeyframe(chID, *req.Time, *req.Value)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, define.ApiResponse{
		Status:  "success",
		Message: "关键帧已插入",
		Data:    KeyframeResponse{ChannelID: chID, ID: id},
	})
}

// handleMoveKeyframe 移动关键帧
func (s *Server) handleMoveKeyframe(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}
	id, ok := keyframeID(c)
	if !ok {
		return
	}
	req, pixel, ok := bindKeyframe(c)
	if !ok {
		return
	}

	var err error
	if pixel {
		err = s.studio.MoveKeyframeTo(chID, id, s.viewportOr(req.Viewport), *req.X, *req.Y)
	} else {
		err = s.studio.MoveKeyframe(chID, id, *req.Time, *req.Value)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "关键帧已移动", KeyframeResponse{ChannelID: chID, ID: id})
}

// handleDeleteKeyframe 删除关键帧
func (s *Server) handleDeleteKeyframe(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}
	id, ok := keyframeID(c)
	if !ok {
		return
	}
	if err := s.studio.RemoveKeyframe(chID, id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "关键帧已删除", KeyframeResponse{ChannelID: chID, ID: id})
}

// handleSetControls 设置片段控制点
func (s *Server) handleSetControls(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondBadRequest(c, "无效的片段序号", err)
		return
	}
	var req SegmentControlsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的控制点请求", err)
		return
	}

	c1 := curve.ControlOffset{DT: req.Control1.DT, DV: req.Control1.DV}
	c2 := curve.ControlOffset{DT: req.Control2.DT, DV: req.Control2.DV}
	if err := s.studio.SetSegmentControls(chID, index, c1, c2); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, fmt.Sprintf("片段 %d 控制点已更新", index), req)
}

// handleSetBaseline 设置基准值
func (s *Server) handleSetBaseline(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}
	var req BaselineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的基准值请求", err)
		return
	}
	if err := s.studio.SetBaseline(chID, *req.Value); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "基准值已更新", req)
}

// handleGetCurve 导出曲线
func (s *Server) handleGetCurve(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}
	data, err := s.studio.CurveData(chID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", data)
}

// handleReplaceCurve 用请求体替换曲线
func (s *Server) handleReplaceCurve(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}
	var data curve.Data
	if err := c.ShouldBindJSON(&data); err != nil {
		respondBadRequest(c, "无效的曲线数据", err)
		return
	}
	if err := s.studio.ReplaceCurve(chID, data); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "曲线已替换", nil)
}

// handleSamples 预览采样，n 默认 101
func (s *Server) handleSamples(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}
	n, err := strconv.Atoi(c.DefaultQuery("n", "101"))
	if err != nil || n < 2 || n > 100000 {
		c.JSON(http.StatusBadRequest, define.ApiResponse{
			Status: "error",
			Error:  fmt.Sprintf("无效的采样数量：%s", c.Query("n")),
		})
		return
	}
	values, err := s.studio.Samples(chID, n)
	if err != nil {
		respondError(c, err)
		return
	}
	ch, _ := s.studio.Channel(chID)
	respondOK(c, "", SamplesResponse{ChannelID: chID, Duration: ch.Duration, Values: values})
}

// handleHitTest 像素命中测试
func (s *Server) handleHitTest(c *gin.Context) {
	chID, ok := channelID(c)
	if !ok {
		return
	}
	var req HitTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的命中测试请求", err)
		return
	}
	index, hit, err := s.studio.HitTestSegment(chID, s.viewportOr(req.Viewport), req.X, req.Y, req.Tolerance)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", HitTestResponse{Hit: hit, Segment: index})
}

// handleGetViewport 当前时长下的默认视口
func (s *Server) handleGetViewport(c *gin.Context) {
	respondOK(c, "", s.studio.Viewport())
}

// handleToCurve 像素坐标换算为曲线坐标
func (s *Server) handleToCurve(c *gin.Context) {
	var req PixelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的坐标请求", err)
		return
	}
	vp := s.viewportOr(req.Viewport)
	if err := vp.Validate(); err != nil {
		respondError(c, err)
		return
	}
	t, v := vp.ToCurve(req.X, req.Y)
	respondOK(c, "", PointResponse{X: req.X, Y: req.Y, Time: t, Value: v})
}

// handleToViewport 曲线坐标换算为像素坐标
func (s *Server) handleToViewport(c *gin.Context) {
	var req CurvePointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的坐标请求", err)
		return
	}
	vp := s.viewportOr(req.Viewport)
	if err := vp.Validate(); err != nil {
		respondError(c, err)
		return
	}
	x, y := vp.ToViewport(req.Time, req.Value)
	respondOK(c, "", PointResponse{X: x, Y: y, Time: req.Time, Value: req.Value})
}

// handleSetLimitMode 设置限位模式
func (s *Server) handleSetLimitMode(c *gin.Context) {
	var req LimitModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的限位模式请求", err)
		return
	}
	if err := s.studio.SetLimitMode(define.LimitModeFromString(req.Mode)); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "限位模式已更新", gin.H{"mode": s.studio.LimitMode().String()})
}
