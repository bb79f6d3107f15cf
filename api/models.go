package api

import (
	"time"

	"servos/communication"
	"servos/curve"
	"servos/editor"
)

// ===== 通道相关模型 =====

// ChannelCreateRequest 新增通道请求
type ChannelCreateRequest struct {
	Name string `json:"name"`
}

// ChannelCountRequest 调整通道数量请求
type ChannelCountRequest struct {
	Count int `json:"count" binding:"required,min=1,max=16"`
}

// ChannelCountResponse 调整通道数量结果
type ChannelCountResponse struct {
	Added   []int `json:"added"`
	Removed []int `json:"removed"`
	Total   int   `json:"total"`
}

// ===== 曲线编辑相关模型 =====

// KeyframeRequest 插入或移动关键帧。
// 给出 time/value 时按曲线坐标处理，否则按 x/y 像素坐标处理。
type KeyframeRequest struct {
	Time     *float64         `json:"time"`
	Value    *float64         `json:"value"`
	X        *float64         `json:"x"`
	Y        *float64         `json:"y"`
	Viewport *editor.Viewport `json:"viewport"`
}

// KeyframeResponse 关键帧操作结果
type KeyframeResponse struct {
	ChannelID int              `json:"channelId"`
	ID        curve.KeyframeID `json:"id"`
}

type OffsetModel struct {
	DT float64 `json:"dt"`
	DV float64 `json:"dv"`
}

// SegmentControlsRequest 设置片段控制点
type SegmentControlsRequest struct {
	Control1 OffsetModel `json:"control1"`
	Control2 OffsetModel `json:"control2"`
}

// BaselineRequest 设置基准值
type BaselineRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

// HitTestRequest 像素坐标命中测试
type HitTestRequest struct {
	X         float64          `json:"x"`
	Y         float64          `json:"y"`
	Tolerance float64          `json:"tolerance"`
	Viewport  *editor.Viewport `json:"viewport"`
}

// HitTestResponse 命中测试结果，未命中时 Segment 为 -1
type HitTestResponse struct {
	Hit     bool `json:"hit"`
	Segment int  `json:"segment"`
}

// SamplesResponse 预览采样
type SamplesResponse struct {
	ChannelID int       `json:"channelId"`
	Duration  float64   `json:"duration"`
	Values    []float64 `json:"values"`
}

// ===== 视口换算模型 =====

type PixelRequest struct {
	X        float64          `json:"x"`
	Y        float64          `json:"y"`
	Viewport *editor.Viewport `json:"viewport"`
}

type CurvePointRequest struct {
	Time     float64          `json:"time"`
	Value    float64          `json:"value"`
	Viewport *editor.Viewport `json:"viewport"`
}

type PointResponse struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// ===== 播放控制相关模型 =====

type SeekRequest struct {
	Time *float64 `json:"time" binding:"required"`
}

type StartResponse struct {
	Session string `json:"session"`
}

type LimitModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// ===== 工程相关模型 =====

type NewProjectRequest struct {
	Channels int `json:"channels" binding:"required,min=1,max=16"`
}

// ===== 系统相关模型 =====

// TransportsResponse 可用的输出类型与当前输出统计
type TransportsResponse struct {
	Supported   []string                   `json:"supported"`
	Active      []communication.AsyncStats `json:"active"`
	SerialPorts []string                   `json:"serialPorts"`
	SerialError string                     `json:"serialError,omitempty"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Streams   int       `json:"streams"`
}
