// Package editor 提供按通道寻址的曲线编辑操作。
// 每次成功的修改都会先让该通道的采样缓存失效，再同步发出变更事件。
package editor

import (
	"math"

	"go.uber.org/zap"

	"servos/channel"
	"servos/curve"
	"servos/define"
)

// HitSamples 命中测试时每个片段的细分数
const HitSamples = 100

// DefaultHitTolerance 默认命中容差（像素）
const DefaultHitTolerance = 5.0

// Channels 编辑器需要的通道查询能力
type Channels interface {
	Get(id int) (*channel.Channel, error)
}

// Invalidator 接收缓存失效通知，一般是播放调度器
type Invalidator interface {
	Invalidate(channelID int)
}

type Editor struct {
	channels    Channels
	invalidator Invalidator
	bus         *Bus
	limitMode   define.LimitMode
	logger      *zap.SugaredLogger
}

func New(channels Channels, invalidator Invalidator, bus *Bus, mode define.LimitMode, logger *zap.SugaredLogger) *Editor {
	if mode == define.LIMIT_MODE_UNKNOWN {
		mode = define.LIMIT_MODE_ADVISORY
	}
	if bus == nil {
		bus = NewBus()
	}
	return &Editor{
		channels:    channels,
		invalidator: invalidator,
		bus:         bus,
		limitMode:   mode,
		logger:      logger,
	}
}

func (e *Editor) Bus() *Bus                          { return e.bus }
func (e *Editor) LimitMode() define.LimitMode        { return e.limitMode }
func (e *Editor) SetLimitMode(mode define.LimitMode) { e.limitMode = mode }

// InsertKeyframe 在通道曲线上插入关键帧
func (e *Editor) InsertKeyframe(channelID int, t, v float64) (curve.KeyframeID, error) {
	ch, err := e.channels.Get(channelID)
	if err != nil {
		return 0, err
	}
	v, err = ch.Limits.Apply(e.limitMode, v)
	if err != nil {
		return 0, err
	}
	id, err := ch.Curve.InsertKeyframe(t, v)
	if err != nil {
		return 0, err
	}
	e.changed(define.ChangeInsert, channelID, map[string]any{"keyframe": id, "time": t, "value": v})
	return id, nil
}

func (e *Editor) RemoveKeyframe(channelID int, id curve.KeyframeID) error {
	ch, err := e.channels.Get(channelID)
	if err != nil {
		return err
	}
	if err := ch.Curve.RemoveKeyframe(id); err != nil {
		return err
	}
	e.changed(define.ChangeDelete, channelID, map[string]any{"keyframe": id})
	return nil
}

func (e *Editor) MoveKeyframe(channelID int, id curve.KeyframeID, t, v float64) error {
	ch, err := e.channels.Get(channelID)
	if err != nil {
		return err
	}
	v, err = ch.Limits.Apply(e.limitMode, v)
	if err != nil {
		return err
	}
	if err := ch.Curve.MoveKeyframe(id, t, v); err != nil {
		return err
	}
	e.changed(define.ChangeMove, channelID, map[string]any{"keyframe": id, "time": t, "value": v})
	return nil
}

func (e *Editor) SetSegmentControls(channelID, index int, c1, c2 curve.ControlOffset) error {
	ch, err := e.channels.Get(channelID)
	if err != nil {
		return err
	}
	if err := ch.Curve.SetSegmentControls(index, c1, c2); err != nil {
		return err
	}
	e.changed(define.ChangeControl, channelID, map[string]any{"segment": index, "control1": c1, "control2": c2})
	return nil
}

func (e *Editor) SetBaseline(channelID int, v float64) error {
	ch, err := e.channels.Get(channelID)
	if err != nil {
		return err
	}
	v, err = ch.Limits.Apply(e.limitMode, v)
	if err != nil {
		return err
	}
	if err := ch.Curve.SetBaseline(v); err != nil {
		return err
	}
	e.changed(define.ChangeBaseline, channelID, map[string]any{"value": v})
	return nil
}

// InsertKeyframeAt 在视口像素位置插入关键帧
func (e *Editor) InsertKeyframeAt(channelID int, vp Viewport, x, y float64) (curve.KeyframeID, error) {
	if err := vp.Validate(); err != nil {
		return 0, err
	}
	t, v := vp.ToCurve(x, y)
	return e.InsertKeyframe(channelID, t, v)
}

// MoveKeyframeTo 把关键帧拖到视口像素位置
func (e *Editor) MoveKeyframeTo(channelID int, id curve.KeyframeID, vp Viewport, x, y float64) error {
	if err := vp.Validate(); err != nil {
		return err
	}
	t, v := vp.ToCurve(x, y)
	return e.MoveKeyframe(channelID, id, t, v)
}

// HitTestSegment 返回距离像素点最近且在容差内的片段序号
func (e *Editor) HitTestSegment(channelID int, vp Viewport, x, y, tolerance float64) (int, bool, error) {
	if err := vp.Validate(); err != nil {
		return 0, false, err
	}
	ch, err := e.channels.Get(channelID)
	if err != nil {
		return 0, false, err
	}
	if tolerance <= 0 {
		tolerance = DefaultHitTolerance
	}

	best, bestDist := -1, math.Inf(1)
	p := curve.Point{T: x, V: y}
	for i := 0; i < ch.Curve.SegmentCount(); i++ {
		bez, err := ch.Curve.SegmentBezier(i)
		if err != nil {
			return 0, false, err
		}
		if d := bez.Map(vp.toPixel).Distance(p, HitSamples); d <= tolerance && d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, best >= 0, nil
}

// Touch 通知外部某通道的曲线被整体替换或通道属性变化
func (e *Editor) Touch(kind define.ChangeKind, channelID int, details map[string]any) {
	e.changed(kind, channelID, details)
}

func (e *Editor) changed(kind define.ChangeKind, channelID int, details map[string]any) {
	if e.invalidator != nil {
		e.invalidator.Invalidate(channelID)
	}
	if e.logger != nil {
		e.logger.Debugw("✏️ 曲线已修改", "kind", kind, "channel", channelID)
	}
	e.bus.Emit(ChangeEvent{Kind: kind, ChannelID: channelID, Details: details})
}
