// Package curve 实现单个通道的运动曲线：由两个边界锚点夹住的有序关键帧，
// 以及相邻锚点之间的三次贝塞尔片段。
package curve

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// Epsilon 判断两个锚点时间是否重合的窗口
const Epsilon = 1e-6

// KeyframeID 关键帧句柄，内部关键帧从 1 开始分配，不会复用
type KeyframeID int64

// 边界锚点的固定句柄
const (
	StartBoundary KeyframeID = -1
	EndBoundary   KeyframeID = -2
)

// IsBoundary 判断句柄是否指向边界锚点
func (id KeyframeID) IsBoundary() bool { return id == StartBoundary || id == EndBoundary }

// ControlOffset 控制点偏移。
// DT 为片段时间跨度的比例（从片段起点量起），DV 为相对所属锚点的数值偏移。
type ControlOffset struct {
	DT float64
	DV float64
}

// Segment 相邻两个锚点之间的片段，Control1 相对起点锚点，Control2 相对终点锚点
type Segment struct {
	Control1 ControlOffset
	Control2 ControlOffset
}

// DefaultSegment 新片段的默认控制点
func DefaultSegment() Segment {
	return Segment{
		Control1: ControlOffset{DT: 0.3, DV: 0},
		Control2: ControlOffset{DT: 0.7, DV: 0},
	}
}

// Anchor 锚点（边界或关键帧）
type Anchor struct {
	ID    KeyframeID
	Time  float64
	Value float64
}

// Curve 单个通道的运动曲线。
// 不变量：keyframes 按时间严格递增且都位于 (0, duration) 内，len(segments) == len(keyframes)+1。
type Curve struct {
	duration  float64
	baseline  float64
	keyframes []Anchor
	segments  []Segment
	nextID    KeyframeID
}

// New 创建一条只有边界锚点的曲线
func New(duration, baseline float64) (*Curve, error) {
	if !(duration > 0) || math.IsInf(duration, 0) {
		return nil, errors.Wrapf(ErrOutOfRange, "时长必须为正数，收到 %v", duration)
	}
	if math.IsNaN(baseline) || math.IsInf(baseline, 0) {
		return nil, errors.Wrapf(ErrOutOfRange, "无效的基准值 %v", baseline)
	}
	return &Curve{
		duration: duration,
		baseline: baseline,
		segments: []Segment{DefaultSegment()},
		nextID:   1,
	}, nil
}

func (c *Curve) Duration() float64  { return c.duration }
func (c *Curve) Baseline() float64  { return c.baseline }
func (c *Curve) KeyframeCount() int { return len(c.keyframes) }
func (c *Curve) SegmentCount() int  { return len(c.segments) }

// Keyframes 返回内部关键帧的副本（按时间排序）
func (c *Curve) Keyframes() []Anchor {
	out := make([]Anchor, len(c.keyframes))
	copy(out, c.keyframes)
	return out
}

// Keyframe 按句柄查找锚点，边界句柄同样可查
func (c *Curve) Keyframe(id KeyframeID) (Anchor, error) {
	switch id {
	case StartBoundary:
		return c.anchor(0), nil
	case EndBoundary:
		return c.anchor(len(c.keyframes) + 1), nil
	}
	idx := c.indexOf(id)
	if idx < 0 {
		return Anchor{}, errors.Wrapf(ErrNotFound, "关键帧 %d", id)
	}
	return c.keyframes[idx], nil
}

// Anchors 按时间顺序返回全部锚点：起始边界、k1..kn、结束边界
func (c *Curve) Anchors() []Anchor {
	out := make([]Anchor, 0, len(c.keyframes)+2)
	for i := 0; i < len(c.keyframes)+2; i++ {
		out = append(out, c.anchor(i))
	}
	return out
}

// Segment 返回第 i 个片段
func (c *Curve) Segment(i int) (Segment, error) {
	if i < 0 || i >= len(c.segments) {
		return Segment{}, errors.Wrapf(ErrNotFound, "片段 %d (共 %d 个)", i, len(c.segments))
	}
	return c.segments[i], nil
}

// SegmentBezier 返回第 i 个片段的绝对控制点
func (c *Curve) SegmentBezier(i int) (Cubic, error) {
	seg, err := c.Segment(i)
	if err != nil {
		return Cubic{}, err
	}
	return Bezier(c.anchor(i), c.anchor(i+1), seg), nil
}

// SegmentAt 返回时间 t 所在片段的序号；锚点时间归属于以它为起点的片段
func (c *Curve) SegmentAt(t float64) int {
	return sort.Search(len(c.keyframes), func(i int) bool { return c.keyframes[i].Time > t })
}

// InsertKeyframe 在 (t, v) 处插入关键帧，并把所在片段拆成两个默认片段
func (c *Curve) InsertKeyframe(t, v float64) (KeyframeID, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Wrapf(ErrOutOfRange, "无效的数值 %v", v)
	}
	if !(t > 0 && t < c.duration) {
		return 0, errors.Wrapf(ErrOutOfRange, "时间 %.6f 不在 (0, %.6f) 内", t, c.duration)
	}
	idx := c.SegmentAt(t)
	prev, next := c.anchor(idx), c.anchor(idx+1)
	if t-prev.Time < Epsilon || next.Time-t < Epsilon {
		return 0, errors.Wrapf(ErrDuplicateTime, "时间 %.6f", t)
	}

	id := c.nextID
	c.nextID++

	c.keyframes = append(c.keyframes, Anchor{})
	copy(c.keyframes[idx+1:], c.keyframes[idx:])
	c.keyframes[idx] = Anchor{ID: id, Time: t, Value: v}

	c.segments = append(c.segments, Segment{})
	copy(c.segments[idx+1:], c.segments[idx:])
	c.segments[idx] = DefaultSegment()
	c.segments[idx+1] = DefaultSegment()
	return id, nil
}

// RemoveKeyframe 删除关键帧，两侧片段合并为一个默认片段
func (c *Curve) RemoveKeyframe(id KeyframeID) error {
	if id.IsBoundary() {
		return errors.Wrap(ErrBoundaryImmutable, "删除关键帧")
	}
	idx := c.indexOf(id)
	if idx < 0 {
		return errors.Wrapf(ErrNotFound, "关键帧 %d", id)
	}
	c.keyframes = append(c.keyframes[:idx], c.keyframes[idx+1:]...)
	c.segments = append(c.segments[:idx+1], c.segments[idx+2:]...)
	c.segments[idx] = DefaultSegment()
	return nil
}

// MoveKeyframe 移动关键帧，不允许越过相邻锚点
func (c *Curve) MoveKeyframe(id KeyframeID, t, v float64) error {
	if id.IsBoundary() {
		return errors.Wrap(ErrBoundaryImmutable, "移动关键帧")
	}
	idx := c.indexOf(id)
	if idx < 0 {
		return errors.Wrapf(ErrNotFound, "关键帧 %d", id)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Wrapf(ErrOutOfRange, "无效的数值 %v", v)
	}
	if !(t > 0 && t < c.duration) {
		return errors.Wrapf(ErrOutOfRange, "时间 %.6f 不在 (0, %.6f) 内", t, c.duration)
	}
	// 锚点序号比关键帧序号大 1
	prev, next := c.anchor(idx), c.anchor(idx+2)
	if t-prev.Time < Epsilon || next.Time-t < Epsilon {
		return errors.Wrapf(ErrOrderViolation, "时间 %.6f 不在 (%.6f, %.6f) 之间", t, prev.Time, next.Time)
	}
	c.keyframes[idx].Time = t
	c.keyframes[idx].Value = v
	return nil
}

// SetSegmentControls 设置片段控制点，不做单调性检查
func (c *Curve) SetSegmentControls(i int, c1, c2 ControlOffset) error {
	if i < 0 || i >= len(c.segments) {
		return errors.Wrapf(ErrNotFound, "片段 %d (共 %d 个)", i, len(c.segments))
	}
	c.segments[i] = Segment{Control1: c1, Control2: c2}
	return nil
}

// SetBaseline 同时修改两个边界锚点的数值
func (c *Curve) SetBaseline(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.Wrapf(ErrOutOfRange, "无效的基准值 %v", v)
	}
	c.baseline = v
	return nil
}

// CheckRescale 检查按比例缩放到 duration 后相邻锚点是否仍相距至少 Epsilon，不修改曲线
func (c *Curve) CheckRescale(duration float64) error {
	if !(duration > 0) || math.IsInf(duration, 0) {
		return errors.Wrapf(ErrOutOfRange, "时长必须为正数，收到 %v", duration)
	}
	ratio := duration / c.duration
	prev := 0.0
	for _, kf := range c.keyframes {
		t := kf.Time * ratio
		if t-prev < Epsilon || duration-t < Epsilon {
			return errors.Wrapf(ErrOrderViolation, "缩放到 %v 后关键帧 %d 与相邻锚点重合", duration, kf.ID)
		}
		prev = t
	}
	return nil
}

// Rescale 修改曲线时长，关键帧时间按比例缩放；缩放后锚点重合时不做任何修改
func (c *Curve) Rescale(duration float64) error {
	if err := c.CheckRescale(duration); err != nil {
		return err
	}
	ratio := duration / c.duration
	for i := range c.keyframes {
		c.keyframes[i].Time *= ratio
	}
	c.duration = duration
	return nil
}

// Sample 计算曲线在 t 处的数值，t 会被限制在 [0, duration]
func (c *Curve) Sample(t float64) float64 {
	if t <= 0 || t >= c.duration {
		return c.baseline
	}
	i := c.SegmentAt(t)
	return Bezier(c.anchor(i), c.anchor(i+1), c.segments[i]).ValueAt(t)
}

// SampleTable 在 [0, duration] 上等间隔采样 n 个点（n 至少为 2）
func (c *Curve) SampleTable(n int) []float64 {
	if n < 2 {
		n = 2
	}
	out := make([]float64, n)
	step := c.duration / float64(n-1)

	// 每个片段的贝塞尔只构造一次
	seg := -1
	var bez Cubic
	for k := 0; k < n; k++ {
		t := float64(k) * step
		if k == n-1 {
			t = c.duration
		}
		if t <= 0 || t >= c.duration {
			out[k] = c.baseline
			continue
		}
		if i := c.SegmentAt(t); i != seg {
			seg = i
			bez = Bezier(c.anchor(i), c.anchor(i+1), c.segments[i])
		}
		out[k] = bez.ValueAt(t)
	}
	return out
}

// Clone 深拷贝
func (c *Curve) Clone() *Curve {
	out := *c
	out.keyframes = c.Keyframes()
	out.segments = make([]Segment, len(c.segments))
	copy(out.segments, c.segments)
	return &out
}

// Equal 比较时长、基准值、关键帧时间/数值以及片段控制点（不比较句柄）
func (c *Curve) Equal(o *Curve) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.duration != o.duration || c.baseline != o.baseline ||
		len(c.keyframes) != len(o.keyframes) || len(c.segments) != len(o.segments) {
		return false
	}
	for i := range c.keyframes {
		if c.keyframes[i].Time != o.keyframes[i].Time || c.keyframes[i].Value != o.keyframes[i].Value {
			return false
		}
	}
	for i := range c.segments {
		if c.segments[i] != o.segments[i] {
			return false
		}
	}
	return true
}

// anchor 返回第 i 个锚点，0 与 len(keyframes)+1 为边界
func (c *Curve) anchor(i int) Anchor {
	switch {
	case i <= 0:
		return Anchor{ID: StartBoundary, Time: 0, Value: c.baseline}
	case i > len(c.keyframes):
		return Anchor{ID: EndBoundary, Time: c.duration, Value: c.baseline}
	}
	return c.keyframes[i-1]
}

func (c *Curve) indexOf(id KeyframeID) int {
	for i, kf := range c.keyframes {
		if kf.ID == id {
			return i
		}
	}
	return -1
}
