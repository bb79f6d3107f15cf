package curve

import (
	"math"

	"github.com/pkg/errors"
)

// Data 曲线的持久化形式，全部为归一化单位
type Data struct {
	Duration  float64        `json:"duration"`
	Baseline  float64        `json:"baseline"`
	Keyframes []KeyframeData `json:"keyframes"`
	Segments  []SegmentData  `json:"segments"`
}

type KeyframeData struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

type SegmentData struct {
	Control1 OffsetData `json:"control1"`
	Control2 OffsetData `json:"control2"`
}

type OffsetData struct {
	DT float64 `json:"dt"`
	DV float64 `json:"dv"`
}

// Data 导出持久化形式
func (c *Curve) Data() Data {
	d := Data{
		Duration:  c.duration,
		Baseline:  c.baseline,
		Keyframes: make([]KeyframeData, 0, len(c.keyframes)),
		Segments:  make([]SegmentData, 0, len(c.segments)),
	}
	for _, kf := range c.keyframes {
		d.Keyframes = append(d.Keyframes, KeyframeData{Time: kf.Time, Value: kf.Value})
	}
	for _, s := range c.segments {
		d.Segments = append(d.Segments, SegmentData{
			Control1: OffsetData{DT: s.Control1.DT, DV: s.Control1.DV},
			Control2: OffsetData{DT: s.Control2.DT, DV: s.Control2.DV},
		})
	}
	return d
}

// Load 从持久化形式重建曲线，关键帧与片段保持原有顺序
func Load(d Data) (*Curve, error) {
	if len(d.Keyframes)+1 != len(d.Segments) {
		return nil, errors.Wrapf(ErrCorruptData, "关键帧 %d 个，片段 %d 个", len(d.Keyframes), len(d.Segments))
	}
	c, err := New(d.Duration, d.Baseline)
	if err != nil {
		return nil, errors.Wrap(ErrCorruptData, err.Error())
	}

	c.keyframes = make([]Anchor, 0, len(d.Keyframes))
	prev := 0.0
	for i, kf := range d.Keyframes {
		if !finite(kf.Time) || !finite(kf.Value) {
			return nil, errors.Wrapf(ErrCorruptData, "关键帧 %d 含非法数值", i)
		}
		if kf.Time-prev < Epsilon || d.Duration-kf.Time < Epsilon {
			return nil, errors.Wrapf(ErrCorruptData, "关键帧 %d 时间 %.6f 越界或未严格递增", i, kf.Time)
		}
		prev = kf.Time
		c.keyframes = append(c.keyframes, Anchor{ID: c.nextID, Time: kf.Time, Value: kf.Value})
		c.nextID++
	}

	c.segments = make([]Segment, 0, len(d.Segments))
	for i, s := range d.Segments {
		if !finite(s.Control1.DT) || !finite(s.Control1.DV) || !finite(s.Control2.DT) || !finite(s.Control2.DV) {
			return nil, errors.Wrapf(ErrCorruptData, "片段 %d 含非法控制点", i)
		}
		c.segments = append(c.segments, Segment{
			Control1: ControlOffset{DT: s.Control1.DT, DV: s.Control1.DV},
			Control2: ControlOffset{DT: s.Control2.DT, DV: s.Control2.DV},
		})
	}
	return c, nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
